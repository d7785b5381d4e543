package components

import "github.com/neuroplatform/simforms/pkg/form"

// Canonical component names used by the vanilla renderer and default registry.
const (
	NameInput       = "input"
	NameSelect      = "select"
	NameBoolean     = "boolean"
	NameConst       = "const"
	NameBlockRef    = "block_ref"
	NameObject      = "object"
	NameArray       = "array"
	NameUnsupported = "unsupported"
)

// NameFor returns the default component for a field kind.
func NameFor(kind form.FieldKind) string {
	switch kind {
	case form.KindEnum:
		return NameSelect
	case form.KindBoolean:
		return NameBoolean
	case form.KindConst:
		return NameConst
	case form.KindBlockRef:
		return NameBlockRef
	case form.KindObject:
		return NameObject
	case form.KindArray:
		return NameArray
	case form.KindUnsupported:
		return NameUnsupported
	default:
		return NameInput
	}
}

// HandlesChrome reports whether a component draws its own label and
// description.
func HandlesChrome(name string) bool {
	switch name {
	case NameObject, NameArray, NameUnsupported:
		return true
	default:
		return false
	}
}
