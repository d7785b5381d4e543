package vanilla

// ChromeClass is a semantic CSS class emitted around controls.
type ChromeClass string

const (
	ClassField    ChromeClass = "sf-field"
	ClassLabel    ChromeClass = "sf-label"
	ClassRequired ChromeClass = "sf-required"
	ClassDesc     ChromeClass = "sf-description"
)
