package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrReferenceNotFound reports a $ref whose pointer does not exist in the
	// root document.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrReferenceCycle reports a chain of references that loops back on itself.
	ErrReferenceCycle = errors.New("reference cycle")

	// ErrReferenceDepth reports a reference chain longer than the resolver cap.
	ErrReferenceDepth = errors.New("reference chain too deep")

	// ErrExternalReference reports a $ref into another document.
	ErrExternalReference = errors.New("external references are not supported")

	// ErrNotObject reports a document or reference target that is not a JSON
	// object.
	ErrNotObject = errors.New("schema: document must be a JSON object")
)

// ReferenceError carries the offending $ref alongside the failure reason.
type ReferenceError struct {
	Ref string
	Err error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("schema: %v: %s", e.Err, e.Ref)
}

func (e *ReferenceError) Unwrap() error {
	return e.Err
}
