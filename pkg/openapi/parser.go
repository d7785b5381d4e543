package openapi

import (
	"context"

	"github.com/neuroplatform/simforms/pkg/schema"
)

// Parser enumerates the operations of a document.
type Parser interface {
	Operations(ctx context.Context, doc schema.Document) (Operations, error)
}

// ParserOptions exposes parser toggles.
type ParserOptions struct {
	// Validate runs kin-openapi document validation before enumerating
	// operations. Server generated documents routinely use 3.1 keywords the
	// validator rejects, so it is off by default.
	Validate bool

	// AllowEmpty accepts documents without operations.
	AllowEmpty bool
}

// ParserOption mutates ParserOptions during construction.
type ParserOption func(*ParserOptions)

// WithValidation toggles document validation.
func WithValidation(enabled bool) ParserOption {
	return func(opts *ParserOptions) {
		opts.Validate = enabled
	}
}

// WithAllowEmpty toggles support for documents without operations.
func WithAllowEmpty(enabled bool) ParserOption {
	return func(opts *ParserOptions) {
		opts.AllowEmpty = enabled
	}
}

// NewParserOptions applies ParserOption functions and returns the resulting
// configuration.
func NewParserOptions(options ...ParserOption) ParserOptions {
	cfg := ParserOptions{}
	for _, opt := range options {
		opt(&cfg)
	}
	return cfg
}
