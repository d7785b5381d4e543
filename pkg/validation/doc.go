// Package validation checks generated configuration payloads against the
// request schema of an OpenAPI operation and reports advisory issues keyed by
// dotted field path.
package validation
