// Package openapi exposes the loader and parser contracts used to fetch an API
// document and enumerate its operations. Implementations live under
// internal/openapi so kin-openapi stays hidden from consumers.
package openapi
