// Package form turns resolved request schemas into field trees, tracks the
// path-keyed values a user enters for one block and expands those values into
// the nested payloads the remote API expects.
//
// Field trees are schema level: array items are described once. Controls
// produced by View carry concrete dotted paths ("stimulus.amplitude.0") and
// are what renderers consume.
package form
