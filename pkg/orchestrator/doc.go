// Package orchestrator wires the loader -> parser -> partition -> workspace ->
// renderer pipeline behind a single entry point. Parsed documents are cached
// by checksum as catalogs so servers can reuse resolvers, layouts and
// validators across requests.
package orchestrator
