package render

import (
	theme "github.com/goliatone/go-theme"
)

// RenderOptions describe per-request data that renderers can use to customise
// their output without touching the workspace.
type RenderOptions struct {
	// Hidden carries extra hidden inputs (CSRF token, endpoint) emitted in every
	// form the renderer produces.
	Hidden map[string]string
	// Theme supplies tokens and CSS variables. Nil selects the built-in theme.
	Theme *theme.RendererConfig
	// Fragment renders only the active block panel without the page chrome.
	Fragment bool
	// BasePath prefixes every action URL the renderer emits.
	BasePath string
}
