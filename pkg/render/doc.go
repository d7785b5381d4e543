// Package render defines the renderer contract, the page model renderers
// consume and helpers shared by the HTML and terminal renderers.
package render
