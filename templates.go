package simforms

import (
	"io/fs"

	vanilla "github.com/neuroplatform/simforms/pkg/renderers/vanilla"
)

// EmbeddedTemplates exposes the built-in vanilla renderer templates so callers
// can reuse or extend them without importing the renderer package directly.
func EmbeddedTemplates() fs.FS {
	return vanilla.TemplatesFS()
}

// AssetsFS exposes the stylesheet and browser script the vanilla renderer
// links to, so Go applications can serve them without a build step.
//
// Typical mount:
//
//	mux.Handle("/static/",
//	  http.StripPrefix("/static/",
//	    http.FileServerFS(simforms.AssetsFS()),
//	  ),
//	)
func AssetsFS() fs.FS {
	return vanilla.AssetsFS()
}
