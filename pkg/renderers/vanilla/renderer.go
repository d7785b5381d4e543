// Package vanilla renders endpoint workspaces as server-side HTML pages with
// plain forms, so every block and row action works without client scripts.
package vanilla

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/neuroplatform/simforms/pkg/render"
	rendertemplate "github.com/neuroplatform/simforms/pkg/render/template"
	"github.com/neuroplatform/simforms/pkg/render/template/gotemplate"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla/components"
)

type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	registry         *components.Registry
	scripts          []string
}

// WithTemplatesFS supplies an alternate template bundle via fs.FS.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path == "" {
			return
		}
		cfg.templateFS = os.DirFS(path)
	}
}

// WithTemplateRenderer injects a custom template renderer implementation.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithComponentRegistry replaces the built-in component set.
func WithComponentRegistry(registry *components.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.registry = registry
		}
	}
}

// WithScripts adds page-level scripts, such as a MathJax bundle.
func WithScripts(src ...string) Option {
	return func(cfg *config) {
		cfg.scripts = append(cfg.scripts, src...)
	}
}

type Renderer struct {
	templates rendertemplate.TemplateRenderer
	registry  *components.Registry
	scripts   []string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the vanilla renderer applying any provided options.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}

	templates := cfg.templateRenderer
	if templates == nil {
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tmpl"),
		)
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: configure template renderer: %w", err)
		}
		templates = engine
	}
	registry := cfg.registry
	if registry == nil {
		registry = components.NewDefaultRegistry()
	}

	return &Renderer{templates: templates, registry: registry, scripts: cfg.scripts}, nil
}

func (r *Renderer) Name() string {
	return "vanilla"
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Actions holds the form action URLs of one page.
type Actions struct {
	Values   string `json:"values"`
	Generate string `json:"generate"`
	Rows     string `json:"rows"`
	Add      string `json:"add"`
	Rename   string `json:"rename"`
	Delete   string `json:"delete"`
	Select   string `json:"select"`
}

// ActionsFor derives the action URLs of the endpoint at path.
func ActionsFor(base, path string) Actions {
	base = strings.TrimRight(base, "/")
	path = "/" + strings.TrimLeft(path, "/")
	return Actions{
		Values:   base + "/values" + path,
		Generate: base + "/generate" + path,
		Rows:     base + "/rows" + path,
		Add:      base + "/blocks/add" + path,
		Rename:   base + "/blocks/rename" + path,
		Delete:   base + "/blocks/delete" + path,
		Select:   base + "/blocks/select" + path,
	}
}

func (r *Renderer) Render(ctx context.Context, page render.Page, options render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := options.Theme
	if cfg == nil {
		cfg = render.ThemeConfig(nil, "")
	}
	actions := ActionsFor(options.BasePath, page.Path)

	fields := newComponentRenderer(r.templates, r.registry, cfg.Partials, actions.Rows)
	body, err := fields.renderAll(page.Controls)
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: %w", err)
	}

	chrome := r.chrome(options.BasePath, cfg)
	scripts := append(chrome.scripts, fields.scripts()...)

	hidden := render.SortedHiddenFields(render.MergeHiddenFields(options.Hidden, render.BlockField(page.Active.ID)))

	name := "templates/page.tmpl"
	if options.Fragment {
		name = "templates/panel.tmpl"
	}
	result, err := r.templates.RenderTemplate(name, map[string]any{
		"page":        page,
		"body":        body,
		"hidden":      hidden,
		"actions":     actions,
		"base":        chrome.base,
		"theme":       chrome.theme,
		"theme_style": chrome.style,
		"stylesheet":  chrome.stylesheet,
		"scripts":     scripts,
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render template: %w", err)
	}
	return []byte(result), nil
}

// IndexPage lists the endpoints a user can open a workspace for.
type IndexPage struct {
	Title  string            `json:"title"`
	Forms  []render.FormLink `json:"forms"`
	Errors []string          `json:"errors,omitempty"`
}

// RenderIndex renders the endpoint picker.
func (r *Renderer) RenderIndex(ctx context.Context, index IndexPage, options render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := options.Theme
	if cfg == nil {
		cfg = render.ThemeConfig(nil, "")
	}
	chrome := r.chrome(options.BasePath, cfg)
	result, err := r.templates.RenderTemplate("templates/index.tmpl", map[string]any{
		"index":       index,
		"base":        chrome.base,
		"theme":       chrome.theme,
		"theme_style": chrome.style,
		"stylesheet":  chrome.stylesheet,
		"scripts":     chrome.scripts,
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render index: %w", err)
	}
	return []byte(result), nil
}

type pageChrome struct {
	base       string
	stylesheet string
	scripts    []string
	theme      map[string]string
	style      string
}

func (r *Renderer) chrome(basePath string, cfg *theme.RendererConfig) pageChrome {
	base := strings.TrimRight(basePath, "/")
	out := pageChrome{
		base:       base,
		stylesheet: base + "/static/" + StylesheetName,
		scripts:    []string{base + "/static/" + RuntimeScriptName},
		theme:      map[string]string{"name": cfg.Theme, "variant": cfg.Variant},
		style:      render.CSSVarsStyle(cfg.CSSVars),
	}
	if cfg.AssetURL != nil {
		if url := cfg.AssetURL("stylesheet"); url != "" {
			out.stylesheet = withBase(base, url)
		}
		if url := cfg.AssetURL("script"); url != "" {
			out.scripts[0] = withBase(base, url)
		}
	}
	out.scripts = append(out.scripts, r.scripts...)
	return out
}

// withBase mounts root-relative asset URLs under base. Absolute URLs pass
// through.
func withBase(base, url string) string {
	if base == "" || !strings.HasPrefix(url, "/") || strings.HasPrefix(url, "//") {
		return url
	}
	return base + url
}
