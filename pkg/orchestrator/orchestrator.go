package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	theme "github.com/goliatone/go-theme"

	internalLoader "github.com/neuroplatform/simforms/internal/openapi/loader"
	internalParser "github.com/neuroplatform/simforms/internal/openapi/parser"
	"github.com/neuroplatform/simforms/pkg/blocks"
	pkgopenapi "github.com/neuroplatform/simforms/pkg/openapi"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/renderers/vanilla"
	"github.com/neuroplatform/simforms/pkg/schema"
)

const defaultRendererName = "vanilla"

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLoader injects a custom OpenAPI loader.
func WithLoader(loader pkgopenapi.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = loader
	}
}

// WithParser injects a custom OpenAPI parser.
func WithParser(parser pkgopenapi.Parser) Option {
	return func(o *Orchestrator) {
		o.parser = parser
	}
}

// WithRegistry injects a renderer registry.
func WithRegistry(registry *render.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = registry
	}
}

// WithDefaultRenderer overrides the renderer used when a request omits an
// explicit Renderer field.
func WithDefaultRenderer(name string) Option {
	return func(o *Orchestrator) {
		o.defaultRenderer = name
	}
}

// WithTransformer registers a Transformer that can mutate pages after they
// are built but before rendering.
func WithTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithThemeSelector resolves the theme and variant named by requests into
// renderer configuration.
func WithThemeSelector(selector theme.ThemeSelector) Option {
	return func(o *Orchestrator) {
		o.themeSelector = selector
	}
}

// WithLogger sets the logger used for pipeline traces.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithWorkspaceOptions applies options to every workspace the orchestrator
// creates.
func WithWorkspaceOptions(opts ...blocks.Option) Option {
	return func(o *Orchestrator) {
		o.workspaceOpts = append(o.workspaceOpts, opts...)
	}
}

// Orchestrator coordinates the full pipeline from OpenAPI document to rendered
// output. It applies sensible defaults (vanilla renderer, embedded templates)
// while remaining open to dependency injection for advanced callers.
type Orchestrator struct {
	loader          pkgopenapi.Loader
	parser          pkgopenapi.Parser
	registry        *render.Registry
	defaultRenderer string
	transformer     Transformer
	themeSelector   theme.ThemeSelector
	logger          *slog.Logger
	workspaceOpts   []blocks.Option
	initialiseErr   error

	mu       sync.Mutex
	catalogs map[string]*Catalog
}

// New constructs an Orchestrator applying any provided options. Missing
// dependencies are initialised with the built-in implementations so callers can
// start with a single constructor call.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		defaultRenderer: defaultRendererName,
		logger:          slog.Default(),
		catalogs:        make(map[string]*Catalog),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes the inputs required to render one endpoint workspace.
type Request struct {
	// Source identifies where the OpenAPI document lives. Optional when Document
	// is supplied.
	Source schema.Source

	// Document allows callers to bypass the loader when they already hold the
	// decoded document.
	Document *schema.Document

	// Path selects the endpoint, e.g. "/generate/simulation-config".
	Path string

	// Workspace carries the blocks and values to render. A fresh workspace is
	// created when nil.
	Workspace *blocks.Workspace

	// Renderer names the renderer to use. If empty, the orchestrator falls back
	// to the configured default renderer.
	Renderer string

	// Page overrides the page metadata derived from the operation and carries
	// field errors and the last endpoint result.
	Page render.PageOptions

	// ThemeName and ThemeVariant are passed to the theme selector.
	ThemeName    string
	ThemeVariant string

	// RenderOptions carries per-request instructions such as hidden fields.
	RenderOptions render.RenderOptions
}

// Generate executes the loader -> parser -> partition -> workspace -> renderer
// sequence and returns the rendered bytes (HTML for the default vanilla
// renderer).
func (o *Orchestrator) Generate(ctx context.Context, req Request) ([]byte, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := o.initialiseErr; err != nil {
		return nil, err
	}
	if req.Path == "" {
		return nil, errors.New("orchestrator: endpoint path is required")
	}

	catalog, err := o.resolveCatalog(ctx, req)
	if err != nil {
		return nil, err
	}

	ws := req.Workspace
	if ws == nil {
		ws, err = o.NewWorkspace(catalog, req.Path)
		if err != nil {
			return nil, err
		}
	}

	page, err := catalog.Page(req.Path, ws, req.Page)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build page: %w", err)
	}
	if err := o.applyTransformer(ctx, &page); err != nil {
		return nil, err
	}

	renderer, err := o.rendererFor(req.Renderer)
	if err != nil {
		return nil, err
	}

	options := req.RenderOptions
	if options.Theme == nil {
		options.Theme, err = o.themeConfig(req.ThemeName, req.ThemeVariant)
		if err != nil {
			return nil, err
		}
	}

	o.logger.Debug("orchestrator render", "path", page.Path, "renderer", renderer.Name(), "block", page.Active.Name)
	output, err := renderer.Render(ctx, page, options)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: render output: %w", err)
	}
	return output, nil
}

// Load fetches and parses the document at src, returning its cached catalog.
func (o *Orchestrator) Load(ctx context.Context, src schema.Source) (*Catalog, error) {
	if src == nil {
		return nil, errors.New("orchestrator: source is required")
	}
	doc, err := o.loader.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load document: %w", err)
	}
	return o.Catalog(ctx, doc)
}

// Catalog parses doc, reusing the catalog of an earlier document with the
// same checksum.
func (o *Orchestrator) Catalog(ctx context.Context, doc schema.Document) (*Catalog, error) {
	if doc.IsZero() {
		return nil, errors.New("orchestrator: document is empty")
	}
	key := doc.Checksum()

	o.mu.Lock()
	catalog, ok := o.catalogs[key]
	o.mu.Unlock()
	if ok {
		return catalog, nil
	}

	operations, err := o.parser.Operations(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: parse operations: %w", err)
	}
	catalog = newCatalog(doc, operations)

	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.catalogs[key]; ok {
		return existing, nil
	}
	o.catalogs[key] = catalog
	o.logger.Debug("orchestrator catalog cached", "location", doc.Location(), "operations", len(operations))
	return catalog, nil
}

// NewWorkspace creates a workspace for path with the configured workspace
// options.
func (o *Orchestrator) NewWorkspace(catalog *Catalog, path string) (*blocks.Workspace, error) {
	if catalog == nil {
		return nil, errors.New("orchestrator: catalog is required")
	}
	opts := append([]blocks.Option{blocks.WithLogger(o.logger)}, o.workspaceOpts...)
	ws, err := catalog.NewWorkspace(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: workspace for %s: %w", path, err)
	}
	return ws, nil
}

// Registry returns the renderer registry.
func (o *Orchestrator) Registry() *render.Registry {
	return o.registry
}

// Transform runs the configured transformer over page.
func (o *Orchestrator) Transform(ctx context.Context, page *render.Page) error {
	return o.applyTransformer(ctx, page)
}

// ThemeConfig resolves the named theme and variant through the configured
// selector, falling back to the built-in theme.
func (o *Orchestrator) ThemeConfig(name, variant string) (*theme.RendererConfig, error) {
	return o.themeConfig(name, variant)
}

func (o *Orchestrator) resolveCatalog(ctx context.Context, req Request) (*Catalog, error) {
	if req.Document != nil {
		return o.Catalog(ctx, *req.Document)
	}
	if req.Source == nil {
		return nil, errors.New("orchestrator: source or document is required")
	}
	return o.Load(ctx, req.Source)
}

func (o *Orchestrator) rendererFor(name string) (render.Renderer, error) {
	if o.registry == nil {
		return nil, errors.New("orchestrator: renderer registry is nil")
	}

	target := name
	if target == "" {
		target = o.defaultRenderer
	}

	if target != "" {
		renderer, err := o.registry.Get(target)
		if err == nil {
			return renderer, nil
		}
		if name != "" {
			return nil, fmt.Errorf("orchestrator: renderer %q: %w", name, err)
		}
	}

	names := o.registry.List()
	if len(names) == 0 {
		return nil, errors.New("orchestrator: no renderers registered")
	}

	renderer, err := o.registry.Get(names[0])
	if err != nil {
		return nil, fmt.Errorf("orchestrator: renderer %q: %w", names[0], err)
	}
	return renderer, nil
}

func (o *Orchestrator) themeConfig(name, variant string) (*theme.RendererConfig, error) {
	if o.themeSelector == nil {
		return render.ThemeConfig(nil, variant), nil
	}
	selection, err := o.themeSelector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: select theme: %w", err)
	}
	if selection == nil || selection.Manifest == nil {
		return render.ThemeConfig(nil, variant), nil
	}
	return render.ThemeConfig(selection.Manifest, selection.Variant), nil
}

func (o *Orchestrator) applyTransformer(ctx context.Context, page *render.Page) error {
	if o.transformer == nil || page == nil {
		return nil
	}
	if err := o.transformer.Transform(ctx, page); err != nil {
		return fmt.Errorf("orchestrator: transform page: %w", err)
	}
	return nil
}

func (o *Orchestrator) applyDefaults() {
	if o.loader == nil {
		o.loader = internalLoader.New(pkgopenapi.NewLoaderOptions())
	}
	if o.parser == nil {
		o.parser = internalParser.New(pkgopenapi.NewParserOptions())
	}
	if o.registry == nil {
		o.registry = render.NewRegistry()
		renderer, err := vanilla.New()
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: default renderer: %w", err)
			return
		}
		o.registry.MustRegister(renderer)
		o.registry.MustRegister(render.JSONRenderer{})
	}
	if o.defaultRenderer == "" {
		o.defaultRenderer = defaultRendererName
	}
}
