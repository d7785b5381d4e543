package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/neuroplatform/simforms/pkg/blocks"
	pkgopenapi "github.com/neuroplatform/simforms/pkg/openapi"
	"github.com/neuroplatform/simforms/pkg/render"
	"github.com/neuroplatform/simforms/pkg/schema"
	"github.com/neuroplatform/simforms/pkg/validation"
)

// ErrUnknownPath is returned when no operation is registered for a path.
var ErrUnknownPath = errors.New("orchestrator: unknown endpoint path")

// Catalog holds the parsed operations of one document together with the
// resolver, layouts and validators derived from it. It is safe for concurrent
// use.
type Catalog struct {
	document   schema.Document
	resolver   *schema.Resolver
	operations pkgopenapi.Operations

	mu         sync.Mutex
	layouts    map[string]blocks.Layout
	validators map[string]*validation.Validator
}

func newCatalog(doc schema.Document, operations pkgopenapi.Operations) *Catalog {
	return &Catalog{
		document:   doc,
		resolver:   schema.NewResolver(doc, schema.ResolveOptions{}),
		operations: operations,
		layouts:    make(map[string]blocks.Layout),
		validators: make(map[string]*validation.Validator),
	}
}

// Document returns the document the catalog was built from.
func (c *Catalog) Document() schema.Document {
	return c.document
}

// Resolver returns the resolver bound to the document.
func (c *Catalog) Resolver() *schema.Resolver {
	return c.resolver
}

// Operations returns the parsed operations keyed by id.
func (c *Catalog) Operations() pkgopenapi.Operations {
	return c.operations
}

// Operation returns the operation served at path. A missing leading slash is
// tolerated.
func (c *Catalog) Operation(path string) (pkgopenapi.Operation, error) {
	path = NormalizePath(path)
	op, ok := c.operations.ByPath(path)
	if !ok {
		return pkgopenapi.Operation{}, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return op, nil
}

// Layout partitions the request schema of the operation at path. Layouts are
// computed once per path.
func (c *Catalog) Layout(path string) (blocks.Layout, pkgopenapi.Operation, error) {
	op, err := c.Operation(path)
	if err != nil {
		return blocks.Layout{}, pkgopenapi.Operation{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if layout, ok := c.layouts[op.Path]; ok {
		return layout, op, nil
	}
	layout, err := blocks.Partition(op.RequestSchema, c.resolver)
	if err != nil {
		return blocks.Layout{}, op, fmt.Errorf("orchestrator: partition %s: %w", op.Path, err)
	}
	if layout.Title == "" {
		layout.Title = op.Summary
	}
	c.layouts[op.Path] = layout
	return layout, op, nil
}

// NewWorkspace creates an empty workspace for the operation at path.
func (c *Catalog) NewWorkspace(path string, opts ...blocks.Option) (*blocks.Workspace, error) {
	layout, _, err := c.Layout(path)
	if err != nil {
		return nil, err
	}
	return blocks.NewWorkspace(layout, c.resolver, opts...)
}

// Links lists the body-carrying operations as navigation entries, marking
// current.
func (c *Catalog) Links(current string) []render.FormLink {
	current = NormalizePath(current)
	ops := c.operations.WithBody()
	links := make([]render.FormLink, 0, len(ops))
	for _, op := range ops {
		title := op.Summary
		if title == "" {
			title = op.Path
		}
		links = append(links, render.FormLink{Path: op.Path, Title: title, Current: op.Path == current})
	}
	return links
}

// Page snapshots ws as a page for the operation at path. Title, method,
// description and navigation default to the operation metadata when opts
// leaves them empty.
func (c *Catalog) Page(path string, ws *blocks.Workspace, opts render.PageOptions) (render.Page, error) {
	op, err := c.Operation(path)
	if err != nil {
		return render.Page{}, err
	}
	if opts.Path == "" {
		opts.Path = op.Path
	}
	if opts.Method == "" {
		opts.Method = op.Method
	}
	if opts.Description == "" {
		opts.Description = op.Description
	}
	if opts.Forms == nil {
		opts.Forms = c.Links(op.Path)
	}
	return render.NewPage(ws, opts)
}

// Validate checks payload against the request schema of the operation at
// path. Operations without a body accept anything.
func (c *Catalog) Validate(path string, payload map[string]any) (validation.SchemaValidationResult, error) {
	op, err := c.Operation(path)
	if err != nil {
		return validation.SchemaValidationResult{}, err
	}
	if !op.HasRequestBody() {
		return validation.SchemaValidationResult{Valid: true}, nil
	}

	c.mu.Lock()
	validator, ok := c.validators[op.Path]
	if !ok {
		validator, err = validation.Compile(c.document.Payload(), op.RequestSchema)
		if err != nil {
			c.mu.Unlock()
			return validation.SchemaValidationResult{}, fmt.Errorf("orchestrator: compile %s: %w", op.Path, err)
		}
		c.validators[op.Path] = validator
	}
	c.mu.Unlock()

	return validator.Validate(payload)
}

// NormalizePath trims whitespace and ensures a single leading slash.
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return "/" + strings.TrimLeft(path, "/")
}
