package render

import (
	"fmt"
	"html/template"

	"github.com/neuroplatform/simforms/pkg/blocks"
	"github.com/neuroplatform/simforms/pkg/form"
	"github.com/neuroplatform/simforms/pkg/preview"
)

// Page is everything a renderer needs to draw one endpoint workspace.
type Page struct {
	Title       string        `json:"title"`
	Path        string        `json:"path"`
	Method      string        `json:"method,omitempty"`
	Description template.HTML `json:"description,omitempty"`
	// Forms lists the other endpoints offered in the navigation.
	Forms []FormLink `json:"forms,omitempty"`

	Sections []SectionView    `json:"sections"`
	Skipped  []blocks.Skipped `json:"skipped,omitempty"`
	Plain    bool             `json:"plain,omitempty"`

	Active   BlockView      `json:"active"`
	Form     form.Form      `json:"form"`
	Controls []form.Control `json:"controls"`
	// Errors holds messages that could not be attached to a control.
	Errors []string `json:"errors,omitempty"`
	// Result is the last response returned by the endpoint, if any.
	Result *Result `json:"result,omitempty"`
}

// FormLink points at another endpoint workspace.
type FormLink struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Current bool   `json:"current,omitempty"`
}

// SectionView is a sidebar group with its blocks and addable variants.
type SectionView struct {
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	Single   bool          `json:"single,omitempty"`
	Variants []VariantView `json:"variants,omitempty"`
	Blocks   []BlockView   `json:"blocks"`
}

// VariantView is a block type offered by a section's "add" menu.
type VariantView struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// BlockView is one sidebar entry.
type BlockView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Section  string `json:"section"`
	Active   bool   `json:"active,omitempty"`
	Implicit bool   `json:"implicit,omitempty"`
}

// Result is the rendered outcome of an endpoint call.
type Result struct {
	Status int    `json:"status"`
	OK     bool   `json:"ok"`
	Body   string `json:"body"`
}

// PageOptions carries the endpoint metadata NewPage cannot read from the
// workspace.
type PageOptions struct {
	Title string
	Path  string
	// Method is the HTTP verb of the endpoint.
	Method string
	// Description is markdown, rendered through the preview package.
	Description string
	Forms       []FormLink
	// FieldErrors maps concrete control paths of the active block to messages.
	FieldErrors map[string][]string
	FormErrors  []string
	Result      *Result
}

// NewPage snapshots ws into a Page.
func NewPage(ws *blocks.Workspace, opts PageOptions) (Page, error) {
	if ws == nil {
		return Page{}, fmt.Errorf("render: workspace is required")
	}
	layout := ws.Layout()
	active := ws.Active()

	f, controls, err := ws.View(opts.FieldErrors)
	if err != nil {
		return Page{}, fmt.Errorf("render: view active block: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = layout.Title
	}
	page := Page{
		Title:       title,
		Path:        opts.Path,
		Method:      opts.Method,
		Description: preview.Render(opts.Description),
		Forms:       opts.Forms,
		Skipped:     layout.Skipped,
		Plain:       layout.Plain,
		Active:      blockView(active, active.ID),
		Form:        f,
		Controls:    controls,
		Errors:      MergeFormErrors(opts.FormErrors),
		Result:      opts.Result,
	}

	for _, section := range layout.Sections {
		list, err := ws.Blocks(section.Name)
		if err != nil {
			return Page{}, err
		}
		view := SectionView{
			Name:   section.Name,
			Title:  section.Title,
			Single: section.Single,
			Blocks: make([]BlockView, 0, len(list)),
		}
		if !section.Single {
			for _, variant := range section.Variants {
				label := variant.Title
				if label == "" {
					label = variant.Type
				}
				view.Variants = append(view.Variants, VariantView{Type: variant.Type, Title: label})
			}
		}
		for _, block := range list {
			view.Blocks = append(view.Blocks, blockView(block, active.ID))
		}
		page.Sections = append(page.Sections, view)
	}
	return page, nil
}

func blockView(block blocks.Block, activeID string) BlockView {
	return BlockView{
		ID:       block.ID,
		Name:     block.Name,
		Type:     block.Type,
		Section:  block.Section,
		Active:   block.ID == activeID,
		Implicit: block.Implicit,
	}
}
