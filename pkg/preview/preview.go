// Package preview renders Markdown documentation with embedded LaTeX into
// sanitized HTML fragments.
package preview

import (
	"html/template"
	"regexp"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

const extensions = parser.CommonExtensions | parser.MathJax | parser.AutoHeadingIDs

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// Render converts markdown to sanitized HTML. Inline $...$ and display $$...$$
// spans are kept verbatim inside span.math wrappers for a client side
// typesetter.
func Render(source string) template.HTML {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return ""
	}

	// Parsers carry state between calls and cannot be shared.
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags,
	})
	raw := markdown.ToHTML([]byte(trimmed), p, renderer)
	return template.HTML(strings.TrimSpace(string(sanitizer().SanitizeBytes(raw))))
}

// Inline renders a single line of markdown without the wrapping paragraph.
// Field descriptions use this form.
func Inline(source string) template.HTML {
	out := string(Render(source))
	if strings.Count(out, "<p>") == 1 && strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return template.HTML(out)
}

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^math( inline| display)?$`)).OnElements("span")
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[a-zA-Z0-9_+-]+$`)).OnElements("code")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}
