package render

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	theme "github.com/goliatone/go-theme"
)

// DefaultThemeName names the built-in theme manifest.
const DefaultThemeName = "simforms"

// DefaultThemeManifest returns the built-in light theme with a dark variant.
func DefaultThemeManifest() *theme.Manifest {
	return &theme.Manifest{
		Name:    DefaultThemeName,
		Version: "1.0.0",
		Tokens: map[string]string{
			"brand":        "#2f6fdd",
			"surface":      "#ffffff",
			"surface-alt":  "#f4f6fa",
			"text":         "#1d2433",
			"text-muted":   "#5d6780",
			"border":       "#d5dbe6",
			"danger":       "#c0392b",
			"warning":      "#b7791f",
			"radius":       "6px",
			"font-family":  "system-ui, sans-serif",
			"sidebar-size": "18rem",
		},
		Assets: theme.Assets{
			Prefix: "/static",
			Files: map[string]string{
				"stylesheet": "simforms.css",
				"script":     "simforms.js",
			},
		},
		Variants: map[string]theme.Variant{
			"dark": {
				Tokens: map[string]string{
					"surface":     "#161b26",
					"surface-alt": "#1f2633",
					"text":        "#e6e9f0",
					"text-muted":  "#9aa3b5",
					"border":      "#323b4d",
				},
			},
		},
	}
}

// ThemeConfig resolves manifest and variant into the configuration renderers
// consume. Variant tokens, templates and asset files override the base ones
// and every token is exposed as a "--token" CSS variable.
func ThemeConfig(manifest *theme.Manifest, variant string) *theme.RendererConfig {
	if manifest == nil {
		manifest = DefaultThemeManifest()
	}
	variant = strings.TrimSpace(variant)

	tokens := copyStrings(manifest.Tokens)
	partials := copyStrings(manifest.Templates)
	files := copyStrings(manifest.Assets.Files)
	prefix := manifest.Assets.Prefix

	if override, ok := manifest.Variants[variant]; ok {
		tokens = mergeStrings(tokens, override.Tokens)
		partials = mergeStrings(partials, override.Templates)
		files = mergeStrings(files, override.Assets.Files)
		if override.Assets.Prefix != "" {
			prefix = override.Assets.Prefix
		}
	} else {
		variant = ""
	}

	cssVars := make(map[string]string, len(tokens))
	for key, value := range tokens {
		cssVars["--"+key] = value
	}

	return &theme.RendererConfig{
		Theme:    manifest.Name,
		Variant:  variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok || file == "" {
				return ""
			}
			return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(file, "/")
		},
	}
}

// CSSVarsStyle renders CSS variables as a :root rule in a stable order.
func CSSVarsStyle(vars map[string]string) string {
	if len(vars) == 0 {
		return ""
	}
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, key := range keys {
		b.WriteString("  ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(vars[key])
		b.WriteString(";\n")
	}
	b.WriteString("}")
	return b.String()
}

func copyStrings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func mergeStrings(base, override map[string]string) map[string]string {
	for key, value := range override {
		base[key] = value
	}
	return base
}

// ThemeSet is an in-memory theme.ThemeSelector. It always holds the built-in
// theme.
type ThemeSet struct {
	mu             sync.RWMutex
	manifests      map[string]*theme.Manifest
	defaultName    string
	defaultVariant string
}

var _ theme.ThemeSelector = (*ThemeSet)(nil)

// NewThemeSet registers manifests next to the built-in theme. Empty names and
// variants passed to Select resolve to defaultName and defaultVariant.
func NewThemeSet(defaultName, defaultVariant string, manifests ...*theme.Manifest) (*ThemeSet, error) {
	set := &ThemeSet{
		manifests:      map[string]*theme.Manifest{DefaultThemeName: DefaultThemeManifest()},
		defaultName:    strings.TrimSpace(defaultName),
		defaultVariant: strings.TrimSpace(defaultVariant),
	}
	if set.defaultName == "" {
		set.defaultName = DefaultThemeName
	}
	for _, manifest := range manifests {
		if err := set.Register(manifest); err != nil {
			return nil, err
		}
	}
	if _, ok := set.manifests[set.defaultName]; !ok {
		return nil, fmt.Errorf("render: default theme %q not registered", set.defaultName)
	}
	return set, nil
}

// Register adds or replaces a manifest by name.
func (s *ThemeSet) Register(manifest *theme.Manifest) error {
	if manifest == nil || strings.TrimSpace(manifest.Name) == "" {
		return fmt.Errorf("render: theme manifest name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[manifest.Name] = manifest
	return nil
}

// Names lists the registered themes.
func (s *ThemeSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select returns the manifest registered under name. Unknown variants select
// the base theme.
func (s *ThemeSet) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = s.defaultName
	}
	variant = strings.TrimSpace(variant)
	if variant == "" {
		variant = s.defaultVariant
	}

	s.mu.RLock()
	manifest, ok := s.manifests[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("render: theme %q not registered", name)
	}
	if _, ok := manifest.Variants[variant]; !ok {
		variant = ""
	}
	return &theme.Selection{Theme: manifest.Name, Variant: variant, Manifest: manifest}, nil
}
