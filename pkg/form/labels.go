package form

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// Labeler converts property names into human labels.
type Labeler func(name string) string

// DefaultLabeler splits snake, kebab and camel case names into capitalised
// words: "simulation_length" becomes "Simulation Length".
func DefaultLabeler(name string) string {
	if name == "" {
		return ""
	}
	words := strings.Fields(strcase.ToDelimited(name, ' '))
	for idx, word := range words {
		words[idx] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
