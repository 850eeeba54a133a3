package imports

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// newSanitizer strips any markup from free text and collapses whitespace.
// Descriptions end up in HTML and in LLM prompts.
func newSanitizer() func(string) string {
	policy := bluemonday.StrictPolicy()
	return func(s string) string {
		clean := html.UnescapeString(policy.Sanitize(s))
		return strings.Join(strings.Fields(clean), " ")
	}
}
