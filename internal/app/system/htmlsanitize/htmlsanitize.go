// Package htmlsanitize cleans operator-entered text before it is stored or
// rendered. Member notes allow a small set of formatting tags; every other
// free-text field is reduced to plain text.
package htmlsanitize

import (
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	notesPolicy  *bluemonday.Policy
	strictPolicy *bluemonday.Policy
	policyOnce   sync.Once
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "br", "b", "strong", "i", "em", "u", "s", "ul", "ol", "li")
		p.AllowStandardURLs()
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		notesPolicy = p

		strictPolicy = bluemonday.StrictPolicy()
	})
	return notesPolicy, strictPolicy
}

// Notes sanitizes member notes, keeping basic formatting and links.
func Notes(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	p, _ := policies()
	return strings.TrimSpace(p.Sanitize(s))
}

// PlainText strips all markup and returns unescaped text, for fields such as
// names and phone numbers that are always rendered escaped.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	_, strict := policies()
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
}

// IsPlainText reports whether content has no markup. Legacy notes imported
// from the old system are plain text with newlines.
func IsPlainText(content string) bool {
	return !strings.Contains(content, "<") || !strings.Contains(content, ">")
}

// PrepareForDisplay renders notes for a template. Plain text keeps its line
// breaks; markup goes through the notes policy again.
func PrepareForDisplay(content string) template.HTML {
	if content == "" {
		return ""
	}
	if IsPlainText(content) {
		escaped := template.HTMLEscapeString(content)
		return template.HTML("<p>" + strings.ReplaceAll(escaped, "\n", "<br>") + "</p>")
	}
	return template.HTML(Notes(content))
}
