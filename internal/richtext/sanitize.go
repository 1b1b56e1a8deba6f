package richtext

import (
	"html"
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce  sync.Once
	storePolicy *bluemonday.Policy
	stripPolicy *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		storePolicy = bluemonday.UGCPolicy()
		storePolicy.AllowStyles("background-color", "font-weight", "font-style",
			"text-decoration", "text-align").Globally()
		stripPolicy = bluemonday.StrictPolicy()
	})
	return storePolicy, stripPolicy
}

// Sanitize removes scripts, event handlers and unknown styles from editor
// markup before it is stored.
func Sanitize(markup string) string {
	if markup == "" {
		return ""
	}
	p, _ := policies()
	return p.Sanitize(markup)
}

// Strip drops every tag and returns the unescaped text content.
func Strip(markup string) string {
	if markup == "" {
		return ""
	}
	_, p := policies()
	return html.UnescapeString(p.Sanitize(markup))
}

// IsBlank reports whether markup has no visible text, e.g. "<p><br></p>".
func IsBlank(markup string) bool {
	return strings.TrimSpace(Strip(markup)) == ""
}

// Markdown renders markup as Markdown for terminal previews.
func Markdown(markup string) (string, error) {
	if IsBlank(markup) {
		return "_" + Text(Placeholder()) + "_", nil
	}
	md, err := htmltomarkdown.ConvertString(markup)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
