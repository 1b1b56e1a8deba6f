package richtext

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type style struct {
	bold, italic, underline, highlight bool
}

func (s style) run(text string) Run {
	return Run{Text: text, Bold: s.bold, Italic: s.italic, Underline: s.underline, Highlighted: s.highlight}
}

// with returns the style in effect inside n. Styles accumulate through
// nesting, so <b><i>x</i></b> is bold and italic.
func (s style) with(n *html.Node) style {
	switch n.DataAtom {
	case atom.B, atom.Strong:
		s.bold = true
	case atom.I, atom.Em:
		s.italic = true
	case atom.U, atom.Ins:
		s.underline = true
	case atom.Mark:
		s.highlight = true
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, "style") {
			s = s.withDeclarations(a.Val)
		}
	}
	return s
}

func (s style) withDeclarations(css string) style {
	for _, decl := range strings.Split(css, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		val = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(val), "!important")))
		switch prop {
		case "background-color":
			// Every colour collapses to the single highlight marker.
			if val != "" && val != "transparent" && val != "inherit" && val != "initial" {
				s.highlight = true
			}
		case "font-weight":
			s.bold = isBoldWeight(val)
		case "font-style":
			s.italic = val == "italic" || val == "oblique"
		case "text-decoration", "text-decoration-line":
			s.underline = strings.Contains(val, "underline")
		}
	}
	return s
}

func isBoldWeight(v string) bool {
	switch v {
	case "bold", "bolder":
		return true
	}
	n, err := strconv.Atoi(v)
	return err == nil && n >= 600
}
