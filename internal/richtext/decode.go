// Package richtext decodes the markup produced by the rich-text editor into
// paragraphs of styled runs, the only shape the document emitters consume.
//
// Decoding never fails. Markup pasted from word processors is routinely
// broken, so anything the HTML parser cannot make sense of ends up as plain
// text, and an input without visible text decodes to a single placeholder run.
package richtext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pauta/internal/domain"
)

// Run is a span of text sharing one style.
type Run struct {
	Text        string `json:"text"`
	Bold        bool   `json:"bold,omitempty"`
	Italic      bool   `json:"italic,omitempty"`
	Underline   bool   `json:"underline,omitempty"`
	Highlighted bool   `json:"highlighted,omitempty"`
}

func (r Run) sameStyle(o Run) bool {
	return r.Bold == o.Bold && r.Italic == o.Italic && r.Underline == o.Underline && r.Highlighted == o.Highlighted
}

// Block is a paragraph.
type Block struct {
	Runs []Run `json:"runs"`
}

// Text concatenates the runs of the block.
func (b Block) Text() string {
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Placeholder is the decoding of an empty field.
func Placeholder() []Block {
	return []Block{{Runs: []Run{{Text: domain.NotInformed}}}}
}

// PlainBlocks wraps plain text in a single unstyled block, falling back to
// the placeholder for blank text.
func PlainBlocks(text string) []Block {
	if strings.TrimSpace(text) == "" {
		return Placeholder()
	}
	return []Block{{Runs: []Run{{Text: text}}}}
}

// Text joins the text of every block, one line per block.
func Text(blocks []Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		lines = append(lines, b.Text())
	}
	return strings.Join(lines, "\n")
}

var fragmentContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// Decode parses markup into at least one block holding at least one run.
func Decode(markup string) []Block {
	markup = strings.ToValidUTF8(markup, "\uFFFD")
	if strings.TrimSpace(markup) == "" {
		return Placeholder()
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), fragmentContext)
	if err != nil {
		return PlainBlocks(markup)
	}
	d := &decoder{}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			d.collapse = true
		}
	}
	for _, n := range nodes {
		d.walk(n, style{})
	}
	d.flush()
	if len(d.blocks) == 0 {
		return Placeholder()
	}
	return d.blocks
}

// PlainText decodes markup and returns its text without styling.
func PlainText(markup string) string {
	return Text(Decode(markup))
}

type decoder struct {
	blocks []Block
	cur    []Run
	// collapse is set when the input has elements: source whitespace then
	// renders as one space, as in a browser. pre counts open <pre> elements.
	collapse bool
	pre      int
}

func (d *decoder) walk(n *html.Node, st style) {
	switch n.Type {
	case html.TextNode:
		d.text(n.Data, st)
		return
	case html.ElementNode:
	default:
		return
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title, atom.Template:
		return
	case atom.Br:
		d.flush()
		return
	case atom.Pre:
		d.pre++
		defer func() { d.pre-- }()
	}
	block := isBlock(n.DataAtom)
	if block {
		d.flush()
	}
	st = st.with(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c, st)
	}
	if block {
		d.flush()
	}
}

func (d *decoder) text(s string, st style) {
	if d.collapse && d.pre == 0 {
		s = collapseSpace(s)
		if n := len(d.cur); n == 0 || strings.HasSuffix(d.cur[n-1].Text, " ") {
			s = strings.TrimPrefix(s, " ")
		}
	}
	if s == "" {
		return
	}
	if len(d.cur) == 0 && strings.TrimSpace(s) == "" {
		return
	}
	r := st.run(s)
	if n := len(d.cur); n > 0 && d.cur[n-1].sameStyle(r) {
		d.cur[n-1].Text += s
		return
	}
	d.cur = append(d.cur, r)
}

func (d *decoder) flush() {
	if len(d.cur) == 0 {
		return
	}
	runs := d.cur
	d.cur = nil
	if d.collapse && d.pre == 0 {
		last := &runs[len(runs)-1]
		last.Text = strings.TrimRight(last.Text, " ")
		if last.Text == "" {
			runs = runs[:len(runs)-1]
		}
	}
	for _, r := range runs {
		if strings.TrimSpace(r.Text) != "" {
			d.blocks = append(d.blocks, Block{Runs: runs})
			return
		}
	}
}

// collapseSpace replaces each run of HTML whitespace with a single space.
func collapseSpace(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	space := false
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	if space {
		sb.WriteByte(' ')
	}
	return sb.String()
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Ul, atom.Ol, atom.Blockquote, atom.Pre, atom.Table, atom.Tr,
		atom.Section, atom.Article, atom.Header, atom.Footer, atom.Hr:
		return true
	}
	return false
}
