package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/richtext"
)

// Printable pages have no layout engine behind them, so pagination is an
// estimate in text lines.
const (
	pageLines    = 46
	charsPerLine = 90
	logoLines    = 5
)

type itemKind string

const (
	itemTitle     itemKind = "title"
	itemDate      itemKind = "date"
	itemSummary   itemKind = "summary"
	itemGroup     itemKind = "group"
	itemEntry     itemKind = "entry"
	itemHeading   itemKind = "heading"
	itemLabel     itemKind = "label"
	itemParagraph itemKind = "paragraph"
)

type span struct {
	Class string
	Text  string
}

type printItem struct {
	Kind  itemKind
	Label string
	Text  string
	Page  int
	Spans []span
}

func (it printItem) lines() int {
	n := utf8.RuneCountInString(it.Label) + utf8.RuneCountInString(it.Text)
	for _, s := range it.Spans {
		n += utf8.RuneCountInString(s.Text)
	}
	l := n/charsPerLine + 1
	switch it.Kind {
	case itemTitle, itemHeading:
		l += 2
	case itemParagraph, itemLabel:
		l++
	}
	return l
}

type printPage struct {
	Number int
	Items  []printItem
}

type paginator struct {
	pages    []*printPage
	capacity int
	used     int
}

func (p *paginator) newPage() {
	p.pages = append(p.pages, &printPage{Number: len(p.pages) + 1})
	p.used = 0
}

func (p *paginator) add(it printItem) {
	n := it.lines()
	if len(p.pages) == 0 || (p.used > 0 && p.used+n > p.capacity) {
		p.newPage()
	}
	cur := p.pages[len(p.pages)-1]
	cur.Items = append(cur.Items, it)
	p.used += n
}

// flow adds a label or paragraph whose text may not fit on one page. The
// spans are cut at word boundaries into chunks sized to the space left,
// continuing as plain paragraphs on new pages.
func (p *paginator) flow(kind itemKind, label string, sp []span) {
	for {
		free := p.capacity - p.used
		if p.used > 0 && free < 3 {
			p.newPage()
			free = p.capacity
		}
		// paragraph and label items take one line over their text
		limit := (free-2)*charsPerLine - utf8.RuneCountInString(label)
		if limit < 1 {
			limit = 1
		}
		head, rest := cutSpans(sp, limit, p.used == 0)
		if len(head) == 0 && len(rest) > 0 {
			p.newPage()
			continue
		}
		p.add(printItem{Kind: kind, Label: label, Spans: head})
		if len(rest) == 0 {
			return
		}
		p.newPage()
		kind, label, sp = itemParagraph, "", rest
	}
}

// cutSpans splits sp after at most limit runes, preferring the last space.
// A word longer than limit is cut mid-word only when force is set. The
// concatenated text of head and rest equals that of sp.
func cutSpans(sp []span, limit int, force bool) (head, rest []span) {
	taken := 0
	for i, s := range sp {
		n := utf8.RuneCountInString(s.Text)
		if taken+n <= limit {
			taken += n
			continue
		}
		runes := []rune(s.Text)
		room := limit - taken
		cut := -1
		for j := room; j > 0; j-- {
			if runes[j-1] == ' ' {
				cut = j
				break
			}
		}
		if cut < 0 {
			if taken > 0 || !force {
				return sp[:i], sp[i:]
			}
			cut = room
		}
		head = append(append(head, sp[:i]...), span{Class: s.Class, Text: string(runes[:cut])})
		rest = append([]span{{Class: s.Class, Text: string(runes[cut:])}}, sp[i+1:]...)
		return head, rest
	}
	return sp, nil
}

func spans(runs []richtext.Run) []span {
	out := make([]span, 0, len(runs))
	for _, r := range runs {
		var cls []string
		if r.Bold {
			cls = append(cls, "b")
		}
		if r.Italic {
			cls = append(cls, "i")
		}
		if r.Underline {
			cls = append(cls, "u")
		}
		if r.Highlighted {
			cls = append(cls, "hl")
		}
		out = append(out, span{Class: strings.Join(cls, " "), Text: r.Text})
	}
	return out
}

// paginate lays out cover, summary and one page run per process.
func paginate(doc *assemble.Document, capacity int) []*printPage {
	p := &paginator{capacity: capacity}
	p.newPage()
	p.add(printItem{Kind: itemTitle, Text: doc.Cover.Title})
	p.add(printItem{Kind: itemDate, Text: doc.Cover.Date})

	p.newPage()
	p.add(printItem{Kind: itemSummary, Text: "SUMÁRIO"})
	for _, g := range doc.Summary.Groups {
		p.add(printItem{Kind: itemGroup, Text: strings.ToUpper(g.Counselor), Page: g.Page})
		for _, e := range g.Entries {
			p.add(printItem{Kind: itemEntry, Text: fmt.Sprintf("%d - Processo: %s", e.Position, e.ProcessNumber), Page: e.Page})
		}
	}

	for _, s := range doc.Sections {
		p.newPage()
		p.add(printItem{Kind: itemHeading, Text: s.Heading})
		for _, sub := range s.Subsections {
			blocks := sub.Blocks
			if sub.Inline {
				p.flow(itemLabel, sub.Label, spans(blocks[0].Runs))
				blocks = blocks[1:]
			} else {
				p.add(printItem{Kind: itemLabel, Label: sub.Label})
			}
			for _, b := range blocks {
				p.flow(itemParagraph, "", spans(b.Runs))
			}
		}
	}
	return p.pages
}

type printView struct {
	Title           string
	Logo            template.URL
	LogoWidth       int
	LogoHeight      int
	Header          template.HTML
	HeaderAlignment string
	Footer          template.HTML
	FooterAlignment string
	Pages           []*printPage
	Total           int
}

func cssAlign(a domain.Alignment) string {
	if a.Valid() {
		return string(a)
	}
	return "center"
}

func emitHTML(doc *assemble.Document, opts Options) ([]byte, error) {
	view := printView{
		Title:           doc.Cover.Title,
		HeaderAlignment: cssAlign(doc.Cover.HeaderAlignment),
		FooterAlignment: cssAlign(doc.Cover.FooterAlignment),
	}
	headerLines := 0
	if len(doc.Cover.Header) > 0 {
		view.Header = template.HTML(richtext.Sanitize(doc.Cover.HeaderMarkup))
		headerLines += len(doc.Cover.Header) + 1
	}
	if len(doc.Cover.Footer) > 0 {
		view.Footer = template.HTML(richtext.Sanitize(doc.Cover.FooterMarkup))
		headerLines += len(doc.Cover.Footer)
	}
	if opts.Logo != nil {
		view.Logo = template.URL("data:" + opts.Logo.ContentType + ";base64," + base64.StdEncoding.EncodeToString(opts.Logo.Data))
		view.LogoWidth, view.LogoHeight = opts.Logo.Fit(logoMaxW, logoMaxH)
		headerLines += logoLines
	}
	capacity := pageLines - headerLines
	if capacity < 10 {
		capacity = 10
	}
	view.Pages = paginate(doc, capacity)
	view.Total = len(view.Pages)

	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var printTemplate = template.Must(template.New("pauta").Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: A4; margin: 0; }
body { margin: 0; font-family: Arial, sans-serif; font-size: 11pt; }
.page { width: 210mm; min-height: 297mm; padding: 20mm 25mm 25mm; box-sizing: border-box; position: relative; page-break-after: always; break-after: page; }
.page:last-child { page-break-after: auto; break-after: auto; }
.letterhead { margin-bottom: 8mm; }
.letterhead img { display: inline-block; }
.footer { position: absolute; left: 25mm; right: 25mm; bottom: 10mm; font-size: 9pt; }
.pageno { text-align: right; }
.title { text-align: center; font-weight: bold; font-size: 16pt; margin-top: 60mm; }
.date { text-align: center; font-size: 12pt; }
.summary { text-align: center; font-weight: bold; font-size: 14pt; }
.group, .entry { display: flex; justify-content: space-between; }
.group { font-weight: bold; font-size: 12pt; margin-top: 4mm; }
.heading { background: #4169E1; color: #fff; font-weight: bold; font-size: 14pt; padding: 2mm; }
.label { margin: 3mm 0 1mm; }
.label strong { font-size: 12pt; }
.paragraph { text-align: justify; margin: 0 0 3mm; }
.b { font-weight: bold; } .i { font-style: italic; } .u { text-decoration: underline; } .hl { background: yellow; }
</style>
</head>
<body>
{{- range .Pages}}
<section class="page" data-page="{{.Number}}">
<header class="letterhead" style="text-align: {{$.HeaderAlignment}}">
{{- if $.Logo}}<img src="{{$.Logo}}" width="{{$.LogoWidth}}" height="{{$.LogoHeight}}" alt="">{{end}}
{{- $.Header}}
</header>
{{- range .Items}}
{{- if eq .Kind "title"}}<div class="title">{{.Text}}</div>
{{- else if eq .Kind "date"}}<div class="date">{{.Text}}</div>
{{- else if eq .Kind "summary"}}<div class="summary">{{.Text}}</div>
{{- else if eq .Kind "group"}}<div class="group"><span>{{.Text}}</span><span>{{.Page}}</span></div>
{{- else if eq .Kind "entry"}}<div class="entry"><span>{{.Text}}</span><span>{{.Page}}</span></div>
{{- else if eq .Kind "heading"}}<div class="heading">{{.Text}}</div>
{{- else if eq .Kind "label"}}<div class="label"><strong>{{.Label}}</strong>{{if .Spans}} {{range .Spans}}<span class="{{.Class}}">{{.Text}}</span>{{end}}{{end}}</div>
{{- else}}<p class="paragraph">{{range .Spans}}<span class="{{.Class}}">{{.Text}}</span>{{end}}</p>
{{- end}}
{{- end}}
<footer class="footer">
<div style="text-align: {{$.FooterAlignment}}">{{$.Footer}}</div>
<div class="pageno">{{.Number}} / {{$.Total}}</div>
</footer>
</section>
{{- end}}
</body>
</html>
`))
