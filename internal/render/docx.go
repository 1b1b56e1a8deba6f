package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/richtext"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsPkg = "http://schemas.openxmlformats.org/package/2006/relationships"
	relT  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

	// Sizes are in half-points.
	sizeBody  = 22
	sizeLabel = 24
	sizeHead  = 28
	sizeTitle = 32

	headingFill = "4169E1"
	summaryTab  = 9000
	emuPerPixel = 9525
	logoMaxW    = 200
	logoMaxH    = 100
)

var zipEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type runProps struct {
	bold, italic, underline, highlight bool
	color                              string
	size                               int
}

type paraProps struct {
	align      string
	pageBreak  bool
	shading    string
	rightTab   int
	spaceAfter int
}

// docxWriter accumulates the body of word/document.xml.
type docxWriter struct {
	buf bytes.Buffer
}

func (w *docxWriter) text(s string) {
	_ = xml.EscapeText(&w.buf, []byte(s))
}

func (w *docxWriter) run(s string, rp runProps) {
	w.buf.WriteString(`<w:r><w:rPr><w:rFonts w:ascii="Arial" w:hAnsi="Arial" w:cs="Arial"/>`)
	if rp.bold {
		w.buf.WriteString(`<w:b/>`)
	}
	if rp.italic {
		w.buf.WriteString(`<w:i/>`)
	}
	if rp.color != "" {
		fmt.Fprintf(&w.buf, `<w:color w:val="%s"/>`, rp.color)
	}
	if rp.size > 0 {
		fmt.Fprintf(&w.buf, `<w:sz w:val="%d"/><w:szCs w:val="%d"/>`, rp.size, rp.size)
	}
	if rp.highlight {
		w.buf.WriteString(`<w:highlight w:val="yellow"/>`)
	}
	if rp.underline {
		w.buf.WriteString(`<w:u w:val="single"/>`)
	}
	w.buf.WriteString(`</w:rPr>`)
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			w.buf.WriteString(`<w:br/>`)
		}
		for j, part := range strings.Split(line, "\t") {
			if j > 0 {
				w.buf.WriteString(`<w:tab/>`)
			}
			if part == "" {
				continue
			}
			w.buf.WriteString(`<w:t xml:space="preserve">`)
			w.text(part)
			w.buf.WriteString(`</w:t>`)
		}
	}
	w.buf.WriteString(`</w:r>`)
}

func (w *docxWriter) openPara(pp paraProps) {
	w.buf.WriteString(`<w:p><w:pPr>`)
	if pp.pageBreak {
		w.buf.WriteString(`<w:pageBreakBefore/>`)
	}
	if pp.shading != "" {
		fmt.Fprintf(&w.buf, `<w:shd w:val="clear" w:color="auto" w:fill="%s"/>`, pp.shading)
	}
	if pp.rightTab > 0 {
		fmt.Fprintf(&w.buf, `<w:tabs><w:tab w:val="right" w:leader="dot" w:pos="%d"/></w:tabs>`, pp.rightTab)
	}
	after := pp.spaceAfter
	if after == 0 {
		after = 240
	}
	fmt.Fprintf(&w.buf, `<w:spacing w:after="%d"/>`, after)
	if pp.align != "" {
		fmt.Fprintf(&w.buf, `<w:jc w:val="%s"/>`, pp.align)
	}
	w.buf.WriteString(`</w:pPr>`)
}

func (w *docxWriter) closePara() { w.buf.WriteString(`</w:p>`) }

func (w *docxWriter) para(s string, pp paraProps, rp runProps) {
	w.openPara(pp)
	w.run(s, rp)
	w.closePara()
}

func (w *docxWriter) runs(runs []richtext.Run, size int) {
	for _, r := range runs {
		w.run(r.Text, runProps{
			bold: r.Bold, italic: r.Italic, underline: r.Underline, highlight: r.Highlighted,
			size: size,
		})
	}
}

func (w *docxWriter) blocks(blocks []richtext.Block, pp paraProps, size int) {
	for _, b := range blocks {
		w.openPara(pp)
		w.runs(b.Runs, size)
		w.closePara()
	}
}

func (w *docxWriter) image(relID string, cx, cy int, pp paraProps) {
	w.openPara(pp)
	fmt.Fprintf(&w.buf, `<w:r><w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`+
		`<wp:extent cx="%d" cy="%d"/><wp:docPr id="1" name="Logo"/>`+
		`<a:graphic><a:graphicData uri="%s"><pic:pic><pic:nvPicPr><pic:cNvPr id="1" name="logo"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%s"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r>`,
		cx, cy, nsPic, relID, cx, cy)
	w.closePara()
}

func jc(a domain.Alignment) string {
	switch a {
	case domain.AlignLeft:
		return "left"
	case domain.AlignRight:
		return "right"
	}
	return "center"
}

func emitDocx(doc *assemble.Document, opts Options) ([]byte, error) {
	body := &docxWriter{}

	// cover
	if opts.Logo != nil {
		w, h := opts.Logo.Fit(logoMaxW, logoMaxH)
		body.image("rIdLogo", w*emuPerPixel, h*emuPerPixel, paraProps{align: jc(doc.Cover.HeaderAlignment)})
	}
	body.blocks(doc.Cover.Header, paraProps{align: jc(doc.Cover.HeaderAlignment), spaceAfter: 60}, sizeLabel)
	body.para(doc.Cover.Title, paraProps{align: "center"}, runProps{bold: true, size: sizeTitle})
	body.para(doc.Cover.Date, paraProps{align: "center"}, runProps{size: sizeLabel})

	// summary
	body.para("SUMÁRIO", paraProps{align: "center", pageBreak: true}, runProps{bold: true, size: sizeHead})
	for _, g := range doc.Summary.Groups {
		body.para(strings.ToUpper(g.Counselor)+"\t"+strconv.Itoa(g.Page),
			paraProps{rightTab: summaryTab, spaceAfter: 120}, runProps{bold: true, size: sizeLabel})
		for _, e := range g.Entries {
			body.para(fmt.Sprintf("%d - Processo: %s\t%d", e.Position, e.ProcessNumber, e.Page),
				paraProps{rightTab: summaryTab, spaceAfter: 60}, runProps{size: sizeBody})
		}
	}

	// processes
	for _, s := range doc.Sections {
		body.para(s.Heading,
			paraProps{align: "left", pageBreak: true, shading: headingFill},
			runProps{bold: true, color: "FFFFFF", size: sizeHead})
		for _, sub := range s.Subsections {
			if sub.Inline {
				body.openPara(paraProps{align: "both"})
				body.run(sub.Label+" ", runProps{bold: true, size: sizeLabel})
				body.runs(sub.Blocks[0].Runs, sizeBody)
				body.closePara()
				body.blocks(sub.Blocks[1:], paraProps{align: "both"}, sizeBody)
				continue
			}
			body.para(sub.Label, paraProps{align: "left", spaceAfter: 120}, runProps{bold: true, size: sizeLabel})
			body.blocks(sub.Blocks, paraProps{align: "both"}, sizeBody)
		}
	}

	var document bytes.Buffer
	document.WriteString(xmlHeader)
	fmt.Fprintf(&document, `<w:document xmlns:w="%s" xmlns:r="%s" xmlns:wp="%s" xmlns:a="%s" xmlns:pic="%s"><w:body>`,
		nsW, nsR, nsWP, nsA, nsPic)
	document.Write(body.buf.Bytes())
	document.WriteString(`<w:sectPr><w:footerReference w:type="default" r:id="rIdFooter"/>` +
		`<w:pgSz w:w="11906" w:h="16838"/>` +
		`<w:pgMar w:top="1417" w:right="1701" w:bottom="1417" w:left="1701" w:header="708" w:footer="708" w:gutter="0"/>` +
		`</w:sectPr></w:body></w:document>`)

	parts := []docxPart{
		{"[Content_Types].xml", []byte(contentTypes())},
		{"_rels/.rels", []byte(rootRels())},
		{"word/document.xml", document.Bytes()},
		{"word/styles.xml", []byte(stylesXML())},
		{"word/footer1.xml", footerXML(doc.Cover)},
		{"word/_rels/document.xml.rels", []byte(documentRels(opts))},
	}
	if opts.Logo != nil {
		parts = append(parts, docxPart{"word/media/logo." + opts.Logo.Ext, opts.Logo.Data})
	}
	for _, p := range parts {
		if strings.HasSuffix(p.name, ".xml") || strings.HasSuffix(p.name, ".rels") {
			if err := checkWellFormed(p.data); err != nil {
				return nil, fmt.Errorf("%s: %w", p.name, err)
			}
		}
	}
	return zipParts(parts)
}

type docxPart struct {
	name string
	data []byte
}

func zipParts(parts []docxPart) ([]byte, error) {
	var out bytes.Buffer
	zw := zip.NewWriter(&out)
	for _, p := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: p.name, Method: zip.Deflate, Modified: zipEpoch})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return nil, fmt.Errorf("write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return out.Bytes(), nil
}

func checkWellFormed(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
		}
	}
}

func contentTypes() string {
	return xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Default Extension="png" ContentType="image/png"/>` +
		`<Default Extension="jpeg" ContentType="image/jpeg"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`<Override PartName="/word/footer1.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.footer+xml"/>` +
		`</Types>`
}

func rootRels() string {
	return xmlHeader + `<Relationships xmlns="` + nsPkg + `">` +
		`<Relationship Id="rId1" Type="` + relT + `officeDocument" Target="word/document.xml"/>` +
		`</Relationships>`
}

func documentRels(opts Options) string {
	var b strings.Builder
	b.WriteString(xmlHeader + `<Relationships xmlns="` + nsPkg + `">`)
	b.WriteString(`<Relationship Id="rIdStyles" Type="` + relT + `styles" Target="styles.xml"/>`)
	b.WriteString(`<Relationship Id="rIdFooter" Type="` + relT + `footer" Target="footer1.xml"/>`)
	if opts.Logo != nil {
		b.WriteString(`<Relationship Id="rIdLogo" Type="` + relT + `image" Target="media/logo.` + opts.Logo.Ext + `"/>`)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func stylesXML() string {
	return xmlHeader + `<w:styles xmlns:w="` + nsW + `">` +
		`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Arial" w:eastAsia="Arial" w:hAnsi="Arial" w:cs="Arial"/>` +
		`<w:sz w:val="22"/><w:szCs w:val="22"/><w:lang w:val="pt-BR"/></w:rPr></w:rPrDefault>` +
		`<w:pPrDefault><w:pPr><w:spacing w:after="240"/></w:pPr></w:pPrDefault></w:docDefaults>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>` +
		`</w:styles>`
}

// footerXML renders the configured footer followed by the page number.
func footerXML(c assemble.Cover) []byte {
	w := &docxWriter{}
	w.blocks(c.Footer, paraProps{align: jc(c.FooterAlignment), spaceAfter: 40}, 18)
	w.buf.WriteString(`<w:p><w:pPr><w:jc w:val="right"/></w:pPr>` +
		`<w:r><w:fldChar w:fldCharType="begin"/></w:r>` +
		`<w:r><w:instrText xml:space="preserve"> PAGE </w:instrText></w:r>` +
		`<w:r><w:fldChar w:fldCharType="separate"/></w:r>` +
		`<w:r><w:t>1</w:t></w:r>` +
		`<w:r><w:fldChar w:fldCharType="end"/></w:r></w:p>`)
	var out bytes.Buffer
	out.WriteString(xmlHeader)
	fmt.Fprintf(&out, `<w:ftr xmlns:w="%s" xmlns:r="%s">`, nsW, nsR)
	out.Write(w.buf.Bytes())
	out.WriteString(`</w:ftr>`)
	return out.Bytes()
}
