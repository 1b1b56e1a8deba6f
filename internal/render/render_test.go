package render

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/letterhead"
)

func scenarioAgenda() domain.Agenda {
	return domain.Agenda{ID: "ag-1", Type: "Sessão Ordinária", Number: "12", Date: "2024-05-01", IsFinished: true}
}

func scenarioProcesses() []domain.Process {
	return []domain.Process{
		{
			ID: "p2", AgendaID: "ag-1", Position: 2, ProcessNumber: "202400047000002",
			CounselorName: "Conselheiro B", VoteType: domain.VoteDivergent,
			Summary: "<p>Prestação de contas</p>", TCEReportSummary: "<p>Relatório</p>",
		},
		{
			ID: "p1", AgendaID: "ag-1", Position: 1, ProcessNumber: "202400047000001",
			CounselorName: "Conselheiro A", VoteType: domain.VoteConvergent,
			Summary:           `<p>Denúncia <strong>grave</strong> & urgente</p>`,
			MPCOpinionSummary: "<p>Pela procedência</p>",
			TCEReportSummary:  "<p>Voto do relator</p>",
			HasViewVote:       true,
			ViewVoteSummary:   "<p>Voto vista divergente</p>",
		},
	}
}

func buildScenario(t *testing.T, cfg domain.DocumentConfig) *assemble.Document {
	t.Helper()
	doc, err := assemble.Build(assemble.Input{Agenda: scenarioAgenda(), Processes: scenarioProcesses(), Config: cfg})
	require.NoError(t, err)
	return doc
}

func testLogo(t *testing.T) *letterhead.Logo {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))))
	logo, err := letterhead.Decode(buf.Bytes())
	require.NoError(t, err)
	return logo
}

func TestSpreadsheetScenario(t *testing.T) {
	art, err := Render(buildScenario(t, domain.DocumentConfig{}), FormatXLSX, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Pauta_12_01-05-2024.xlsx", art.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(art.Data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two data rows")
	assert.Equal(t, SheetHeaders, rows[0])

	first, second := rows[1], rows[2]
	assert.Equal(t, "202400047000001", first[0])
	assert.Equal(t, "Denúncia grave & urgente", first[4])
	assert.Equal(t, "Voto vista divergente", first[7])

	assert.Equal(t, "202400047000002", second[0])
	assert.Equal(t, domain.NotInformed, second[5])
	if len(second) > 7 {
		assert.Empty(t, second[7])
	}
}

func TestFilenameDeterministic(t *testing.T) {
	a := domain.Agenda{Number: "12", Date: "2024-05-01"}
	for _, f := range Formats {
		first := Filename(a, f)
		assert.Equal(t, first, Filename(a, f))
		assert.Equal(t, "Pauta_12_01-05-2024."+f.Ext(), first)
	}
	assert.Equal(t, "Pauta_12-2024_01-05-2024.docx", Filename(domain.Agenda{Number: "12/2024", Date: "2024-05-01"}, FormatDocx))
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(b)
	}
	return out
}

func TestDocx(t *testing.T) {
	cfg := domain.DocumentConfig{
		Header: domain.Letterhead{Content: "<p><strong>MINISTÉRIO PÚBLICO DE CONTAS</strong></p>", Alignment: domain.AlignCenter},
		Footer: domain.Letterhead{Content: "<p>Rua 1</p>", Alignment: domain.AlignLeft},
	}
	art, err := Render(buildScenario(t, cfg), FormatDocx, Options{Logo: testLogo(t)})
	require.NoError(t, err)
	assert.Equal(t, "Pauta_12_01-05-2024.docx", art.Filename)

	parts := readZip(t, art.Data)
	for _, name := range []string{"[Content_Types].xml", "_rels/.rels", "word/document.xml", "word/styles.xml", "word/footer1.xml", "word/_rels/document.xml.rels", "word/media/logo.png"} {
		assert.Contains(t, parts, name)
	}
	body := parts["word/document.xml"]
	assert.Contains(t, body, "1 - Processo: 202400047000001")
	assert.Contains(t, body, `w:fill="4169E1"`)
	assert.Contains(t, body, "MINISTÉRIO PÚBLICO DE CONTAS")
	assert.Contains(t, body, "Pauta da Sessão Ordinária nº 12")
	assert.Contains(t, body, "01/05/2024")
	assert.Contains(t, body, "&amp; urgente")
	assert.Contains(t, body, `r:embed="rIdLogo"`)
	assert.Less(t, strings.Index(body, "1 - Processo:"), strings.Index(body, "2 - Processo:"))
	assert.Contains(t, parts["word/footer1.xml"], "Rua 1")
	require.NoError(t, checkWellFormed([]byte(body)))
}

func TestDocxWithoutLogo(t *testing.T) {
	art, err := Render(buildScenario(t, domain.DocumentConfig{}), FormatDocx, Options{})
	require.NoError(t, err)
	parts := readZip(t, art.Data)
	assert.NotContains(t, parts["word/_rels/document.xml.rels"], "rIdLogo")
	assert.NotContains(t, parts["word/document.xml"], "<w:drawing>")
}

func TestPrintableRepeatsHeaderOnEveryPage(t *testing.T) {
	cfg := domain.DocumentConfig{
		Header: domain.Letterhead{Content: "<p><strong>CABEÇALHO</strong></p>", Alignment: domain.AlignRight},
	}
	doc := buildScenario(t, cfg)
	art, err := Render(doc, FormatHTML, Options{Logo: testLogo(t)})
	require.NoError(t, err)
	assert.Equal(t, "Pauta_12_01-05-2024.html", art.Filename)

	out := string(art.Data)
	pages := strings.Count(out, `<section class="page"`)
	assert.GreaterOrEqual(t, pages, 4, "cover, summary and one page per process")
	assert.Equal(t, pages, strings.Count(out, "CABEÇALHO"))
	assert.Equal(t, pages, strings.Count(out, "data:image/png;base64,"))
	assert.Contains(t, out, `<span class="">Denúncia </span><span class="b">grave</span>`)
	assert.Contains(t, out, "&amp; urgente")
}

func TestPaginationSplitsLongSections(t *testing.T) {
	procs := scenarioProcesses()
	procs[1].Summary = strings.Repeat("<p>"+strings.Repeat("texto longo ", 40)+"</p>", 30)
	doc, err := assemble.Build(assemble.Input{Agenda: scenarioAgenda(), Processes: procs})
	require.NoError(t, err)

	pages := paginate(doc, pageLines)
	assert.Greater(t, len(pages), 4)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Number)
		assert.NotEmpty(t, p.Items)
	}
}

func TestPaginationSplitsOversizedParagraph(t *testing.T) {
	procs := scenarioProcesses()
	long := strings.Repeat("relatório muito longo ", 400)
	procs[0].TCEReportSummary = "<p>" + long + "</p>"
	doc, err := assemble.Build(assemble.Input{Agenda: scenarioAgenda(), Processes: procs})
	require.NoError(t, err)

	pages := paginate(doc, pageLines)
	var text strings.Builder
	for _, p := range pages {
		used := 0
		for _, it := range p.Items {
			used += it.lines()
			if it.Kind == itemParagraph {
				for _, s := range it.Spans {
					text.WriteString(s.Text)
				}
			}
		}
		assert.LessOrEqual(t, used, pageLines, "page %d", p.Number)
	}
	assert.Contains(t, text.String(), strings.TrimSpace(long))
	assert.Equal(t, 400, strings.Count(text.String(), "relatório muito longo"))
}

func TestCutSpansKeepsText(t *testing.T) {
	sp := []span{{Text: "um dois "}, {Class: "b", Text: "três quatro"}}
	head, rest := cutSpans(sp, 13, false)
	assert.Equal(t, []span{{Text: "um dois "}, {Class: "b", Text: "três "}}, head)
	assert.Equal(t, []span{{Class: "b", Text: "quatro"}}, rest)

	head, rest = cutSpans([]span{{Text: "palavrasemespaco"}}, 5, false)
	assert.Empty(t, head)
	assert.Len(t, rest, 1)

	head, rest = cutSpans([]span{{Text: "palavrasemespaco"}}, 5, true)
	assert.Equal(t, []span{{Text: "palav"}}, head)
	assert.Equal(t, []span{{Text: "rasemespaco"}}, rest)
}

func TestDocxJoinsSourceLineWraps(t *testing.T) {
	procs := scenarioProcesses()
	procs[0].Summary = "<p class=MsoNormal>Prestação de contas anuais do\nexercício de 2023</p>"
	doc, err := assemble.Build(assemble.Input{Agenda: scenarioAgenda(), Processes: procs})
	require.NoError(t, err)

	art, err := Render(doc, FormatDocx, Options{})
	require.NoError(t, err)
	assert.Contains(t, readZip(t, art.Data)["word/document.xml"], "anuais do exercício de 2023")
}

func TestRenderRejectsMalformedDocument(t *testing.T) {
	_, err := Render(nil, FormatDocx, Options{})
	assert.True(t, errors.Is(err, ErrMalformedDocument))

	doc := buildScenario(t, domain.DocumentConfig{})
	doc.Sections[0].Subsections[0].Blocks = nil
	art, err := Render(doc, FormatXLSX, Options{})
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.Nil(t, art)

	doc = buildScenario(t, domain.DocumentConfig{})
	doc.Sections = doc.Sections[:1]
	_, err = Render(doc, FormatHTML, Options{})
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" DOCX ")
	require.NoError(t, err)
	assert.Equal(t, FormatDocx, f)
	f, err = ParseFormat("pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatHTML, f)
	_, err = ParseFormat("odt")
	assert.Error(t, err)
}

func TestReadImportRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Conselheiro", "", "Processo", "", "", "Ementa", "Interessados", "Tipo"},
		{"Fulano", "x", "2024001", "", "", "Ementa 1", "Município", "Denúncia"},
		{"", "x", "2024002"},
		{"Beltrano", "x", ""},
		{"Ciclano", "", "2024003"},
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := r
		require.NoError(t, f.SetSheetRow(sheet, cell, &r))
	}
	_, err := f.NewSheet("Outra")
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	names, err := ListSheets(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, []string{sheet, "Outra"}, names)

	got, err := ReadImportRows(bytes.NewReader(buf.Bytes()), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ImportRow{Row: 2, CounselorName: "Fulano", ProcessNumber: "2024001", Summary: "Ementa 1", Stakeholders: "Município", ProcessType: "Denúncia"}, got[0])
	assert.Equal(t, "2024003", got[1].ProcessNumber)
	assert.Empty(t, got[1].ProcessType)

	_, err = ReadImportRows(bytes.NewReader(buf.Bytes()), "Inexistente")
	assert.Error(t, err)
}
