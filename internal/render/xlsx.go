package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"pauta/internal/assemble"
	"pauta/internal/richtext"
)

// SheetName is the name of the single worksheet of the spreadsheet export.
const SheetName = "Processos"

// SheetHeaders are the fixed column titles of the spreadsheet export.
var SheetHeaders = []string{
	"Número do Processo",
	"Relator",
	"Tipo",
	"Interessados",
	"Ementa",
	"Parecer do MPC",
	"Relatório/Voto TCE",
	"Voto Vista",
	"Proposta de manifestação do MPC",
	"Manifestação registrada pelo PGC",
}

// SheetRow flattens a process section to plain-text cells. Subsections the
// section does not include become empty cells.
func SheetRow(s assemble.ProcessSection) []string {
	cell := func(k assemble.Kind) string {
		sub, ok := s.Find(k)
		if !ok {
			return ""
		}
		return richtext.Text(sub.Blocks)
	}
	return []string{
		strings.TrimSpace(s.Process.ProcessNumber),
		cell(assemble.KindCounselor),
		cell(assemble.KindProcessType),
		cell(assemble.KindStakeholders),
		cell(assemble.KindSummary),
		cell(assemble.KindMPCOpinion),
		cell(assemble.KindTCEReport),
		cell(assemble.KindViewVote),
		cell(assemble.KindMPCManifest),
		cell(assemble.KindPGCManifest),
	}
}

func emitXLSX(doc *assemble.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	header := make([]interface{}, len(SheetHeaders))
	for i, h := range SheetHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(SheetHeaders))
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headingFill}},
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", bold); err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{Vertical: "top", WrapText: true}})
	if err != nil {
		return nil, fmt.Errorf("body style: %w", err)
	}

	for i, s := range doc.Sections {
		row := SheetRow(s)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
		if err := f.SetCellStyle(SheetName, cell, fmt.Sprintf("%s%d", last, i+2), wrap); err != nil {
			return nil, fmt.Errorf("row %d style: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(SheetName, "A", "D", 22); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "E", last, 50); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// ImportRow is one process read from a spreadsheet.
type ImportRow struct {
	Row           int
	CounselorName string
	ProcessNumber string
	Summary       string
	Stakeholders  string
	ProcessType   string
}

// Import column indexes (A=0).
const (
	colCounselor    = 0
	colNumber       = 2
	colSummary      = 5
	colStakeholders = 6
	colType         = 7
)

// ListSheets returns the worksheet names of a workbook.
func ListSheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadImportRows reads processes from sheet (the first sheet when empty).
// The header row is skipped and rows without counselor or number are
// ignored.
func ReadImportRows(r io.Reader, sheet string) ([]ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	var out []ImportRow
	for i, row := range rows {
		if i == 0 {
			continue
		}
		get := func(c int) string {
			if c < len(row) {
				return strings.TrimSpace(row[c])
			}
			return ""
		}
		ir := ImportRow{
			Row:           i + 1,
			CounselorName: get(colCounselor),
			ProcessNumber: get(colNumber),
			Summary:       get(colSummary),
			Stakeholders:  get(colStakeholders),
			ProcessType:   get(colType),
		}
		if ir.CounselorName == "" || ir.ProcessNumber == "" {
			continue
		}
		out = append(out, ir)
	}
	return out, nil
}
