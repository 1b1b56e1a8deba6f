// Package render emits an assembled agenda document in one of the
// downloadable formats.
package render

import (
	"errors"
	"fmt"
	"strings"

	"pauta/internal/assemble"
	"pauta/internal/letterhead"
)

type Format string

const (
	FormatDocx Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
)

// Formats lists the supported formats.
var Formats = []Format{FormatDocx, FormatXLSX, FormatHTML}

var ErrMalformedDocument = errors.New("malformed document")

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatDocx, "word":
		return FormatDocx, nil
	case FormatXLSX, "excel":
		return FormatXLSX, nil
	case FormatHTML, "pdf", "print":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

func (f Format) Ext() string { return string(f) }

func (f Format) ContentType() string {
	switch f {
	case FormatDocx:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatHTML:
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}

// Artifact is a finished export.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Options struct {
	// Logo is optional. A nil logo renders a text-only letterhead.
	Logo *letterhead.Logo
}

// Render validates doc and emits it. On error no artifact is returned.
func Render(doc *assemble.Document, f Format, opts Options) (*Artifact, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}
	var (
		data []byte
		err  error
	)
	switch f {
	case FormatDocx:
		data, err = emitDocx(doc, opts)
	case FormatXLSX:
		data, err = emitXLSX(doc)
	case FormatHTML:
		data, err = emitHTML(doc, opts)
	default:
		return nil, fmt.Errorf("unknown export format %q", f)
	}
	if err != nil {
		return nil, fmt.Errorf("emit %s: %w", f, err)
	}
	return &Artifact{
		Filename:    Filename(doc.Agenda, f),
		ContentType: f.ContentType(),
		Data:        data,
	}, nil
}

// Validate checks the structural shape every emitter relies on.
func Validate(doc *assemble.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if len(doc.Sections) == 0 {
		return fmt.Errorf("%w: no process sections", ErrMalformedDocument)
	}
	entries := 0
	for _, g := range doc.Summary.Groups {
		entries += len(g.Entries)
	}
	if entries != len(doc.Sections) {
		return fmt.Errorf("%w: summary lists %d processes, document has %d", ErrMalformedDocument, entries, len(doc.Sections))
	}
	for i, s := range doc.Sections {
		if strings.TrimSpace(s.Heading) == "" {
			return fmt.Errorf("%w: section %d has no heading", ErrMalformedDocument, i+1)
		}
		for _, sub := range s.Subsections {
			if len(sub.Blocks) == 0 {
				return fmt.Errorf("%w: section %d: %s has no content", ErrMalformedDocument, i+1, sub.Label)
			}
			for _, b := range sub.Blocks {
				if len(b.Runs) == 0 {
					return fmt.Errorf("%w: section %d: %s has an empty paragraph", ErrMalformedDocument, i+1, sub.Label)
				}
			}
		}
	}
	return nil
}
