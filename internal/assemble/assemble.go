// Package assemble turns an agenda and its processes into the ordered,
// format-independent section list every emitter renders.
package assemble

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pauta/internal/domain"
	"pauta/internal/richtext"
)

var (
	ErrIncompleteAgenda = errors.New("Dados básicos da pauta incompletos. Verifique o número, tipo e data.")
	ErrNoProcesses      = errors.New("Não há processos cadastrados nesta pauta.")
	ErrForeignProcess   = errors.New("processo não pertence à pauta")
)

// PreconditionError reports input that makes assembly impossible.
type PreconditionError struct {
	Err    error
	Fields []string
}

func (e *PreconditionError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s (campos: %s)", e.Err.Error(), strings.Join(e.Fields, ", "))
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Input is an immutable snapshot of everything an export needs.
type Input struct {
	Agenda    domain.Agenda
	Processes []domain.Process
	Config    domain.DocumentConfig
}

type Document struct {
	Agenda   domain.Agenda
	Cover    Cover
	Summary  Summary
	Sections []ProcessSection
}

type Cover struct {
	Header          []richtext.Block
	HeaderMarkup    string
	HeaderAlignment domain.Alignment
	Footer          []richtext.Block
	FooterMarkup    string
	FooterAlignment domain.Alignment
	Title           string
	Date            string
}

// Build validates the input and assembles the document. It never returns a
// partially assembled document.
func Build(in Input) (*Document, error) {
	if err := checkAgenda(in.Agenda); err != nil {
		return nil, err
	}
	if len(in.Processes) == 0 {
		return nil, &PreconditionError{Err: ErrNoProcesses}
	}
	for _, p := range in.Processes {
		if p.AgendaID != "" && in.Agenda.ID != "" && p.AgendaID != in.Agenda.ID {
			return nil, &PreconditionError{Err: ErrForeignProcess, Fields: []string{p.ProcessNumber}}
		}
	}
	date, _ := in.Agenda.SessionDate()

	ordered := Order(in.Processes)
	doc := &Document{
		Agenda:  in.Agenda,
		Cover:   buildCover(in.Agenda, in.Config, FormatDate(date)),
		Summary: BuildSummary(ordered, in.Config.SummaryPageOffset),
	}
	for _, p := range ordered {
		doc.Sections = append(doc.Sections, buildSection(p))
	}
	return doc, nil
}

func checkAgenda(a domain.Agenda) error {
	var missing []string
	if strings.TrimSpace(a.Number) == "" {
		missing = append(missing, "number")
	}
	if strings.TrimSpace(a.Type) == "" {
		missing = append(missing, "type")
	}
	if _, err := a.SessionDate(); err != nil {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return &PreconditionError{Err: ErrIncompleteAgenda, Fields: missing}
	}
	return nil
}

// Order returns a copy of processes sorted by position. Equal positions keep
// creation order, then id order.
func Order(processes []domain.Process) []domain.Process {
	out := make([]domain.Process, len(processes))
	copy(out, processes)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.ID < b.ID
	})
	return out
}

func buildCover(a domain.Agenda, cfg domain.DocumentConfig, date string) Cover {
	c := Cover{
		HeaderMarkup:    cfg.Header.Content,
		HeaderAlignment: alignmentOr(cfg.Header.Alignment),
		FooterMarkup:    cfg.Footer.Content,
		FooterAlignment: alignmentOr(cfg.Footer.Alignment),
		Title:           fmt.Sprintf("Pauta da %s nº %s", SessionTitle(a.Type), strings.TrimSpace(a.Number)),
		Date:            date,
	}
	if !richtext.IsBlank(cfg.Header.Content) {
		c.Header = richtext.Decode(cfg.Header.Content)
	}
	if !richtext.IsBlank(cfg.Footer.Content) {
		c.Footer = richtext.Decode(cfg.Footer.Content)
	}
	return c
}

func alignmentOr(a domain.Alignment) domain.Alignment {
	if a.Valid() {
		return a
	}
	return domain.AlignCenter
}

// SessionTitle title-cases the session type and makes sure it reads as a
// session ("ordinária" becomes "Sessão Ordinária").
func SessionTitle(kind string) string {
	t := cases.Title(language.BrazilianPortuguese).String(strings.ToLower(strings.TrimSpace(kind)))
	if !strings.HasPrefix(t, "Sessão") {
		t = "Sessão " + t
	}
	return t
}
