package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the storage layout of Agenda.Date.
const DateLayout = "2006-01-02"

// NotInformed is the placeholder shown wherever a field has no content.
const NotInformed = "Não informado"

type Agenda struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Number     string `json:"number"`
	Date       string `json:"date" format:"date"`
	IsFinished bool   `json:"is_finished"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	UpdatedAt  string `json:"updated_at" format:"date-time"`
}

// SessionDate parses Date as a calendar date.
func (a Agenda) SessionDate() (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(a.Date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid agenda date %q: %w", a.Date, err)
	}
	return d, nil
}

type Process struct {
	ID                  string   `json:"id"`
	AgendaID            string   `json:"agenda_id"`
	CounselorName       string   `json:"counselor_name"`
	ProcessNumber       string   `json:"process_number"`
	ProcessType         string   `json:"process_type"`
	Stakeholders        string   `json:"stakeholders"`
	Summary             string   `json:"summary"`
	VoteType            VoteType `json:"vote_type"`
	MPCOpinionSummary   string   `json:"mpc_opinion_summary"`
	TCEReportSummary    string   `json:"tce_report_summary"`
	HasViewVote         bool     `json:"has_view_vote"`
	ViewVoteSummary     string   `json:"view_vote_summary"`
	MPCSystemManifest   string   `json:"mpc_system_manifest"`
	IsPGCModified       bool     `json:"is_pgc_modified"`
	PGCModifiedManifest string   `json:"pgc_modified_manifest"`
	Position            int      `json:"position"`
	ProsecutorName      string   `json:"prosecutor_name"`
	Observations        string   `json:"observations"`
	AdditionalNotes     string   `json:"additional_notes"`
	CreatedAt           string   `json:"created_at" format:"date-time"`
	UpdatedAt           string   `json:"updated_at" format:"date-time"`
}

// Alignment of letterhead header/footer content.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Valid reports whether a is one of the known alignments.
func (a Alignment) Valid() bool {
	switch a {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

type Letterhead struct {
	Content   string    `json:"content" yaml:"content"`
	Alignment Alignment `json:"alignment" yaml:"alignment" enum:"left,center,right"`
}

// DocumentConfig holds the letterhead used by every export.
type DocumentConfig struct {
	Header            Letterhead `json:"header" yaml:"header"`
	Footer            Letterhead `json:"footer" yaml:"footer"`
	LogoURL           string     `json:"logo_url,omitempty" yaml:"logo_url"`
	SummaryPageOffset int        `json:"summary_page_offset,omitempty" yaml:"summary_page_offset"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIKey lets a script act as ActorID. Only the hash of the secret is stored.
type APIKey struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name,omitempty"`
	KeyHash    string `json:"-"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty" format:"date-time"`
}
