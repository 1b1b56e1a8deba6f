package assemble

import (
	"fmt"
	"strings"
	"time"

	"pauta/internal/domain"
	"pauta/internal/richtext"
)

type Kind string

const (
	KindCounselor       Kind = "counselor"
	KindProcessType     Kind = "process_type"
	KindStakeholders    Kind = "stakeholders"
	KindSummary         Kind = "summary"
	KindVoteType        Kind = "vote_type"
	KindObservations    Kind = "observations"
	KindProsecutor      Kind = "prosecutor"
	KindMPCOpinion      Kind = "mpc_opinion"
	KindTCEReport       Kind = "tce_report"
	KindViewVote        Kind = "view_vote"
	KindMPCManifest     Kind = "mpc_manifest"
	KindPGCManifest     Kind = "pgc_manifest"
	KindAdditionalNotes Kind = "additional_notes"
)

// Subsection is one labelled field of a process section. Inline subsections
// print the label and the value on the same line.
type Subsection struct {
	Kind   Kind
	Label  string
	Inline bool
	Blocks []richtext.Block
}

type ProcessSection struct {
	Process     domain.Process
	Heading     string
	Subsections []Subsection
}

// Find returns the subsection of the given kind, if it was included.
func (s ProcessSection) Find(k Kind) (Subsection, bool) {
	for _, sub := range s.Subsections {
		if sub.Kind == k {
			return sub, true
		}
	}
	return Subsection{}, false
}

// Heading is the title line of a process section.
func Heading(p domain.Process) string {
	return fmt.Sprintf("%d - Processo: %s", p.Position, strings.TrimSpace(p.ProcessNumber))
}

func buildSection(p domain.Process) ProcessSection {
	s := ProcessSection{Process: p, Heading: Heading(p)}
	add := func(k Kind, label string, inline bool, blocks []richtext.Block) {
		s.Subsections = append(s.Subsections, Subsection{Kind: k, Label: label, Inline: inline, Blocks: blocks})
	}

	add(KindCounselor, "Conselheiro:", true, richtext.PlainBlocks(strings.TrimSpace(p.CounselorName)))
	add(KindProcessType, "Tipo de Processo:", true, richtext.PlainBlocks(strings.TrimSpace(p.ProcessType)))
	add(KindStakeholders, "Interessados:", true, richtext.PlainBlocks(strings.TrimSpace(p.Stakeholders)))
	add(KindSummary, "Ementa:", false, richtext.Decode(p.Summary))
	if p.VoteType != domain.VoteUnset {
		add(KindVoteType, "Tipo de Voto:", false, richtext.PlainBlocks(p.VoteType.Label()))
	}
	if !richtext.IsBlank(p.Observations) {
		add(KindObservations, "Observações:", false, richtext.Decode(p.Observations))
	}
	if strings.TrimSpace(p.ProsecutorName) != "" {
		add(KindProsecutor, "Procurador de Contas:", false, richtext.PlainBlocks(strings.TrimSpace(p.ProsecutorName)))
	}
	if p.VoteType.IncludesOpinion(richtext.Strip(p.MPCOpinionSummary)) {
		add(KindMPCOpinion, "Parecer do MPC:", false, richtext.Decode(p.MPCOpinionSummary))
	}
	add(KindTCEReport, "Relatório/Voto TCE:", false, richtext.Decode(p.TCEReportSummary))
	if p.HasViewVote {
		add(KindViewVote, "Voto Vista:", false, richtext.Decode(p.ViewVoteSummary))
	}
	if !richtext.IsBlank(p.MPCSystemManifest) {
		add(KindMPCManifest, "Proposta de manifestação do MPC:", false, richtext.Decode(p.MPCSystemManifest))
	}
	if p.IsPGCModified {
		add(KindPGCManifest, "Manifestação Modificada pelo PGC:", false, richtext.Decode(p.PGCModifiedManifest))
	}
	if !richtext.IsBlank(p.AdditionalNotes) {
		add(KindAdditionalNotes, "Anotações Adicionais:", false, richtext.Decode(p.AdditionalNotes))
	}
	return s
}

// FormatDate renders a session date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
