package server

import (
	"encoding/json"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/engine"
)

// Request payloads

type CreateAgendaRequest struct {
	Type   string `json:"type" example:"Sessão Ordinária"`
	Number string `json:"number" example:"12"`
	Date   string `json:"date" example:"2024-05-01" doc:"yyyy-mm-dd or dd/mm/yyyy"`
}

type UpdateAgendaRequest struct {
	Type   *string `json:"type,omitempty"`
	Number *string `json:"number,omitempty"`
	Date   *string `json:"date,omitempty"`
}

// ProcessRequest is used for create and update. Omitted fields keep their
// stored value on update.
type ProcessRequest struct {
	CounselorName       *string `json:"counselor_name,omitempty"`
	ProcessNumber       *string `json:"process_number,omitempty"`
	ProcessType         *string `json:"process_type,omitempty"`
	Stakeholders        *string `json:"stakeholders,omitempty"`
	Summary             *string `json:"summary,omitempty" doc:"HTML"`
	VoteType            *string `json:"vote_type,omitempty"`
	MPCOpinionSummary   *string `json:"mpc_opinion_summary,omitempty" doc:"HTML"`
	TCEReportSummary    *string `json:"tce_report_summary,omitempty" doc:"HTML"`
	HasViewVote         *bool   `json:"has_view_vote,omitempty"`
	ViewVoteSummary     *string `json:"view_vote_summary,omitempty" doc:"HTML"`
	MPCSystemManifest   *string `json:"mpc_system_manifest,omitempty" doc:"HTML"`
	IsPGCModified       *bool   `json:"is_pgc_modified,omitempty"`
	PGCModifiedManifest *string `json:"pgc_modified_manifest,omitempty" doc:"HTML"`
	Position            *int    `json:"position,omitempty" minimum:"1"`
	ProsecutorName      *string `json:"prosecutor_name,omitempty"`
	Observations        *string `json:"observations,omitempty" doc:"HTML"`
	AdditionalNotes     *string `json:"additional_notes,omitempty" doc:"HTML"`
}

func (r ProcessRequest) input() engine.ProcessInput {
	return engine.ProcessInput{
		CounselorName:       r.CounselorName,
		ProcessNumber:       r.ProcessNumber,
		ProcessType:         r.ProcessType,
		Stakeholders:        r.Stakeholders,
		Summary:             r.Summary,
		VoteType:            r.VoteType,
		MPCOpinionSummary:   r.MPCOpinionSummary,
		TCEReportSummary:    r.TCEReportSummary,
		HasViewVote:         r.HasViewVote,
		ViewVoteSummary:     r.ViewVoteSummary,
		MPCSystemManifest:   r.MPCSystemManifest,
		IsPGCModified:       r.IsPGCModified,
		PGCModifiedManifest: r.PGCModifiedManifest,
		Position:            r.Position,
		ProsecutorName:      r.ProsecutorName,
		Observations:        r.Observations,
		AdditionalNotes:     r.AdditionalNotes,
	}
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Response payloads

type AgendaResponse struct {
	domain.Agenda
	Title string `json:"title"`
}

type ProcessResponse struct {
	domain.Process
	VoteTypeLabel string `json:"vote_type_label,omitempty"`
}

type SummaryEntryResponse struct {
	Position      int    `json:"position"`
	ProcessNumber string `json:"process_number"`
	Page          int    `json:"page"`
}

type SummaryGroupResponse struct {
	Counselor string                 `json:"counselor"`
	Page      int                    `json:"page"`
	Entries   []SummaryEntryResponse `json:"entries"`
}

type SummaryResponse struct {
	AgendaID string                 `json:"agenda_id"`
	Groups   []SummaryGroupResponse `json:"groups"`
}

type ImportResponse struct {
	Created []ProcessResponse `json:"created"`
}

type SheetsResponse struct {
	Sheets []string `json:"sheets"`
}

type APIKeyResponse struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id"`
	Name       string `json:"name,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty" format:"date-time"`
	Secret     string `json:"secret,omitempty" doc:"Only returned on creation"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type paginatedAgendas struct {
	Items []AgendaResponse `json:"items"`
}

// Conversion helpers

func agendaResponse(a domain.Agenda) AgendaResponse {
	return AgendaResponse{Agenda: a, Title: assemble.SessionTitle(a.Type) + " nº " + a.Number}
}

func processResponse(p domain.Process) ProcessResponse {
	return ProcessResponse{Process: p, VoteTypeLabel: p.VoteType.Label()}
}

func mapProcesses(items []domain.Process) []ProcessResponse {
	out := make([]ProcessResponse, 0, len(items))
	for _, p := range items {
		out = append(out, processResponse(p))
	}
	return out
}

func summaryResponse(agendaID string, s assemble.Summary) SummaryResponse {
	res := SummaryResponse{AgendaID: agendaID, Groups: []SummaryGroupResponse{}}
	for _, g := range s.Groups {
		group := SummaryGroupResponse{Counselor: g.Counselor, Page: g.Page, Entries: []SummaryEntryResponse{}}
		for _, e := range g.Entries {
			group.Entries = append(group.Entries, SummaryEntryResponse(e))
		}
		res.Groups = append(res.Groups, group)
	}
	return res
}

func apiKeyResponse(k domain.APIKey, secret string) APIKeyResponse {
	return APIKeyResponse{
		ID:         k.ID,
		ActorID:    k.ActorID,
		Name:       k.Name,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		Secret:     secret,
	}
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}
	return obj
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
