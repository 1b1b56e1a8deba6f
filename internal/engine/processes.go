package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/richtext"
)

// ProcessInput carries process fields. On create nil fields take their zero
// value; on update nil fields keep the stored value.
type ProcessInput struct {
	CounselorName       *string
	ProcessNumber       *string
	ProcessType         *string
	Stakeholders        *string
	Summary             *string
	VoteType            *string
	MPCOpinionSummary   *string
	TCEReportSummary    *string
	HasViewVote         *bool
	ViewVoteSummary     *string
	MPCSystemManifest   *string
	IsPGCModified       *bool
	PGCModifiedManifest *string
	Position            *int
	ProsecutorName      *string
	Observations        *string
	AdditionalNotes     *string
}

func setStr(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setRich(dst *string, src *string) {
	if src != nil {
		*dst = richtext.Sanitize(*src)
	}
}

// apply copies the non-nil fields of in onto p, sanitizing rich text.
func (in ProcessInput) apply(p *domain.Process) error {
	setStr(&p.CounselorName, in.CounselorName)
	setStr(&p.ProcessNumber, in.ProcessNumber)
	setStr(&p.ProcessType, in.ProcessType)
	setStr(&p.Stakeholders, in.Stakeholders)
	setStr(&p.ProsecutorName, in.ProsecutorName)
	setRich(&p.Summary, in.Summary)
	setRich(&p.MPCOpinionSummary, in.MPCOpinionSummary)
	setRich(&p.TCEReportSummary, in.TCEReportSummary)
	setRich(&p.ViewVoteSummary, in.ViewVoteSummary)
	setRich(&p.MPCSystemManifest, in.MPCSystemManifest)
	setRich(&p.PGCModifiedManifest, in.PGCModifiedManifest)
	setRich(&p.Observations, in.Observations)
	setRich(&p.AdditionalNotes, in.AdditionalNotes)
	if in.HasViewVote != nil {
		p.HasViewVote = *in.HasViewVote
	}
	if in.IsPGCModified != nil {
		p.IsPGCModified = *in.IsPGCModified
	}
	if in.Position != nil {
		p.Position = *in.Position
	}
	if in.VoteType != nil {
		v, err := domain.ParseVoteType(*in.VoteType)
		if err != nil {
			return invalid("vote_type", "%v", err)
		}
		p.VoteType = v
	}
	p.CounselorName = strings.TrimSpace(p.CounselorName)
	p.ProcessNumber = strings.TrimSpace(p.ProcessNumber)
	p.ProcessType = strings.TrimSpace(p.ProcessType)
	p.Stakeholders = strings.TrimSpace(p.Stakeholders)
	p.ProsecutorName = strings.TrimSpace(p.ProsecutorName)
	return nil
}

// ValidateProcess checks the rules a stored process must satisfy.
func (e Engine) ValidateProcess(p domain.Process) error {
	if p.ProcessNumber == "" {
		return invalid("process_number", "process number is required")
	}
	if p.CounselorName == "" {
		return invalid("counselor_name", "counselor is required")
	}
	if !p.VoteType.Valid() {
		return invalid("vote_type", "invalid vote type %q", p.VoteType)
	}
	if p.VoteType.OpinionRule().Required && richtext.IsBlank(p.MPCOpinionSummary) {
		return invalid("mpc_opinion_summary", "MPC opinion is required for vote type %q", p.VoteType)
	}
	if p.HasViewVote && richtext.IsBlank(p.ViewVoteSummary) {
		return invalid("view_vote_summary", "view vote text is required when has_view_vote is set")
	}
	if p.IsPGCModified && richtext.IsBlank(p.PGCModifiedManifest) {
		return invalid("pgc_modified_manifest", "PGC manifest is required when is_pgc_modified is set")
	}
	if p.ProsecutorName != "" && !e.cfg().HasProsecutor(p.ProsecutorName) {
		return invalid("prosecutor_name", "unknown prosecutor %q", p.ProsecutorName)
	}
	if p.Position < 0 {
		return invalid("position", "position must be positive")
	}
	return nil
}

// clearUnflagged drops text attached to a flag that is off.
func clearUnflagged(p *domain.Process) {
	if !p.HasViewVote {
		p.ViewVoteSummary = ""
	}
	if !p.IsPGCModified {
		p.PGCModifiedManifest = ""
	}
}

// CreateProcess appends a process to an open agenda. Without an explicit
// position it goes after the last one.
func (e Engine) CreateProcess(ctx context.Context, agendaID string, in ProcessInput, actorID string) (domain.Process, error) {
	now := e.timestamp()
	p := domain.Process{ID: uuid.NewString(), AgendaID: agendaID, CreatedAt: now, UpdatedAt: now}
	if err := in.apply(&p); err != nil {
		return domain.Process{}, err
	}
	if err := e.ValidateProcess(p); err != nil {
		return domain.Process{}, err
	}
	clearUnflagged(&p)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.openAgenda(ctx, tx, agendaID); err != nil {
			return err
		}
		if p.Position == 0 {
			n, err := e.Repo.MaxPosition(ctx, tx, agendaID)
			if err != nil {
				return err
			}
			p.Position = n + 1
		}
		if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.ProcessCreated, "process", p.ID, actorOr(actorID),
			events.Payload{"agenda_id": agendaID, "process_number": p.ProcessNumber, "position": p.Position})
	})
	if err != nil {
		return domain.Process{}, err
	}
	return p, nil
}

func (e Engine) GetProcess(ctx context.Context, id string) (domain.Process, error) {
	return e.Repo.GetProcess(ctx, nil, id)
}

// ListProcesses returns the processes of an agenda ordered by position.
func (e Engine) ListProcesses(ctx context.Context, agendaID string) ([]domain.Process, error) {
	if _, err := e.Repo.GetAgenda(ctx, nil, agendaID); err != nil {
		return nil, err
	}
	return e.Repo.ListProcesses(ctx, nil, agendaID)
}

func (e Engine) UpdateProcess(ctx context.Context, id string, in ProcessInput, actorID string) (domain.Process, error) {
	var out domain.Process
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetProcess(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := e.openAgenda(ctx, tx, p.AgendaID); err != nil {
			return err
		}
		if err := in.apply(&p); err != nil {
			return err
		}
		if in.Position != nil && p.Position == 0 {
			return invalid("position", "position must be positive")
		}
		if err := e.ValidateProcess(p); err != nil {
			return err
		}
		clearUnflagged(&p)
		p.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateProcess(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return e.EventWriter.Append(ctx, tx, events.ProcessUpdated, "process", p.ID, actorOr(actorID),
			events.Payload{"agenda_id": p.AgendaID, "process_number": p.ProcessNumber, "position": p.Position})
	})
	return out, err
}

// DeleteProcess removes a process and moves the following ones up.
func (e Engine) DeleteProcess(ctx context.Context, id, actorID string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		p, err := e.Repo.GetProcess(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := e.openAgenda(ctx, tx, p.AgendaID); err != nil {
			return err
		}
		if err := e.Repo.DeleteProcess(ctx, tx, p); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.ProcessDeleted, "process", p.ID, actorOr(actorID),
			events.Payload{"agenda_id": p.AgendaID, "process_number": p.ProcessNumber, "position": p.Position})
	})
}
