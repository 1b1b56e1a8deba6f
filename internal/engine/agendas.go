package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/repo"
)

// AgendaInput creates an agenda. Date accepts yyyy-mm-dd or dd/mm/yyyy.
type AgendaInput struct {
	Type   string
	Number string
	Date   string
}

// AgendaPatch updates the fields that are not nil.
type AgendaPatch struct {
	Type   *string
	Number *string
	Date   *string
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{domain.DateLayout, "02/01/2006", "02-01-2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(domain.DateLayout), nil
		}
	}
	return "", invalid("date", "invalid date %q, expected yyyy-mm-dd or dd/mm/yyyy", s)
}

// sessionType returns the configured spelling of t.
func (e Engine) sessionType(t string) (string, error) {
	t = strings.TrimSpace(t)
	if t == "" {
		return "", invalid("type", "session type is required")
	}
	cfg := e.cfg()
	if !cfg.HasSessionType(t) {
		return "", invalid("type", "unknown session type %q (allowed: %s)", t, strings.Join(cfg.SessionTypes, ", "))
	}
	for _, known := range cfg.SessionTypes {
		if strings.EqualFold(strings.TrimSpace(known), t) {
			return known, nil
		}
	}
	return t, nil
}

func (e Engine) normalizeAgenda(a *domain.Agenda) error {
	var err error
	if a.Type, err = e.sessionType(a.Type); err != nil {
		return err
	}
	a.Number = strings.TrimSpace(a.Number)
	if a.Number == "" {
		return invalid("number", "session number is required")
	}
	if a.Date, err = parseDate(a.Date); err != nil {
		return err
	}
	return nil
}

func (e Engine) CreateAgenda(ctx context.Context, in AgendaInput, actorID string) (domain.Agenda, error) {
	now := e.timestamp()
	a := domain.Agenda{
		ID:        uuid.NewString(),
		Type:      in.Type,
		Number:    in.Number,
		Date:      in.Date,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.normalizeAgenda(&a); err != nil {
		return domain.Agenda{}, err
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAgenda(ctx, tx, a); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.AgendaCreated, "agenda", a.ID, actorOr(actorID),
			events.Payload{"type": a.Type, "number": a.Number, "date": a.Date})
	})
	if err != nil {
		return domain.Agenda{}, err
	}
	return a, nil
}

func (e Engine) GetAgenda(ctx context.Context, id string) (domain.Agenda, error) {
	return e.Repo.GetAgenda(ctx, nil, id)
}

func (e Engine) ListAgendas(ctx context.Context, f repo.AgendaFilters) ([]domain.Agenda, error) {
	return e.Repo.ListAgendas(ctx, f)
}

// openAgenda loads an agenda that may still be edited.
func (e Engine) openAgenda(ctx context.Context, tx *sql.Tx, id string) (domain.Agenda, error) {
	a, err := e.Repo.GetAgenda(ctx, tx, id)
	if err != nil {
		return domain.Agenda{}, err
	}
	if a.IsFinished {
		return domain.Agenda{}, ErrAgendaFinished
	}
	return a, nil
}

func (e Engine) UpdateAgenda(ctx context.Context, id string, patch AgendaPatch, actorID string) (domain.Agenda, error) {
	var out domain.Agenda
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.openAgenda(ctx, tx, id)
		if err != nil {
			return err
		}
		changed := events.Payload{}
		if patch.Type != nil {
			a.Type = *patch.Type
			changed["type"] = *patch.Type
		}
		if patch.Number != nil {
			a.Number = *patch.Number
			changed["number"] = *patch.Number
		}
		if patch.Date != nil {
			a.Date = *patch.Date
			changed["date"] = *patch.Date
		}
		if err := e.normalizeAgenda(&a); err != nil {
			return err
		}
		a.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateAgenda(ctx, tx, a); err != nil {
			return err
		}
		out = a
		return e.EventWriter.Append(ctx, tx, events.AgendaUpdated, "agenda", a.ID, actorOr(actorID), changed)
	})
	return out, err
}

// DeleteAgenda removes an open agenda and all of its processes.
func (e Engine) DeleteAgenda(ctx context.Context, id, actorID string) error {
	return e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.openAgenda(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := e.Repo.DeleteAgenda(ctx, tx, id); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.AgendaDeleted, "agenda", id, actorOr(actorID),
			events.Payload{"number": a.Number, "date": a.Date})
	})
}

// SetAgendaFinished finishes or reopens an agenda.
func (e Engine) SetAgendaFinished(ctx context.Context, id string, finished bool, actorID string) (domain.Agenda, error) {
	var out domain.Agenda
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAgenda(ctx, tx, id)
		if err != nil {
			return err
		}
		if a.IsFinished == finished {
			out = a
			return nil
		}
		if finished {
			n, err := e.Repo.MaxPosition(ctx, tx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				return invalid("processes", "a pauta não possui processos")
			}
		}
		a.IsFinished = finished
		a.UpdatedAt = e.timestamp()
		if err := e.Repo.UpdateAgenda(ctx, tx, a); err != nil {
			return err
		}
		out = a
		evt := events.AgendaReopened
		if finished {
			evt = events.AgendaFinished
		}
		return e.EventWriter.Append(ctx, tx, evt, "agenda", a.ID, actorOr(actorID), nil)
	})
	return out, err
}

// IsNotFound reports whether err means a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
