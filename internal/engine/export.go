package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pauta/internal/assemble"
	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/letterhead"
	"pauta/internal/render"
)

// ExportError is an emitter failure reported to the user. No artifact is
// produced when it is returned.
type ExportError struct {
	Err error
}

func (e *ExportError) Error() string {
	return "Não foi possível gerar o documento. Verifique se todos os dados estão preenchidos corretamente: " + e.Err.Error()
}

func (e *ExportError) Unwrap() error { return e.Err }

// snapshot is the immutable input of one export.
type snapshot struct {
	agenda    domain.Agenda
	processes []domain.Process
}

func (e Engine) loadSnapshot(ctx context.Context, agendaID string) (snapshot, error) {
	var s snapshot
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		a, err := e.Repo.GetAgenda(ctx, tx, agendaID)
		if err != nil {
			return err
		}
		procs, err := e.Repo.ListProcesses(ctx, tx, agendaID)
		if err != nil {
			return err
		}
		s = snapshot{agenda: a, processes: procs}
		return nil
	})
	return s, err
}

// built is the shared result of one export run.
type built struct {
	art       *render.Artifact
	processes int
}

// Export renders a finished agenda. Concurrent calls for the same agenda and
// format share one run; each caller still gets its own export event. The
// shared run is detached from any single caller's cancellation, and a
// caller whose ctx ends stops waiting without affecting the others.
func (e Engine) Export(ctx context.Context, agendaID string, format render.Format, actorID string) (*render.Artifact, error) {
	var res built
	if e.exports == nil {
		b, err := e.build(ctx, agendaID, format)
		if err != nil {
			return nil, err
		}
		res = b
	} else {
		runCtx := context.WithoutCancel(ctx)
		ch := e.exports.DoChan(agendaID+"|"+string(format), func() (any, error) {
			return e.build(runCtx, agendaID, format)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case r := <-ch:
			if r.Shared {
				e.log().Debug("export coalesced",
					zap.String("agenda_id", agendaID),
					zap.String("format", string(format)),
					zap.String("actor_id", actorOr(actorID)))
			}
			if r.Err != nil {
				return nil, r.Err
			}
			res = r.Val.(built)
		}
	}
	e.recordExport(ctx, agendaID, format, actorID, res)
	return res.art, nil
}

// recordExport logs one delivered export. A failure here never fails the
// export itself.
func (e Engine) recordExport(ctx context.Context, agendaID string, format render.Format, actorID string, b built) {
	ctx = context.WithoutCancel(ctx)
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		return e.EventWriter.Append(ctx, tx, events.AgendaExported, "agenda", agendaID, actorOr(actorID),
			events.Payload{"format": string(format), "filename": b.art.Filename, "bytes": len(b.art.Data), "processes": b.processes})
	})
	if err != nil {
		e.log().Warn("record export event failed", zap.String("agenda_id", agendaID), zap.Error(err))
	}
	e.log().Info("agenda exported",
		zap.String("agenda_id", agendaID),
		zap.String("format", string(format)),
		zap.String("actor_id", actorOr(actorID)),
		zap.String("filename", b.art.Filename),
		zap.Int("bytes", len(b.art.Data)))
}

func (e Engine) build(ctx context.Context, agendaID string, format render.Format) (built, error) {
	snap, err := e.loadSnapshot(ctx, agendaID)
	if err != nil {
		return built{}, err
	}
	if !snap.agenda.IsFinished {
		return built{}, ErrAgendaNotFinished
	}
	docCfg, err := e.DocumentConfig(ctx)
	if err != nil {
		return built{}, err
	}
	doc, err := assemble.Build(assemble.Input{Agenda: snap.agenda, Processes: snap.processes, Config: docCfg})
	if err != nil {
		return built{}, err
	}

	var opts render.Options
	if format != render.FormatXLSX {
		opts.Logo = e.fetchLogo(ctx, docCfg.LogoURL)
	}
	art, err := render.Render(doc, format, opts)
	if err != nil {
		return built{}, &ExportError{Err: err}
	}
	return built{art: art, processes: len(doc.Sections)}, nil
}

// fetchLogo never fails the export. A missing or broken logo yields a
// text-only letterhead.
func (e Engine) fetchLogo(ctx context.Context, url string) *letterhead.Logo {
	if strings.TrimSpace(url) == "" || e.Logos == nil {
		return nil
	}
	logo, err := e.Logos.Fetch(ctx, url)
	if err != nil {
		e.log().Warn("letterhead logo unavailable", zap.String("url", url), zap.Error(err))
		return nil
	}
	return logo
}

// IsPrecondition reports whether err is a user-correctable export refusal.
func IsPrecondition(err error) bool {
	var pe *assemble.PreconditionError
	return errors.As(err, &pe) || errors.Is(err, ErrAgendaNotFinished)
}

// AgendaSummary returns the outline of an agenda grouped by counselor.
func (e Engine) AgendaSummary(ctx context.Context, agendaID string) (assemble.Summary, error) {
	procs, err := e.ListProcesses(ctx, agendaID)
	if err != nil {
		return assemble.Summary{}, err
	}
	docCfg, err := e.DocumentConfig(ctx)
	if err != nil {
		return assemble.Summary{}, fmt.Errorf("document config: %w", err)
	}
	return assemble.BuildSummary(assemble.Order(procs), docCfg.SummaryPageOffset), nil
}
