package engine

import (
	"context"
	"database/sql"
	"fmt"
	"html"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/render"
)

// ImportSheets lists the worksheets of an uploaded workbook.
func (e Engine) ImportSheets(r io.Reader) ([]string, error) {
	names, err := render.ListSheets(r)
	if err != nil {
		return nil, invalid("file", "%v", err)
	}
	return names, nil
}

// ImportProcesses appends the processes of a spreadsheet to an open agenda.
// The whole import is one transaction.
func (e Engine) ImportProcesses(ctx context.Context, agendaID string, r io.Reader, sheet, actorID string) ([]domain.Process, error) {
	rows, err := render.ReadImportRows(r, sheet)
	if err != nil {
		return nil, invalid("file", "%v", err)
	}
	if len(rows) == 0 {
		return nil, ErrNoImportRows
	}

	var created []domain.Process
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := e.openAgenda(ctx, tx, agendaID); err != nil {
			return err
		}
		pos, err := e.Repo.MaxPosition(ctx, tx, agendaID)
		if err != nil {
			return err
		}
		now := e.timestamp()
		for _, row := range rows {
			pos++
			p := domain.Process{
				ID:            uuid.NewString(),
				AgendaID:      agendaID,
				CounselorName: row.CounselorName,
				ProcessNumber: row.ProcessNumber,
				ProcessType:   row.ProcessType,
				Stakeholders:  row.Stakeholders,
				Position:      pos,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if row.Summary != "" {
				p.Summary = "<p>" + html.EscapeString(row.Summary) + "</p>"
			}
			if err := e.ValidateProcess(p); err != nil {
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
			if err := e.Repo.InsertProcess(ctx, tx, p); err != nil {
				return fmt.Errorf("row %d: %w", row.Row, err)
			}
			created = append(created, p)
		}
		return e.EventWriter.Append(ctx, tx, events.ProcessImported, "agenda", agendaID, actorOr(actorID),
			events.Payload{"count": len(created), "sheet": sheet})
	})
	if err != nil {
		return nil, err
	}
	e.log().Info("processes imported", zap.String("agenda_id", agendaID), zap.Int("count", len(created)))
	return created, nil
}
