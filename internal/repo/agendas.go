package repo

import (
	"context"
	"database/sql"
	"errors"

	"pauta/internal/domain"
)

const agendaColumns = `id,type,number,date,is_finished,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgenda(row rowScanner) (domain.Agenda, error) {
	var a domain.Agenda
	var finished int
	err := row.Scan(&a.ID, &a.Type, &a.Number, &a.Date, &finished, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	a.IsFinished = finished != 0
	return a, err
}

func (r Repo) InsertAgenda(ctx context.Context, tx *sql.Tx, a domain.Agenda) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO agendas(`+agendaColumns+`) VALUES (?,?,?,?,?,?,?)`,
		a.ID, a.Type, a.Number, a.Date, boolInt(a.IsFinished), a.CreatedAt, a.UpdatedAt)
	return constraintErr(err)
}

func (r Repo) UpdateAgenda(ctx context.Context, tx *sql.Tx, a domain.Agenda) error {
	return affected(r.q(tx).ExecContext(ctx, `UPDATE agendas SET type=?,number=?,date=?,is_finished=?,updated_at=? WHERE id=?`,
		a.Type, a.Number, a.Date, boolInt(a.IsFinished), a.UpdatedAt, a.ID))
}

// DeleteAgenda removes the agenda; its processes go with it.
func (r Repo) DeleteAgenda(ctx context.Context, tx *sql.Tx, id string) error {
	return affected(r.q(tx).ExecContext(ctx, `DELETE FROM agendas WHERE id=?`, id))
}

func (r Repo) GetAgenda(ctx context.Context, tx *sql.Tx, id string) (domain.Agenda, error) {
	return scanAgenda(r.q(tx).QueryRowContext(ctx, `SELECT `+agendaColumns+` FROM agendas WHERE id=?`, id))
}

type AgendaFilters struct {
	Finished *bool
	Limit    int
}

// ListAgendas returns agendas, most recent session first.
func (r Repo) ListAgendas(ctx context.Context, f AgendaFilters) ([]domain.Agenda, error) {
	query := `SELECT ` + agendaColumns + ` FROM agendas`
	var args []any
	if f.Finished != nil {
		query += ` WHERE is_finished=?`
		args = append(args, boolInt(*f.Finished))
	}
	query += ` ORDER BY date DESC, created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Agenda
	for rows.Next() {
		a, err := scanAgenda(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}
