package repo

import (
	"context"
	"database/sql"
	"errors"

	"pauta/internal/domain"
)

const processColumns = `id,agenda_id,counselor_name,process_number,process_type,stakeholders,summary,vote_type,` +
	`mpc_opinion_summary,tce_report_summary,has_view_vote,view_vote_summary,mpc_system_manifest,` +
	`is_pgc_modified,pgc_modified_manifest,position,prosecutor_name,observations,additional_notes,created_at,updated_at`

func scanProcess(row rowScanner) (domain.Process, error) {
	var p domain.Process
	var vote string
	var viewVote, pgc int
	err := row.Scan(&p.ID, &p.AgendaID, &p.CounselorName, &p.ProcessNumber, &p.ProcessType, &p.Stakeholders,
		&p.Summary, &vote, &p.MPCOpinionSummary, &p.TCEReportSummary, &viewVote, &p.ViewVoteSummary,
		&p.MPCSystemManifest, &pgc, &p.PGCModifiedManifest, &p.Position, &p.ProsecutorName,
		&p.Observations, &p.AdditionalNotes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	p.VoteType = domain.VoteType(vote)
	p.HasViewVote = viewVote != 0
	p.IsPGCModified = pgc != 0
	return p, err
}

func processArgs(p domain.Process) []any {
	return []any{
		p.ID, p.AgendaID, p.CounselorName, p.ProcessNumber, p.ProcessType, p.Stakeholders,
		p.Summary, string(p.VoteType), p.MPCOpinionSummary, p.TCEReportSummary, boolInt(p.HasViewVote),
		p.ViewVoteSummary, p.MPCSystemManifest, boolInt(p.IsPGCModified), p.PGCModifiedManifest,
		p.Position, p.ProsecutorName, p.Observations, p.AdditionalNotes, p.CreatedAt, p.UpdatedAt,
	}
}

// InsertProcess fails with ErrConflict when the position is taken.
func (r Repo) InsertProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	_, err := r.q(tx).ExecContext(ctx,
		`INSERT INTO processes(`+processColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		processArgs(p)...)
	return constraintErr(err)
}

func (r Repo) UpdateProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	return affected(r.q(tx).ExecContext(ctx, `UPDATE processes SET
counselor_name=?,process_number=?,process_type=?,stakeholders=?,summary=?,vote_type=?,
mpc_opinion_summary=?,tce_report_summary=?,has_view_vote=?,view_vote_summary=?,mpc_system_manifest=?,
is_pgc_modified=?,pgc_modified_manifest=?,position=?,prosecutor_name=?,observations=?,additional_notes=?,updated_at=?
WHERE id=?`,
		p.CounselorName, p.ProcessNumber, p.ProcessType, p.Stakeholders, p.Summary, string(p.VoteType),
		p.MPCOpinionSummary, p.TCEReportSummary, boolInt(p.HasViewVote), p.ViewVoteSummary, p.MPCSystemManifest,
		boolInt(p.IsPGCModified), p.PGCModifiedManifest, p.Position, p.ProsecutorName, p.Observations,
		p.AdditionalNotes, p.UpdatedAt, p.ID))
}

func (r Repo) GetProcess(ctx context.Context, tx *sql.Tx, id string) (domain.Process, error) {
	return scanProcess(r.q(tx).QueryRowContext(ctx, `SELECT `+processColumns+` FROM processes WHERE id=?`, id))
}

// ListProcesses returns the processes of an agenda ordered by position.
func (r Repo) ListProcesses(ctx context.Context, tx *sql.Tx, agendaID string) ([]domain.Process, error) {
	rows, err := r.q(tx).QueryContext(ctx,
		`SELECT `+processColumns+` FROM processes WHERE agenda_id=? ORDER BY position ASC, created_at ASC, id ASC`, agendaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Process
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// MaxPosition returns the highest position in the agenda, 0 when empty.
func (r Repo) MaxPosition(ctx context.Context, tx *sql.Tx, agendaID string) (int, error) {
	var n int
	err := r.q(tx).QueryRowContext(ctx, `SELECT COALESCE(MAX(position),0) FROM processes WHERE agenda_id=?`, agendaID).Scan(&n)
	return n, err
}

// DeleteProcess removes a process and closes the gap it leaves in the
// agenda's positions. tx is required.
func (r Repo) DeleteProcess(ctx context.Context, tx *sql.Tx, p domain.Process) error {
	if err := affected(tx.ExecContext(ctx, `DELETE FROM processes WHERE id=?`, p.ID)); err != nil {
		return err
	}
	// Two passes through negative positions keep the unique index satisfied
	// whatever order SQLite visits the rows in.
	if _, err := tx.ExecContext(ctx, `UPDATE processes SET position=-position WHERE agenda_id=? AND position>?`,
		p.AgendaID, p.Position); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `UPDATE processes SET position=-position-1 WHERE agenda_id=? AND position<0`, p.AgendaID)
	return err
}
