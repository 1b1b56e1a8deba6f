package repo

import (
	"context"
	"database/sql"
	"errors"

	"pauta/internal/domain"
)

// GetDocumentConfig returns the stored letterhead configuration or
// ErrNotFound when it was never saved.
func (r Repo) GetDocumentConfig(ctx context.Context) (domain.DocumentConfig, error) {
	var c domain.DocumentConfig
	var headerAlign, footerAlign string
	err := r.DB.QueryRowContext(ctx, `SELECT header_content,header_alignment,footer_content,footer_alignment,logo_url,summary_page_offset
FROM document_config WHERE id=1`).Scan(&c.Header.Content, &headerAlign, &c.Footer.Content, &footerAlign, &c.LogoURL, &c.SummaryPageOffset)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.Header.Alignment = domain.Alignment(headerAlign)
	c.Footer.Alignment = domain.Alignment(footerAlign)
	return c, nil
}

func (r Repo) UpsertDocumentConfig(ctx context.Context, tx *sql.Tx, c domain.DocumentConfig, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO document_config(id,header_content,header_alignment,footer_content,footer_alignment,logo_url,summary_page_offset,updated_at)
VALUES (1,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET header_content=excluded.header_content, header_alignment=excluded.header_alignment,
footer_content=excluded.footer_content, footer_alignment=excluded.footer_alignment, logo_url=excluded.logo_url,
summary_page_offset=excluded.summary_page_offset, updated_at=excluded.updated_at`,
		c.Header.Content, string(c.Header.Alignment), c.Footer.Content, string(c.Footer.Alignment), c.LogoURL, c.SummaryPageOffset, now)
	return err
}
