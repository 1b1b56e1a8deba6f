package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"pauta/internal/domain"
	"pauta/internal/events"
	"pauta/internal/repo"
	"pauta/internal/richtext"
)

// DocumentConfig returns the stored letterhead configuration, seeding it
// from the workspace config on first use.
func (e Engine) DocumentConfig(ctx context.Context) (domain.DocumentConfig, error) {
	c, err := e.Repo.GetDocumentConfig(ctx)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.DocumentConfig{}, err
	}
	seed := normalizeDocumentConfig(e.cfg().Document)
	if err := e.Repo.UpsertDocumentConfig(ctx, nil, seed, e.timestamp()); err != nil {
		return domain.DocumentConfig{}, err
	}
	return seed, nil
}

func normalizeDocumentConfig(c domain.DocumentConfig) domain.DocumentConfig {
	c.Header.Content = richtext.Sanitize(strings.TrimSpace(c.Header.Content))
	c.Footer.Content = richtext.Sanitize(strings.TrimSpace(c.Footer.Content))
	if c.Header.Alignment == "" {
		c.Header.Alignment = domain.AlignCenter
	}
	if c.Footer.Alignment == "" {
		c.Footer.Alignment = domain.AlignCenter
	}
	c.LogoURL = strings.TrimSpace(c.LogoURL)
	return c
}

// SetDocumentConfig replaces the letterhead configuration used by exports.
func (e Engine) SetDocumentConfig(ctx context.Context, c domain.DocumentConfig, actorID string) (domain.DocumentConfig, error) {
	c = normalizeDocumentConfig(c)
	if !c.Header.Alignment.Valid() {
		return domain.DocumentConfig{}, invalid("header.alignment", "must be left, center or right")
	}
	if !c.Footer.Alignment.Valid() {
		return domain.DocumentConfig{}, invalid("footer.alignment", "must be left, center or right")
	}
	if c.SummaryPageOffset < 0 {
		return domain.DocumentConfig{}, invalid("summary_page_offset", "must not be negative")
	}
	if c.LogoURL != "" && !strings.HasPrefix(c.LogoURL, "http://") && !strings.HasPrefix(c.LogoURL, "https://") {
		return domain.DocumentConfig{}, invalid("logo_url", "must be an http(s) url")
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpsertDocumentConfig(ctx, tx, c, e.timestamp()); err != nil {
			return err
		}
		return e.EventWriter.Append(ctx, tx, events.DocConfigSet, "document_config", "", actorOr(actorID),
			events.Payload{"header_alignment": c.Header.Alignment, "footer_alignment": c.Footer.Alignment, "logo_url": c.LogoURL})
	})
	if err != nil {
		return domain.DocumentConfig{}, err
	}
	return c, nil
}

// Settings are the selectable values of the workspace.
type Settings struct {
	SessionTypes []string `json:"session_types"`
	Prosecutors  []string `json:"prosecutors"`
	VoteTypes    []string `json:"vote_types"`
}

func (e Engine) Settings() Settings {
	cfg := e.cfg()
	s := Settings{
		SessionTypes: append([]string{}, cfg.SessionTypes...),
		Prosecutors:  append([]string{}, cfg.Prosecutors...),
	}
	for _, v := range domain.VoteTypes {
		s.VoteTypes = append(s.VoteTypes, string(v))
	}
	return s
}

// Events returns the newest audit events first.
func (e Engine) Events(ctx context.Context, f repo.EventFilters) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, f)
}
