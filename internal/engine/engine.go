// Package engine implements the agenda and process lifecycle and the
// export pipeline on top of the persistence service.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pauta/internal/config"
	"pauta/internal/events"
	"pauta/internal/letterhead"
	"pauta/internal/repo"
)

var (
	ErrAgendaFinished    = errors.New("a pauta está finalizada e não pode ser alterada")
	ErrAgendaNotFinished = errors.New("Antes de exportar é preciso finalizar a pauta.")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNoImportRows      = errors.New("Nenhum processo válido encontrado na planilha.")
)

// FieldError is a validation failure on one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Message }

func (e *FieldError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(field, format string, args ...any) error {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// LogoFetcher downloads the letterhead logo.
type LogoFetcher interface {
	Fetch(ctx context.Context, url string) (*letterhead.Logo, error)
}

type Engine struct {
	DB          *sql.DB
	Repo        repo.Repo
	EventWriter events.Writer
	Config      *config.Config
	Logger      *zap.Logger
	Logos       LogoFetcher
	Now         func() time.Time

	exports *singleflight.Group
}

func New(db *sql.DB, cfg *config.Config, logger *zap.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Engine{
		DB:          db,
		Repo:        repo.Repo{DB: db},
		EventWriter: events.Writer{},
		Config:      cfg,
		Logger:      logger,
		Logos:       letterhead.NewFetcher(letterhead.Config{Logger: logger}),
		Now:         time.Now,
		exports:     &singleflight.Group{},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e Engine) cfg() *config.Config {
	if e.Config == nil {
		return config.Default()
	}
	return e.Config
}

func actorOr(actorID string) string {
	if strings.TrimSpace(actorID) == "" {
		return "local-user"
	}
	return actorID
}

// withTx runs fn in a transaction and commits when it returns nil.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
