// Package db opens the workspace SQLite database.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const (
	stateDir = ".pauta"
	dbName   = "pauta.db"
)

type Config struct {
	Workspace string
}

// Dir is the state directory of a workspace.
func Dir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, stateDir)
}

// Path returns the database file of a workspace.
func Path(workspace string) string {
	return filepath.Join(Dir(workspace), dbName)
}

// Open creates the state directory if needed and opens the database with
// foreign keys enforced, so deleting an agenda cascades to its processes.
func Open(cfg Config) (*sql.DB, error) {
	if err := os.MkdirAll(Dir(cfg.Workspace), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", Path(cfg.Workspace))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; shared-cache locks do not honor busy_timeout.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
