package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"pauta/internal/config"
	"pauta/internal/db"
	"pauta/internal/engine"
	"pauta/internal/migrate"
)

// Workspace is an opened, migrated workspace ready to serve commands.
type Workspace struct {
	Dir    string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
}

// OpenWorkspace loads pauta.yml (defaults when absent), opens and migrates
// the database, and seeds the document config if it was never stored.
func OpenWorkspace(ctx context.Context, dir string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		return nil, err
	}
	version, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg, logger)
	if _, err := eng.DocumentConfig(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seed document config: %w", err)
	}
	logger.Debug("workspace opened", zap.String("dir", dir), zap.Int("schema_version", version))
	return &Workspace{Dir: dir, DB: conn, Config: cfg, Engine: eng}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}
