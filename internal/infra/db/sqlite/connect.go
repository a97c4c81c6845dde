package sqlite

import (
	"context"
	"database/sql"

	"github.com/m-mizutani/goerr/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// Connect opens the SQLite file at cfg.Path. Used for local development and tests.
func Connect(ctx context.Context, cfg *config.Database) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000")
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to open sqlite", goerr.V("path", cfg.Path))
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to connect to sqlite", goerr.V("path", cfg.Path))
	}
	return db, nil
}
