package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// Connect opens a single, unpooled connection to PostgreSQL and pings it.
// The caller owns the returned handle and must close it.
func Connect(ctx context.Context, cfg *config.Database) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to open postgres", goerr.V("host", cfg.Host))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to connect to postgres", goerr.V("host", cfg.Host), goerr.V("port", cfg.Port))
	}
	return db, nil
}
