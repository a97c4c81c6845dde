package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/m-mizutani/goerr/v2"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// DSN builds the driver DSN from the database settings.
func DSN(cfg *config.Database) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Connect opens a single, unpooled connection to MySQL and pings it.
func Connect(ctx context.Context, cfg *config.Database) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to open mysql", goerr.V("host", cfg.Host))
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(0)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, goerr.Wrap(domain.Connectivity(err), "failed to connect to mysql", goerr.V("host", cfg.Host), goerr.V("port", cfg.Port))
	}
	return db, nil
}
