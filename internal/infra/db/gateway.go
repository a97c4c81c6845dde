package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/db/mysql"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/db/postgres"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/db/sqlite"
)

// Opener returns a fresh handle for one gateway call. The gateway closes it.
type Opener func(ctx context.Context) (*sql.DB, error)

// Columns of the analysis table, in storage order.
var columns = []any{
	"id",
	"created_at",
	"StudentID",
	"StudentName",
	"QuizTopic",
	"ScorePercentage",
	"IncorrectTopics",
	"conclusion",
}

// Gateway reads analysis records. Every call opens and closes its own
// connection; nothing is pooled or shared between calls.
type Gateway struct {
	open    Opener
	dialect goqu.DialectWrapper
	table   string
}

// NewGateway builds a gateway for the configured driver.
func NewGateway(cfg *config.Database) (*Gateway, error) {
	var open Opener
	switch cfg.Driver {
	case "postgres":
		open = func(ctx context.Context) (*sql.DB, error) { return postgres.Connect(ctx, cfg) }
	case "mysql":
		open = func(ctx context.Context) (*sql.DB, error) { return mysql.Connect(ctx, cfg) }
	case "sqlite3":
		open = func(ctx context.Context) (*sql.DB, error) { return sqlite.Connect(ctx, cfg) }
	default:
		return nil, goerr.Wrap(domain.ErrConfiguration, "unsupported database driver", goerr.V("driver", cfg.Driver))
	}
	return NewGatewayWithOpener(cfg.Driver, cfg.Table, open), nil
}

// NewGatewayWithOpener builds a gateway over an arbitrary opener.
func NewGatewayWithOpener(dialect, table string, open Opener) *Gateway {
	if table == "" {
		table = "valve"
	}
	return &Gateway{open: open, dialect: goqu.Dialect(dialect), table: table}
}

func (g *Gateway) selectRecords() *goqu.SelectDataset {
	return g.dialect.From(g.table).
		Prepared(true).
		Select(columns...).
		Order(goqu.C("created_at").Desc())
}

// FetchAll returns every record ordered by created_at, newest first.
func (g *Gateway) FetchAll(ctx context.Context) ([]*domain.Record, error) {
	q, args, err := g.selectRecords().ToSQL()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	out := []*domain.Record{}
	err = g.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return goerr.Wrap(domain.Connectivity(err), "failed to query records", goerr.V("table", g.table))
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		if err := rows.Err(); err != nil {
			return goerr.Wrap(domain.Connectivity(err), "failed to read records", goerr.V("table", g.table))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchLatestFor returns the student's newest record, or nil when there is none.
func (g *Gateway) FetchLatestFor(ctx context.Context, studentID string) (*domain.Record, error) {
	q, args, err := g.selectRecords().
		Where(goqu.C("StudentID").Eq(studentID)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build query")
	}

	var rec *domain.Record
	err = g.withConn(ctx, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, q, args...)
		if err != nil {
			return goerr.Wrap(domain.Connectivity(err), "failed to query latest record", goerr.V("student_id", studentID))
		}
		defer rows.Close()

		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return goerr.Wrap(domain.Connectivity(err), "failed to read latest record", goerr.V("student_id", studentID))
			}
			return nil
		}
		r, err := scanRecord(rows)
		if err != nil {
			return goerr.Wrap(err, "failed to fetch latest record", goerr.V("student_id", studentID))
		}
		rec = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Ping opens a connection and closes it again.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.withConn(ctx, func(db *sql.DB) error { return nil })
}

func (g *Gateway) withConn(ctx context.Context, fn func(db *sql.DB) error) error {
	db, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("failed to close database connection")
		}
	}()
	return fn(db)
}

// scanRecord maps one row. Scan failures are data errors and carry no connectivity tag.
func scanRecord(row *sql.Rows) (*domain.Record, error) {
	var (
		r                     domain.Record
		created               time.Time
		name, subject, topics sql.NullString
		conclusion            sql.NullString
		percentage            sql.NullFloat64
	)
	err := row.Scan(
		&r.ID,
		&created,
		&r.StudentID,
		&name,
		&subject,
		&percentage,
		&topics,
		&conclusion,
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to scan analysis record")
	}
	r.CreatedAt = created
	r.StudentName = name.String
	r.Subject = subject.String
	r.Percentage = percentage.Float64
	r.WeakTopics = topics.String
	r.Conclusion = conclusion.String
	return &r, nil
}
