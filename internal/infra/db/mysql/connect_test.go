package mysql_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/db/mysql"
)

func TestDSN(t *testing.T) {
	dsn := mysql.DSN(&config.Database{Host: "mysql.local", Port: 3306, User: "app", Password: "p@ss", Name: "quiz"})

	assert.Contains(t, dsn, "app:p@ss@tcp(mysql.local:3306)/quiz?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestConnectMissingCredentials(t *testing.T) {
	_, err := mysql.Connect(context.Background(), &config.Database{Driver: "mysql", Host: "mysql.local"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
