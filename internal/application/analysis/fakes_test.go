package analysis_test

import (
	"context"
	"sync"
	"time"

	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

type fetchResult struct {
	rec *domain.Record
	err error
}

// scriptedGateway answers FetchLatestFor from a script, then keeps
// returning the last entry.
type scriptedGateway struct {
	mu      sync.Mutex
	script  []fetchResult
	calls   int
	ids     []string
	records []*domain.Record
}

func (g *scriptedGateway) FetchAll(context.Context) ([]*domain.Record, error) {
	return g.records, nil
}

func (g *scriptedGateway) FetchLatestFor(_ context.Context, studentID string) (*domain.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ids = append(g.ids, studentID)
	g.calls++
	if len(g.script) == 0 {
		return nil, nil
	}
	i := g.calls - 1
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	return g.script[i].rec, g.script[i].err
}

type fakeClock struct {
	mu     sync.Mutex
	waits  []time.Duration
	freeze bool
}

func (c *fakeClock) Now() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	if c.freeze {
		return nil
	}
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

type fakeSubmitter struct {
	ack   *domain.Ack
	err   error
	calls []domain.Submission
}

func (s *fakeSubmitter) Submit(_ context.Context, sub domain.Submission) (*domain.Ack, error) {
	s.calls = append(s.calls, sub)
	return s.ack, s.err
}

type fakeArchive struct {
	err     error
	records []*domain.Record
}

func (a *fakeArchive) PutReport(_ context.Context, r *domain.Record) (string, error) {
	a.records = append(a.records, r)
	if a.err != nil {
		return "", a.err
	}
	return "http://minio:9000/analysis-reports/" + r.ReportKey(), nil
}
