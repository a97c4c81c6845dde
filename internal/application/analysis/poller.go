package analysis

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/rs/zerolog/log"

	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// PollState is the lifecycle of a single poll.
type PollState string

const (
	PollPending   PollState = "pending"
	PollSucceeded PollState = "succeeded"
	PollExhausted PollState = "exhausted"
	PollFailed    PollState = "failed"
)

// ProgressFunc receives the number of attempts left before each wait.
type ProgressFunc func(remaining int)

// PollOutcome is the terminal result of PollForResult.
type PollOutcome struct {
	State    PollState      `json:"state"`
	Record   *domain.Record `json:"record,omitempty"`
	Attempts int            `json:"attempts"`
	err      error
}

// Err is nil on success, ErrNotFoundAfterRetries when exhausted and the
// underlying failure otherwise.
func (o PollOutcome) Err() error {
	switch o.State {
	case PollSucceeded:
		return nil
	case PollExhausted:
		return domain.ErrNotFoundAfterRetries
	default:
		return o.err
	}
}

// PollForResult checks the store for the student's latest record up to
// maxAttempts times, waiting delay between empty checks. A store error stops
// polling at once; the remaining attempts are discarded.
func (s *Service) PollForResult(ctx context.Context, studentID string, maxAttempts int, delay time.Duration, progress ProgressFunc) PollOutcome {
	if maxAttempts <= 0 {
		maxAttempts = s.Poll.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = 0
	}

	out := PollOutcome{State: PollPending}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		rec, err := s.Gateway.FetchLatestFor(ctx, studentID)
		out.Attempts++
		if err != nil {
			log.Error().Err(err).
				Str("student_id", studentID).
				Int("attempt", out.Attempts).
				Msg("database error during retry")
			out.State = PollFailed
			out.err = err
			return out
		}
		if rec != nil {
			out.State = PollSucceeded
			out.Record = rec
			return out
		}

		remaining := maxAttempts - attempt - 1
		log.Debug().Str("student_id", studentID).Int("remaining", remaining).Msg("waiting for analysis")
		if progress != nil {
			progress(remaining)
		}
		if remaining == 0 {
			break
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				out.State = PollFailed
				out.err = goerr.Wrap(ctx.Err(), "polling cancelled", goerr.V("attempts", out.Attempts))
				return out
			case <-s.clock().After(delay):
			}
		}
	}

	out.State = PollExhausted
	return out
}
