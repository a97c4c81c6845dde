package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bryanwahyu/quiz-analysis/internal/application"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

// DefaultMaxAttempts applies when neither the caller nor PollConfig sets a bound.
const DefaultMaxAttempts = 10

// PollConfig bounds the wait for an asynchronous analysis.
type PollConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// Service implements the submit-and-poll use cases.
type Service struct {
	Gateway   domain.Gateway
	Submitter domain.Submitter
	Archive   domain.ReportArchive // optional
	Clock     application.Clock
	Poll      PollConfig
}

// WaitResult is what SubmitAndWait hands to the presentation layer.
type WaitResult struct {
	SubmissionID string            `json:"submission_id"`
	Submission   domain.Submission `json:"submission"`
	Ack          *domain.Ack       `json:"ack"`
	Outcome      PollOutcome       `json:"outcome"`
	ReportURL    string            `json:"report_url,omitempty"`
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

// Submit sends one submission to the workflow webhook. No retry.
func (s *Service) Submit(ctx context.Context, sub domain.Submission) (*domain.Ack, error) {
	return s.Submitter.Submit(ctx, sub)
}

// History returns every record, newest first.
func (s *Service) History(ctx context.Context) ([]*domain.Record, error) {
	return s.Gateway.FetchAll(ctx)
}

// Latest returns the newest record for a student or nil.
func (s *Service) Latest(ctx context.Context, studentID string) (*domain.Record, error) {
	if err := domain.ValidateStudentID(studentID); err != nil {
		return nil, err
	}
	return s.Gateway.FetchLatestFor(ctx, studentID)
}

// SubmitAndWait validates and submits, then polls for the analysis once the
// workflow accepted it. Submission failures are returned as errors; poll
// failures are reported through the outcome.
func (s *Service) SubmitAndWait(ctx context.Context, sub domain.Submission, progress ProgressFunc) (*WaitResult, error) {
	sub, err := sub.Normalize()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := log.With().Str("submission_id", id).Str("student_id", sub.StudentID).Logger()

	logger.Info().Str("subject", sub.Subject).Float64("percentage", sub.ScorePercentage).Msg("sending submission to workflow")
	ack, err := s.Submit(ctx, sub)
	if err != nil {
		logger.Error().Err(err).Msg("workflow submission failed")
		return nil, err
	}
	logger.Info().Int("status", ack.StatusCode).Str("message", ack.Message).Msg("analysis in progress")

	outcome := s.PollForResult(ctx, sub.StudentID, s.Poll.MaxAttempts, s.Poll.Delay, progress)
	res := &WaitResult{
		SubmissionID: id,
		Submission:   sub,
		Ack:          ack,
		Outcome:      outcome,
	}

	switch outcome.State {
	case PollSucceeded:
		logger.Info().Int("attempts", outcome.Attempts).Str("record_id", outcome.Record.ID).Msg("analysis completed")
		if s.Archive != nil {
			url, err := s.Archive.PutReport(ctx, outcome.Record)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to archive analysis report")
			} else {
				res.ReportURL = url
			}
		}
	case PollExhausted:
		logger.Warn().Int("attempts", outcome.Attempts).Msg("analysis result not found after retries")
	default:
		logger.Error().Err(outcome.Err()).Int("attempts", outcome.Attempts).Msg("polling aborted")
	}
	return res, nil
}
