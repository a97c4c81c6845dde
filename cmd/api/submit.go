package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	appanalysis "github.com/bryanwahyu/quiz-analysis/internal/application/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/config"
	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

func cmdSubmit(cfg **config.Config) *cli.Command {
	var sub domain.Submission

	return &cli.Command{
		Name:  "submit",
		Usage: "Submit one quiz result and wait for its analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "student-id", Required: true, Destination: &sub.StudentID},
			&cli.StringFlag{Name: "name", Destination: &sub.StudentName},
			&cli.StringFlag{Name: "subject", Destination: &sub.Subject},
			&cli.FloatFlag{Name: "percentage", Usage: "score between 0 and 100", Destination: &sub.ScorePercentage},
			&cli.StringFlag{Name: "weak-topics", Usage: "comma separated topics", Destination: &sub.IncorrectTopics},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			conf := *cfg
			if err := conf.ValidateWebhook(); err != nil {
				return err
			}
			svc, _, err := buildService(ctx, conf)
			if err != nil {
				return err
			}

			res, err := svc.SubmitAndWait(ctx, sub, func(remaining int) {
				fmt.Fprintf(os.Stderr, "Waiting for analysis... (Attempts remaining: %d)\n", remaining)
			})
			if err != nil {
				return err
			}

			switch res.Outcome.State {
			case appanalysis.PollSucceeded:
				fmt.Println(res.Outcome.Record.Markdown())
				if res.ReportURL != "" {
					fmt.Fprintf(os.Stderr, "report archived at %s\n", res.ReportURL)
				}
				return nil
			case appanalysis.PollExhausted:
				fmt.Fprintln(os.Stderr, "Analysis result not found after multiple retries. The process might take longer than expected.")
				return nil
			default:
				return res.Outcome.Err()
			}
		},
	}
}
