package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
)

func cmdHistory(cfg **config.Config) *cli.Command {
	var (
		studentID string
		asJSON    bool
	)

	return &cli.Command{
		Name:  "history",
		Usage: "Print previous analysis records, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "student-id",
				Usage:       "only print the latest record for this student",
				Destination: &studentID,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON instead of markdown",
				Destination: &asJSON,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			svc, _, err := buildService(ctx, *cfg)
			if err != nil {
				return err
			}

			if studentID != "" {
				rec, err := svc.Latest(ctx, studentID)
				if err != nil {
					return err
				}
				if rec == nil {
					fmt.Fprintf(os.Stderr, "no analysis record found for %s\n", studentID)
					return nil
				}
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(rec)
				}
				fmt.Println(rec.Markdown())
				return nil
			}

			records, err := svc.History(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(records)
			}
			if len(records) == 0 {
				fmt.Println("No previous analysis records found.")
				return nil
			}
			for _, rec := range records {
				fmt.Println(rec.Markdown())
				fmt.Println("---")
			}
			return nil
		},
	}
}
