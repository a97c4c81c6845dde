package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/bryanwahyu/quiz-analysis/internal/application"
	appanalysis "github.com/bryanwahyu/quiz-analysis/internal/application/analysis"
	"github.com/bryanwahyu/quiz-analysis/internal/config"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/db"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/logging"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/storage"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/webhook"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Error().Err(err).Msg("failed to run app")
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	var (
		configPath string
		logLevel   string
		logFormat  string
		cfg        *config.Config
	)

	return &cli.Command{
		Name:    "quiz-analysis",
		Usage:   "Submit quiz performance to the analysis workflow and browse results",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to config.yaml",
				Value:       "config.yaml",
				Sources:     cli.EnvVars("CONFIG_PATH"),
				Destination: &configPath,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error); overrides config",
				Destination: &logLevel,
			},
			&cli.StringFlag{
				Name:        "log-format",
				Usage:       "log format (json, console); overrides config",
				Destination: &logFormat,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			loaded, err := config.Load(configPath)
			if err != nil {
				return ctx, err
			}
			if logLevel != "" {
				loaded.Log.Level = logLevel
			}
			if logFormat != "" {
				loaded.Log.Format = logFormat
			}
			logging.Init(loaded.Log.Level, loaded.Log.Format)
			cfg = loaded
			return ctx, nil
		},
		// serve is the default so a bare invocation starts the page
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			cmdServe(&cfg),
			cmdHistory(&cfg),
			cmdSubmit(&cfg),
		},
	}
}

// buildService wires the gateway, webhook client and optional report archive.
func buildService(ctx context.Context, cfg *config.Config) (*appanalysis.Service, *db.Gateway, error) {
	gw, err := db.NewGateway(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	svc := &appanalysis.Service{
		Gateway:   gw,
		Submitter: webhook.NewClient(&cfg.Webhook),
		Clock:     application.SystemClock{},
		Poll: appanalysis.PollConfig{
			MaxAttempts: cfg.Poll.MaxAttempts,
			Delay:       cfg.Poll.Delay,
		},
	}

	if cfg.Archive.Enabled() {
		store, err := storage.New(ctx, &cfg.Archive)
		if err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.Archive.Endpoint).Msg("report archive disabled")
		} else {
			svc.Archive = store
			log.Info().Str("bucket", cfg.Archive.BucketName).Msg("report archive enabled")
		}
	}
	return svc, gw, nil
}
