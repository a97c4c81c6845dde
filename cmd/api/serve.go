package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/bryanwahyu/quiz-analysis/internal/config"
	"github.com/bryanwahyu/quiz-analysis/internal/infra/httpserver"
	"github.com/bryanwahyu/quiz-analysis/internal/middleware"
)

func cmdServe(cfg **config.Config) *cli.Command {
	var addr string

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP listen address (default :<server.port>)",
				Sources:     cli.EnvVars("SERVER_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			conf := *cfg

			// surface a missing webhook before anyone submits
			webhookErr := conf.ValidateWebhook()
			if webhookErr != nil {
				log.Error().Err(webhookErr).Msg("webhook URL is not configured; submissions are disabled")
			} else {
				log.Info().Msg("webhook URL is configured")
			}

			svc, gw, err := buildService(ctx, conf)
			if err != nil {
				return err
			}

			opts := httpserver.Options{
				WebhookError: webhookErr,
				APIKeys:      conf.Auth.APIKeys,
				HealthCheckers: map[string]middleware.HealthChecker{
					"store": &middleware.StoreHealthChecker{Store: gw},
					"webhook": middleware.CheckFunc(func(context.Context) error {
						return webhookErr
					}),
				},
			}
			opts.RateLimit.Capacity = conf.RateLimit.Capacity
			opts.RateLimit.RefillRate = conf.RateLimit.RefillRate
			// a submission blocks for the whole poll; its context deadline covers
			// maxAttempts x delay plus the webhook call and ends before the write timeout
			opts.SubmitTimeout = time.Duration(conf.Poll.MaxAttempts)*conf.Poll.Delay + 30*time.Second

			if addr == "" {
				addr = fmt.Sprintf(":%d", conf.Server.Port)
			}
			srv := &http.Server{
				Addr:         addr,
				Handler:      httpserver.NewRouter(ctx, svc, opts),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: opts.SubmitTimeout + 30*time.Second,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Msg("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down server...")

			ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx2); err != nil {
				log.Error().Err(err).Msg("shutdown error")
			}
			return nil
		},
	}
}
