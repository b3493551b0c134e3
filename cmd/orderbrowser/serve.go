package main

import (
	"context"
	stdErr "errors"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pure-golang/orderbrowser/destination/provider"
	"github.com/pure-golang/orderbrowser/env"
	"github.com/pure-golang/orderbrowser/httpserver/std"
	"github.com/pure-golang/orderbrowser/logger"
	"github.com/pure-golang/orderbrowser/metrics"
	"github.com/pure-golang/orderbrowser/relay"
	"github.com/pure-golang/orderbrowser/tracing"
	"github.com/pure-golang/orderbrowser/tracing/otlp"
)

type serveConfig struct {
	Tracing     otlp.Config
	Metrics     metrics.Config
	Web         std.Config
	Relay       relay.Config
	Destination provider.Config
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mail relay (POST /send-mail)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg serveConfig
			if err := env.InitConfig(&cfg.Tracing, &cfg.Metrics, &cfg.Web, &cfg.Relay, &cfg.Destination); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg serveConfig) (err error) {
	log := logger.FromContext(ctx)
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			cerr := closers[i].Close()
			logger.FromContextWithErrIf(ctx, cerr).Warn("close failed")
			err = stdErr.Join(err, cerr)
		}
	}()

	tp, terr := tracing.Init(otlp.NewProviderBuilder(cfg.Tracing))
	if terr != nil {
		logger.WithErr(terr).Warn("tracing disabled")
	}
	closers = append(closers, tp)

	m, err := metrics.InitDefault(cfg.Metrics)
	if err != nil {
		return err
	}
	closers = append(closers, m)

	finder, err := provider.New(ctx, cfg.Destination)
	if err != nil {
		return errors.Wrap(err, "failed to init destinations")
	}
	closers = append(closers, finder)

	svc := relay.New(cfg.Relay, finder)
	srv := std.NewDefault(cfg.Web, relay.NewRouter(relay.NewHandler(svc, cfg.Relay)))
	if err := srv.Run(); err != nil {
		return err
	}
	closers = append(closers, srv)

	log.Info("mailer service running",
		"addr", srv.Addr(),
		"destination", cfg.Relay.Destination,
		"provider", string(cfg.Destination.Kind),
		"transport", string(cfg.Relay.Transport),
	)

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}
