package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/denismitr/lemonrest/internal/httpapi"
	"github.com/denismitr/lemonrest/internal/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collection over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.overrides.Server.Addr, "addr", "", "address to listen on")
	flags.StringVar(&a.overrides.Server.BasePath, "base-path", "", "prefix for the resource routes")
	flags.StringVar(&a.overrides.Server.Resource, "resource", "", "name of the resource segment")
	flags.Float64Var(&a.overrides.Server.RateLimit, "rate-limit", 0, "requests per second per client, 0 disables")

	return cmd
}

func (a *app) serve(ctx context.Context) error {
	sc := a.cfg.Server

	var m *metrics.Collector
	if a.cfg.Metrics.Enabled {
		m = metrics.New()
	}

	c, closer, err := a.openCollection(ctx, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := closer(); err != nil {
			a.log.Error("could not close collection", zap.Error(err))
		}
	}()

	srv := &http.Server{
		Handler: httpapi.NewRouter(c, httpapi.Options{
			BasePath:     sc.BasePath,
			Resource:     sc.Resource,
			MaxBodyBytes: sc.MaxBodyBytes,
			RateLimit:    sc.RateLimit,
			RateBurst:    sc.RateBurst,
			Logger:       a.log.Named("http"),
			Metrics:      m,
		}),
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		ErrorLog:     zap.NewStdLog(a.log.Named("http")),
	}

	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return errors.Wrapf(err, "could not listen on %s", sc.Addr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.log.Info("serving",
		zap.String("addr", ln.Addr().String()),
		zap.String("driver", a.cfg.Storage.Driver),
		zap.String("resource", sc.Resource),
		zap.Bool("metrics", m != nil),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server stopped")
	case <-ctx.Done():
	}

	a.log.Info("shutting down", zap.Duration("timeout", sc.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), sc.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "graceful shutdown failed")
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
