package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"brunance/internal/cli"
	apphttp "brunance/internal/http"
	"brunance/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, res.Ledger, apphttp.Options{
		Sync:               res.Sync,
		Ready:              res.Ready,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting brunance server", "port", cfg.Port, "backend", cfg.DataBackend, "remote", cfg.RemoteBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if res.Remote != nil {
		var consumer worker.Consumer
		if res.AMQP != nil {
			consumer = res.AMQP
		}
		syncWorker := worker.NewSyncWorker(res.Sync, consumer, res.Ledger)
		g.Go(func() error { return syncWorker.Run(gctx) })
	} else {
		logger.Info("No remote configured, sync disabled")
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
		os.Exit(1)
	}

	if ctx.Err() != nil {
		cli.WaitForShutdown(ctx, done)
	}
	logger.Info("Server stopped gracefully")
}
