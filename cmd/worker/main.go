// Package main is the entry point for the back office housekeeping worker.
// It prunes expired token revocations and old operation logs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"backoffice/internal/app"
	"backoffice/internal/config"
	"backoffice/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     "backoffice-worker",
		Version:     app.Version,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	log.Info("starting back office worker")

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer a.Close()

	worker := NewHousekeeper(a, cfg, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down worker...")

	wg.Wait()
	log.Info("worker stopped")
}

// job is one periodic cleanup; it returns the number of rows removed.
type job struct {
	name string
	run  func(ctx context.Context) (int64, error)
}

// Housekeeper runs cleanup jobs on a fixed interval.
type Housekeeper struct {
	jobs     []job
	interval time.Duration
	log      *logger.Logger
}

func NewHousekeeper(a *app.App, cfg *config.Config, log *logger.Logger) *Housekeeper {
	jobs := []job{
		{name: "revoked_tokens", run: a.RevokedTokens.CleanupExpired},
	}
	if cfg.OperationLogRetention > 0 {
		retention := cfg.OperationLogRetention
		jobs = append(jobs, job{
			name: "operation_logs",
			run: func(ctx context.Context) (int64, error) {
				return a.OperationLogs.DeleteOlderThan(ctx, time.Now().Add(-retention))
			},
		})
	}

	return &Housekeeper{
		jobs:     jobs,
		interval: cfg.HousekeepingInterval,
		log:      log.WithComponent("worker"),
	}
}

// Run executes every job once, then again on each tick until ctx is done.
func (w *Housekeeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Housekeeper) runOnce(ctx context.Context) {
	for _, j := range w.jobs {
		count, err := j.run(ctx)
		if err != nil {
			w.log.Errorw("cleanup failed", "job", j.name, "error", err)
			continue
		}
		if count > 0 {
			w.log.Infow("cleaned up rows", "job", j.name, "count", count)
		}
	}
}
