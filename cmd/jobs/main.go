// Command jobs runs a single pipeline job once and exits. It is meant for
// cron or manual runs outside the long-lived server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/seawatch/internal/app"
	"github.com/stwalsh4118/seawatch/internal/config"
	"github.com/stwalsh4118/seawatch/internal/database"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/observability"
)

func main() {
	jobName := flag.String("job", app.JobPortBuffers, "job to run: "+strings.Join([]string{
		app.JobPortBuffers, app.JobSpirePositions, app.JobMarineTrafficPositions,
	}, ", "))
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env, cfg.Server.LogLevel).With(map[string]interface{}{
		"job": *jobName,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *jobName, log); err != nil {
		log.Error("Job failed", err, nil)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, jobName string, log *logger.Logger) error {
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	clock := clockwork.NewRealClock()
	application, err := app.New(cfg, db, clock, log, observability.NewMetrics())
	if err != nil {
		return err
	}

	start := clock.Now()
	log.Info("Start", map[string]interface{}{"start": start.Format(time.RFC3339)})

	err = application.Scheduler.RunOnce(ctx, jobName)

	end := clock.Now()
	log.Info("End", map[string]interface{}{
		"end":             end.Format(time.RFC3339),
		"elapsed_seconds": end.Sub(start).Seconds(),
	})
	return err
}
