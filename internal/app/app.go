// Package app wires configuration, storage, providers and pipelines into
// the scheduler shared by the server and the one-shot jobs command.
package app

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/seawatch/internal/config"
	"github.com/stwalsh4118/seawatch/internal/database"
	"github.com/stwalsh4118/seawatch/internal/geodesy"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/observability"
	"github.com/stwalsh4118/seawatch/internal/provider/marinetraffic"
	"github.com/stwalsh4118/seawatch/internal/provider/spire"
	"github.com/stwalsh4118/seawatch/internal/repository"
	"github.com/stwalsh4118/seawatch/internal/scheduler"
	"github.com/stwalsh4118/seawatch/internal/services"
)

// Job names, shared by the scheduler, the HTTP trigger endpoint and the
// jobs command.
const (
	JobPortBuffers            = "port-buffers"
	JobSpirePositions         = "spire-positions"
	JobMarineTrafficPositions = "marinetraffic-positions"
)

// App holds the wired components.
type App struct {
	Computer   geodesy.Computer
	Positions  repository.PositionRepository
	PortBuffer services.PortBufferService
	Ingestion  services.PositionIngestionService
	Scheduler  *scheduler.Scheduler
}

// New builds the pipelines on top of db and registers one scheduler job per
// enabled pipeline. The port buffer job is always registered.
func New(cfg *config.Config, db *database.Database, clock clockwork.Clock, log *logger.Logger, metrics *observability.Metrics) (*App, error) {
	computer := geodesy.NewComputer(cfg.PortBuffer.RadiusMeters, cfg.PortBuffer.Resolution)

	portRepo := repository.NewPortRepository(db, cfg.Geo.SRID)
	vesselRepo := repository.NewVesselRepository(db, cfg.Ingestion.SeedFile)
	positionRepo := repository.NewPositionRepository(db, cfg.Geo.SRID)

	var spireFetcher services.SpireFetcher
	if cfg.Spire.Enabled {
		spireFetcher = spire.NewClient(cfg.Spire.URL, cfg.Spire.Token, cfg.Ingestion.ProviderTimeout, log)
	}
	var mtFetcher services.MarineTrafficFetcher
	if cfg.MarineTraffic.Enabled {
		mtFetcher = marinetraffic.NewClient(cfg.MarineTraffic.URL, cfg.MarineTraffic.Token, cfg.Ingestion.ProviderTimeout, log)
	}

	a := &App{
		Computer:   computer,
		Positions:  positionRepo,
		PortBuffer: services.NewPortBufferService(portRepo, computer, cfg.PortBuffer.Workers, log, metrics),
		Ingestion:  services.NewPositionIngestionService(vesselRepo, positionRepo, spireFetcher, mtFetcher, clock, log, metrics),
		Scheduler:  scheduler.New(clock, cfg.Scheduler.MaxBackoff, log, metrics),
	}

	jobs := []scheduler.Job{{
		Name:     JobPortBuffers,
		Interval: cfg.PortBuffer.Interval,
		Run: func(ctx context.Context) error {
			_, err := a.PortBuffer.Run(ctx)
			return err
		},
	}}
	if cfg.Spire.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:     JobSpirePositions,
			Interval: cfg.Spire.Interval,
			Run: func(ctx context.Context) error {
				_, err := a.Ingestion.IngestSpire(ctx)
				return err
			},
		})
	}
	if cfg.MarineTraffic.Enabled {
		jobs = append(jobs, scheduler.Job{
			Name:     JobMarineTrafficPositions,
			Interval: cfg.MarineTraffic.Interval,
			Run: func(ctx context.Context) error {
				_, err := a.Ingestion.IngestMarineTraffic(ctx)
				return err
			},
		})
	}

	for _, job := range jobs {
		if err := a.Scheduler.Register(job); err != nil {
			return nil, fmt.Errorf("register job %s: %w", job.Name, err)
		}
	}

	return a, nil
}
