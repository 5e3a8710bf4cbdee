package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/models"
	"github.com/stwalsh4118/seawatch/internal/normalize"
	"github.com/stwalsh4118/seawatch/internal/observability"
	"github.com/stwalsh4118/seawatch/internal/repository"
)

// ErrProviderDisabled is returned when a cycle is requested for a provider
// that has no client configured.
var ErrProviderDisabled = errors.New("provider is not configured")

// SpireFetcher returns one raw vessel node per vessel Spire knows of among
// the requested MMSIs.
type SpireFetcher interface {
	FetchVessels(ctx context.Context, mmsis []int64) ([]json.RawMessage, error)
}

// MarineTrafficFetcher returns the latest MarineTraffic positions of the
// given vessels.
type MarineTrafficFetcher interface {
	FetchPositions(ctx context.Context, vessels []models.Vessel) ([]models.MarineTrafficPosition, error)
}

// PositionIngestionService runs one ingestion cycle per provider.
type PositionIngestionService interface {
	// IngestSpire reads every registry vessel (or the seed list when the
	// registry is unavailable), fetches their Spire nodes, normalizes them
	// and appends the records in one transaction. Any malformed node aborts
	// the cycle before anything is written.
	IngestSpire(ctx context.Context) (int, error)

	// IngestMarineTraffic fetches positions for tracked vessels and appends
	// them in one transaction.
	IngestMarineTraffic(ctx context.Context) (int, error)
}

// positionIngestionService is the concrete implementation of PositionIngestionService.
type positionIngestionService struct {
	vessels       repository.VesselRepository
	positions     repository.PositionRepository
	spire         SpireFetcher
	marineTraffic MarineTrafficFetcher
	clock         clockwork.Clock
	log           *logger.Logger
	metrics       *observability.Metrics
}

// NewPositionIngestionService creates a new instance of PositionIngestionService.
// A nil fetcher disables that provider.
func NewPositionIngestionService(
	vessels repository.VesselRepository,
	positions repository.PositionRepository,
	spire SpireFetcher,
	marineTraffic MarineTrafficFetcher,
	clock clockwork.Clock,
	log *logger.Logger,
	metrics *observability.Metrics,
) PositionIngestionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &positionIngestionService{
		vessels:       vessels,
		positions:     positions,
		spire:         spire,
		marineTraffic: marineTraffic,
		clock:         clock,
		log:           log.WithComponent("position_ingestion"),
		metrics:       metrics,
	}
}

func (s *positionIngestionService) IngestSpire(ctx context.Context) (int, error) {
	const provider = string(models.SourceSpire)
	if s.spire == nil {
		return 0, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}

	timestamp := s.clock.Now().UTC()

	vessels, err := s.spireVessels(ctx)
	if err != nil {
		s.fail(provider, "registry", "Failed to load vessels", err)
		return 0, fmt.Errorf("failed to load vessels: %w", err)
	}
	if len(vessels) == 0 {
		s.log.Info("No vessels to ingest", map[string]interface{}{"provider": provider})
		return 0, nil
	}

	raw, err := s.spire.FetchVessels(ctx, models.MMSIs(vessels))
	if err != nil {
		s.fail(provider, "fetch", "Failed to fetch vessels", err)
		return 0, fmt.Errorf("failed to fetch spire vessels: %w", err)
	}

	ids := models.VesselIDsByMMSI(vessels)
	records := make([]models.VesselPositionRecord, 0, len(raw))
	for i, node := range raw {
		v, err := normalize.DecodeSpire(node)
		if err != nil {
			s.fail(provider, "normalize", "Failed to decode vessel", err)
			return 0, fmt.Errorf("spire vessel %d: %w", i, err)
		}

		var vesselID *int64
		if v.StaticData != nil && v.StaticData.MMSI != nil {
			vesselID = lookupVesselID(ids, *v.StaticData.MMSI)
		}

		rec, err := normalize.FromSpire(v, vesselID, timestamp)
		if err != nil {
			s.fail(provider, "normalize", "Failed to normalize vessel", err)
			return 0, fmt.Errorf("spire vessel %d: %w", i, err)
		}
		records = append(records, rec)
	}

	return s.append(ctx, provider, records, timestamp)
}

// spireVessels reads the registry, falling back to the seed list.
func (s *positionIngestionService) spireVessels(ctx context.Context) ([]models.Vessel, error) {
	vessels, err := s.vessels.ListAllVessels(ctx)
	if err == nil {
		return vessels, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	s.log.Warn("Vessel registry unavailable, using seed list", map[string]interface{}{
		"error": err.Error(),
	})
	s.metrics.VesselSeedFallbacks.Inc()

	return s.vessels.LoadVesselSeedList(ctx)
}

func (s *positionIngestionService) IngestMarineTraffic(ctx context.Context) (int, error) {
	const provider = string(models.SourceMarineTraffic)
	if s.marineTraffic == nil {
		return 0, fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
	}

	timestamp := s.clock.Now().UTC()

	vessels, err := s.vessels.ListTrackedVessels(ctx)
	if err != nil {
		s.fail(provider, "registry", "Failed to load tracked vessels", err)
		return 0, fmt.Errorf("failed to load tracked vessels: %w", err)
	}
	if len(vessels) == 0 {
		s.log.Info("No vessels to ingest", map[string]interface{}{"provider": provider})
		return 0, nil
	}

	positions, err := s.marineTraffic.FetchPositions(ctx, vessels)
	if err != nil {
		s.fail(provider, "fetch", "Failed to fetch positions", err)
		return 0, fmt.Errorf("failed to fetch marinetraffic positions: %w", err)
	}

	ids := models.VesselIDsByMMSI(vessels)
	for i := range positions {
		if positions[i].VesselID == nil {
			positions[i].VesselID = lookupVesselID(ids, positions[i].MMSI)
		}
	}

	records, err := normalize.MarineTraffic(positions, timestamp)
	if err != nil {
		s.fail(provider, "normalize", "Failed to normalize positions", err)
		return 0, fmt.Errorf("marinetraffic %w", err)
	}

	return s.append(ctx, provider, records, timestamp)
}

func (s *positionIngestionService) append(ctx context.Context, provider string, records []models.VesselPositionRecord, timestamp time.Time) (int, error) {
	n, err := s.positions.AppendPositions(ctx, records, timestamp)
	if err != nil {
		s.fail(provider, "persistence", "Failed to save positions", err)
		return 0, fmt.Errorf("failed to save %s positions: %w", provider, err)
	}

	s.metrics.PositionsIngested.WithLabelValues(provider).Add(float64(n))
	s.log.Info("Positions saved", map[string]interface{}{
		"provider": provider,
		"count":    n,
	})
	return n, nil
}

func (s *positionIngestionService) fail(provider, stage, msg string, err error) {
	s.metrics.IngestionFailures.WithLabelValues(provider, stage).Inc()
	s.log.Error(msg, err, map[string]interface{}{
		"provider": provider,
		"stage":    stage,
	})
}

func lookupVesselID(ids map[int64]int64, mmsi int64) *int64 {
	id, ok := ids[mmsi]
	if !ok {
		return nil
	}
	return &id
}
