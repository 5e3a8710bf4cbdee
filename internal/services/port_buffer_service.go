package services

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/seawatch/internal/geodesy"
	"github.com/stwalsh4118/seawatch/internal/logger"
	"github.com/stwalsh4118/seawatch/internal/models"
	"github.com/stwalsh4118/seawatch/internal/observability"
	"github.com/stwalsh4118/seawatch/internal/repository"
	"golang.org/x/sync/errgroup"
)

// PortBufferResult summarises one port buffer run.
type PortBufferResult struct {
	// Selected is the number of ports found without a buffer.
	Selected int `json:"selected"`
	// Staged is the number of buffer writes staged before commit.
	Staged int `json:"staged"`
	// Updated is the number of buffers persisted by a successful commit.
	Updated int `json:"updated"`
}

// PortBufferService derives missing port buffers.
type PortBufferService interface {
	// Run computes a buffer for every port that has none and writes them all
	// in one unit of work.
	//
	// Errors listing ports and geometry errors are returned. A failure while
	// staging or committing rolls the unit of work back and is logged, not
	// returned; Updated is then 0.
	Run(ctx context.Context) (PortBufferResult, error)
}

// portBufferService is the concrete implementation of PortBufferService.
type portBufferService struct {
	repo     repository.PortRepository
	computer geodesy.Computer
	workers  int
	log      *logger.Logger
	metrics  *observability.Metrics
}

// NewPortBufferService creates a new instance of PortBufferService.
func NewPortBufferService(
	repo repository.PortRepository,
	computer geodesy.Computer,
	workers int,
	log *logger.Logger,
	metrics *observability.Metrics,
) PortBufferService {
	if workers < 1 {
		workers = 1
	}
	return &portBufferService{
		repo:     repo,
		computer: computer,
		workers:  workers,
		log:      log.WithComponent("port_buffer"),
		metrics:  metrics,
	}
}

func (s *portBufferService) Run(ctx context.Context) (PortBufferResult, error) {
	var result PortBufferResult

	ports, err := s.repo.ListPortsMissingBuffer(ctx)
	if err != nil {
		s.log.Error("Failed to list ports missing a buffer", err, nil)
		return result, fmt.Errorf("failed to list ports missing a buffer: %w", err)
	}
	result.Selected = len(ports)
	s.metrics.PortsSelected.Add(float64(len(ports)))

	if len(ports) == 0 {
		s.log.Info("Port buffers updated", map[string]interface{}{"updated": 0})
		return result, nil
	}

	buffers, err := s.computeBuffers(ctx, ports)
	if err != nil {
		s.metrics.PortBufferFailures.WithLabelValues("geometry").Inc()
		s.log.Error("Failed to compute port buffers", err, map[string]interface{}{
			"selected": result.Selected,
		})
		return result, err
	}

	staged, err := s.persist(ctx, buffers)
	result.Staged = staged
	if err != nil {
		s.metrics.PortBufferFailures.WithLabelValues("persistence").Inc()
		s.log.Error("Failed to update port buffers", err, map[string]interface{}{
			"selected": result.Selected,
			"staged":   staged,
		})
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, nil
	}

	result.Updated = staged
	s.metrics.PortBuffersUpdated.Add(float64(staged))
	s.log.Info("Port buffers updated", map[string]interface{}{
		"selected": result.Selected,
		"updated":  result.Updated,
	})

	return result, nil
}

// computeBuffers derives every buffer, keeping port order. The first
// geometry error cancels the remaining work.
func (s *portBufferService) computeBuffers(ctx context.Context, ports []models.Port) ([]models.PortBuffer, error) {
	buffers := make([]models.PortBuffer, len(ports))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, port := range ports {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			buf, err := s.computer.PortBuffer(port)
			if err != nil {
				return fmt.Errorf("port %d (%s): %w", port.ID, port.Name, err)
			}
			buffers[i] = models.PortBuffer{PortID: port.ID, Buffer: buf}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return buffers, nil
}

// persist stages every buffer and commits once. It returns how many writes
// were staged; nothing is visible unless the error is nil.
func (s *portBufferService) persist(ctx context.Context, buffers []models.PortBuffer) (int, error) {
	update, err := s.repo.BeginBufferUpdate(ctx)
	if err != nil {
		return 0, err
	}

	staged := 0
	for _, b := range buffers {
		if err := update.SetBuffer(ctx, b.PortID, b.Buffer); err != nil {
			s.rollback(ctx, update)
			return staged, fmt.Errorf("port %d: %w", b.PortID, err)
		}
		staged++
	}

	if err := update.Commit(ctx); err != nil {
		s.rollback(ctx, update)
		return staged, err
	}
	return staged, nil
}

func (s *portBufferService) rollback(ctx context.Context, update repository.BufferUpdate) {
	// The run context may already be cancelled.
	if err := update.Rollback(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("Failed to roll back port buffer update", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
