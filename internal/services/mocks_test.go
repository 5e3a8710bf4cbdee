package services

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stwalsh4118/seawatch/internal/models"
	"github.com/stwalsh4118/seawatch/internal/repository"
)

func ptr[T any](v T) *T { return &v }

// MockPortRepository is a mock implementation of PortRepository for testing
type MockPortRepository struct {
	mock.Mock
}

func (m *MockPortRepository) ListPortsMissingBuffer(ctx context.Context) ([]models.Port, error) {
	args := m.Called(ctx)
	ports, _ := args.Get(0).([]models.Port)
	return ports, args.Error(1)
}

func (m *MockPortRepository) BeginBufferUpdate(ctx context.Context) (repository.BufferUpdate, error) {
	args := m.Called(ctx)
	update, _ := args.Get(0).(repository.BufferUpdate)
	return update, args.Error(1)
}

// MockBufferUpdate is a mock implementation of BufferUpdate for testing
type MockBufferUpdate struct {
	mock.Mock
}

func (m *MockBufferUpdate) SetBuffer(ctx context.Context, portID int64, buffer models.Polygon) error {
	return m.Called(ctx, portID, buffer).Error(0)
}

func (m *MockBufferUpdate) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockBufferUpdate) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockVesselRepository is a mock implementation of VesselRepository for testing
type MockVesselRepository struct {
	mock.Mock
}

func (m *MockVesselRepository) ListTrackedVessels(ctx context.Context) ([]models.Vessel, error) {
	args := m.Called(ctx)
	vessels, _ := args.Get(0).([]models.Vessel)
	return vessels, args.Error(1)
}

func (m *MockVesselRepository) ListAllVessels(ctx context.Context) ([]models.Vessel, error) {
	args := m.Called(ctx)
	vessels, _ := args.Get(0).([]models.Vessel)
	return vessels, args.Error(1)
}

func (m *MockVesselRepository) LoadVesselSeedList(ctx context.Context) ([]models.Vessel, error) {
	args := m.Called(ctx)
	vessels, _ := args.Get(0).([]models.Vessel)
	return vessels, args.Error(1)
}

// MockPositionRepository is a mock implementation of PositionRepository for testing
type MockPositionRepository struct {
	mock.Mock
}

func (m *MockPositionRepository) AppendPositions(ctx context.Context, records []models.VesselPositionRecord, asOf time.Time) (int, error) {
	args := m.Called(ctx, records, asOf)
	return args.Int(0), args.Error(1)
}

func (m *MockPositionRepository) ListRecent(ctx context.Context, mmsi int64, limit int) ([]models.VesselPositionRecord, error) {
	args := m.Called(ctx, mmsi, limit)
	records, _ := args.Get(0).([]models.VesselPositionRecord)
	return records, args.Error(1)
}

// MockSpireFetcher is a mock implementation of SpireFetcher for testing
type MockSpireFetcher struct {
	mock.Mock
}

func (m *MockSpireFetcher) FetchVessels(ctx context.Context, mmsis []int64) ([]json.RawMessage, error) {
	args := m.Called(ctx, mmsis)
	raw, _ := args.Get(0).([]json.RawMessage)
	return raw, args.Error(1)
}

// MockMarineTrafficFetcher is a mock implementation of MarineTrafficFetcher for testing
type MockMarineTrafficFetcher struct {
	mock.Mock
}

func (m *MockMarineTrafficFetcher) FetchPositions(ctx context.Context, vessels []models.Vessel) ([]models.MarineTrafficPosition, error) {
	args := m.Called(ctx, vessels)
	positions, _ := args.Get(0).([]models.MarineTrafficPosition)
	return positions, args.Error(1)
}

// memoryPortStore is an in-memory PortRepository whose buffer updates only
// become visible on commit.
type memoryPortStore struct {
	mu      sync.Mutex
	ports   map[int64]models.Port
	buffers map[int64]models.Polygon
	commits int
}

func newMemoryPortStore(ports ...models.Port) *memoryPortStore {
	s := &memoryPortStore{
		ports:   make(map[int64]models.Port, len(ports)),
		buffers: make(map[int64]models.Polygon, len(ports)),
	}
	for _, p := range ports {
		s.ports[p.ID] = p
	}
	return s
}

func (s *memoryPortStore) ListPortsMissingBuffer(_ context.Context) ([]models.Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Port{}
	for _, p := range s.ports {
		if _, ok := s.buffers[p.ID]; !ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryPortStore) BeginBufferUpdate(_ context.Context) (repository.BufferUpdate, error) {
	return &memoryBufferUpdate{store: s, staged: map[int64]models.Polygon{}}, nil
}

type memoryBufferUpdate struct {
	store  *memoryPortStore
	staged map[int64]models.Polygon
	done   bool
}

func (u *memoryBufferUpdate) SetBuffer(_ context.Context, portID int64, buffer models.Polygon) error {
	u.staged[portID] = buffer
	return nil
}

func (u *memoryBufferUpdate) Commit(_ context.Context) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for id, buf := range u.staged {
		u.store.buffers[id] = buf
	}
	u.store.commits++
	u.done = true
	return nil
}

func (u *memoryBufferUpdate) Rollback(_ context.Context) error {
	u.staged = nil
	u.done = true
	return nil
}
