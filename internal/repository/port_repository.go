package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/seawatch/internal/database"
	"github.com/stwalsh4118/seawatch/internal/models"
)

// PortRepository defines the interface for port data access operations.
type PortRepository interface {
	// ListPortsMissingBuffer returns every port whose geometry buffer has not
	// been computed yet, ordered by id.
	ListPortsMissingBuffer(ctx context.Context) ([]models.Port, error)

	// BeginBufferUpdate opens a unit of work in which buffer writes are
	// staged until Commit.
	BeginBufferUpdate(ctx context.Context) (BufferUpdate, error)
}

// BufferUpdate stages port buffer writes inside one transaction.
// After Commit or Rollback the update can no longer be used.
type BufferUpdate interface {
	SetBuffer(ctx context.Context, portID int64, buffer models.Polygon) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// portRepository is the concrete implementation of PortRepository.
type portRepository struct {
	db   *database.Database
	srid int
}

// NewPortRepository creates a PortRepository that stores buffers in the
// given spatial reference.
func NewPortRepository(db *database.Database, srid int) PortRepository {
	return &portRepository{
		db:   db,
		srid: srid,
	}
}

func (r *portRepository) ListPortsMissingBuffer(ctx context.Context) ([]models.Port, error) {
	query := `
		SELECT id, name, locode, latitude, longitude
		FROM ports
		WHERE geometry_buffer IS NULL
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query ports missing a buffer: %w", ErrPersistence, err)
	}

	ports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Port, error) {
		var p models.Port
		err := row.Scan(&p.ID, &p.Name, &p.Locode, &p.Latitude, &p.Longitude)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan port rows: %w", ErrPersistence, err)
	}

	if ports == nil {
		ports = []models.Port{}
	}
	return ports, nil
}

func (r *portRepository) BeginBufferUpdate(ctx context.Context) (BufferUpdate, error) {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin buffer update: %w", ErrPersistence, err)
	}
	return &bufferUpdate{tx: tx, srid: r.srid}, nil
}

type bufferUpdate struct {
	tx   pgx.Tx
	srid int
}

func (u *bufferUpdate) SetBuffer(ctx context.Context, portID int64, buffer models.Polygon) error {
	geoJSON, err := buffer.Value()
	if err != nil {
		return fmt.Errorf("%w: port %d: %w", ErrPersistence, portID, err)
	}
	if geoJSON == nil {
		return fmt.Errorf("%w: port %d: empty buffer", ErrPersistence, portID)
	}

	sourceSRID := buffer.SRID
	if sourceSRID == 0 {
		sourceSRID = models.WGS84SRID
	}

	query := `
		UPDATE ports
		SET geometry_buffer = ST_Transform(ST_SetSRID(ST_GeomFromGeoJSON($1::text), $2::integer), $3::integer),
			updated_at = now()
		WHERE id = $4
	`

	tag, err := u.tx.Exec(ctx, query, geoJSON, sourceSRID, u.srid, portID)
	if err != nil {
		return fmt.Errorf("%w: failed to stage buffer for port %d: %w", ErrPersistence, portID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: port %d not found", ErrPersistence, portID)
	}
	return nil
}

func (u *bufferUpdate) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit buffer update: %w", ErrPersistence, err)
	}
	return nil
}

// Rollback discards staged writes. Rolling back a finished update is a no-op.
func (u *bufferUpdate) Rollback(ctx context.Context) error {
	if err := u.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("%w: failed to roll back buffer update: %w", ErrPersistence, err)
	}
	return nil
}
