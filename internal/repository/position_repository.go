package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/seawatch/internal/database"
	"github.com/stwalsh4118/seawatch/internal/models"
)

// Maximum number of positions returned by ListRecent.
const maxRecentPositions = 500

// PositionRepository defines the interface for the append-only position log.
type PositionRepository interface {
	// AppendPositions inserts all records in a single transaction and
	// returns the number inserted. Nothing is written when it fails.
	AppendPositions(ctx context.Context, records []models.VesselPositionRecord, asOf time.Time) (int, error)

	// ListRecent returns the latest positions recorded for a vessel, newest
	// first. Geometries are returned in WGS84.
	ListRecent(ctx context.Context, mmsi int64, limit int) ([]models.VesselPositionRecord, error)
}

// positionRepository is the concrete implementation of PositionRepository.
type positionRepository struct {
	db   *database.Database
	srid int
}

// NewPositionRepository creates a PositionRepository that stores positions
// in the given spatial reference.
func NewPositionRepository(db *database.Database, srid int) PositionRepository {
	return &positionRepository{
		db:   db,
		srid: srid,
	}
}

// Positions are written in the record's source SRID and reprojected by
// PostGIS. ST_* functions are strict, so a NULL GeoJSON yields a NULL point.
const insertPositionSQL = `
	INSERT INTO vessel_positions (
		source,
		"timestamp",
		ingested_at,
		vessel_id,
		mmsi,
		imo,
		ship_name,
		last_position_time,
		position,
		speed,
		course,
		heading,
		rot,
		navigation_status,
		accuracy,
		position_sensors,
		vessel_length,
		vessel_width,
		voyage_destination,
		voyage_draught,
		voyage_eta,
		fishing,
		at_port,
		port_name,
		status,
		has_voyage
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		ST_Transform(ST_SetSRID(ST_GeomFromGeoJSON($9::text), $10::integer), $11::integer),
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
	)
`

func (r *positionRepository) AppendPositions(ctx context.Context, records []models.VesselPositionRecord, asOf time.Time) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for i, rec := range records {
		args, err := positionArgs(rec, asOf, r.srid)
		if err != nil {
			return 0, fmt.Errorf("%w: position %d (mmsi %d): %w", ErrPersistence, i, rec.MMSI, err)
		}
		batch.Queue(insertPositionSQL, args...)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin position transaction: %w", ErrPersistence, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("%w: failed to insert position %d (mmsi %d): %w",
				ErrPersistence, i, records[i].MMSI, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("%w: failed to close position batch: %w", ErrPersistence, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: failed to commit positions: %w", ErrPersistence, err)
	}

	return len(records), nil
}

// positionArgs flattens a record into the parameters of insertPositionSQL.
// Fields of an absent Fix or Voyage are all written as NULL. has_voyage
// records whether the section was present, so an empty Voyage survives.
func positionArgs(rec models.VesselPositionRecord, asOf time.Time, targetSRID int) ([]any, error) {
	var (
		lastPositionTime *time.Time
		position         *string
		speed            *float64
		course           *float64
		heading          *float64
		rot              *float64
		navStatus        *string
		accuracy         *string
		sensors          *string
	)
	sourceSRID := models.WGS84SRID
	if fix := rec.Fix; fix != nil {
		geo, err := fix.Position.Value()
		if err != nil {
			return nil, err
		}
		s := geo.(string)
		position = &s
		if fix.Position.SRID != 0 {
			sourceSRID = fix.Position.SRID
		}
		lastPositionTime = fix.Time
		speed, course, heading, rot = fix.Speed, fix.Course, fix.Heading, fix.Rot
		navStatus, accuracy, sensors = fix.NavigationStatus, fix.Accuracy, fix.CollectionType
	}

	var (
		destination *string
		draught     *float64
		eta         *time.Time
	)
	if v := rec.Voyage; v != nil {
		destination, draught, eta = v.Destination, v.Draught, v.ETA
	}

	return []any{
		string(rec.Source),
		rec.Timestamp,
		asOf,
		rec.VesselID,
		rec.MMSI,
		rec.IMO,
		rec.ShipName,
		lastPositionTime,
		position,
		sourceSRID,
		targetSRID,
		speed,
		course,
		heading,
		rot,
		navStatus,
		accuracy,
		sensors,
		rec.VesselLength,
		rec.VesselWidth,
		destination,
		draught,
		eta,
		rec.Fishing,
		rec.AtPort,
		rec.CurrentPort,
		rec.Status,
		rec.Voyage != nil,
	}, nil
}

func (r *positionRepository) ListRecent(ctx context.Context, mmsi int64, limit int) ([]models.VesselPositionRecord, error) {
	if limit <= 0 || limit > maxRecentPositions {
		limit = maxRecentPositions
	}

	query := `
		SELECT
			source,
			"timestamp",
			vessel_id,
			mmsi,
			imo,
			ship_name,
			last_position_time,
			ST_AsGeoJSON(ST_Transform(position, 4326)) AS position,
			speed,
			course,
			heading,
			rot,
			navigation_status,
			accuracy,
			position_sensors,
			vessel_length,
			vessel_width,
			voyage_destination,
			voyage_draught,
			voyage_eta,
			fishing,
			at_port,
			port_name,
			status,
			has_voyage
		FROM vessel_positions
		WHERE mmsi = $1
		ORDER BY "timestamp" DESC, id DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, mmsi, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query positions for mmsi %d: %w", ErrPersistence, mmsi, err)
	}
	defer rows.Close()

	results := []models.VesselPositionRecord{}
	for rows.Next() {
		var (
			rec     models.VesselPositionRecord
			source  string
			geoJSON   *string
			fix       models.PositionFix
			voyage    models.Voyage
			hasVoyage bool
		)

		err := rows.Scan(
			&source,
			&rec.Timestamp,
			&rec.VesselID,
			&rec.MMSI,
			&rec.IMO,
			&rec.ShipName,
			&fix.Time,
			&geoJSON,
			&fix.Speed,
			&fix.Course,
			&fix.Heading,
			&fix.Rot,
			&fix.NavigationStatus,
			&fix.Accuracy,
			&fix.CollectionType,
			&rec.VesselLength,
			&rec.VesselWidth,
			&voyage.Destination,
			&voyage.Draught,
			&voyage.ETA,
			&rec.Fishing,
			&rec.AtPort,
			&rec.CurrentPort,
			&rec.Status,
			&hasVoyage,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan position row: %w", ErrPersistence, err)
		}
		rec.Source = models.PositionSource(source)

		// The position column is written together with the rest of the fix.
		if geoJSON != nil {
			if err := fix.Position.Scan(*geoJSON); err != nil {
				return nil, fmt.Errorf("%w: failed to parse position for mmsi %d: %w", ErrPersistence, mmsi, err)
			}
			rec.Fix = &fix
		}
		if hasVoyage {
			rec.Voyage = &voyage
		}

		results = append(results, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating position rows: %w", ErrPersistence, err)
	}

	return results, nil
}
