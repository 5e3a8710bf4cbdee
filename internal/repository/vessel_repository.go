package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/seawatch/internal/database"
	"github.com/stwalsh4118/seawatch/internal/models"
)

// seedSeparator is the field separator of the vessel seed file.
const seedSeparator = ';'

// VesselRepository defines the interface for vessel registry access.
type VesselRepository interface {
	// ListTrackedVessels returns vessels flagged for position tracking that
	// carry an MMSI, ordered by id.
	ListTrackedVessels(ctx context.Context) ([]models.Vessel, error)

	// ListAllVessels returns every registry vessel that carries an MMSI,
	// ordered by id.
	ListAllVessels(ctx context.Context) ([]models.Vessel, error)

	// LoadVesselSeedList reads the static seed file. Vessels built from it
	// carry only an MMSI.
	LoadVesselSeedList(ctx context.Context) ([]models.Vessel, error)
}

// vesselRepository is the concrete implementation of VesselRepository.
type vesselRepository struct {
	db       *database.Database
	seedFile string
}

// NewVesselRepository creates a new instance of VesselRepository.
func NewVesselRepository(db *database.Database, seedFile string) VesselRepository {
	return &vesselRepository{
		db:       db,
		seedFile: seedFile,
	}
}

const vesselColumns = `id, ship_name, imo, mmsi, tracking_enabled`

func (r *vesselRepository) ListTrackedVessels(ctx context.Context) ([]models.Vessel, error) {
	query := `
		SELECT ` + vesselColumns + `
		FROM vessels
		WHERE tracking_enabled AND mmsi IS NOT NULL
		ORDER BY id
	`
	return r.queryVessels(ctx, query)
}

func (r *vesselRepository) ListAllVessels(ctx context.Context) ([]models.Vessel, error) {
	query := `
		SELECT ` + vesselColumns + `
		FROM vessels
		WHERE mmsi IS NOT NULL
		ORDER BY id
	`
	return r.queryVessels(ctx, query)
}

func (r *vesselRepository) queryVessels(ctx context.Context, query string) ([]models.Vessel, error) {
	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query vessels: %w", ErrPersistence, err)
	}

	vessels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Vessel, error) {
		var v models.Vessel
		err := row.Scan(&v.ID, &v.ShipName, &v.IMO, &v.MMSI, &v.TrackingEnabled)
		return v, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan vessel rows: %w", ErrPersistence, err)
	}

	if vessels == nil {
		vessels = []models.Vessel{}
	}
	return vessels, nil
}

func (r *vesselRepository) LoadVesselSeedList(ctx context.Context) ([]models.Vessel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(r.seedFile)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open vessel seed file: %w", ErrPersistence, err)
	}
	defer f.Close()

	vessels, err := ReadVesselSeedList(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, r.seedFile, err)
	}
	return vessels, nil
}

// ReadVesselSeedList parses a ';'-separated seed list with a header row and
// an "mmsi" column. Rows with an empty mmsi cell are skipped.
func ReadVesselSeedList(r io.Reader) ([]models.Vessel, error) {
	reader := csv.NewReader(r)
	reader.Comma = seedSeparator
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("seed list is empty")
		}
		return nil, fmt.Errorf("failed to read seed list header: %w", err)
	}

	col := -1
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		if strings.EqualFold(strings.TrimSpace(name), "mmsi") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("seed list has no mmsi column")
	}

	vessels := []models.Vessel{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read seed list line %d: %w", line, err)
		}
		if col >= len(record) {
			continue
		}

		cell := strings.TrimSpace(record[col])
		if cell == "" {
			continue
		}
		mmsi, err := strconv.ParseInt(cell, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mmsi %q on seed list line %d: %w", cell, line, err)
		}
		vessels = append(vessels, models.Vessel{MMSI: mmsi})
	}

	return vessels, nil
}
