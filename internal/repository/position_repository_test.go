package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/seawatch/internal/models"
)

func ptr[T any](v T) *T { return &v }

// Indexes into the parameter list built by positionArgs.
const (
	argSource = iota
	argTimestamp
	argIngestedAt
	argVesselID
	argMMSI
	argIMO
	argShipName
	argLastPositionTime
	argPosition
	argSourceSRID
	argTargetSRID
	argSpeed
	argCourse
	argHeading
	argRot
	argNavStatus
	argAccuracy
	argSensors
	argLength
	argWidth
	argDestination
	argDraught
	argETA
	argFishing
	argAtPort
	argPortName
	argStatus
	argHasVoyage
	argCount
)

var cycle = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestPositionArgs_NoSections(t *testing.T) {
	rec := models.VesselPositionRecord{
		Source:       models.SourceSpire,
		Timestamp:    cycle,
		MMSI:         2,
		IMO:          ptr(int64(1)),
		ShipName:     ptr("X"),
		VesselLength: ptr(10.0),
		VesselWidth:  ptr(50.0),
	}

	args, err := positionArgs(rec, cycle, 3857)
	require.NoError(t, err)
	require.Len(t, args, argCount)

	assert.Equal(t, "spire", args[argSource])
	assert.Equal(t, cycle, args[argIngestedAt])
	assert.Equal(t, int64(2), args[argMMSI])
	assert.Equal(t, 3857, args[argTargetSRID])
	assert.Equal(t, models.WGS84SRID, args[argSourceSRID])
	assert.Equal(t, ptr(10.0), args[argLength])
	assert.Equal(t, ptr(50.0), args[argWidth])

	for _, i := range []int{
		argLastPositionTime, argPosition, argSpeed, argCourse, argHeading, argRot,
		argNavStatus, argAccuracy, argSensors, argDestination, argDraught, argETA,
		argFishing, argAtPort, argPortName, argStatus, argVesselID,
	} {
		assert.Nil(t, args[i], "argument %d should be NULL", i)
	}
	assert.Equal(t, false, args[argHasVoyage])
}

func TestPositionArgs_WithSections(t *testing.T) {
	fixTime := cycle.Add(-2 * time.Minute)
	eta := cycle.Add(18 * time.Hour)
	rec := models.VesselPositionRecord{
		Source:    models.SourceSpire,
		Timestamp: cycle,
		VesselID:  ptr(int64(7)),
		MMSI:      227000001,
		Fix: &models.PositionFix{
			Time:             &fixTime,
			Position:         models.NewWGS84Point(-4.7, 48.1),
			Speed:            ptr(9.5),
			Heading:          ptr(270.0),
			NavigationStatus: ptr("UNDER_WAY_USING_ENGINE"),
			CollectionType:   ptr("SATELLITE"),
		},
		Voyage: &models.Voyage{Destination: ptr("LORIENT"), ETA: &eta},
	}

	args, err := positionArgs(rec, cycle, models.WGS84SRID)
	require.NoError(t, err)

	position, ok := args[argPosition].(*string)
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"Point","coordinates":[-4.7,48.1]}`, *position)
	assert.Equal(t, &fixTime, args[argLastPositionTime])
	assert.Equal(t, ptr(9.5), args[argSpeed])
	assert.Equal(t, ptr(270.0), args[argHeading])
	assert.Equal(t, ptr("SATELLITE"), args[argSensors])
	assert.Nil(t, args[argCourse])
	assert.Equal(t, ptr("LORIENT"), args[argDestination])
	assert.Equal(t, &eta, args[argETA])
	assert.Nil(t, args[argDraught])
	assert.Equal(t, ptr(int64(7)), args[argVesselID])
	assert.Equal(t, true, args[argHasVoyage])
}

func TestPositionArgs_EmptyVoyage(t *testing.T) {
	rec := models.VesselPositionRecord{
		Source:    models.SourceSpire,
		Timestamp: cycle,
		MMSI:      5,
		Voyage:    &models.Voyage{},
	}

	args, err := positionArgs(rec, cycle, models.WGS84SRID)
	require.NoError(t, err)

	assert.Nil(t, args[argDestination])
	assert.Nil(t, args[argDraught])
	assert.Nil(t, args[argETA])
	assert.Equal(t, true, args[argHasVoyage])
}

func TestPositionArgs_MarineTraffic(t *testing.T) {
	rec := models.VesselPositionRecord{
		Source:    models.SourceMarineTraffic,
		Timestamp: cycle,
		MMSI:      3,
		Fix: &models.PositionFix{
			Position: models.Point{Lon: 1, Lat: 2, SRID: 3857},
		},
		Fishing:     ptr(true),
		AtPort:      ptr(false),
		CurrentPort: ptr("CONCARNEAU"),
		Status:      ptr("Fishing"),
	}

	args, err := positionArgs(rec, cycle, models.WGS84SRID)
	require.NoError(t, err)

	assert.Equal(t, "marinetraffic", args[argSource])
	assert.Equal(t, 3857, args[argSourceSRID])
	assert.Equal(t, ptr(true), args[argFishing])
	assert.Equal(t, ptr("CONCARNEAU"), args[argPortName])
	assert.Equal(t, ptr("Fishing"), args[argStatus])
}

func TestAppendPositions_Empty(t *testing.T) {
	repo := NewPositionRepository(nil, models.WGS84SRID)

	n, err := repo.AppendPositions(context.Background(), nil, cycle)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPositionRepository_Integration(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	const mmsi = int64(990000101)
	vesselID := insertTestVessel(t, db, "APPEND", mmsi, true)
	deletePositionsForMMSI(t, db, mmsi)

	repo := NewPositionRepository(db, models.WGS84SRID)

	fixTime := cycle.Add(-time.Minute)
	records := []models.VesselPositionRecord{
		{
			Source:       models.SourceSpire,
			Timestamp:    cycle,
			VesselID:     &vesselID,
			MMSI:         mmsi,
			VesselLength: ptr(10.0),
			VesselWidth:  ptr(50.0),
		},
		{
			Source:    models.SourceMarineTraffic,
			Timestamp: cycle.Add(time.Second),
			VesselID:  &vesselID,
			MMSI:      mmsi,
			Fix: &models.PositionFix{
				Time:     &fixTime,
				Position: models.NewWGS84Point(-4.48, 48.39),
				Speed:    ptr(3.2),
			},
			AtPort: ptr(true),
		},
	}

	n, err := repo.AppendPositions(ctx, records, cycle)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.ListRecent(ctx, mmsi, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	mt := got[0]
	assert.Equal(t, models.SourceMarineTraffic, mt.Source)
	require.NotNil(t, mt.Fix)
	assert.InDelta(t, -4.48, mt.Fix.Position.Lon, 1e-9)
	assert.InDelta(t, 48.39, mt.Fix.Position.Lat, 1e-9)
	assert.Equal(t, 3.2, *mt.Fix.Speed)
	assert.True(t, *mt.AtPort)
	assert.Nil(t, mt.Voyage)

	spire := got[1]
	assert.Equal(t, models.SourceSpire, spire.Source)
	assert.Nil(t, spire.Fix)
	assert.Nil(t, spire.Voyage)
	assert.Equal(t, 10.0, *spire.VesselLength)
	assert.Equal(t, 50.0, *spire.VesselWidth)
}

func TestPositionRepository_EmptyVoyageRoundTrip(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	const mmsi = int64(990000103)
	deletePositionsForMMSI(t, db, mmsi)

	repo := NewPositionRepository(db, models.WGS84SRID)

	records := []models.VesselPositionRecord{
		{Source: models.SourceSpire, Timestamp: cycle, MMSI: mmsi},
		{Source: models.SourceSpire, Timestamp: cycle.Add(time.Second), MMSI: mmsi, Voyage: &models.Voyage{}},
	}

	_, err := repo.AppendPositions(ctx, records, cycle)
	require.NoError(t, err)

	got, err := repo.ListRecent(ctx, mmsi, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].Voyage, "an empty voyage section reads back as present")
	assert.Equal(t, models.Voyage{}, *got[0].Voyage)
	assert.Nil(t, got[1].Voyage)
}

func TestAppendPositions_AllOrNothing(t *testing.T) {
	db := setupTestDatabase(t)
	ctx := context.Background()

	const mmsi = int64(990000102)
	deletePositionsForMMSI(t, db, mmsi)

	repo := NewPositionRepository(db, models.WGS84SRID)

	// The second record references a vessel id that does not exist.
	records := []models.VesselPositionRecord{
		{Source: models.SourceSpire, Timestamp: cycle, MMSI: mmsi},
		{Source: models.SourceSpire, Timestamp: cycle, MMSI: mmsi, VesselID: ptr(int64(-1))},
	}

	n, err := repo.AppendPositions(ctx, records, cycle)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Zero(t, n)

	got, err := repo.ListRecent(ctx, mmsi, 10)
	require.NoError(t, err)
	assert.Empty(t, got, "no record of a failed batch should be visible")
}
