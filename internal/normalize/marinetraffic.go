// Package normalize maps provider payloads onto the canonical
// VesselPositionRecord.
package normalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/seawatch/internal/models"
)

// ErrMalformedPayload reports a provider payload missing the fields needed
// to identify the vessel or place its fix.
var ErrMalformedPayload = errors.New("malformed provider payload")

// FromMarineTraffic copies a MarineTraffic position onto the canonical
// record. Fix is always set and no voyage is ever reported. A position
// missing either coordinate is rejected with ErrMalformedPayload.
func FromMarineTraffic(pos models.MarineTrafficPosition, timestamp time.Time) (models.VesselPositionRecord, error) {
	if pos.Latitude == nil || pos.Longitude == nil {
		return models.VesselPositionRecord{}, fmt.Errorf("%w: marinetraffic position has no coordinates for mmsi %d",
			ErrMalformedPayload, pos.MMSI)
	}

	return models.VesselPositionRecord{
		Source:    models.SourceMarineTraffic,
		Timestamp: timestamp,
		VesselID:  pos.VesselID,
		MMSI:      pos.MMSI,
		IMO:       pos.IMO,
		ShipName:  pos.ShipName,
		Fix: &models.PositionFix{
			Time:             pos.LastPositionTime,
			Position:         models.NewWGS84Point(*pos.Longitude, *pos.Latitude),
			Speed:            pos.Speed,
			NavigationStatus: pos.NavigationStatus,
		},
		Fishing:     pos.Fishing,
		AtPort:      pos.AtPort,
		CurrentPort: pos.CurrentPort,
		Status:      pos.Status,
	}, nil
}

// MarineTraffic normalizes a batch of MarineTraffic positions. It stops at
// the first malformed position.
func MarineTraffic(positions []models.MarineTrafficPosition, timestamp time.Time) ([]models.VesselPositionRecord, error) {
	records := make([]models.VesselPositionRecord, 0, len(positions))
	for i, pos := range positions {
		rec, err := FromMarineTraffic(pos, timestamp)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
