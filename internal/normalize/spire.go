package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stwalsh4118/seawatch/internal/models"
)

// SpireVessel is one vessel node of the Spire vessels API. Each section is
// optional upstream; a nil pointer means the provider sent null or omitted it.
type SpireVessel struct {
	StaticData         *SpireStaticData     `json:"staticData"`
	LastPositionUpdate *SpirePositionUpdate `json:"lastPositionUpdate"`
	CurrentVoyage      *SpireVoyage         `json:"currentVoyage"`
}

// SpireStaticData holds vessel identity and dimensions.
type SpireStaticData struct {
	Name       *string          `json:"name"`
	IMO        *int64           `json:"imo"`
	MMSI       *int64           `json:"mmsi"`
	Dimensions *SpireDimensions `json:"dimensions"`
}

// SpireDimensions as labelled by the provider.
type SpireDimensions struct {
	Width  *float64 `json:"width"`
	Length *float64 `json:"length"`
}

// SpirePositionUpdate is the last AIS fix Spire holds for the vessel.
type SpirePositionUpdate struct {
	Timestamp          *SpireTime `json:"timestamp"`
	Latitude           *float64   `json:"latitude"`
	Longitude          *float64   `json:"longitude"`
	Speed              *float64   `json:"speed"`
	Course             *float64   `json:"course"`
	Heading            *float64   `json:"heading"`
	Rot                *float64   `json:"rot"`
	NavigationalStatus *string    `json:"navigationalStatus"`
	Accuracy           *string    `json:"accuracy"`
	CollectionType     *string    `json:"collectionType"`
}

// SpireVoyage is the voyage currently declared by the vessel.
type SpireVoyage struct {
	Destination *string    `json:"destination"`
	Draught     *float64   `json:"draught"`
	ETA         *SpireTime `json:"eta"`
}

// spireTimeLayouts are tried in order. Go accepts fractional seconds after
// the seconds field even when the layout omits them.
var spireTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05Z07",
	"2006-01-02 15:04:05",
}

// SpireTime is a provider timestamp. Spire does not always send RFC 3339:
// zone-less values and a space date/time separator both occur. A value
// without a zone is taken as UTC, and every value is stored in UTC.
type SpireTime struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *SpireTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("spire time: %w", err)
	}

	for _, layout := range spireTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("spire time: unrecognized format %q", s)
}

func (t *SpireTime) value() *time.Time {
	if t == nil {
		return nil
	}
	v := t.Time
	return &v
}

// DecodeSpire decodes one raw Spire vessel node.
func DecodeSpire(raw []byte) (SpireVessel, error) {
	var v SpireVessel
	if err := json.Unmarshal(raw, &v); err != nil {
		return SpireVessel{}, fmt.Errorf("%w: decode spire vessel: %w", ErrMalformedPayload, err)
	}
	return v, nil
}

// Spire decodes and normalizes one raw Spire vessel node.
func Spire(raw []byte, vesselID *int64, timestamp time.Time) (models.VesselPositionRecord, error) {
	v, err := DecodeSpire(raw)
	if err != nil {
		return models.VesselPositionRecord{}, err
	}
	return FromSpire(v, vesselID, timestamp)
}

// FromSpire maps a decoded Spire vessel onto the canonical record.
//
// The record's VesselLength comes from dimensions.width and VesselWidth from
// dimensions.length. The labels look swapped upstream; they are kept as the
// provider contract defines them.
func FromSpire(v SpireVessel, vesselID *int64, timestamp time.Time) (models.VesselPositionRecord, error) {
	static := v.StaticData
	if static == nil {
		return models.VesselPositionRecord{}, fmt.Errorf("%w: staticData section is missing", ErrMalformedPayload)
	}
	if static.MMSI == nil {
		return models.VesselPositionRecord{}, fmt.Errorf("%w: staticData.mmsi is missing", ErrMalformedPayload)
	}
	if static.Dimensions == nil {
		return models.VesselPositionRecord{}, fmt.Errorf("%w: staticData.dimensions is missing for mmsi %d",
			ErrMalformedPayload, *static.MMSI)
	}

	fix, err := spireFix(v.LastPositionUpdate)
	if err != nil {
		return models.VesselPositionRecord{}, fmt.Errorf("%w for mmsi %d", err, *static.MMSI)
	}

	return models.VesselPositionRecord{
		Source:       models.SourceSpire,
		Timestamp:    timestamp,
		VesselID:     vesselID,
		MMSI:         *static.MMSI,
		IMO:          static.IMO,
		ShipName:     static.Name,
		Fix:          fix,
		Voyage:       spireVoyage(v.CurrentVoyage),
		VesselLength: static.Dimensions.Width,
		VesselWidth:  static.Dimensions.Length,
	}, nil
}

func spireFix(u *SpirePositionUpdate) (*models.PositionFix, error) {
	if u == nil {
		return nil, nil
	}
	if u.Latitude == nil || u.Longitude == nil {
		return nil, fmt.Errorf("%w: lastPositionUpdate has no coordinates", ErrMalformedPayload)
	}

	return &models.PositionFix{
		Time:             u.Timestamp.value(),
		Position:         models.NewWGS84Point(*u.Longitude, *u.Latitude),
		Speed:            u.Speed,
		Course:           u.Course,
		Heading:          u.Heading,
		Rot:              u.Rot,
		NavigationStatus: u.NavigationalStatus,
		Accuracy:         u.Accuracy,
		CollectionType:   u.CollectionType,
	}, nil
}

func spireVoyage(cv *SpireVoyage) *models.Voyage {
	if cv == nil {
		return nil
	}
	return &models.Voyage{
		Destination: cv.Destination,
		Draught:     cv.Draught,
		ETA:         cv.ETA.value(),
	}
}
