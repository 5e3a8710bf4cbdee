package models

import "time"

// PositionSource names the provider a record was normalized from.
type PositionSource string

const (
	SourceSpire         PositionSource = "spire"
	SourceMarineTraffic PositionSource = "marinetraffic"
)

// VesselPositionRecord is one provider-agnostic observation of a vessel.
// It is built once per ingestion cycle and appended, never updated.
//
// Fields sourced from an optional upstream section live in a group pointer:
// a nil Fix means none of the last-position fields are known, a nil Voyage
// means none of the voyage fields are known.
type VesselPositionRecord struct {
	Source    PositionSource `json:"source"`
	Timestamp time.Time      `json:"timestamp"`

	VesselID *int64  `json:"vesselId,omitempty"`
	MMSI     int64   `json:"mmsi"`
	IMO      *int64  `json:"imo,omitempty"`
	ShipName *string `json:"shipName,omitempty"`

	Fix    *PositionFix `json:"fix,omitempty"`
	Voyage *Voyage      `json:"voyage,omitempty"`

	VesselLength *float64 `json:"vesselLength,omitempty"`
	VesselWidth  *float64 `json:"vesselWidth,omitempty"`

	// MarineTraffic only, computed upstream.
	Fishing     *bool   `json:"fishing,omitempty"`
	AtPort      *bool   `json:"atPort,omitempty"`
	CurrentPort *string `json:"currentPort,omitempty"`
	Status      *string `json:"status,omitempty"`
}

// PositionFix is the last reported position of a vessel and the kinematic
// state reported with it.
type PositionFix struct {
	Time             *time.Time `json:"time,omitempty"`
	Position         Point      `json:"position"`
	Speed            *float64   `json:"speed,omitempty"`
	Course           *float64   `json:"course,omitempty"`
	Heading          *float64   `json:"heading,omitempty"`
	Rot              *float64   `json:"rot,omitempty"`
	NavigationStatus *string    `json:"navigationStatus,omitempty"`
	Accuracy         *string    `json:"accuracy,omitempty"`
	CollectionType   *string    `json:"collectionType,omitempty"`
}

// Voyage is the current voyage declared by the vessel.
type Voyage struct {
	Destination *string    `json:"destination,omitempty"`
	Draught     *float64   `json:"draught,omitempty"`
	ETA         *time.Time `json:"eta,omitempty"`
}

// MarineTrafficPosition is a position as delivered by the MarineTraffic
// collector. A position without both coordinates is malformed.
type MarineTrafficPosition struct {
	VesselID         *int64     `json:"vessel_id,omitempty"`
	MMSI             int64      `json:"mmsi"`
	IMO              *int64     `json:"imo,omitempty"`
	ShipName         *string    `json:"ship_name,omitempty"`
	LastPositionTime *time.Time `json:"last_position_time,omitempty"`
	Latitude         *float64   `json:"latitude"`
	Longitude        *float64   `json:"longitude"`
	Speed            *float64   `json:"speed,omitempty"`
	NavigationStatus *string    `json:"navigation_status,omitempty"`
	Status           *string    `json:"status,omitempty"`
	Fishing          *bool      `json:"fishing,omitempty"`
	AtPort           *bool      `json:"at_port,omitempty"`
	CurrentPort      *string    `json:"current_port,omitempty"`
}
