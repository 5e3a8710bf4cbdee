package models

// Port is a static facility with a representative point. Its geodesic
// buffer lives in the store and is written through PortBuffer.
type Port struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Locode    *string `json:"locode,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PortBuffer is one computed buffer waiting to be written for a port.
type PortBuffer struct {
	PortID int64
	Buffer Polygon
}
