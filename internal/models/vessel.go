package models

// Vessel is the identity anchor shared by every provider. MMSI is the
// cross-provider join key; rows without one are never read by the pipelines.
type Vessel struct {
	ID              int64   `json:"id"`
	ShipName        *string `json:"shipName,omitempty"`
	IMO             *int64  `json:"imo,omitempty"`
	MMSI            int64   `json:"mmsi"`
	TrackingEnabled bool    `json:"trackingEnabled"`
}

// VesselIDsByMMSI indexes registry vessels by MMSI. Vessels built from the
// seed file carry no registry id and are skipped.
func VesselIDsByMMSI(vessels []Vessel) map[int64]int64 {
	ids := make(map[int64]int64, len(vessels))
	for _, v := range vessels {
		if v.ID == 0 {
			continue
		}
		ids[v.MMSI] = v.ID
	}
	return ids
}

// MMSIs returns the MMSI of every vessel, in input order.
func MMSIs(vessels []Vessel) []int64 {
	out := make([]int64, 0, len(vessels))
	for _, v := range vessels {
		out = append(out, v.MMSI)
	}
	return out
}
