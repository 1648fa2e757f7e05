package models

import "time"

// DemandCell is an ephemeral grid cell aggregate. It is computed per query
// from live pending trips and available drivers and never persisted.
type DemandCell struct {
	Center       Location `json:"center"`
	EdgeKm       float64  `json:"edge_km"`
	PendingCount int      `json:"pending_count"`
	DriverCount  int      `json:"driver_count"`
	Level        int      `json:"level"`
	Multiplier   float64  `json:"multiplier"`
}

// DemandReport is the response of a demand-zone query. Synthetic is set when
// no live requests existed and a sample set was generated for UI continuity.
type DemandReport struct {
	Cells       []DemandCell `json:"cells"`
	Synthetic   bool         `json:"synthetic"`
	GeneratedAt time.Time    `json:"generated_at"`
}
