package model

// RoundRecord is the single active round. Open and close are committed at
// creation; close is not revealed to clients until the run window ends.
type RoundRecord struct {
	RoundID  int64   `json:"round_id"`
	Phase    Phase   `json:"phase"`
	StartMS  int64   `json:"start_ms"`
	EndMS    int64   `json:"end_ms"`
	Seed     uint32  `json:"seed"`
	Open     float64 `json:"open"`
	Close    float64 `json:"close"`
	GoldMult int     `json:"gold_mult"`
}
