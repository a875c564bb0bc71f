package model

type HistoryEntry struct {
	RoundID  int64   `json:"round_id"`
	Open     float64 `json:"open"`
	Close    float64 `json:"close"`
	GoldMult int     `json:"gold_mult"`
	TsMS     int64   `json:"ts_ms"`
}
