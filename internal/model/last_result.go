package model

// LastResult is the most recent settlement outcome for a user. It is
// overwritten on every settlement of that user's bet and holds no history.
type LastResult struct {
	RoundID   int64   `json:"round_id"`
	Win       bool    `json:"win"`
	Payout    float64 `json:"payout"`
	GoldMult  int     `json:"gold_mult"`
	Open      float64 `json:"open"`
	Close     float64 `json:"close"`
	Side      Side    `json:"side"`
	Amount    float64 `json:"amount"`
	Insurance bool    `json:"insurance"`
}
