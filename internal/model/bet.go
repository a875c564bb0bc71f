package model

type Bet struct {
	Side      Side    `json:"side"`
	Amount    float64 `json:"amount"`
	Insurance bool    `json:"insurance"`
}
