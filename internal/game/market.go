package game

import "math"

// The market model is a pure function of the round seed: the outcome and
// the bonus multiplier are committed the moment the seed is drawn, and the
// live price path is derived cosmetics on top of it.

const tau = 2 * math.Pi

// GoldMultiplier returns the bonus multiplier for a seed: 1..7 on one seed
// in a hundred, 0 otherwise. Bonus event and magnitude come from the same
// seed, there is no second draw.
func GoldMultiplier(seed uint32) int {
	if seed%100 != 0 {
		return 0
	}

	return 1 + int(seed%7)
}

// OpenClose derives the committed open and close prices from the seed. The
// close moves within [-2, 2) of the base and is rounded to 3 decimals for
// display stability.
func OpenClose(seed uint32, base float64) (float64, float64) {
	x := float64(seed%2000) / 1000.0
	delta := (x - 1.0) * 2.0

	return base, round3(base + delta)
}

// PricePath interpolates open to close across n points and layers three
// seeded sine components on top. The endpoints are forced back to the
// committed prices after the noise is applied; settlement never reads the
// path, only open and close.
func PricePath(seed uint32, open, close float64, n int) []float64 {
	if n < 2 {
		return []float64{open}
	}

	amp := math.Max(0.05, math.Abs(close-open)*0.35+0.08)

	a := float64(seed%997) / 997.0
	b := float64(seed%389) / 389.0
	c := float64(seed%127) / 127.0

	pts := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		base := open + (close-open)*t

		w1 := math.Sin(t*tau*(2.0+6.0*a) + float64(seed%1000)*0.001)
		w2 := math.Sin(t*tau*(5.0+9.0*b) + float64(seed%777)*0.002)
		w3 := math.Sin(t*tau*(9.0+7.0*c) + float64(seed%555)*0.003)

		noise := (w1*0.55 + w2*0.30 + w3*0.15) * amp
		pts[i] = base + noise
	}

	pts[0] = open
	pts[n-1] = close

	return pts
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
