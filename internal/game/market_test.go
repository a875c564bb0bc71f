package game

import (
	"math"
	"testing"
)

func TestGoldMultiplier(t *testing.T) {
	cases := []struct {
		name string
		seed uint32
		want int
	}{
		{
			name: "NotBonusSeed",
			seed: 1501,
			want: 0,
		},
		{
			name: "BonusSeed",
			seed: 1500,
			want: 3,
		},
		{
			name: "BonusSeedZero",
			seed: 0,
			want: 1,
		},
		{
			name: "BonusSeedLarge",
			seed: 4294967000,
			want: 1 + int(uint32(4294967000)%7),
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := GoldMultiplier(tc.seed)
			if got != tc.want {
				t.Errorf("unexpected multiplier, want: %d, got: %d", tc.want, got)
			}
		})
	}
}

func TestGoldMultiplierRange(t *testing.T) {
	for seed := uint32(0); seed < 10000; seed++ {
		got := GoldMultiplier(seed)

		if seed%100 != 0 && got != 0 {
			t.Fatalf("seed %d: want 0, got %d", seed, got)
		}

		if got < 0 || got > 7 {
			t.Fatalf("seed %d: multiplier %d out of range", seed, got)
		}

		if seed%100 == 0 && got == 0 {
			t.Fatalf("seed %d: bonus seed produced no multiplier", seed)
		}
	}
}

func TestOpenClose(t *testing.T) {
	cases := []struct {
		name      string
		seed      uint32
		base      float64
		wantClose float64
	}{
		{
			name:      "Up",
			seed:      1501,
			base:      100.0,
			wantClose: 101.002,
		},
		{
			name:      "Down",
			seed:      501,
			base:      100.0,
			wantClose: 99.002,
		},
		{
			name:      "Flat",
			seed:      1000,
			base:      100.0,
			wantClose: 100.0,
		},
		{
			name:      "NonDefaultBase",
			seed:      1501,
			base:      42.5,
			wantClose: 43.502,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			open, closePrice := OpenClose(tc.seed, tc.base)
			if open != tc.base {
				t.Errorf("open must equal base, want: %f, got: %f", tc.base, open)
			}

			if math.Abs(closePrice-tc.wantClose) > 1e-9 {
				t.Errorf("unexpected close, want: %f, got: %f", tc.wantClose, closePrice)
			}
		})
	}
}

func TestOpenCloseDeterministic(t *testing.T) {
	for seed := uint32(0); seed < 2500; seed += 7 {
		open1, close1 := OpenClose(seed, 100.0)
		open2, close2 := OpenClose(seed, 100.0)

		if open1 != open2 || close1 != close2 {
			t.Fatalf("seed %d: model is not deterministic", seed)
		}

		if math.Abs(close1-open1) > 2.0 {
			t.Fatalf("seed %d: delta %f exceeds bound", seed, close1-open1)
		}
	}
}

func TestPricePathEndpoints(t *testing.T) {
	cases := []struct {
		name string
		n    int
	}{
		{name: "TwoPoints", n: 2},
		{name: "DefaultLength", n: 300},
		{name: "OddLength", n: 33},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			open, closePrice := OpenClose(1501, 100.0)

			pts := PricePath(1501, open, closePrice, tc.n)
			if len(pts) != tc.n {
				t.Fatalf("unexpected length, want: %d, got: %d", tc.n, len(pts))
			}

			if pts[0] != open {
				t.Errorf("path must start at open, want: %f, got: %f", open, pts[0])
			}

			if pts[tc.n-1] != closePrice {
				t.Errorf("path must end at close, want: %f, got: %f", closePrice, pts[tc.n-1])
			}
		})
	}
}

func TestPricePathShort(t *testing.T) {
	for _, n := range []int{1, 0, -5} {
		pts := PricePath(1501, 100.0, 101.0, n)

		if len(pts) != 1 || pts[0] != 100.0 {
			t.Errorf("n=%d: want [open], got %v", n, pts)
		}
	}
}
