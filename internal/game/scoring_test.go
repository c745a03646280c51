package game

import "testing"

func TestScore(t *testing.T) {
	cases := []struct {
		name     string
		called   int
		verified int
		blind    bool
		want     int
	}{
		{"made with overtricks", 4, 6, false, 42},
		{"failed call", 4, 3, false, -40},
		{"exact blind", 5, 5, true, 100},
		{"blind with overtrick", 5, 6, true, 102},
		{"failed blind loses single", 5, 4, true, -50},
		{"minimum exact", 2, 2, false, 20},
		{"maximum exact", 13, 13, false, 130},
		{"zero verified", 3, 0, false, -30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.called, tc.verified, tc.blind); got != tc.want {
				t.Fatalf("Score(%d, %d, %v) = %d, want %d", tc.called, tc.verified, tc.blind, got, tc.want)
			}
		})
	}
}
