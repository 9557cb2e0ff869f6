package sched

import "testing"

func TestParseEstimateVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "plain minutes", raw: "45", want: 45},
		{name: "minute token", raw: "90m", want: 90},
		{name: "hour token", raw: "2h", want: 120},
		{name: "fractional hours", raw: "1.5h", want: 90},
		{name: "combined", raw: "1h 30m", want: 90},
		{name: "combined no space", raw: "1h30m", want: 90},
		{name: "empty falls back", raw: "", want: 60},
		{name: "garbage falls back", raw: "soonish", want: 60},
		{name: "negative falls back", raw: "-15", want: 60},
		{name: "whitespace falls back", raw: "   ", want: 60},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseEstimate(tt.raw); got != tt.want {
				t.Fatalf("ParseEstimate(%q) = %d, want %d", tt.raw, got, tt.want)
			}
		})
	}
}
