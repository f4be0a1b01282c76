package traffic

import (
	"testing"
	"time"
)

func TestResolveTimeRange(t *testing.T) {
	tests := []struct {
		expr string
		want int
	}{
		{"now-1h", 1},
		{"now-12h", 12},
		{"now-2d", 48},
		{"now-7d", 168},
		{"-2d-1d", 24},    // width of the window, not its position
		{"-24h-12h", 12},  // end before start → absolute width
		{"-1d-36h", 12},   // mixed units
		{"-6h-6h", 0},     // zero width
		{"inspection_time", 16},
		{"", DefaultRangeHours},
		{"yesterday", DefaultRangeHours},
		{"now-12m", DefaultRangeHours},
		{"now-h", DefaultRangeHours},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			if got := ResolveTimeRange(tc.expr); got != tc.want {
				t.Errorf("ResolveTimeRange(%q) = %d, want %d", tc.expr, got, tc.want)
			}
		})
	}
}

func TestBaselineDays(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		end  time.Time
		want int
	}{
		{"seven whole days", base.AddDate(0, 0, 7), 7},
		{"fraction floors", base.Add(84 * time.Hour), 3},
		{"under a day floors to 1", base.Add(5 * time.Hour), 1},
		{"reversed window", base.AddDate(0, 0, -2), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BaselineDays(Window{Start: base, End: tc.end}); got != tc.want {
				t.Errorf("BaselineDays = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestCurrentHours(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int
	}{
		{0, 1},
		{39 * time.Minute, 1},
		{2 * time.Hour, 2},
		{2*time.Hour + time.Minute, 3},
		{30 * 24 * time.Hour, MaxCurrentHours},
	}
	for _, tc := range tests {
		if got := currentHours(tc.d); got != tc.want {
			t.Errorf("currentHours(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestDateMathBounds(t *testing.T) {
	tests := []struct {
		expr    string
		gte, lt string
	}{
		{"now-6h", "now-6h", "now"},
		{"now-2d", "now-2d", "now"},
		{"-2d-1d", "now-48h", "now-24h"},
		{"-12h-36h", "now-36h", "now-12h"},
		{"inspection_time", "now-24h", "now-8h"},
		{"garbage", "now-12h", "now"},
	}
	for _, tc := range tests {
		gte, lt := DateMathBounds(tc.expr)
		if gte != tc.gte || lt != tc.lt {
			t.Errorf("DateMathBounds(%q) = (%q, %q), want (%q, %q)", tc.expr, gte, lt, tc.gte, tc.lt)
		}
	}
}
