package traffic

import (
	"errors"
	"testing"
)

func TestScore_VolumeTiers(t *testing.T) {
	cfg := mustConfig(t, legacySettings()) // high=1000, medium=100

	tests := []struct {
		name                              string
		current, baselinePeriod, dailyAvg uint64
		want                              int
		wantDropping                      bool
	}{
		{"high volume drop", 400, 1000, 2000, -60, true},
		{"medium volume drop", 20, 100, 500, -80, true},
		{"medium volume mild decrease is not a drop", 40, 100, 500, -60, false},
		{"high volume at threshold", 500, 1000, 2000, -50, false},
		{"increase", 150, 100, 500, 50, false},
		{"flat", 100, 100, 500, 0, false},
		{"total outage", 0, 100, 5000, -100, true},
		{"huge spike clamped", 100000, 10, 500, 100, false},
		{"zero baseline", 50, 0, 500, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Score(tc.current, tc.baselinePeriod, tc.dailyAvg, cfg); got != tc.want {
				t.Errorf("Score = %d, want %d", got, tc.want)
			}
			if got := Dropping(tc.current, tc.baselinePeriod, tc.dailyAvg, cfg); got != tc.wantDropping {
				t.Errorf("Dropping = %v, want %v", got, tc.wantDropping)
			}
		})
	}
}

func TestVolumeTier(t *testing.T) {
	cfg := mustConfig(t, legacySettings())
	if VolumeTier(1000, cfg) != TierHigh {
		t.Error("daily_avg == high threshold should be high tier")
	}
	if VolumeTier(999, cfg) != TierStandard {
		t.Error("daily_avg below high threshold should be standard tier")
	}
}

func TestScore_Bounded(t *testing.T) {
	cfg := mustConfig(t, legacySettings())
	values := []uint64{0, 1, 7, 99, 100, 101, 1000, 123456, 1 << 40}
	for _, cur := range values {
		for _, base := range values {
			for _, avg := range []uint64{100, 999, 1000, 50000} {
				s := Score(cur, base, avg, cfg)
				if s < MinScore || s > MaxScore {
					t.Fatalf("Score(%d, %d, %d) = %d out of [-100, 100]", cur, base, avg, s)
				}
			}
		}
	}
}

func TestClassify_Defaults(t *testing.T) {
	cfg := mustConfig(t, legacySettings())
	tests := []struct {
		score int
		want  Status
	}{
		{-100, StatusCritical},
		{-85, StatusCritical},
		{-80, StatusCritical},
		{-79, StatusWarning},
		{-60, StatusWarning},
		{-50, StatusWarning},
		{-49, StatusNormal},
		{-30, StatusNormal},
		{0, StatusNormal},
		{1, StatusIncreased},
		{20, StatusIncreased},
		{100, StatusIncreased},
	}
	for _, tc := range tests {
		if got := Classify(tc.score, cfg); got != tc.want {
			t.Errorf("Classify(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassify_ZeroWarningThreshold(t *testing.T) {
	s := legacySettings()
	s.WarningThreshold = 0
	s.CriticalThreshold = -30
	cfg := mustConfig(t, s)

	if got := Classify(0, cfg); got != StatusWarning {
		t.Errorf("Classify(0) with warning=0 = %s, want WARNING", got)
	}
	if got := Classify(-30, cfg); got != StatusCritical {
		t.Errorf("Classify(-30) = %s, want CRITICAL", got)
	}
}

func TestClassify_ConsistentWithScoredEvent(t *testing.T) {
	cfg := mustConfig(t, legacySettings())
	ev := ProcessedEvent{EventID: "e"}
	for score := MinScore; score <= MaxScore; score++ {
		if _, err := NewScoredEvent(ev, score, Classify(score, cfg), cfg); err != nil {
			t.Fatalf("score %d: %v", score, err)
		}
	}
}

func TestNewScoredEvent_RejectsMismatch(t *testing.T) {
	cfg := mustConfig(t, legacySettings())
	ev := ProcessedEvent{EventID: "checkout.submit"}

	tests := []struct {
		name   string
		score  int
		status Status
	}{
		{"critical score labelled normal", -85, StatusNormal},
		{"warning score labelled critical", -60, StatusCritical},
		{"positive score labelled normal", 20, StatusNormal},
		{"zero labelled increased", 0, StatusIncreased},
		{"out of range", -150, StatusCritical},
		{"unknown status", 10, Status("UP")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewScoredEvent(ev, tc.score, tc.status, cfg)
			var ierr *InvariantError
			if !errors.As(err, &ierr) {
				t.Fatalf("err = %v (%T), want *InvariantError", err, err)
			}
		})
	}
}
