package traffic

import (
	"math"
	"time"
)

// Metadata describes how the baseline was projected onto the comparison
// window. It is attached to every report for caller-side diagnostics.
type Metadata struct {
	BaselineDurationMs   int64   `json:"baseline_duration_ms"`
	ComparisonDurationMs int64   `json:"comparison_duration_ms"`
	NormalizationFactor  float64 `json:"normalization_factor"`
	ComparisonMethod     string  `json:"comparison_method"`
}

// NewMetadata computes the batch-level normalization metadata.
func NewMetadata(baseline, comparison time.Duration, strategy Strategy) Metadata {
	return Metadata{
		BaselineDurationMs:   absDuration(baseline).Milliseconds(),
		ComparisonDurationMs: absDuration(comparison).Milliseconds(),
		NormalizationFactor:  NormalizationFactor(baseline, comparison),
		ComparisonMethod:     string(strategy),
	}
}

// NormalizationFactor is baseline/comparison. A zero-length comparison window
// yields 1.0 instead of dividing by zero.
func NormalizationFactor(baseline, comparison time.Duration) float64 {
	b := absDuration(baseline).Milliseconds()
	c := absDuration(comparison).Milliseconds()
	if c == 0 {
		return 1.0
	}
	return float64(b) / float64(c)
}

// Normalize projects baselineCount onto the comparison window duration and
// returns the expected count for that window along with the factor used.
//
//	linear_scale    round(count / (baseline_ms / comparison_ms))
//	hourly_average  round(count / baseline_hours * comparison_hours)
//	daily_pattern   round(count / baseline_days / 24 * comparison_hours)
func Normalize(baselineCount uint64, baseline, comparison time.Duration, strategy Strategy) (uint64, float64) {
	baseline = absDuration(baseline)
	comparison = absDuration(comparison)
	factor := NormalizationFactor(baseline, comparison)
	count := float64(baselineCount)

	var expected float64
	switch strategy {
	case StrategyHourlyAverage:
		if hours := baseline.Hours(); hours > 0 {
			expected = count / hours * comparison.Hours()
		}
	case StrategyDailyPattern:
		if days := baseline.Hours() / 24; days > 0 {
			expected = count / days / 24 * comparison.Hours()
		}
	default:
		expected = count / factor
	}
	if expected <= 0 || math.IsNaN(expected) {
		return 0, factor
	}
	return uint64(math.Round(expected)), factor
}
