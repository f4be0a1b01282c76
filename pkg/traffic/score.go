package traffic

import "math"

// Drop-ratio thresholds per volume tier. Lower-volume events are noisier day
// to day, so they must fall further before counting as a drop.
const (
	highVolumeDropRatio     = 0.5
	standardVolumeDropRatio = 0.3
)

// Score bounds.
const (
	MinScore = -100
	MaxScore = 100
)

// Tier is the volume tier an event falls into.
type Tier string

const (
	TierHigh     Tier = "high"
	TierStandard Tier = "standard"
)

// VolumeTier returns TierHigh when dailyAvg reaches the high volume threshold.
func VolumeTier(dailyAvg uint64, cfg ProcessingConfig) Tier {
	if dailyAvg >= cfg.HighVolumeThreshold() {
		return TierHigh
	}
	return TierStandard
}

func dropRatio(t Tier) float64 {
	if t == TierHigh {
		return highVolumeDropRatio
	}
	return standardVolumeDropRatio
}

// Dropping reports whether current has fallen below the drop threshold of
// the event's volume tier.
func Dropping(current, baselinePeriod, dailyAvg uint64, cfg ProcessingConfig) bool {
	if baselinePeriod == 0 {
		return false
	}
	ratio := float64(current) / float64(baselinePeriod)
	return ratio < dropRatio(VolumeTier(dailyAvg, cfg))
}

// Score returns the signed percentage deviation of current from
// baselinePeriod, clamped to [-100, 100]. A zero baseline scores 0.
//
//	below tier drop threshold:  round((1 - ratio) * -100)
//	otherwise:                  round((ratio - 1) * 100)
func Score(current, baselinePeriod, dailyAvg uint64, cfg ProcessingConfig) int {
	if baselinePeriod == 0 {
		return 0
	}
	ratio := float64(current) / float64(baselinePeriod)

	var raw float64
	if Dropping(current, baselinePeriod, dailyAvg, cfg) {
		raw = (1 - ratio) * -100
	} else {
		raw = (ratio - 1) * 100
	}
	return int(math.Round(clampScore(raw)))
}

func clampScore(v float64) float64 {
	return math.Max(MinScore, math.Min(MaxScore, v))
}
