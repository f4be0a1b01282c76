package traffic

import (
	"fmt"
	"strings"
	"time"
)

// Strategy selects how a baseline count is projected onto the comparison window.
type Strategy string

const (
	// StrategyLinearScale spreads baseline traffic uniformly over the whole
	// baseline span. Default for explicit comparison windows.
	StrategyLinearScale Strategy = "linear_scale"

	// StrategyHourlyAverage multiplies the baseline hourly rate by the
	// comparison window length in hours.
	StrategyHourlyAverage Strategy = "hourly_average"

	// StrategyDailyPattern scales the baseline daily rate by hours/24.
	// Default for legacy "now-Xh" comparisons.
	StrategyDailyPattern Strategy = "daily_pattern"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.TrimSpace(s)); st {
	case StrategyLinearScale, StrategyHourlyAverage, StrategyDailyPattern:
		return st, nil
	default:
		return "", fmt.Errorf("unknown strategy %q: want linear_scale|hourly_average|daily_pattern", s)
	}
}

// Default scoring thresholds applied by DefaultSettings.
const (
	DefaultCriticalThreshold     = -80
	DefaultWarningThreshold      = -50
	DefaultHighVolumeThreshold   = 1000
	DefaultMediumVolumeThreshold = 100
)

// Settings is the raw, unvalidated scoring configuration as it appears in a
// config file or API request. Turn it into a ProcessingConfig with
// NewProcessingConfig before use.
type Settings struct {
	// BaselineStart and BaselineEnd bound the historical window.
	// Accepts YYYY-MM-DD or ISO-8601 timestamps.
	BaselineStart string `yaml:"baseline_start" json:"baseline_start"`
	BaselineEnd   string `yaml:"baseline_end" json:"baseline_end"`

	// CurrentTimeRange is the legacy comparison expression, e.g. "now-12h".
	// Ignored when ComparisonStart/ComparisonEnd are both set.
	CurrentTimeRange string `yaml:"current_time_range" json:"current_time_range,omitempty"`

	// ComparisonStart and ComparisonEnd give an explicit comparison window.
	ComparisonStart string `yaml:"comparison_start" json:"comparison_start,omitempty"`
	ComparisonEnd   string `yaml:"comparison_end" json:"comparison_end,omitempty"`

	// TimeComparisonStrategy is linear_scale | hourly_average | daily_pattern.
	// Empty selects the default for the active mode.
	TimeComparisonStrategy string `yaml:"time_comparison_strategy" json:"time_comparison_strategy,omitempty"`

	HighVolumeThreshold   uint64 `yaml:"high_volume_threshold" json:"high_volume_threshold"`
	MediumVolumeThreshold uint64 `yaml:"medium_volume_threshold" json:"medium_volume_threshold"`
	CriticalThreshold     int    `yaml:"critical_threshold" json:"critical_threshold"`
	WarningThreshold      int    `yaml:"warning_threshold" json:"warning_threshold"`

	// EventNamespace is stripped from event keys to build display names.
	EventNamespace string `yaml:"event_namespace" json:"event_namespace,omitempty"`
}

// DefaultSettings returns Settings with the default thresholds and the legacy
// 12h comparison range. Baseline boundaries must still be supplied.
func DefaultSettings() Settings {
	return Settings{
		CurrentTimeRange:      "now-12h",
		HighVolumeThreshold:   DefaultHighVolumeThreshold,
		MediumVolumeThreshold: DefaultMediumVolumeThreshold,
		CriticalThreshold:     DefaultCriticalThreshold,
		WarningThreshold:      DefaultWarningThreshold,
	}
}

// ProcessingConfig is a validated, immutable scoring configuration.
// The zero value is not usable; build one with NewProcessingConfig.
type ProcessingConfig struct {
	baseline     Window
	comparison   Window
	flexible     bool
	timeRange    string
	currentHours int
	strategy     Strategy
	highVolume   uint64
	mediumVolume uint64
	critical     int
	warning      int
	namespace    string
}

// NewProcessingConfig validates s and resolves its time windows.
// All failures are *ConfigError.
func NewProcessingConfig(s Settings) (ProcessingConfig, error) {
	var cfg ProcessingConfig

	start, err := parseTimestamp("baseline_start", s.BaselineStart)
	if err != nil {
		return cfg, err
	}
	end, err := parseTimestamp("baseline_end", s.BaselineEnd)
	if err != nil {
		return cfg, err
	}
	if !end.After(start) {
		return cfg, configErrorf("baseline_end", "%s must be after baseline_start %s",
			s.BaselineEnd, s.BaselineStart)
	}
	cfg.baseline = Window{Start: start, End: end}

	switch {
	case s.ComparisonStart != "" && s.ComparisonEnd != "":
		cs, err := parseTimestamp("comparison_start", s.ComparisonStart)
		if err != nil {
			return cfg, err
		}
		ce, err := parseTimestamp("comparison_end", s.ComparisonEnd)
		if err != nil {
			return cfg, err
		}
		cfg.flexible = true
		cfg.comparison = Window{Start: cs, End: ce}
		cfg.currentHours = currentHours(cfg.comparison.Duration())

	case s.ComparisonStart != "" || s.ComparisonEnd != "":
		return cfg, configErrorf("comparison_start", "comparison_start and comparison_end must be set together")

	default:
		hours := ResolveTimeRange(s.CurrentTimeRange)
		if hours < 1 || hours > MaxCurrentHours {
			return cfg, configErrorf("current_time_range", "%q resolves to %d hours, want 1..%d",
				s.CurrentTimeRange, hours, MaxCurrentHours)
		}
		cfg.timeRange = s.CurrentTimeRange
		cfg.currentHours = hours
	}

	if s.TimeComparisonStrategy == "" {
		cfg.strategy = StrategyDailyPattern
		if cfg.flexible {
			cfg.strategy = StrategyLinearScale
		}
	} else {
		st, err := ParseStrategy(s.TimeComparisonStrategy)
		if err != nil {
			return cfg, &ConfigError{Field: "time_comparison_strategy", Reason: err.Error()}
		}
		cfg.strategy = st
	}

	if s.WarningThreshold > 0 {
		return cfg, configErrorf("warning_threshold", "%d must be <= 0", s.WarningThreshold)
	}
	if s.CriticalThreshold >= s.WarningThreshold {
		return cfg, configErrorf("critical_threshold", "%d must be below warning_threshold %d",
			s.CriticalThreshold, s.WarningThreshold)
	}
	if s.MediumVolumeThreshold >= s.HighVolumeThreshold {
		return cfg, configErrorf("medium_volume_threshold", "%d must be below high_volume_threshold %d",
			s.MediumVolumeThreshold, s.HighVolumeThreshold)
	}

	cfg.highVolume = s.HighVolumeThreshold
	cfg.mediumVolume = s.MediumVolumeThreshold
	cfg.critical = s.CriticalThreshold
	cfg.warning = s.WarningThreshold
	cfg.namespace = s.EventNamespace
	return cfg, nil
}

// timestampLayouts are tried in order by parseTimestamp.
var timestampLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseTimestamp(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, configErrorf(field, "is required")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, configErrorf(field, "%q is not YYYY-MM-DD or an ISO-8601 timestamp", v)
}

// Flexible reports whether an explicit comparison window is configured.
func (c ProcessingConfig) Flexible() bool { return c.flexible }

// Strategy returns the normalization strategy in effect.
func (c ProcessingConfig) Strategy() Strategy { return c.strategy }

// BaselineWindow returns the configured baseline boundaries.
func (c ProcessingConfig) BaselineWindow() Window { return c.baseline }

// ComparisonWindow returns the explicit comparison window and true, or a zero
// Window and false in legacy mode.
func (c ProcessingConfig) ComparisonWindow() (Window, bool) { return c.comparison, c.flexible }

// TimeRange returns the legacy comparison expression ("" in flexible mode).
func (c ProcessingConfig) TimeRange() string { return c.timeRange }

// BaselineDays is the whole-day baseline length, at least 1.
func (c ProcessingConfig) BaselineDays() int { return BaselineDays(c.baseline) }

// CurrentHours is the comparison window length in hours, within 1..168.
func (c ProcessingConfig) CurrentHours() int { return c.currentHours }

// BaselineDuration is the exact baseline span in flexible mode and the
// whole-day span in legacy mode.
func (c ProcessingConfig) BaselineDuration() time.Duration {
	if c.flexible {
		return c.baseline.Duration()
	}
	return time.Duration(c.BaselineDays()) * 24 * time.Hour
}

// ComparisonDuration is the comparison window length. It is zero only when an
// explicit window has identical boundaries.
func (c ProcessingConfig) ComparisonDuration() time.Duration {
	if c.flexible {
		return c.comparison.Duration()
	}
	return time.Duration(c.currentHours) * time.Hour
}

func (c ProcessingConfig) HighVolumeThreshold() uint64   { return c.highVolume }
func (c ProcessingConfig) MediumVolumeThreshold() uint64 { return c.mediumVolume }
func (c ProcessingConfig) CriticalThreshold() int        { return c.critical }
func (c ProcessingConfig) WarningThreshold() int         { return c.warning }
func (c ProcessingConfig) EventNamespace() string        { return c.namespace }
