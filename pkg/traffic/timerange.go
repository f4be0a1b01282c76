package traffic

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

const (
	// InspectionTimeRange is a 24h window minus an 8h exclusion.
	InspectionTimeRange = "inspection_time"
	inspectionHours     = 16

	// DefaultRangeHours is used for any expression the grammar does not match.
	DefaultRangeHours = 12

	// MaxCurrentHours bounds the comparison window reported per event.
	MaxCurrentHours = 168
)

var (
	relativeRangeRe = regexp.MustCompile(`^now-(\d+)([hd])$`)
	offsetRangeRe   = regexp.MustCompile(`^-(\d+)([hd])-(\d+)([hd])$`)
)

// ResolveTimeRange returns the width in hours of a legacy comparison range.
//
//	now-<N>h            N
//	now-<N>d            N*24
//	-<N><u>-<M><u>      |hours(M) - hours(N)|
//	inspection_time     16
//	anything else       12
func ResolveTimeRange(expr string) int {
	if expr == InspectionTimeRange {
		return inspectionHours
	}
	if m := relativeRangeRe.FindStringSubmatch(expr); m != nil {
		if h, ok := toHours(m[1], m[2]); ok {
			return h
		}
	}
	if m := offsetRangeRe.FindStringSubmatch(expr); m != nil {
		from, ok1 := toHours(m[1], m[2])
		to, ok2 := toHours(m[3], m[4])
		if ok1 && ok2 {
			return absInt(to - from)
		}
	}
	return DefaultRangeHours
}

// DateMathBounds returns the [gte, lt) date-math bounds a search backend
// should filter the current window on for a legacy range expression.
// Unrecognized expressions map to the default 12h window.
func DateMathBounds(expr string) (gte, lt string) {
	if expr == InspectionTimeRange {
		return "now-24h", "now-8h"
	}
	if m := relativeRangeRe.FindStringSubmatch(expr); m != nil {
		if _, ok := toHours(m[1], m[2]); ok {
			return expr, "now"
		}
	}
	if m := offsetRangeRe.FindStringSubmatch(expr); m != nil {
		from, ok1 := toHours(m[1], m[2])
		to, ok2 := toHours(m[3], m[4])
		if ok1 && ok2 {
			if from < to {
				from, to = to, from
			}
			return fmt.Sprintf("now-%dh", from), fmt.Sprintf("now-%dh", to)
		}
	}
	return fmt.Sprintf("now-%dh", DefaultRangeHours), "now"
}

func toHours(n, unit string) (int, bool) {
	v, err := strconv.Atoi(n)
	if err != nil {
		return 0, false
	}
	if unit == "d" {
		return v * 24, true
	}
	return v, true
}

// Window is a concrete [Start, End] interval. End may precede Start; the
// duration is always reported as an absolute value.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns |End - Start|.
func (w Window) Duration() time.Duration {
	return absDuration(w.End.Sub(w.Start))
}

// BaselineDays returns the whole number of days between the baseline
// boundaries, floored at 1 so daily averages never divide by zero.
func BaselineDays(w Window) int {
	days := int(w.Duration() / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// currentHours converts a comparison duration into the 1..168 hour count
// carried on each processed event.
func currentHours(d time.Duration) int {
	h := int(d / time.Hour)
	if d%time.Hour != 0 {
		h++
	}
	switch {
	case h < 1:
		return 1
	case h > MaxCurrentHours:
		return MaxCurrentHours
	default:
		return h
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
