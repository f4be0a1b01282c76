package api

import (
	"fmt"
	"sort"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// largeFactor is the normalization factor above which a single event in the
// comparison window moves the score by less than one point.
const largeFactor = 1000

// DiagnosticHint is one human-readable insight about a report. The UI shows
// these as chips on the report card; Detail is shown on click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short chip label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional number tied to the hint (event count, factor).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a report, critical first.
func computeDiagnostics(rep *traffic.Report) []DiagnosticHint {
	hints := []DiagnosticHint{}

	if rep.Stats.Total == 0 {
		return append(hints, DiagnosticHint{
			Key:   "no_events",
			Level: "info",
			Title: "No events",
			Detail: "The backend returned no event buckets for this report. " +
				"Check that the index pattern matches and that the event field is a keyword field.",
		})
	}

	if n := rep.Stats.Critical; n > 0 {
		worst := rep.Events[0]
		hints = append(hints, DiagnosticHint{
			Key:   "critical_drop",
			Level: "critical",
			Title: plural(n, "critical event"),
			Detail: fmt.Sprintf(
				"%s dropped far below the baseline. The worst is %q at %d "+
					"(%d in the comparison window against an expected %d).",
				plural(n, "event"), worst.DisplayName, worst.Score, worst.Current, worst.BaselinePeriod),
			Value: floatPtr(float64(n)),
		})
	}

	if n := rep.Stats.Warning; n > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "warning_drop",
			Level:  "warning",
			Title:  plural(n, "degraded event"),
			Detail: fmt.Sprintf("%s below the warning threshold but not yet critical.", plural(n, "event is", "events are")),
			Value:  floatPtr(float64(n)),
		})
	}

	md := rep.Metadata
	if md.ComparisonDurationMs == 0 {
		hints = append(hints, DiagnosticHint{
			Key:   "empty_window",
			Level: "warning",
			Title: "Empty comparison window",
			Detail: "The comparison window has zero length, so the normalization factor falls back to 1. " +
				"Check comparison_start and comparison_end.",
		})
	} else if md.NormalizationFactor > largeFactor {
		hints = append(hints, DiagnosticHint{
			Key:   "large_factor",
			Level: "info",
			Title: "Very short window",
			Detail: fmt.Sprintf(
				"The baseline is %.0fx longer than the comparison window. "+
					"Low-volume events will swing between extremes; widen the window for steadier scores.",
				md.NormalizationFactor),
			Value: floatPtr(md.NormalizationFactor),
		})
	}

	if n := rep.Stats.Increased; n > 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "increased",
			Level:  "info",
			Title:  plural(n, "event up", "events up"),
			Detail: fmt.Sprintf("%s above the baseline.", plural(n, "event is", "events are")),
			Value:  floatPtr(float64(n)),
		})
	}

	if rep.Stats.Critical == 0 && rep.Stats.Warning == 0 {
		hints = append(hints, DiagnosticHint{
			Key:    "all_clear",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("All %d events are within the warning threshold.", rep.Stats.Total),
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

// plural formats n with a singular noun, or with explicit singular and
// plural forms when two are given.
func plural(n int, forms ...string) string {
	one, many := forms[0], forms[0]+"s"
	if len(forms) > 1 {
		many = forms[1]
	}
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func floatPtr(v float64) *float64 { return &v }
