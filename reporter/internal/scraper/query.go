package scraper

import (
	"encoding/json"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/reporter/internal/config"
)

// BuildQuery returns the search request body for one report: a terms
// aggregation named "events" on the report's event field, with "baseline"
// and "current" filter sub-aggregations. The top-level query restricts hits
// to the union of both windows.
func BuildQuery(rc config.ReportConfig, pc traffic.ProcessingConfig) ([]byte, error) {
	bw := pc.BaselineWindow()
	baseline := rangeFilter(rc.TimestampField, stamp(earliest(bw)), stamp(latest(bw)))

	var current map[string]any
	if cw, ok := pc.ComparisonWindow(); ok {
		current = rangeFilter(rc.TimestampField, stamp(earliest(cw)), stamp(latest(cw)))
	} else {
		gte, lt := traffic.DateMathBounds(pc.TimeRange())
		current = rangeFilter(rc.TimestampField, gte, lt)
	}

	body := map[string]any{
		"size": 0,
		"query": map[string]any{
			"bool": map[string]any{
				"should":               []any{baseline, current},
				"minimum_should_match": 1,
			},
		},
		"aggs": map[string]any{
			"events": map[string]any{
				"terms": map[string]any{
					"field": rc.EventField,
					"size":  rc.Size,
				},
				"aggs": map[string]any{
					"baseline": map[string]any{"filter": baseline},
					"current":  map[string]any{"filter": current},
				},
			},
		},
	}
	return json.Marshal(body)
}

func rangeFilter(field, gte, lt string) map[string]any {
	return map[string]any{
		"range": map[string]any{
			field: map[string]any{"gte": gte, "lt": lt},
		},
	}
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func earliest(w traffic.Window) time.Time {
	if w.End.Before(w.Start) {
		return w.End
	}
	return w.Start
}

func latest(w traffic.Window) time.Time {
	if w.End.Before(w.Start) {
		return w.Start
	}
	return w.End
}
