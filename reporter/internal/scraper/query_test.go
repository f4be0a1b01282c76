package scraper

import (
	"encoding/json"
	"testing"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// queryShape mirrors the parts of the request body the tests inspect.
type queryShape struct {
	Size int `json:"size"`
	Aggs struct {
		Events struct {
			Terms struct {
				Field string `json:"field"`
				Size  int    `json:"size"`
			} `json:"terms"`
			Aggs struct {
				Baseline struct {
					Filter rangeShape `json:"filter"`
				} `json:"baseline"`
				Current struct {
					Filter rangeShape `json:"filter"`
				} `json:"current"`
			} `json:"aggs"`
		} `json:"events"`
	} `json:"aggs"`
}

type rangeShape struct {
	Range map[string]struct {
		GTE string `json:"gte"`
		LT  string `json:"lt"`
	} `json:"range"`
}

func decodeQuery(t *testing.T, data []byte) queryShape {
	t.Helper()
	var q queryShape
	if err := json.Unmarshal(data, &q); err != nil {
		t.Fatalf("decode query: %v", err)
	}
	return q
}

func TestBuildQuery_Legacy(t *testing.T) {
	rc := reportCfg()
	pc, err := rc.Processing()
	if err != nil {
		t.Fatal(err)
	}
	data, err := BuildQuery(rc, pc)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}
	q := decodeQuery(t, data)

	if q.Size != 0 {
		t.Errorf("hits size: got %d, want 0", q.Size)
	}
	if q.Aggs.Events.Terms.Field != "event.name" || q.Aggs.Events.Terms.Size != 500 {
		t.Errorf("terms: got %+v", q.Aggs.Events.Terms)
	}

	base := q.Aggs.Events.Aggs.Baseline.Filter.Range["@timestamp"]
	if base.GTE != "2026-01-01T00:00:00Z" || base.LT != "2026-01-08T00:00:00Z" {
		t.Errorf("baseline range: got %+v", base)
	}
	cur := q.Aggs.Events.Aggs.Current.Filter.Range["@timestamp"]
	if cur.GTE != "now-24h" || cur.LT != "now" {
		t.Errorf("current range: got %+v", cur)
	}
}

func TestBuildQuery_Flexible(t *testing.T) {
	rc := reportCfg()
	rc.TimestampField = "ts"
	rc.Scoring.ComparisonStart = "2026-01-09T10:39:00Z"
	rc.Scoring.ComparisonEnd = "2026-01-09T10:00:00Z" // reversed on purpose
	pc, err := traffic.NewProcessingConfig(rc.Scoring)
	if err != nil {
		t.Fatal(err)
	}
	data, err := BuildQuery(rc, pc)
	if err != nil {
		t.Fatalf("BuildQuery: %v", err)
	}

	cur := decodeQuery(t, data).Aggs.Events.Aggs.Current.Filter.Range["ts"]
	if cur.GTE != "2026-01-09T10:00:00Z" || cur.LT != "2026-01-09T10:39:00Z" {
		t.Errorf("current range: got %+v", cur)
	}
}
