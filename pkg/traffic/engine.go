package traffic

import "time"

// Report is the ranked, classified output of one Analyze call.
// ID and Name are left empty by the engine; callers stamp them.
type Report struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name,omitempty"`
	Events      []ScoredEvent  `json:"events"`
	Stats       DashboardStats `json:"stats"`
	Metadata    Metadata       `json:"metadata"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Analyze runs the full pipeline over resp.
//
// now is stamped into Report.GeneratedAt so callers (and tests) control the
// clock. Use time.Now() in production.
func Analyze(resp *SearchResponse, cfg ProcessingConfig, now time.Time) (*Report, error) {
	processed, err := Process(resp, cfg)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredEvent, 0, len(processed))
	for _, ev := range processed {
		se, err := ScoreEvent(ev, cfg)
		if err != nil {
			return nil, err
		}
		scored = append(scored, se)
	}

	events, stats, err := Aggregate(scored)
	if err != nil {
		return nil, err
	}

	return &Report{
		Events:      events,
		Stats:       stats,
		Metadata:    NewMetadata(cfg.BaselineDuration(), cfg.ComparisonDuration(), cfg.Strategy()),
		GeneratedAt: now.UTC(),
	}, nil
}

// AnalyzeJSON decodes a raw backend reply and analyzes it.
func AnalyzeJSON(data []byte, cfg ProcessingConfig, now time.Time) (*Report, error) {
	resp, err := ParseResponse(data)
	if err != nil {
		return nil, err
	}
	return Analyze(resp, cfg, now)
}
