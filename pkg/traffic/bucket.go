package traffic

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// SearchResponse is the subset of a search backend reply the engine reads.
// Aggregations and Error are mutually exclusive.
type SearchResponse struct {
	Took         int64          `json:"took"`
	TimedOut     bool           `json:"timed_out"`
	Aggregations *Aggregations  `json:"aggregations,omitempty"`
	Error        *UpstreamError `json:"error,omitempty"`
}

// Aggregations holds the "events" terms aggregation.
type Aggregations struct {
	Events *TermsAggregation `json:"events,omitempty"`
}

// TermsAggregation is one terms aggregation result. A nil Buckets slice means
// the key was missing; an empty one means the backend matched nothing.
type TermsAggregation struct {
	Buckets []RawBucket `json:"buckets"`
}

// RawBucket is a single event key with its baseline and current counts.
type RawBucket struct {
	Key      string   `json:"key"`
	DocCount uint64   `json:"doc_count"`
	Baseline DocCount `json:"baseline"`
	Current  DocCount `json:"current"`
}

// DocCount wraps a filter sub-aggregation count.
type DocCount struct {
	DocCount uint64 `json:"doc_count"`
}

// ParseResponse decodes a raw backend reply. Decode failures wrap
// ErrMalformedResponse.
func ParseResponse(data []byte) (*SearchResponse, error) {
	var resp SearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}

// Buckets returns the event buckets, or the upstream error when the backend
// reported one, or ErrMalformedResponse when the aggregation shape is missing.
func (r *SearchResponse) Buckets() ([]RawBucket, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if r.Error != nil {
		return nil, r.Error
	}
	switch {
	case r.Aggregations == nil:
		return nil, fmt.Errorf("%w: missing aggregations", ErrMalformedResponse)
	case r.Aggregations.Events == nil:
		return nil, fmt.Errorf("%w: missing aggregations.events", ErrMalformedResponse)
	case r.Aggregations.Events.Buckets == nil:
		return nil, fmt.Errorf("%w: missing aggregations.events.buckets", ErrMalformedResponse)
	}
	return r.Aggregations.Events.Buckets, nil
}

// ProcessedEvent is a bucket that passed the volume filter, with its baseline
// projected onto the comparison window.
type ProcessedEvent struct {
	EventID        string
	DisplayName    string
	Current        uint64
	BaselinePeriod uint64 // baseline count normalized to the comparison window
	DailyAvg       uint64
	BaselineCount  uint64
	BaselineDays   int
	CurrentHours   int
}

// Process extracts the buckets of resp and shapes them into events.
// Upstream and shape errors are fatal for the batch. Buckets whose daily
// average is below the medium volume threshold, or whose normalized baseline
// is zero, are dropped without error.
func Process(resp *SearchResponse, cfg ProcessingConfig) ([]ProcessedEvent, error) {
	buckets, err := resp.Buckets()
	if err != nil {
		return nil, err
	}
	return ProcessBuckets(buckets, cfg), nil
}

// ProcessBuckets applies the volume filter and normalization to buckets.
func ProcessBuckets(buckets []RawBucket, cfg ProcessingConfig) []ProcessedEvent {
	days := cfg.BaselineDays()
	baselineDur := cfg.BaselineDuration()
	comparisonDur := cfg.ComparisonDuration()

	out := make([]ProcessedEvent, 0, len(buckets))
	for _, b := range buckets {
		if b.Key == "" {
			slog.Debug("traffic: skipping bucket with empty key")
			continue
		}

		baselineCount := b.Baseline.DocCount
		dailyAvg := baselineCount / uint64(days)
		if dailyAvg < cfg.MediumVolumeThreshold() {
			slog.Debug("traffic: skipping low-volume bucket",
				"event", b.Key, "daily_avg", dailyAvg, "min", cfg.MediumVolumeThreshold())
			continue
		}

		period, _ := Normalize(baselineCount, baselineDur, comparisonDur, cfg.Strategy())
		if period == 0 {
			slog.Debug("traffic: skipping bucket with empty normalized baseline", "event", b.Key)
			continue
		}

		out = append(out, ProcessedEvent{
			EventID:        b.Key,
			DisplayName:    DisplayName(b.Key, cfg.EventNamespace()),
			Current:        b.Current.DocCount,
			BaselinePeriod: period,
			DailyAvg:       dailyAvg,
			BaselineCount:  baselineCount,
			BaselineDays:   days,
			CurrentHours:   cfg.CurrentHours(),
		})
	}
	return out
}

// DisplayName strips namespace from key. Keys outside the namespace, or that
// would become empty, are returned unchanged.
func DisplayName(key, namespace string) string {
	if namespace == "" {
		return key
	}
	if name := strings.TrimPrefix(key, namespace); name != "" {
		return name
	}
	return key
}
