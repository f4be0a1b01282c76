package traffic

import "sort"

// DashboardStats counts scored events per status.
type DashboardStats struct {
	Critical  int `json:"critical"`
	Warning   int `json:"warning"`
	Normal    int `json:"normal"`
	Increased int `json:"increased"`
	Total     int `json:"total"`
}

// NewDashboardStats counts events per status and checks that the counters
// add up to len(events).
func NewDashboardStats(events []ScoredEvent) (DashboardStats, error) {
	var s DashboardStats
	for _, ev := range events {
		switch ev.Status {
		case StatusCritical:
			s.Critical++
		case StatusWarning:
			s.Warning++
		case StatusNormal:
			s.Normal++
		case StatusIncreased:
			s.Increased++
		default:
			return DashboardStats{}, invariantf("event %q has unknown status %q", ev.EventID, ev.Status)
		}
	}
	s.Total = len(events)
	if sum := s.Critical + s.Warning + s.Normal + s.Increased; sum != s.Total {
		return DashboardStats{}, invariantf("stats total %d != status sum %d", s.Total, sum)
	}
	return s, nil
}

// Aggregate sorts events by ascending score, worst first, and derives the
// dashboard counters. Ties are ordered by event ID so output is deterministic.
// The input slice is not modified.
func Aggregate(events []ScoredEvent) ([]ScoredEvent, DashboardStats, error) {
	sorted := make([]ScoredEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].EventID < sorted[j].EventID
	})

	stats, err := NewDashboardStats(sorted)
	if err != nil {
		return nil, DashboardStats{}, err
	}
	return sorted, stats, nil
}
