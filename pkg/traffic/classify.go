package traffic

// Status is the health classification of a scored event.
type Status string

const (
	StatusCritical  Status = "CRITICAL"
	StatusWarning   Status = "WARNING"
	StatusNormal    Status = "NORMAL"
	StatusIncreased Status = "INCREASED"
)

// Classify maps a score to a status. Precedence:
//
//	score <= critical_threshold  CRITICAL
//	score <= warning_threshold   WARNING
//	score > 0                    INCREASED
//	otherwise                    NORMAL
func Classify(score int, cfg ProcessingConfig) Status {
	switch {
	case score <= cfg.CriticalThreshold():
		return StatusCritical
	case score <= cfg.WarningThreshold():
		return StatusWarning
	case score > 0:
		return StatusIncreased
	default:
		return StatusNormal
	}
}

// consistent checks the score/status equivalences independently of Classify.
func consistent(score int, st Status, cfg ProcessingConfig) bool {
	crit, warn := cfg.CriticalThreshold(), cfg.WarningThreshold()
	switch st {
	case StatusCritical:
		return score <= crit
	case StatusWarning:
		return crit < score && score <= warn
	case StatusIncreased:
		return score > 0
	case StatusNormal:
		return warn < score && score <= 0
	default:
		return false
	}
}

// ScoredEvent is a ProcessedEvent with its score and status. It is the
// terminal per-event record emitted in a Report.
type ScoredEvent struct {
	EventID        string `json:"event_id"`
	DisplayName    string `json:"display_name"`
	Current        uint64 `json:"current"`
	BaselinePeriod uint64 `json:"baseline_period"`
	DailyAvg       uint64 `json:"daily_avg"`
	BaselineCount  uint64 `json:"baseline_count"`
	Score          int    `json:"score"`
	Status         Status `json:"status"`
	Dropping       bool   `json:"dropping"`

	BaselineDays int `json:"-"`
	CurrentHours int `json:"-"`
}

// NewScoredEvent attaches score and status to ev. It returns an
// *InvariantError when the score is out of range or does not match status.
func NewScoredEvent(ev ProcessedEvent, score int, st Status, cfg ProcessingConfig) (ScoredEvent, error) {
	if score < MinScore || score > MaxScore {
		return ScoredEvent{}, invariantf("event %q score %d outside [%d, %d]",
			ev.EventID, score, MinScore, MaxScore)
	}
	if !consistent(score, st, cfg) {
		return ScoredEvent{}, invariantf("event %q score %d inconsistent with status %s",
			ev.EventID, score, st)
	}
	return ScoredEvent{
		EventID:        ev.EventID,
		DisplayName:    ev.DisplayName,
		Current:        ev.Current,
		BaselinePeriod: ev.BaselinePeriod,
		DailyAvg:       ev.DailyAvg,
		BaselineCount:  ev.BaselineCount,
		Score:          score,
		Status:         st,
		Dropping:       Dropping(ev.Current, ev.BaselinePeriod, ev.DailyAvg, cfg),
		BaselineDays:   ev.BaselineDays,
		CurrentHours:   ev.CurrentHours,
	}, nil
}

// ScoreEvent scores, classifies and validates a single processed event.
func ScoreEvent(ev ProcessedEvent, cfg ProcessingConfig) (ScoredEvent, error) {
	score := Score(ev.Current, ev.BaselinePeriod, ev.DailyAvg, cfg)
	return NewScoredEvent(ev, score, Classify(score, cfg), cfg)
}
