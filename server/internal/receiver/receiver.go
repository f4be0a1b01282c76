package receiver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/server/internal/store"
)

// maxReportBytes caps the accepted request body.
const maxReportBytes = 16 << 20

// Evaluator is notified of every accepted report. *alerts.Engine implements it.
type Evaluator interface {
	Evaluate(rep *traffic.Report)
}

// Receiver accepts reports POSTed by trafficpulse-reporter instances.
// It validates each report and stores it in the report store.
// Authentication is enforced by the HTTP middleware before this is called.
type Receiver struct {
	store  *store.Store
	alerts Evaluator
}

// New creates a Receiver that writes accepted reports to st and passes them
// to ev. ev may be nil.
func New(st *store.Store, ev Evaluator) *Receiver {
	return &Receiver{store: st, alerts: ev}
}

// ServeHTTP handles POST /api/v1/reports.
func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var rep traffic.Report
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxReportBytes))
	if err := dec.Decode(&rep); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decode report: " + err.Error()})
		return
	}
	if err := Validate(&rep); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}

	r.store.Put(&rep)
	if r.alerts != nil {
		r.alerts.Evaluate(&rep)
	}

	slog.Debug("receiver: report stored",
		"report", rep.Name,
		"id", rep.ID,
		"critical", rep.Stats.Critical,
		"total", rep.Stats.Total,
	)

	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "id": rep.ID})
}

// Validate checks that a report received over the wire still satisfies the
// guarantees the engine gives: a name, bounded scores, ascending order and
// stats that match the events.
func Validate(rep *traffic.Report) error {
	if rep.Name == "" {
		return fmt.Errorf("name is required")
	}
	for i, ev := range rep.Events {
		if ev.Score < traffic.MinScore || ev.Score > traffic.MaxScore {
			return fmt.Errorf("events[%d] %q: score %d out of range", i, ev.EventID, ev.Score)
		}
		if i > 0 && ev.Score < rep.Events[i-1].Score {
			return fmt.Errorf("events[%d] %q: events are not sorted by score", i, ev.EventID)
		}
	}
	stats, err := traffic.NewDashboardStats(rep.Events)
	if err != nil {
		return err
	}
	if stats != rep.Stats {
		return fmt.Errorf("stats %+v do not match events %+v", rep.Stats, stats)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
