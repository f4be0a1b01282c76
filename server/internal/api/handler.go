package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/server/internal/alerts"
	"github.com/obsidianstack/trafficpulse/server/internal/store"
)

const (
	maxAnalyzeBytes = 64 << 20
	maxTopIssues    = 10
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store    *store.Store
	cache    *store.Cache
	alerts   *alerts.Engine
	receiver http.Handler
	defaults traffic.Settings
	now      func() time.Time
	mux      *http.ServeMux
}

// New creates a Handler and registers all routes. receiver serves
// POST /api/v1/reports; defaults are the scoring settings that analyze
// requests overlay.
func New(st *store.Store, cache *store.Cache, ae *alerts.Engine, receiver http.Handler, defaults traffic.Settings) *Handler {
	h := &Handler{
		store:    st,
		cache:    cache,
		alerts:   ae,
		receiver: receiver,
		defaults: defaults,
		now:      time.Now,
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("/api/v1/analyze", h.analyze)
	h.mux.HandleFunc("/api/v1/reports", h.reports)
	h.mux.HandleFunc("/api/v1/reports/", h.getReport) // subtree, extracts {name}
	h.mux.HandleFunc("/api/v1/summary", h.summary)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/diagnostics/", h.diagnostics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// analyze scores a raw backend response on demand: POST /api/v1/analyze.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "decode request: "+err.Error())
		return
	}
	if len(req.Response) == 0 {
		jsonErr(w, http.StatusBadRequest, "response is required")
		return
	}

	settings := h.defaults
	if len(req.Settings) > 0 {
		if err := json.Unmarshal(req.Settings, &settings); err != nil {
			jsonErr(w, http.StatusBadRequest, "decode settings: "+err.Error())
			return
		}
	}

	key := store.Fingerprint(settings, req.Response)
	rep, hit := h.cache.Get(key)
	if !hit {
		cfg, err := traffic.NewProcessingConfig(settings)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		rep, err = traffic.AnalyzeJSON(req.Response, cfg, h.now())
		if err != nil {
			writeEngineError(w, err)
			return
		}
		h.cache.Put(key, rep)
	}

	out := *rep
	out.ID = uuid.NewString()
	out.Name = req.Name
	if out.Name != "" {
		h.store.Put(&out)
		h.alerts.Evaluate(&out)
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	jsonResp(w, http.StatusOK, &out)
}

// reports lists live reports (GET) or ingests one (POST): /api/v1/reports.
func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
	case http.MethodPost:
		h.receiver.ServeHTTP(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// getReport returns GET /api/v1/reports/{name}: the full report with hints.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	if name == "" {
		h.reports(w, r)
		return
	}

	e, ok := h.store.Get(name)
	if !ok {
		jsonErr(w, http.StatusNotFound, "report not found")
		return
	}
	jsonResp(w, http.StatusOK, ReportResponse{
		Report:      e.Report,
		State:       reportState(e.Report.Stats),
		LastSeen:    e.UpdatedAt.UTC(),
		Diagnostics: computeDiagnostics(e.Report),
	})
}

// summary returns GET /api/v1/summary: counters across all live reports.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.store.List()
	resp := SummaryResponse{
		ReportCount: len(entries),
		AlertCount:  h.alerts.FiringCount(),
		TopIssues:   []IssueResponse{},
		GeneratedAt: h.now().UTC(),
	}

	for _, e := range entries {
		st := e.Report.Stats
		resp.Stats.Critical += st.Critical
		resp.Stats.Warning += st.Warning
		resp.Stats.Normal += st.Normal
		resp.Stats.Increased += st.Increased
		resp.Stats.Total += st.Total

		for _, ev := range e.Report.Events {
			if ev.Status != traffic.StatusCritical && ev.Status != traffic.StatusWarning {
				// Events are sorted; nothing worse follows.
				break
			}
			resp.TopIssues = append(resp.TopIssues, IssueResponse{
				Report:      e.Report.Name,
				EventID:     ev.EventID,
				DisplayName: ev.DisplayName,
				Score:       ev.Score,
				Status:      ev.Status,
			})
		}
	}

	sort.SliceStable(resp.TopIssues, func(i, j int) bool {
		a, b := resp.TopIssues[i], resp.TopIssues[j]
		if a.Score != b.Score {
			return a.Score < b.Score
		}
		if a.Report != b.Report {
			return a.Report < b.Report
		}
		return a.EventID < b.EventID
	})
	if len(resp.TopIssues) > maxTopIssues {
		resp.TopIssues = resp.TopIssues[:maxTopIssues]
	}

	if len(entries) == 0 {
		resp.State = "unknown"
	} else {
		resp.State = reportState(resp.Stats)
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAlerts returns GET /api/v1/alerts: firing and recently resolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// diagnostics returns GET /api/v1/diagnostics/{name}.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/v1/diagnostics/")
	e, ok := h.store.Get(name)
	if name == "" || !ok {
		jsonErr(w, http.StatusNotFound, "report not found")
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(e.Report))
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot summarizes every live report, ordered by name. The WebSocket
// hub broadcasts the same payload.
func BuildSnapshot(st *store.Store) []ReportSummary {
	entries := st.List()
	out := make([]ReportSummary, 0, len(entries))
	for _, e := range entries {
		rep := e.Report
		s := ReportSummary{
			Name:        rep.Name,
			ID:          rep.ID,
			Stats:       rep.Stats,
			Metadata:    rep.Metadata,
			State:       reportState(rep.Stats),
			GeneratedAt: rep.GeneratedAt,
			LastSeen:    e.UpdatedAt.UTC(),
		}
		if len(rep.Events) > 0 {
			worst := rep.Events[0].Score
			s.WorstScore = &worst
		}
		out = append(out, s)
	}
	return out
}

// reportState collapses stats into the state of the worst event.
func reportState(st traffic.DashboardStats) string {
	switch {
	case st.Critical > 0:
		return "critical"
	case st.Warning > 0:
		return "warning"
	case st.Total == 0:
		return "empty"
	default:
		return "ok"
	}
}

// writeEngineError maps engine errors onto HTTP statuses:
// config 400, malformed response 422, upstream 502, invariant 500.
func writeEngineError(w http.ResponseWriter, err error) {
	var (
		cerr *traffic.ConfigError
		uerr *traffic.UpstreamError
		ierr *traffic.InvariantError
	)
	switch {
	case errors.As(err, &cerr):
		jsonResp(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Kind: "config", Field: cerr.Field})
	case errors.Is(err, traffic.ErrMalformedResponse):
		jsonResp(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: "malformed_response"})
	case errors.As(err, &uerr):
		jsonResp(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Kind: "upstream"})
	case errors.As(err, &ierr):
		slog.Error("api: engine invariant violated", "err", err)
		jsonResp(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: "invariant"})
	default:
		slog.Error("api: analysis failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}

func jsonResp(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
