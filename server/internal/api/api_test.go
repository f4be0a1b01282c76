package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
	"github.com/obsidianstack/trafficpulse/server/internal/alerts"
	"github.com/obsidianstack/trafficpulse/server/internal/api"
	"github.com/obsidianstack/trafficpulse/server/internal/config"
	"github.com/obsidianstack/trafficpulse/server/internal/receiver"
	"github.com/obsidianstack/trafficpulse/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

// backendResponse has one event per status under the default settings:
// checkout CRITICAL, cart WARNING, search NORMAL, login INCREASED.
const backendResponse = `{
  "took": 12,
  "timed_out": false,
  "aggregations": {"events": {"buckets": [
    {"key": "web.search",   "doc_count": 8000, "baseline": {"doc_count": 7000}, "current": {"doc_count": 1000}},
    {"key": "web.checkout", "doc_count": 7000, "baseline": {"doc_count": 7000}, "current": {"doc_count": 0}},
    {"key": "web.login",    "doc_count": 9000, "baseline": {"doc_count": 7000}, "current": {"doc_count": 2000}},
    {"key": "web.cart",     "doc_count": 7300, "baseline": {"doc_count": 7000}, "current": {"doc_count": 300}}
  ]}}
}`

func defaultSettings() traffic.Settings {
	s := traffic.DefaultSettings()
	s.BaselineStart = "2026-01-01"
	s.BaselineEnd = "2026-01-08"
	s.CurrentTimeRange = "now-24h"
	return s
}

type fixture struct {
	h     *api.Handler
	store *store.Store
	cache *store.Cache
}

func newFixture(rules ...config.AlertRule) *fixture {
	st := store.New(5 * time.Minute)
	cache := store.NewCache(time.Minute, 16)
	ae := alerts.New(config.AlertsConfig{Rules: rules})
	return &fixture{
		h:     api.New(st, cache, ae, receiver.New(st, ae), defaultSettings()),
		store: st,
		cache: cache,
	}
}

func (f *fixture) analyze(t *testing.T, name, settings string) *traffic.Report {
	t.Helper()
	rr := analyzeReq(t, f.h, name, settings, backendResponse)
	if rr.Code != http.StatusOK {
		t.Fatalf("analyze status: got %d, want 200 (body: %s)", rr.Code, rr.Body.String())
	}
	var rep traffic.Report
	decode(t, rr, &rep)
	return &rep
}

func analyzeReq(t *testing.T, h http.Handler, name, settings, response string) *httptest.ResponseRecorder {
	t.Helper()
	body := map[string]json.RawMessage{"response": json.RawMessage(response)}
	if name != "" {
		body["name"] = json.RawMessage(`"` + name + `"`)
	}
	if settings != "" {
		body["settings"] = json.RawMessage(settings)
	}
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(data)))
	return rr
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/analyze --------------------------------------------------------

func TestAnalyze_ScoresAndSorts(t *testing.T) {
	f := newFixture()
	rep := f.analyze(t, "", "")

	want := traffic.DashboardStats{Critical: 1, Warning: 1, Normal: 1, Increased: 1, Total: 4}
	if rep.Stats != want {
		t.Errorf("stats: got %+v, want %+v", rep.Stats, want)
	}
	if rep.ID == "" {
		t.Error("expected a generated report id")
	}
	if len(rep.Events) != 4 {
		t.Fatalf("events: got %d, want 4", len(rep.Events))
	}
	if rep.Events[0].EventID != "web.checkout" || rep.Events[0].Score != -100 {
		t.Errorf("worst event: got %s %d, want web.checkout -100", rep.Events[0].EventID, rep.Events[0].Score)
	}
	for i := 1; i < len(rep.Events); i++ {
		if rep.Events[i-1].Score > rep.Events[i].Score {
			t.Fatalf("events not sorted ascending at %d", i)
		}
	}
	if rep.Metadata.ComparisonMethod != "daily_pattern" {
		t.Errorf("comparison_method: got %q, want daily_pattern", rep.Metadata.ComparisonMethod)
	}
	if f.store.Count() != 0 {
		t.Error("unnamed analyze should not store a report")
	}
}

func TestAnalyze_NamedIsStored(t *testing.T) {
	f := newFixture()
	f.analyze(t, "web", "")

	e, ok := f.store.Get("web")
	if !ok {
		t.Fatal("named analyze should store the report")
	}
	if e.Report.Stats.Total != 4 {
		t.Errorf("stored total: got %d, want 4", e.Report.Stats.Total)
	}
}

func TestAnalyze_CacheHit(t *testing.T) {
	f := newFixture()

	first := analyzeReq(t, f.h, "", "", backendResponse)
	if got := first.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("first X-Cache: got %q, want miss", got)
	}
	second := analyzeReq(t, f.h, "", "", backendResponse)
	if got := second.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache: got %q, want hit", got)
	}

	third := analyzeReq(t, f.h, "", `{"warning_threshold": -40}`, backendResponse)
	if got := third.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("different settings X-Cache: got %q, want miss", got)
	}
	if f.cache.Len() != 2 {
		t.Errorf("cache entries: got %d, want 2", f.cache.Len())
	}
}

func TestAnalyze_SettingsOverlay(t *testing.T) {
	f := newFixture()
	// Raising the medium threshold above every daily_avg filters all events.
	rep := f.analyze(t, "", `{"medium_volume_threshold": 2000, "high_volume_threshold": 5000}`)
	if rep.Stats.Total != 0 {
		t.Errorf("total: got %d, want 0", rep.Stats.Total)
	}
	if rep.Events == nil {
		t.Error("events should encode as an empty array, not null")
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name      string
		settings  string
		response  string
		wantCode  int
		wantKind  string
		wantField string
	}{
		{
			name:      "inverted thresholds",
			settings:  `{"critical_threshold": -10, "warning_threshold": -20}`,
			response:  backendResponse,
			wantCode:  http.StatusBadRequest,
			wantKind:  "config",
			wantField: "critical_threshold",
		},
		{
			name:      "bad baseline date",
			settings:  `{"baseline_start": "yesterday"}`,
			response:  backendResponse,
			wantCode:  http.StatusBadRequest,
			wantKind:  "config",
			wantField: "baseline_start",
		},
		{
			name:     "backend error object",
			response: `{"error": {"type": "index_not_found_exception", "reason": "no such index [events]"}}`,
			wantCode: http.StatusBadGateway,
			wantKind: "upstream",
		},
		{
			name:     "missing aggregations",
			response: `{"took": 3, "timed_out": false}`,
			wantCode: http.StatusUnprocessableEntity,
			wantKind: "malformed_response",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			rr := analyzeReq(t, f.h, "", tc.settings, tc.response)
			if rr.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, tc.wantCode, rr.Body.String())
			}
			var body map[string]string
			decode(t, rr, &body)
			if body["kind"] != tc.wantKind {
				t.Errorf("kind: got %q, want %q", body["kind"], tc.wantKind)
			}
			if body["field"] != tc.wantField {
				t.Errorf("field: got %q, want %q", body["field"], tc.wantField)
			}
		})
	}
}

func TestAnalyze_BadRequest(t *testing.T) {
	f := newFixture()

	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString("{")))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad JSON: got %d, want 400", rr.Code)
	}

	rr = httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(`{"name":"x"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing response: got %d, want 400", rr.Code)
	}

	if rr := get(t, f.h, "/api/v1/analyze"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET analyze: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/reports --------------------------------------------------------

func TestReports_ListAndGet(t *testing.T) {
	f := newFixture()
	f.analyze(t, "web", "")
	f.analyze(t, "api", "")

	rr := get(t, f.h, "/api/v1/reports")
	if rr.Code != http.StatusOK {
		t.Fatalf("list status: got %d", rr.Code)
	}
	var list []api.ReportSummary
	decode(t, rr, &list)
	if len(list) != 2 || list[0].Name != "api" || list[1].Name != "web" {
		t.Fatalf("list: got %+v, want [api web]", list)
	}
	if list[0].State != "critical" {
		t.Errorf("state: got %q, want critical", list[0].State)
	}
	if list[0].WorstScore == nil || *list[0].WorstScore != -100 {
		t.Errorf("worst_score: got %v, want -100", list[0].WorstScore)
	}

	rr = get(t, f.h, "/api/v1/reports/web")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status: got %d", rr.Code)
	}
	var one api.ReportResponse
	decode(t, rr, &one)
	if one.Report == nil || one.Name != "web" || len(one.Events) != 4 {
		t.Errorf("report: got %+v", one.Report)
	}
	if len(one.Diagnostics) == 0 || one.Diagnostics[0].Key != "critical_drop" {
		t.Errorf("diagnostics: got %+v, want critical_drop first", one.Diagnostics)
	}
}

func TestReports_NotFound(t *testing.T) {
	f := newFixture()
	if rr := get(t, f.h, "/api/v1/reports/missing"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
	if rr := get(t, f.h, "/api/v1/diagnostics/missing"); rr.Code != http.StatusNotFound {
		t.Errorf("diagnostics status: got %d, want 404", rr.Code)
	}
}

func TestReports_EmptyListIsArray(t *testing.T) {
	f := newFixture()
	rr := get(t, f.h, "/api/v1/reports")
	if got := bytes.TrimSpace(rr.Body.Bytes()); string(got) != "[]" {
		t.Errorf("body: got %s, want []", got)
	}
}

func TestReports_PostDelegatesToReceiver(t *testing.T) {
	f := newFixture()
	rep := f.analyze(t, "", "")
	rep.Name = "pushed"
	data, _ := json.Marshal(rep)

	rr := httptest.NewRecorder()
	f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader(data)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (body: %s)", rr.Code, rr.Body.String())
	}
	if _, ok := f.store.Get("pushed"); !ok {
		t.Error("pushed report not stored")
	}
}

// --- /api/v1/summary --------------------------------------------------------

func TestSummary_Empty(t *testing.T) {
	f := newFixture()
	var resp api.SummaryResponse
	decode(t, get(t, f.h, "/api/v1/summary"), &resp)

	if resp.State != "unknown" {
		t.Errorf("state: got %q, want unknown", resp.State)
	}
	if resp.ReportCount != 0 || len(resp.TopIssues) != 0 {
		t.Errorf("unexpected content: %+v", resp)
	}
}

func TestSummary_AggregatesAndRanks(t *testing.T) {
	f := newFixture(config.AlertRule{Name: "any-critical", Condition: "critical > 0"})
	f.analyze(t, "web", "")
	f.analyze(t, "api", "")

	var resp api.SummaryResponse
	decode(t, get(t, f.h, "/api/v1/summary"), &resp)

	if resp.ReportCount != 2 {
		t.Errorf("report_count: got %d, want 2", resp.ReportCount)
	}
	if resp.Stats.Total != 8 || resp.Stats.Critical != 2 {
		t.Errorf("stats: got %+v", resp.Stats)
	}
	if resp.State != "critical" {
		t.Errorf("state: got %q, want critical", resp.State)
	}
	if resp.AlertCount != 2 {
		t.Errorf("alert_count: got %d, want 2", resp.AlertCount)
	}
	// Two critical and two warning events, worst first, ties by report name.
	if len(resp.TopIssues) != 4 {
		t.Fatalf("top_issues: got %d, want 4", len(resp.TopIssues))
	}
	first := resp.TopIssues[0]
	if first.Report != "api" || first.EventID != "web.checkout" || first.Status != traffic.StatusCritical {
		t.Errorf("first issue: got %+v", first)
	}
	if resp.TopIssues[3].Status != traffic.StatusWarning {
		t.Errorf("last issue status: got %s, want WARNING", resp.TopIssues[3].Status)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts_ListsFiring(t *testing.T) {
	f := newFixture(config.AlertRule{Name: "outage", Condition: "min_score <= -90", Severity: "critical"})
	f.analyze(t, "web", "")

	var list []alerts.Alert
	decode(t, get(t, f.h, "/api/v1/alerts"), &list)
	if len(list) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(list))
	}
	if list[0].RuleName != "outage" || list[0].Report != "web" || list[0].State != "firing" {
		t.Errorf("alert: got %+v", list[0])
	}
}

// --- /api/v1/diagnostics ----------------------------------------------------

func TestDiagnostics_AllClear(t *testing.T) {
	f := newFixture()
	quiet := `{"aggregations": {"events": {"buckets": [
		{"key": "web.search", "doc_count": 8000, "baseline": {"doc_count": 7000}, "current": {"doc_count": 1000}}
	]}}}`
	if rr := analyzeReq(t, f.h, "quiet", "", quiet); rr.Code != http.StatusOK {
		t.Fatalf("analyze: %d %s", rr.Code, rr.Body.String())
	}

	var hints []api.DiagnosticHint
	decode(t, get(t, f.h, "/api/v1/diagnostics/quiet"), &hints)
	if len(hints) != 1 || hints[0].Key != "all_clear" || hints[0].Level != "ok" {
		t.Errorf("hints: got %+v, want single all_clear", hints)
	}
}

func TestDiagnostics_OrderedByLevel(t *testing.T) {
	f := newFixture()
	f.analyze(t, "web", "")

	var hints []api.DiagnosticHint
	decode(t, get(t, f.h, "/api/v1/diagnostics/web"), &hints)

	rank := map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}
	for i := 1; i < len(hints); i++ {
		if rank[hints[i-1].Level] > rank[hints[i].Level] {
			t.Fatalf("hints not ordered by level: %+v", hints)
		}
	}
	keys := map[string]bool{}
	for _, h := range hints {
		keys[h.Key] = true
	}
	for _, k := range []string{"critical_drop", "warning_drop", "increased"} {
		if !keys[k] {
			t.Errorf("missing hint %q in %+v", k, hints)
		}
	}
	if keys["all_clear"] {
		t.Error("all_clear must not appear alongside critical events")
	}
}

// --- common -----------------------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture()
	for _, path := range []string{"/api/v1/summary", "/api/v1/alerts", "/api/v1/reports/web", "/api/v1/diagnostics/web"} {
		rr := httptest.NewRecorder()
		f.h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("DELETE %s: got %d, want 405", path, rr.Code)
		}
	}
}

func TestContentTypeJSON(t *testing.T) {
	f := newFixture()
	rr := get(t, f.h, "/api/v1/summary")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}
}
