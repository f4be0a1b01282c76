package api

import (
	"encoding/json"
	"time"

	"github.com/obsidianstack/trafficpulse/pkg/traffic"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	// Name, when set, also stores the result as a live report.
	Name string `json:"name,omitempty"`

	// Settings overlays the server's scoring defaults field by field.
	Settings json.RawMessage `json:"settings,omitempty"`

	// Response is the raw search backend reply.
	Response json.RawMessage `json:"response"`
}

// ReportSummary is one entry in GET /api/v1/reports and the WebSocket stream.
type ReportSummary struct {
	Name        string                 `json:"name"`
	ID          string                 `json:"id"`
	Stats       traffic.DashboardStats `json:"stats"`
	Metadata    traffic.Metadata       `json:"metadata"`
	State       string                 `json:"state"`
	WorstScore  *int                   `json:"worst_score,omitempty"`
	GeneratedAt time.Time              `json:"generated_at"`
	LastSeen    time.Time              `json:"last_seen"`
}

// ReportResponse is the payload for GET /api/v1/reports/{name}.
type ReportResponse struct {
	*traffic.Report
	State       string           `json:"state"`
	LastSeen    time.Time        `json:"last_seen"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// IssueResponse is one CRITICAL or WARNING event in the summary.
type IssueResponse struct {
	Report      string         `json:"report"`
	EventID     string         `json:"event_id"`
	DisplayName string         `json:"display_name"`
	Score       int            `json:"score"`
	Status      traffic.Status `json:"status"`
}

// SummaryResponse is the payload for GET /api/v1/summary.
type SummaryResponse struct {
	State       string                 `json:"state"`
	ReportCount int                    `json:"report_count"`
	Stats       traffic.DashboardStats `json:"stats"`
	AlertCount  int                    `json:"alert_count"`
	TopIssues   []IssueResponse        `json:"top_issues"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// errorResponse is a generic JSON error body. Kind and Field are set for
// engine errors.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}
