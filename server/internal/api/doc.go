// Package api implements the HTTP REST API for trafficpulse-server.
//
// New returns an http.Handler that serves:
//
//	POST /api/v1/analyze             score a raw backend response on demand
//	GET  /api/v1/reports             all live reports ([]ReportSummary)
//	POST /api/v1/reports             ingest a report computed by a reporter
//	GET  /api/v1/reports/{name}      full report with diagnostics; 404 if unknown or stale
//	GET  /api/v1/summary             counters across live reports and the worst events
//	GET  /api/v1/alerts              firing and recently resolved alerts
//	GET  /api/v1/diagnostics/{name}  diagnostic hints for one report
//
// Analyze results are cached by a fingerprint of the effective settings and
// the raw response body; the X-Cache header reports hit or miss. Engine
// errors map to 400 (config), 422 (malformed response), 502 (backend error)
// and 500 (invariant).
package api
