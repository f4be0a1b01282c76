// Package traffic turns a search-backend terms aggregation into a ranked,
// classified traffic health report.
//
// Each bucket of the aggregation carries a document count for a historical
// baseline window and one for the comparison (current) window. The pipeline
// is a pure batch transform with four stages:
//
//	SearchResponse ─► Process   ─► []ProcessedEvent   (volume filter + normalization)
//	               ─► Score     ─► int in [-100, 100]  (per event, volume-tiered)
//	               ─► Classify  ─► Status              (per event)
//	               ─► Aggregate ─► sorted events + DashboardStats
//
// timerange.go resolves legacy expressions ("now-12h", "-2d-1d",
// "inspection_time") into hours. normalize.go projects a baseline count onto
// the comparison window under one of three strategies: linear_scale,
// hourly_average and daily_pattern.
//
// All configuration is validated once by NewProcessingConfig; the resulting
// ProcessingConfig is immutable. Analyze is safe to call from many goroutines
// at once; it holds no state and performs no I/O. The caller passes the clock
// value stamped into the report.
//
// Status thresholds (defaults): CRITICAL ≤ -80, WARNING ≤ -50,
// INCREASED > 0, NORMAL otherwise.
package traffic
