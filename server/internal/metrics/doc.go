// Package metrics serves live reports at /metrics in the Prometheus
// exposition format, so scores can be scraped and alerted on outside
// trafficpulse-server.
//
// Families:
//
//	trafficpulse_events{report,status}              events per status
//	trafficpulse_normalization_factor{report}       baseline/comparison ratio
//	trafficpulse_event_score{report,event}          per-event score
//	trafficpulse_reports                            live report count
//	trafficpulse_analyze_cache_requests_total{result}  analyze cache hits and misses
package metrics
