// Package scraper queries the search backend for the raw terms aggregation
// each report is scored from.
//
// BuildQuery turns a report's ProcessingConfig into the request body: a terms
// aggregation named "events" with "baseline" and "current" filter
// sub-aggregations. Legacy ranges become date-math bounds ("now-12h"), explicit
// comparison windows become RFC 3339 timestamps.
//
// Authentication (mTLS, API key, bearer token, basic) is handled by the shared
// authRoundTripper in base.go.
package scraper
