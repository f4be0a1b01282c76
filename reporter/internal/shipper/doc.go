// Package shipper delivers scored reports to trafficpulse-server by POSTing
// JSON to /api/v1/reports.
//
// Shipper.Ship() is non-blocking: reports go into an in-memory channel
// (reporter.buffer_size). When the buffer is full the oldest report is
// evicted so the latest scores are always preserved.
//
// Shipper.Run() drains the buffer, retrying transient failures with truncated
// exponential backoff (1s→60s, ±25% jitter). 400, 401, 403 and 422 replies
// discard the report immediately.
package shipper
