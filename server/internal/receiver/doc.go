// Package receiver implements the HTTP ingestion endpoint
// (POST /api/v1/reports) that trafficpulse-reporter instances ship to.
// Accepted reports are validated, stored by name and passed to the alerts
// engine.
package receiver
