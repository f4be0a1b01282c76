// Package config loads the server-side configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - GRPCPort      gRPC health service port (default 50051)
//   - HTTPPort      REST API, WebSocket hub and /metrics (default 8080)
//   - Auth          "apikey" or "none"; key read from Auth.KeyEnv
//   - Reports.TTL   how long a shipped report stays live (default 30m)
//   - Cache         /analyze result cache TTL and size (5m, 1024)
//   - Stream        WebSocket broadcast interval (default 5s)
//   - Scoring       default traffic.Settings for /analyze requests
//   - Alerts        rules and webhook targets
//
// Load(path) applies defaults before unmarshalling, then validates.
package config
