// Package auth provides API key authentication for trafficpulse-server.
//
// APIKeyInterceptor guards the gRPC listener (the health service is exempt)
// and Middleware guards the REST API. When mode != "apikey" or the key is
// empty, both pass every request through, which suits local development.
package auth
