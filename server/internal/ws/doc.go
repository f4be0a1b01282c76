// Package ws implements the WebSocket stream for trafficpulse-server.
//
// Hub.ServeHTTP upgrades a connection, sends the live report summaries at
// once, then relays a broadcast on every tick of Hub.Run. Run blocks until
// its context is cancelled and closes all connections on the way out.
//
// Message format:
//
//	{
//	  "event": "reports",
//	  "data":  {"reports": [ /* same schema as GET /api/v1/reports */ ], "generated_at": "..."}
//	}
//
// The upgrader accepts all origins; restrict them at the reverse proxy.
// The server mounts the hub at /ws/stream.
package ws
