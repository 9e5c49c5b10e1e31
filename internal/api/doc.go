// Package api provides the HTTP REST API and WebSocket server through which
// a home-automation host drives the robot.
//
// The surface mirrors the accessory model: six characteristics that can be
// listed, read and (for the three switches) written. Writes block until the
// robot confirms the command or the session's command timeout expires.
//
//	GET  /api/v1/health
//	GET  /api/v1/accessory
//	POST /api/v1/accessory/identify
//	GET  /api/v1/characteristics
//	GET  /api/v1/characteristics/{name}
//	PUT  /api/v1/characteristics/{name}   {"value": true}
//	GET  /api/v1/state
//	GET  /api/v1/history?limit=N
//	GET  /api/v1/ws
//
// WebSocket clients subscribe to the "characteristics.updated" channel and
// receive all six values after every status report from the robot.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
