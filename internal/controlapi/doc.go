// Package controlapi serves the runtime side of the control API.
//
// A Server answers the fixed control routes on a runtime's control endpoint
// and delegates every operation to a Backend supplied by the embedder:
//
//	GET  /api/metadata
//	GET  /api/services
//	GET  /api/services/:id/config
//	GET  /api/config
//	GET  /api/env
//	POST /api/reload
//	POST /api/stop
//	GET  /api/logs                    (websocket)
//	ANY  /api/services/:id/proxy/*path
//
// Backend errors become a 500 response whose body is the error text.
package controlapi
