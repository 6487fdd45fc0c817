// Package dashboard serves the management side channel: a small HTTP API
// over every runtime on the host, plus prometheus metrics.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/runtimes
//	GET  /api/runtimes/:pid/metadata
//	GET  /api/runtimes/:pid/services
//	GET  /api/runtimes/:pid/services/:id/config
//	GET  /api/runtimes/:pid/config
//	GET  /api/runtimes/:pid/env
//	POST /api/runtimes/:pid/reload
//	POST /api/runtimes/:pid/stop
package dashboard
