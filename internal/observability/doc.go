// Package observability holds the prometheus metrics recorded by the control
// client and the HTTP servers, plus gin middleware for request logging,
// request IDs and request metrics.
package observability
