// Package proxy exposes a runtime's services on a local HTTP address.
//
// Requests are forwarded through the runtime's control endpoint, so
// services are reachable even when they do not listen on a TCP port.
//
// # Routing
//
// With Config.ServiceID set, every request goes to that service. Otherwise
// the first path segment names the service:
//
//	GET /orders/items/7  ->  service "orders", path "/items/7"
//
// # Configuration
//
//	cfg := &proxy.Config{
//	    ListenAddr:        "127.0.0.1:3042",
//	    PID:               4242,
//	    RateLimitRequests: 1000,
//	    RateLimitWindow:   time.Minute,
//	    AccessLogPath:     "/var/log/rtctl/proxy.log",
//	}
//	srv, err := proxy.NewServer(cfg, client)
//	srv.Start() // blocks
package proxy
