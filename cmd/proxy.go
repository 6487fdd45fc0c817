package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/proxy"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Expose a runtime's services on a local HTTP port",
	Long: `Run an HTTP server that forwards every request into a runtime through
its control endpoint.

The first path segment names the service: /api/users is sent to service
"api" as /users. With --service every request goes to that one service
with its path unchanged.

The proxy can also:
- Apply per-service rate limiting (--rate-limit, --rate-window)
- Write an access log (--access-log)`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

var (
	proxySel        selectorFlags
	proxyListen     string
	proxyService    string
	proxyRateLimit  int
	proxyRateWindow time.Duration
	proxyAccessLog  string
)

func init() {
	proxySel.register(proxyCmd)
	proxyCmd.Flags().StringVar(&proxyListen, "listen", "127.0.0.1:3042", "Address to listen on")
	proxyCmd.Flags().StringVarP(&proxyService, "service", "s", "", "Send every request to this service")
	proxyCmd.Flags().IntVar(&proxyRateLimit, "rate-limit", 0, "Max requests per service per window (0 = unlimited)")
	proxyCmd.Flags().DurationVar(&proxyRateWindow, "rate-window", time.Minute, "Rate limit window duration")
	proxyCmd.Flags().StringVar(&proxyAccessLog, "access-log", "", "Path to access log file")
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	meta, err := resolveRuntime(ctx, &proxySel)
	if err != nil {
		return err
	}

	cfg := &proxy.Config{
		ListenAddr:        proxyListen,
		PID:               meta.PID,
		ServiceID:         proxyService,
		RateLimitRequests: proxyRateLimit,
		RateLimitWindow:   proxyRateWindow,
		AccessLogPath:     proxyAccessLog,
		Logger:            logging.Logger,
	}

	server, err := proxy.NewServer(cfg, client())
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		logging.Info("shutting down proxy server")
		_ = server.Stop() // Best-effort shutdown
	}()

	logInfo("Proxying http://%s to %s", proxyListen, runtimeLabel(meta))
	if proxyService != "" {
		logInfo("Service: %s", proxyService)
	}
	if proxyRateLimit > 0 {
		logInfo("Rate limit: %d requests per %s", proxyRateLimit, proxyRateWindow)
	}
	if proxyAccessLog != "" {
		logInfo("Access log: %s", proxyAccessLog)
	}

	return server.Start()
}
