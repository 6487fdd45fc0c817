package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/audit"
	"github.com/firefly-engineering/rtctl/internal/config"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/endpoint"
	"github.com/firefly-engineering/rtctl/internal/errors"
	"github.com/firefly-engineering/rtctl/internal/host"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/supervisor"
)

var startCmd = &cobra.Command{
	Use:   "start [dir]",
	Short: "Run a runtime in the foreground",
	Long: `Run a runtime from the config file found in dir (default: the current
directory) and supervise it until it stops.

The runtime serves its control endpoint at this process's pid, so every
other rtctl command can find it. SIGINT and SIGTERM shut it down; SIGUSR2
asks it for diagnostics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

var (
	startHotReload bool
	startDashboard bool
	startDashPort  int
	startWatch     []string
)

func init() {
	startCmd.Flags().BoolVar(&startHotReload, "hot-reload", false, "Reload services when their files change")
	startCmd.Flags().BoolVar(&startDashboard, "dashboard", false, "Start the management dashboard")
	startCmd.Flags().IntVar(&startDashPort, "dashboard-port", 0, "Dashboard port (default 4042)")
	startCmd.Flags().StringArrayVar(&startWatch, "watch", nil, "Extra directory watched with --hot-reload (repeatable)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	cfg, err := config.LoadRuntimeConfigDir(dir)
	if err != nil {
		return errors.ConfigError("failed to load runtime config", err)
	}
	if startHotReload {
		cfg.HotReload = true
	}
	if startDashboard && cfg.Dashboard == nil {
		cfg.Dashboard = &config.DashboardConfig{}
	}
	if startDashPort != 0 {
		if cfg.Dashboard == nil {
			cfg.Dashboard = &config.DashboardConfig{}
		}
		cfg.Dashboard.Port = startDashPort
	}

	pid := os.Getpid()
	address := endpoint.AddressIn(paths().SocketDir, pid)
	logging.Debug("starting runtime", "config", cfg.Path, "endpoint", address)

	sup := supervisor.New(cfg,
		supervisor.GoroutineFactory(host.Unit(
			host.WithAddress(address),
			host.WithOnStart(func(h *host.Host) {
				if url := h.URL(); url != "" {
					logInfo("Listening on %s", url)
				}
			}),
		)),
		supervisor.WithSideChannelFactory(supervisor.DashboardSideChannel(app.Default.Discovery)),
		supervisor.WithClientOptions(control.WithAddressFunc(func(pid int) string {
			return endpoint.AddressIn(paths().SocketDir, pid)
		})),
		supervisor.WithWatchDirs(startWatch...),
		supervisor.WithTransitionHook(func(from, to supervisor.State) {
			if to == supervisor.StateRunning {
				logSuccess("Runtime %d running (control endpoint %s)", pid, address)
			}
		}),
	)

	if err := app.Default.Audit.LogEvent(audit.EventStart, pid, filepath.Base(cfg.Dir()), cfg.Path); err != nil {
		logging.Debug("failed to write audit event", "error", err)
	}

	err = sup.Run(cmd.Context())

	details := sup.State().String()
	if err != nil {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	if auditErr := app.Default.Audit.LogEvent(audit.EventExit, pid, filepath.Base(cfg.Dir()), details); auditErr != nil {
		logging.Debug("failed to write audit event", "error", auditErr)
	}
	return err
}
