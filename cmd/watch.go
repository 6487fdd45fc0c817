package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/monitor"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch runtimes appear, disappear and change health",
	Long: `Periodically discovers runtimes and checks their health, printing
a line whenever a runtime appears, goes away or changes status. Runs in
the foreground until interrupted.

Appearances and disappearances are written to the audit log.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var watchInterval time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Second, "Discovery interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printer := &watchPrinter{last: make(map[int]string)}

	mon := monitor.New(watchInterval, app.Default.Discovery, client(),
		monitor.WithAuditLogger(app.Default.Audit),
		monitor.WithSnapshotHandler(func(s monitor.Snapshot) {
			for _, line := range printer.lines(s) {
				fmt.Fprintln(out, line)
			}
		}),
	)

	logInfo("Watching runtimes (interval: %s)", watchInterval)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	err := mon.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logInfo("Watch stopped")
		return nil
	}
	return err
}

// watchPrinter turns snapshots into change lines.
type watchPrinter struct {
	last map[int]string
}

func (p *watchPrinter) lines(s monitor.Snapshot) []string {
	ts := s.Time.Local().Format("15:04:05")
	var lines []string

	for _, pid := range s.Gone {
		lines = append(lines, fmt.Sprintf("[%s] - pid %d gone", ts, pid))
		delete(p.last, pid)
	}

	for _, r := range s.Runtimes {
		status := formatStatus(r.Status)
		prev, seen := p.last[r.Runtime.PID]
		switch {
		case !seen:
			lines = append(lines, fmt.Sprintf("[%s] + %s %s", ts, runtimeLabel(r.Runtime), status))
		case prev != status:
			lines = append(lines, fmt.Sprintf("[%s] ~ %s %s", ts, runtimeLabel(r.Runtime), status))
		}
		p.last[r.Runtime.PID] = status
	}
	return lines
}
