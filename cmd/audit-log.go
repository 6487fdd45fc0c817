package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log",
	Short: "Display the trail of control actions",
	Long: `Display the control actions rtctl has recorded: reloads, stops,
restarts, runtimes started with 'rtctl start' and runtimes seen coming
and going by 'rtctl watch'.

--pid limits the trail to one runtime. The runtime does not need to be
running.`,
	Args: cobra.NoArgs,
	RunE: runAuditLog,
}

var (
	auditLogPID   int
	auditLogJSON  bool
	auditLogClear bool
)

func init() {
	auditLogCmd.Flags().IntVarP(&auditLogPID, "pid", "p", 0, "Only show events of this pid")
	auditLogCmd.Flags().BoolVar(&auditLogJSON, "json", false, "Output events as JSON lines")
	auditLogCmd.Flags().BoolVar(&auditLogClear, "clear", false, "Delete the audit log")
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	auditLogger := app.Default.Audit

	if auditLogClear {
		if err := auditLogger.Clear(); err != nil {
			return fmt.Errorf("failed to clear audit log: %w", err)
		}
		logSuccess("Cleared %s", auditLogger.Path())
		return nil
	}

	events, err := auditLogger.Events(auditLogPID)
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}

	if len(events) == 0 {
		logInfo("No events found")
		return nil
	}

	for _, e := range events {
		if auditLogJSON {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		target := fmt.Sprintf("%d", e.PID)
		if e.Runtime != "" {
			target = fmt.Sprintf("%s[%d]", e.Runtime, e.PID)
		}
		if e.Details != "" {
			fmt.Fprintf(out, "[%s] %-8s %s (%s)\n", ts, e.Type, target, e.Details)
		} else {
			fmt.Fprintf(out, "[%s] %-8s %s\n", ts, e.Type, target)
		}
	}

	return nil
}
