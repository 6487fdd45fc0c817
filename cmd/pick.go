package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/audit"
	"github.com/firefly-engineering/rtctl/internal/logging"
	"github.com/firefly-engineering/rtctl/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive runtime picker",
	Long: `Opens an interactive TUI listing the running runtimes.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Print the selected runtime's pid
  r      - Reload the selected runtime
  s      - Stop the selected runtime
  q/Esc  - Quit`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	logging.Debug("picker mode started")

	runtimes, err := app.Default.Discovery.ListRuntimes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runtimes: %w", err)
	}

	if len(runtimes) == 0 {
		logInfo("No runtimes found. Start one with: rtctl start <dir>")
		return nil
	}

	result, err := tui.RunPicker(pickerEntries(ctx, runtimes))
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action)

	if result.Runtime == nil {
		return nil
	}
	meta := *result.Runtime

	switch result.Action {
	case tui.ActionSelect:
		fmt.Fprintln(cmd.OutOrStdout(), meta.PID)

	case tui.ActionReload:
		if err := client().Reload(ctx, meta.PID); err != nil {
			return err
		}
		app.Default.Record(audit.EventReload, meta, "from picker")
		logSuccess("Reloaded %s", runtimeLabel(meta))

	case tui.ActionStop:
		if err := client().Stop(ctx, meta.PID); err != nil {
			return err
		}
		app.Default.Record(audit.EventStop, meta, "from picker")
		logSuccess("Stopped %s", runtimeLabel(meta))
	}

	return nil
}
