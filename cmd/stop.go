package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/audit"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a runtime",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var stopSel selectorFlags

func init() {
	stopSel.register(stopCmd)
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	meta, err := resolveRuntime(ctx, &stopSel)
	if err != nil {
		return err
	}

	if err := client().Stop(ctx, meta.PID); err != nil {
		app.Default.Record(audit.EventError, meta, err.Error())
		return err
	}
	app.Default.Record(audit.EventStop, meta, "")

	logSuccess("Stopped %s", runtimeLabel(meta))
	return nil
}
