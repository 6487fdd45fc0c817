package cmd

import (
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/audit"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload a runtime's services in place",
	Args:  cobra.NoArgs,
	RunE:  runReload,
}

var reloadSel selectorFlags

func init() {
	reloadSel.register(reloadCmd)
	rootCmd.AddCommand(reloadCmd)
}

func runReload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	meta, err := resolveRuntime(ctx, &reloadSel)
	if err != nil {
		return err
	}

	if err := client().Reload(ctx, meta.PID); err != nil {
		app.Default.Record(audit.EventError, meta, err.Error())
		return err
	}
	app.Default.Record(audit.EventReload, meta, "")

	logSuccess("Reloaded %s", runtimeLabel(meta))
	return nil
}
