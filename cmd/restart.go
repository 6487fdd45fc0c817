package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/audit"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/logging"
)

var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Stop a runtime and start it again with the same command",
	Long: `Stop a runtime and launch a replacement with the command, arguments
and working directory the runtime reported.

The replacement is detached from this terminal unless --foreground is set.
With --wait, the command blocks until the replacement's control endpoint
answers.`,
	Args: cobra.NoArgs,
	RunE: runRestart,
}

var (
	restartSel        selectorFlags
	restartWait       time.Duration
	restartForeground bool
)

func init() {
	restartSel.register(restartCmd)
	restartCmd.Flags().DurationVar(&restartWait, "wait", 0, "Wait up to this long for the new runtime to answer")
	restartCmd.Flags().BoolVar(&restartForeground, "foreground", false, "Attach the new runtime to this terminal and wait for it to exit")
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	meta, err := resolveRuntime(ctx, &restartSel)
	if err != nil {
		return err
	}

	c := client()
	if restartWait > 0 {
		c = app.Default.NewClient(control.WithReadinessWait(restartWait))
		defer c.Close()
	}

	opts := control.SpawnOptions{Detach: !restartForeground}
	if restartForeground {
		opts.Stdin = os.Stdin
		opts.Stdout = cmd.OutOrStdout()
		opts.Stderr = cmd.ErrOrStderr()
	}

	command := shellquote.Join(meta.Argv...)
	logging.Debug("restarting runtime", "pid", meta.PID, "command", command, "dir", meta.Cwd)

	proc, err := c.Restart(ctx, meta.PID, opts)
	if err != nil {
		app.Default.Record(audit.EventError, meta, err.Error())
		if proc != nil {
			logWarning("Replacement started as pid %d but did not answer within %s", proc.PID, restartWait)
		}
		return err
	}
	app.Default.Record(audit.EventRestart, meta, fmt.Sprintf("new pid %d", proc.PID))

	logSuccess("Restarted %s as pid %d", runtimeLabel(meta), proc.PID)
	logInfo("Command: %s", command)

	if restartForeground {
		return proc.Wait()
	}
	return nil
}
