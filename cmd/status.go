package cmd

import (
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show detailed status of a runtime",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var statusSel selectorFlags

func init() {
	statusSel.register(statusCmd)
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	meta, err := resolveRuntime(ctx, &statusSel)
	if err != nil {
		return err
	}

	result := health.Check(ctx, client(), meta.PID)

	fmt.Fprintf(out, "Runtime: %s\n", orDash(meta.PackageName))
	fmt.Fprintf(out, "PID: %d\n", meta.PID)
	if meta.PackageVersion != "" {
		fmt.Fprintf(out, "Version: %s\n", meta.PackageVersion)
	}
	fmt.Fprintf(out, "Command: %s\n", shellquote.Join(meta.Argv...))
	fmt.Fprintf(out, "Directory: %s\n", orDash(meta.Cwd))
	if meta.URL != "" {
		fmt.Fprintf(out, "URL: %s\n", meta.URL)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Health Checks:")
	fmt.Fprintf(out, "  Control endpoint: %s\n", boolStatus(result.Reachable))
	if result.Reachable {
		fmt.Fprintf(out, "  Uptime: %s\n", result.Uptime)
		fmt.Fprintf(out, "  Services: %d\n", result.Services)
		if len(result.NotStarted) > 0 {
			fmt.Fprintf(out, "  Not started: %s\n", strings.Join(result.NotStarted, ", "))
		}
	}
	if result.Err != nil {
		fmt.Fprintf(out, "  Error: %v\n", result.Err)
	}
	fmt.Fprintf(out, "  Status: %s\n", formatStatus(result.Status()))

	return nil
}

func boolStatus(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}
