package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/app"
	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/health"
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List running runtimes",
	Long: `List every runtime whose control endpoint answers.

With --all, endpoints that exist but do not answer are listed too.`,
	Args: cobra.NoArgs,
	RunE: runPs,
}

var (
	psAll  bool
	psJSON bool
)

func init() {
	psCmd.Flags().BoolVarP(&psAll, "all", "a", false, "Include unreachable control endpoints")
	psCmd.Flags().BoolVar(&psJSON, "json", false, "Print runtime metadata as JSON")
	rootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	runtimes, err := app.Default.Discovery.ListRuntimes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runtimes: %w", err)
	}

	if psJSON {
		if runtimes == nil {
			runtimes = []control.RuntimeMetadata{}
		}
		return printJSON(out, runtimes)
	}

	var stale []int
	if psAll {
		candidates, err := app.Default.Discovery.Candidates(ctx)
		if err != nil {
			return err
		}
		stale = unanswered(candidates, runtimes)
	}

	if len(runtimes) == 0 && len(stale) == 0 {
		logInfo("No runtimes found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tVERSION\tUPTIME\tURL\tSTATUS\tCOMMAND")
	fmt.Fprintln(w, "---\t----\t-------\t------\t---\t------\t-------")

	for _, rt := range runtimes {
		status := health.GetSummary(ctx, client(), rt.PID)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rt.PID, orDash(rt.PackageName), orDash(rt.PackageVersion),
			health.FormatUptime(rt.UptimeSeconds), orDash(rt.URL),
			formatStatus(status), shellquote.Join(rt.Argv...))
	}
	for _, pid := range stale {
		fmt.Fprintf(w, "%d\t-\t-\t-\t-\t%s\t-\n", pid, formatStatus(health.StatusUnreachable))
	}

	return w.Flush()
}

// unanswered returns the candidates missing from runtimes.
func unanswered(candidates []int, runtimes []control.RuntimeMetadata) []int {
	seen := make(map[int]bool, len(runtimes))
	for _, rt := range runtimes {
		seen[rt.PID] = true
	}
	var out []int
	for _, pid := range candidates {
		if !seen[pid] {
			out = append(out, pid)
		}
	}
	return out
}

func formatStatus(status health.Status) string {
	switch status {
	case health.StatusHealthy:
		return "✓ healthy"
	case health.StatusDegraded:
		return "⚠ degraded"
	case health.StatusUnreachable:
		return "● unreachable"
	case health.StatusError:
		return "✗ error"
	default:
		return string(status)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
