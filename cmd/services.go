package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "List the services hosted by a runtime",
	Args:  cobra.NoArgs,
	RunE:  runServices,
}

var (
	servicesSel  selectorFlags
	servicesJSON bool
)

func init() {
	servicesSel.register(servicesCmd)
	servicesCmd.Flags().BoolVar(&servicesJSON, "json", false, "Print the raw services document")
	rootCmd.AddCommand(servicesCmd)
}

func runServices(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	meta, err := resolveRuntime(ctx, &servicesSel)
	if err != nil {
		return err
	}

	services, err := client().Services(ctx, meta.PID)
	if err != nil {
		return err
	}

	if servicesJSON {
		return printJSON(out, services)
	}

	if len(services.Services) == 0 {
		logInfo("%s hosts no services", runtimeLabel(meta))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tENTRYPOINT\tURL")
	fmt.Fprintln(w, "--\t----\t------\t----------\t---")
	for _, svc := range services.Services {
		entry := ""
		if svc.Entrypoint || svc.ID == services.Entrypoint {
			entry = "yes"
		}
		url := svc.URL
		if url == "" {
			url = svc.LocalURL
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			svc.ID, orDash(svc.Type), orDash(svc.Status), orDash(entry), orDash(url))
	}
	return w.Flush()
}
