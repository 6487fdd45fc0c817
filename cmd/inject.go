package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/rtctl/internal/control"
	"github.com/firefly-engineering/rtctl/internal/errors"
)

var injectCmd = &cobra.Command{
	Use:   "inject <path>",
	Short: "Send an HTTP request to a service through its runtime",
	Long: `Send an HTTP request to a service hosted by a runtime, through the
runtime's control endpoint. The service does not need to listen on a port.

Without --service the runtime's entrypoint service is used.

Examples:
  rtctl inject -n shop /health
  rtctl inject -n shop -s api -X POST -H 'Content-Type: application/json' -d '{"id":1}' /users`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

var (
	injectSel     selectorFlags
	injectService string
	injectMethod  string
	injectHeaders []string
	injectData    string
	injectInclude bool
)

func init() {
	injectSel.register(injectCmd)
	injectCmd.Flags().StringVarP(&injectService, "service", "s", "", "Target service (default: the entrypoint)")
	injectCmd.Flags().StringVarP(&injectMethod, "request", "X", http.MethodGet, "HTTP method")
	injectCmd.Flags().StringArrayVarP(&injectHeaders, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	injectCmd.Flags().StringVarP(&injectData, "data", "d", "", "Request body")
	injectCmd.Flags().BoolVarP(&injectInclude, "include", "i", false, "Print the response status and headers")
	rootCmd.AddCommand(injectCmd)
}

func runInject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	meta, err := resolveRuntime(ctx, &injectSel)
	if err != nil {
		return err
	}

	serviceID := injectService
	if serviceID == "" {
		serviceID, err = entrypointService(ctx, meta.PID)
		if err != nil {
			return err
		}
	}

	header, err := parseHeaders(injectHeaders)
	if err != nil {
		return err
	}

	req := control.ProxyRequest{
		Method: strings.ToUpper(injectMethod),
		URL:    args[0],
		Header: header,
	}
	if injectData != "" {
		req.Body = strings.NewReader(injectData)
	}

	resp, err := client().Proxy(ctx, meta.PID, serviceID, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if injectInclude {
		fmt.Fprintf(out, "%s %s\n", resp.Proto, resp.Status)
		if err := resp.Header.Write(out); err != nil {
			return err
		}
		fmt.Fprintln(out)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	return nil
}

// entrypointService returns the service a runtime routes external traffic to.
func entrypointService(ctx context.Context, pid int) (string, error) {
	services, err := client().Services(ctx, pid)
	if err != nil {
		return "", err
	}
	if services.Entrypoint != "" {
		return services.Entrypoint, nil
	}
	for _, svc := range services.Services {
		if svc.Entrypoint {
			return svc.ID, nil
		}
	}
	return "", errors.ValidationError("runtime has no entrypoint service; pass --service")
}

// parseHeaders turns curl-style "Name: value" strings into a header set.
func parseHeaders(raw []string) (http.Header, error) {
	header := http.Header{}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.ValidationError(fmt.Sprintf("invalid header %q, expected 'Name: value'", h))
		}
		header.Add(name, strings.TrimSpace(value))
	}
	return header, nil
}
