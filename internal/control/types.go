package control

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// RuntimeMetadata is a snapshot of a runtime's identity and launch details.
type RuntimeMetadata struct {
	PID                 int      `json:"pid"`
	Cwd                 string   `json:"cwd,omitempty"`
	Argv                []string `json:"argv,omitempty"`
	UptimeSeconds       float64  `json:"uptimeSeconds,omitempty"`
	ExecPath            string   `json:"execPath,omitempty"`
	NodeVersion         string   `json:"nodeVersion,omitempty"`
	ProjectDir          string   `json:"projectDir,omitempty"`
	PackageName         string   `json:"packageName,omitempty"`
	PackageVersion      string   `json:"packageVersion,omitempty"`
	URL                 string   `json:"url,omitempty"`
	PlatformaticVersion string   `json:"platformaticVersion,omitempty"`
}

// Command returns the launch command, argv[0].
func (m RuntimeMetadata) Command() string {
	if len(m.Argv) == 0 {
		return ""
	}
	return m.Argv[0]
}

// Args returns the launch arguments, argv[1:].
func (m RuntimeMetadata) Args() []string {
	if len(m.Argv) < 2 {
		return nil
	}
	return m.Argv[1:]
}

// ServiceDescriptor describes one service hosted inside a runtime.
type ServiceDescriptor struct {
	ID         string         `json:"id"`
	Type       string         `json:"type,omitempty"`
	Status     string         `json:"status,omitempty"`
	Entrypoint bool           `json:"entrypoint,omitempty"`
	URL        string         `json:"url,omitempty"`
	LocalURL   string         `json:"localUrl,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
}

// Services is the body of GET /api/services.
type Services struct {
	Entrypoint string              `json:"entrypoint,omitempty"`
	Production bool                `json:"production"`
	Services   []ServiceDescriptor `json:"services"`
}

// LogFilter narrows a log stream. The zero value streams everything.
type LogFilter struct {
	Level     string
	Pretty    bool
	ServiceID string
}

// IsZero reports whether no filter is set.
func (f LogFilter) IsZero() bool {
	return f.Level == "" && !f.Pretty && f.ServiceID == ""
}

// Query encodes the set filters.
func (f LogFilter) Query() url.Values {
	q := url.Values{}
	if f.Level != "" {
		q.Set("level", f.Level)
	}
	if f.Pretty {
		q.Set("pretty", strconv.FormatBool(f.Pretty))
	}
	if f.ServiceID != "" {
		q.Set("serviceId", f.ServiceID)
	}
	return q
}

// ProxyRequest is forwarded verbatim to a service through the runtime.
type ProxyRequest struct {
	Method string

	// URL is the path (and optional query) inside the service, e.g. "/users?id=1".
	URL    string
	Header http.Header
	Query  url.Values
	Body   io.Reader
}

// SpawnOptions override how Restart launches the replacement process.
type SpawnOptions struct {
	// Env replaces the inherited environment when non-nil.
	Env []string

	// Dir overrides the working directory reported by the old runtime.
	Dir string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	Detach bool
}
