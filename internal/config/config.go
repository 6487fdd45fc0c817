package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/firefly-engineering/rtctl/internal/endpoint"
)

const (
	// EnvSocketDir overrides the directory scanned for control sockets.
	EnvSocketDir = "RTCTL_SOCKET_DIR"
	// EnvStateDir overrides where rtctl keeps its own state (audit log).
	EnvStateDir = "RTCTL_STATE_DIR"

	DefaultDashboardHostname = "127.0.0.1"
	DefaultDashboardPort     = 4042
)

// ConfigFileNames lists the runtime config files looked up in a project
// directory, in order of preference.
var ConfigFileNames = []string{
	"platformatic.json",
	"platformatic.jsonc",
	"platformatic.toml",
	"platformatic.yaml",
	"platformatic.yml",
}

// RuntimeConfig is the configuration a runtime is started with.
type RuntimeConfig struct {
	Schema        string           `json:"$schema,omitempty"`
	Entrypoint    string           `json:"entrypoint,omitempty"`
	HotReload     bool             `json:"hotReload,omitempty"`
	Autoload      *Autoload        `json:"autoload,omitempty"`
	Services      []ServiceEntry   `json:"services,omitempty"`
	Server        *ServerConfig    `json:"server,omitempty"`
	Dashboard     *DashboardConfig `json:"dashboard,omitempty"`
	ManagementAPI bool             `json:"managementApi,omitempty"`

	// Path is the file the config was loaded from.
	Path string `json:"-"`

	// Raw holds every key of the file, including ones not modelled above.
	Raw map[string]any `json:"-"`
}

// Autoload loads every directory under Path as a service.
type Autoload struct {
	Path    string   `json:"path"`
	Exclude []string `json:"exclude,omitempty"`
}

// ServiceEntry declares one service explicitly.
type ServiceEntry struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Config string `json:"config,omitempty"`
}

type ServerConfig struct {
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// DashboardConfig enables the management side channel. In config files it
// may also be written as a plain boolean.
type DashboardConfig struct {
	Hostname string `json:"hostname,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Address returns host:port with defaults applied.
func (d *DashboardConfig) Address() (string, int) {
	host, port := d.Hostname, d.Port
	if host == "" {
		host = DefaultDashboardHostname
	}
	if port == 0 {
		port = DefaultDashboardPort
	}
	return host, port
}

// Dir returns the directory holding the config file.
func (c *RuntimeConfig) Dir() string {
	return filepath.Dir(c.Path)
}

// Validate checks that the RuntimeConfig is valid.
func (c *RuntimeConfig) Validate() error {
	if c.Autoload == nil && len(c.Services) == 0 {
		return fmt.Errorf("at least one of autoload or services is required")
	}

	seen := make(map[string]bool)
	for _, svc := range c.Services {
		if svc.ID == "" {
			return fmt.Errorf("service id is required")
		}
		if svc.Path == "" {
			return fmt.Errorf("service %s: path is required", svc.ID)
		}
		if seen[svc.ID] {
			return fmt.Errorf("duplicate service id: %s", svc.ID)
		}
		seen[svc.ID] = true
	}

	if c.Entrypoint == "" && len(c.Services) > 1 {
		return fmt.Errorf("entrypoint is required when more than one service is declared")
	}
	if c.Entrypoint != "" && len(c.Services) > 0 && c.Autoload == nil && !seen[c.Entrypoint] {
		return fmt.Errorf("entrypoint %s is not a declared service", c.Entrypoint)
	}

	if c.Server != nil {
		if err := validatePort(c.Server.Port); err != nil {
			return fmt.Errorf("server: %w", err)
		}
	}
	if c.Dashboard != nil {
		if err := validatePort(c.Dashboard.Port); err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
	}

	return nil
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}

// FindConfigFile returns the first runtime config file present in dir.
func FindConfigFile(dir string) (string, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no runtime config found in %s (looked for %s)", dir, strings.Join(ConfigFileNames, ", "))
}

// LoadRuntimeConfig loads and validates a runtime config file. The format
// is chosen by extension: .json and .jsonc (comments and trailing commas
// allowed), .toml, .yaml and .yml.
func LoadRuntimeConfig(path string) (*RuntimeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime config: %w", err)
	}

	raw, err := decodeRaw(path, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse runtime config %s: %w", path, err)
	}

	config, err := fromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse runtime config %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}
	config.Path = abs

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime config %s: %w", path, err)
	}

	return config, nil
}

// LoadRuntimeConfigDir finds and loads the runtime config in dir.
func LoadRuntimeConfigDir(dir string) (*RuntimeConfig, error) {
	path, err := FindConfigFile(dir)
	if err != nil {
		return nil, err
	}
	return LoadRuntimeConfig(path)
}

func decodeRaw(path string, data []byte) (map[string]any, error) {
	raw := make(map[string]any)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	return raw, nil
}

// fromRaw maps the format-neutral document onto RuntimeConfig. A boolean
// dashboard value enables or disables the side channel with defaults.
func fromRaw(raw map[string]any) (*RuntimeConfig, error) {
	doc := make(map[string]any, len(raw))
	for k, v := range raw {
		doc[k] = v
	}
	if enabled, ok := doc["dashboard"].(bool); ok {
		if enabled {
			doc["dashboard"] = map[string]any{}
		} else {
			delete(doc, "dashboard")
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var config RuntimeConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	config.Raw = raw
	return &config, nil
}

// ServiceDir resolves a service path relative to the config directory. The
// result never escapes that directory, symlinks included.
func (c *RuntimeConfig) ServiceDir(path string) (string, error) {
	dir, err := securejoin.SecureJoin(c.Dir(), path)
	if err != nil {
		return "", fmt.Errorf("invalid service path %q: %w", path, err)
	}
	return dir, nil
}

// ResolveServices returns the declared services followed by the autoloaded
// ones, with paths resolved inside the config directory.
func (c *RuntimeConfig) ResolveServices() ([]ServiceEntry, error) {
	var services []ServiceEntry
	seen := make(map[string]bool)

	for _, svc := range c.Services {
		dir, err := c.ServiceDir(svc.Path)
		if err != nil {
			return nil, fmt.Errorf("service %s: %w", svc.ID, err)
		}
		svc.Path = dir
		services = append(services, svc)
		seen[svc.ID] = true
	}

	if c.Autoload == nil {
		return services, nil
	}

	root, err := c.ServiceDir(c.Autoload.Path)
	if err != nil {
		return nil, fmt.Errorf("autoload: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read autoload directory: %w", err)
	}

	excluded := make(map[string]bool, len(c.Autoload.Exclude))
	for _, name := range c.Autoload.Exclude {
		excluded[name] = true
	}

	var autoloaded []ServiceEntry
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || excluded[name] || seen[name] || strings.HasPrefix(name, ".") {
			continue
		}
		dir, err := securejoin.SecureJoin(root, name)
		if err != nil {
			return nil, fmt.Errorf("autoload %s: %w", name, err)
		}
		autoloaded = append(autoloaded, ServiceEntry{ID: name, Path: dir})
	}
	sort.Slice(autoloaded, func(i, j int) bool { return autoloaded[i].ID < autoloaded[j].ID })

	return append(services, autoloaded...), nil
}

// Paths holds the configured paths
type Paths struct {
	SocketDir string
	StateDir  string
	AuditLog  string
}

// DefaultPaths returns the default path configuration, honouring
// RTCTL_SOCKET_DIR and RTCTL_STATE_DIR.
func DefaultPaths() *Paths {
	socketDir := endpoint.DefaultDir()
	if dir := os.Getenv(EnvSocketDir); dir != "" {
		socketDir = dir
	}

	stateDir := os.Getenv(EnvStateDir)
	if stateDir == "" {
		if cache, err := os.UserCacheDir(); err == nil {
			stateDir = filepath.Join(cache, "rtctl")
		} else {
			stateDir = filepath.Join(os.TempDir(), "rtctl")
		}
	}

	return &Paths{
		SocketDir: socketDir,
		StateDir:  stateDir,
		AuditLog:  filepath.Join(stateDir, "audit.jsonl"),
	}
}
