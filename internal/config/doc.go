// Package config loads runtime configuration and resolves rtctl's paths.
//
// # Runtime Configuration
//
// A runtime is started from a config file found in its project directory:
//
//	platformatic.json   plain JSON
//	platformatic.jsonc  JSON with comments and trailing commas
//	platformatic.toml
//	platformatic.yaml / platformatic.yml
//
// Every format is decoded into the same RuntimeConfig:
//
//	type RuntimeConfig struct {
//	    Entrypoint string           // service receiving external traffic
//	    HotReload  bool             // start the execution unit with a loader hook
//	    Autoload   *Autoload        // load every directory under a path
//	    Services   []ServiceEntry   // explicitly declared services
//	    Dashboard  *DashboardConfig // management side channel, "true" for defaults
//	}
//
// Service paths are resolved with filepath-securejoin so a config can never
// point outside its own directory.
//
// # Paths
//
// Paths holds the control socket directory and rtctl's state directory.
// RTCTL_SOCKET_DIR and RTCTL_STATE_DIR override the defaults.
//
// # Validation
//
// LoadRuntimeConfig validates after parsing.
package config
