// Package app provides the application context for rtctl.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Paths     *config.Paths         // Socket and state directories
//	    Starter   system.ProcessStarter // Spawns restarted runtimes
//	    Client    *control.Client       // Control client
//	    Discovery *discovery.Service    // Runtime discovery
//	    Audit     *audit.Logger         // Control action trail
//	}
//
// # Creating an App
//
//	// Production usage
//	a := app.New()
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithPaths(testPaths),
//	    app.WithStarter(system.NewMockStarter(1000)),
//	)
//
// # Available Options
//
//	WithPaths(paths)     // Custom path configuration
//	WithStarter(starter) // Custom process starter
//	WithAudit(logger)    // Custom audit logger
package app
