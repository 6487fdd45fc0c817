// Package testutil provides fake runtimes and fixtures for tests.
//
// # Fixtures
//
// JSON fixtures are embedded using go:embed:
//
//	fixtures/runtime_metadata.json
//	fixtures/runtime_services.json
//	fixtures/runtime_config.json
//
// # Fake Runtimes
//
// A TestEnv owns a private socket directory. Each fake runtime added to it
// serves the real control API over a unix socket named after its pid, so
// discovery and the control client run unmodified against it:
//
//	env := testutil.NewTestEnv(t)
//	fake := env.AddRuntime(testutil.Metadata(101, "shop"))
//	fake.Fail(errors.OpEnv, "boom")
//
//	client := env.Client()
//	meta, err := client.Metadata(ctx, 101)
package testutil
