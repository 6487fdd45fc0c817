package testutil

import (
	"embed"
	"encoding/json"

	"github.com/firefly-engineering/rtctl/internal/control"
)

//go:embed fixtures/*.json
var fixturesFS embed.FS

// LoadFixture loads a JSON fixture file by name.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile("fixtures/" + name)
}

func loadJSON[T any](name string) (T, error) {
	var out T
	data, err := LoadFixture(name)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

// RuntimeMetadata returns the metadata fixture.
func RuntimeMetadata() (control.RuntimeMetadata, error) {
	return loadJSON[control.RuntimeMetadata]("runtime_metadata.json")
}

// RuntimeServices returns the services fixture.
func RuntimeServices() (control.Services, error) {
	return loadJSON[control.Services]("runtime_services.json")
}

// RuntimeConfig returns the runtime config fixture.
func RuntimeConfig() (map[string]any, error) {
	return loadJSON[map[string]any]("runtime_config.json")
}

// Metadata returns the metadata fixture rewritten for pid and name.
func Metadata(pid int, name string) control.RuntimeMetadata {
	meta, err := RuntimeMetadata()
	if err != nil {
		panic("testutil: broken metadata fixture: " + err.Error())
	}
	meta.PID = pid
	meta.PackageName = name
	return meta
}
