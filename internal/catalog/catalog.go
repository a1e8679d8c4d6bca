// Package catalog holds the curated destination catalog and the embedding
// similarity gate that decides whether a query can be served from it.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/voyago-ai/voyago"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// catalogFile is the on-disk format of a destination catalog.
type catalogFile struct {
	Destinations []voyago.CatalogEntry `yaml:"destinations"`
}

// Load reads a destination catalog from a YAML file. Entry indices are
// assigned from file order, which fixes the tie-break order of the gate.
func Load(path string) ([]voyago.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return parse(data)
}

// Default returns the built-in destination catalog.
func Default() []voyago.CatalogEntry {
	entries, err := parse(defaultCatalogYAML)
	if err != nil {
		// The embedded catalog is validated by tests; reaching this means
		// a broken build.
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return entries
}

func parse(data []byte) ([]voyago.CatalogEntry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	if len(file.Destinations) == 0 {
		return nil, fmt.Errorf("catalog contains no destinations")
	}

	seen := make(map[string]struct{}, len(file.Destinations))
	for i := range file.Destinations {
		entry := &file.Destinations[i]
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog entry %d has no name", i)
		}
		if entry.Summary == "" {
			return nil, fmt.Errorf("catalog entry '%s' has no summary", entry.Name)
		}
		if _, dup := seen[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog entry '%s'", entry.Name)
		}
		seen[entry.Name] = struct{}{}
		entry.Index = i
	}

	return file.Destinations, nil
}
