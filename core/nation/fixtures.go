package nation

import (
	"context"
	"fmt"
	"os"

	"github.com/pyropy/territory/core/model"
	"gopkg.in/yaml.v3"
)

type fixtureFile struct {
	Nations []model.Nation `yaml:"nations"`
}

// LoadYAML reads nation records from a fixture file:
//
//	nations:
//	  - id: nationA
//	    claimed_chunks: ["world:0:0", "world:0:1"]
//	    capital_chunk: "world:0:0"
func LoadYAML(path string) ([]model.Nation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f fixtureFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	for i, n := range f.Nations {
		if n.ID == "" {
			return nil, fmt.Errorf("%s: nation #%d: %w", path, i, ErrEmptyNationID)
		}
	}

	return f.Nations, nil
}

type saver interface {
	Save(ctx context.Context, nation model.Nation) error
}

// Import saves every nation into store and returns how many were written.
func Import(ctx context.Context, store saver, nations []model.Nation) (int, error) {
	for i, n := range nations {
		if err := store.Save(ctx, n); err != nil {
			return i, fmt.Errorf("nation %s: %w", n.ID, err)
		}
	}

	return len(nations), nil
}
