// Package seed loads the dashboard dataset, either from a JSON file or
// from the copy embedded in the binary.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sweeney/energy-dashboard/internal/energy"
)

//go:embed energy_data.json
var defaultData []byte

// Default returns the embedded sample dataset.
func Default() energy.Dataset {
	ds, err := Parse(defaultData)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded dataset is invalid: %v", err))
	}
	return ds
}

// Parse decodes a dataset from JSON.
func Parse(data []byte) (energy.Dataset, error) {
	var ds energy.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return energy.Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, nil
}

// Load reads and decodes the dataset at path.
func Load(path string) (energy.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return energy.Dataset{}, fmt.Errorf("read seed: %w", err)
	}
	ds, err := Parse(data)
	if err != nil {
		return energy.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// LoadOrDefault loads path, falling back to the embedded dataset when path
// is empty or cannot be loaded. A fallback is logged, not returned.
func LoadOrDefault(path string, log *zap.Logger) energy.Dataset {
	if path == "" {
		return Default()
	}
	ds, err := Load(path)
	if err != nil {
		log.Warn("seed load failed, using embedded dataset", zap.String("path", path), zap.Error(err))
		return Default()
	}
	log.Info("seed loaded", zap.String("path", path), zap.Int("appliances", len(ds.Appliances)))
	return ds
}
