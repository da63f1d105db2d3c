// Package reference holds the lookup tables that tie the study's data sources
// together: state names to postal abbreviations, race labels to facts column
// codes, and the facts variables used in correlation analysis.
package reference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

//go:embed reference.yaml
var defaultYAML []byte

// Data is the set of lookup tables passed to loaders and aggregators.
type Data struct {
	IncomeCode           string            `yaml:"income_code"`
	DemographicKeys      map[string]string `yaml:"demographic_keys"`
	CorrelationVariables []string          `yaml:"correlation_variables"`
	StateNames           map[string]string `yaml:"state_names"`
}

// Default returns the embedded tables.
func Default() (*Data, error) {
	return Parse(defaultYAML)
}

// Load reads tables from path, or the embedded defaults when path is empty.
func Load(path string) (*Data, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference data: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML reference document.
func Parse(raw []byte) (*Data, error) {
	var d Data
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse reference data: %w", err)
	}
	if len(d.StateNames) == 0 {
		return nil, errors.New("reference data: state_names is empty")
	}
	if d.DemographicKeys[domain.AllRaces] == "" {
		return nil, fmt.Errorf("reference data: demographic_keys needs an %q entry", domain.AllRaces)
	}
	if d.IncomeCode == "" {
		return nil, errors.New("reference data: income_code is required")
	}
	return &d, nil
}

// PopulationCode is the facts column holding total population.
func (d *Data) PopulationCode() string {
	return d.DemographicKeys[domain.AllRaces]
}

// Races returns the demographic labels other than the total, in a stable order.
func (d *Data) Races() []string {
	order := []string{"White", "Black", "Asian", "Native American", "Hispanic"}
	var out []string
	for _, r := range order {
		if _, ok := d.DemographicKeys[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// StateAbbreviation resolves a full state name.
func (d *Data) StateAbbreviation(name string) (string, bool) {
	abbr, ok := d.StateNames[name]
	return abbr, ok
}
