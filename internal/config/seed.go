package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sdslabs/policyctl/internal/domain"
)

// SeedControllerEntry is the YAML shape of one row in a controllers
// seed file: enough to construct a domain.GlobalController without an
// ID, which the store assigns on first load.
type SeedControllerEntry struct {
	DSLFilter    string `yaml:"dsl_filter"`
	Method       string `yaml:"method"`
	PollSchedule string `yaml:"poll_schedule"`
	Enabled      bool   `yaml:"enabled"`
}

// SeedObjectTypeEntry is the YAML shape of one row in an object-types
// seed file.
type SeedObjectTypeEntry struct {
	Name       string   `yaml:"name"`
	Extensions []string `yaml:"extensions"`
}

// Seed is the parsed content of the two bootstrap files an operator
// may point POLICYCTL_CONTROLLERS_SEED / POLICYCTL_OBJECT_TYPES_SEED
// at, loaded once at startup and applied only when the store has no
// existing record for a given key (never overwrites live state).
type Seed struct {
	Controllers []SeedControllerEntry `yaml:"controllers"`
	ObjectTypes []SeedObjectTypeEntry `yaml:"object_types"`
}

// LoadControllerSeed parses a controllers.yaml file. An empty path
// returns no entries and a nil error since seeding is optional.
func LoadControllerSeed(path string) ([]SeedControllerEntry, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read controller seed: %w", err)
	}
	var doc struct {
		Controllers []SeedControllerEntry `yaml:"controllers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse controller seed: %w", err)
	}
	return doc.Controllers, nil
}

// LoadObjectTypeSeed parses an object_types.yaml file, same optional
// semantics as LoadControllerSeed.
func LoadObjectTypeSeed(path string) ([]SeedObjectTypeEntry, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: read object type seed: %w", err)
	}
	var doc struct {
		ObjectTypes []SeedObjectTypeEntry `yaml:"object_types"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse object type seed: %w", err)
	}
	return doc.ObjectTypes, nil
}

// ToDomain converts a parsed seed row into a domain.GlobalController
// awaiting an ID from the store's counter.
func (e SeedControllerEntry) ToDomain() domain.GlobalController {
	return domain.GlobalController{
		DSLFilter:    e.DSLFilter,
		MethodType:   domain.MethodType(e.Method),
		PollSchedule: e.PollSchedule,
		Enabled:      e.Enabled,
	}
}
