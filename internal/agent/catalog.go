package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape of the agent roster file.
type catalogFile struct {
	Agents []Definition `yaml:"agents"`
}

// LoadRoster reads a YAML roster file.
//
// Example file:
//
//	agents:
//	  - id: gpt
//	    kind: cloud
//	    provider: openai
//	    model: gpt-4
//	    active: true
//	    aliases: [gpt, gpt4]
//	  - id: llama
//	    kind: local
//	    channel: default
//	    active: true
//
// A missing file yields an empty roster rather than an error, so the CLI can
// report "no agents configured" instead of failing to start.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRoster(nil), nil
		}
		return nil, fmt.Errorf("read agents file: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agents file: %w", err)
	}

	for i, a := range file.Agents {
		if a.ID == "" {
			return nil, fmt.Errorf("agents[%d]: id is required", i)
		}
		if a.Kind != KindCloud && a.Kind != KindLocal {
			return nil, fmt.Errorf("agent %q: kind must be cloud or local, got %q", a.ID, a.Kind)
		}
		if a.Kind == KindCloud && a.Provider == "" {
			return nil, fmt.Errorf("agent %q: cloud agents need a provider", a.ID)
		}
	}
	return NewRoster(file.Agents), nil
}
