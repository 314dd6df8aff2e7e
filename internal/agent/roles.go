package agent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoleAssignment pairs a role name with an optional objective for one agent.
type RoleAssignment struct {
	Role      string `yaml:"role"`
	Objective string `yaml:"objective,omitempty"`
}

// rolesFile is the on-disk shape of a role assignment file.
type rolesFile struct {
	Roles map[string]RoleAssignment `yaml:"roles"`
}

// LoadRoles reads a YAML role assignment file mapping agent ids to roles.
//
// Example file:
//
//	roles:
//	  gpt:
//	    role: implementer
//	    objective: propose a working solution
//	  claude:
//	    role: critic
//	    objective: find flaws in the latest proposal
//
// A missing file is not an error; it yields an empty map so conversations can
// run without explicit role assignments.
func LoadRoles(path string) (map[string]RoleAssignment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]RoleAssignment{}, nil
		}
		return nil, fmt.Errorf("read roles file: %w", err)
	}

	var file rolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse roles file: %w", err)
	}
	if file.Roles == nil {
		file.Roles = map[string]RoleAssignment{}
	}
	return file.Roles, nil
}

// ApplyRoles returns a copy of the definitions with roles and objectives from
// the assignment map overlaid. Assignments for unknown agent ids are ignored.
func ApplyRoles(agents []Definition, roles map[string]RoleAssignment) []Definition {
	out := make([]Definition, len(agents))
	copy(out, agents)
	for i, a := range out {
		if assignment, ok := roles[a.ID]; ok {
			if assignment.Role != "" {
				out[i].Role = assignment.Role
			}
			if assignment.Objective != "" {
				out[i].Objective = assignment.Objective
			}
		}
	}
	return out
}
