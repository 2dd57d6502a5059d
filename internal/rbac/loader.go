package rbac

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gatewarden/gatewarden/internal/config"
)

// roleSpecYAML accepts both the shorthand list form
//
//	viewer: ["read:*"]
//
// and the full form
//
//	editor:
//	  permissions: ["write:articles"]
//	  inherits: ["viewer"]
type roleSpecYAML struct {
	Permissions []string `yaml:"permissions"`
	Inherits    []string `yaml:"inherits"`
	Description string   `yaml:"description"`
}

func (r *roleSpecYAML) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&r.Permissions)
	}
	type plain roleSpecYAML
	return node.Decode((*plain)(r))
}

type roleFile struct {
	Roles map[string]roleSpecYAML `yaml:"roles"`
}

// LoadRoleFile parses a YAML role file into role specs. The file may wrap
// definitions under a top-level "roles:" key or be a bare role map.
func LoadRoleFile(path string) (map[string]config.RoleSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read role file: %w", err)
	}
	return ParseRoles(data)
}

// ParseRoles decodes role definitions from YAML bytes.
func ParseRoles(data []byte) (map[string]config.RoleSpec, error) {
	var wrapped roleFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Roles) > 0 {
		return toSpecs(wrapped.Roles), nil
	}

	var bare map[string]roleSpecYAML
	if err := yaml.Unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("failed to parse roles: %w", err)
	}
	return toSpecs(bare), nil
}

func toSpecs(in map[string]roleSpecYAML) map[string]config.RoleSpec {
	out := make(map[string]config.RoleSpec, len(in))
	for name, spec := range in {
		out[name] = config.RoleSpec{
			Permissions: spec.Permissions,
			Inherits:    spec.Inherits,
			Description: spec.Description,
		}
	}
	return out
}
