package workflow

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/iota-uz/entity-registry/pkg/authz"
)

//go:embed entity_change.yaml
var entityChangeYAML []byte

type StateDefinition struct {
	Key   string `yaml:"key"`
	Final bool   `yaml:"final"`
}

type ActionDefinition struct {
	Key   string   `yaml:"key"`
	From  []string `yaml:"from"`
	To    string   `yaml:"to"`
	Roles []string `yaml:"roles"`
}

// Definition is a state graph plus the roles allowed to fire each action.
type Definition struct {
	Code         string             `yaml:"code"`
	Name         string             `yaml:"name"`
	InitialState string             `yaml:"initial_state"`
	States       []StateDefinition  `yaml:"states"`
	Actions      []ActionDefinition `yaml:"actions"`
}

// DefaultDefinition returns the built-in entity change definition.
func DefaultDefinition() Definition {
	def, err := ParseDefinitionYAML(entityChangeYAML)
	if err != nil {
		panic(fmt.Sprintf("workflow: embedded definition is invalid: %v", err))
	}
	return def
}

// ParseDefinitionYAML decodes and normalizes a definition.
func ParseDefinitionYAML(data []byte) (Definition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Definition{}, fmt.Errorf("workflow: definition payload is empty")
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("workflow: decode definition: %w", err)
	}
	return def.Normalized()
}

// LoadDefinitionFile loads a definition from an explicit file path.
func LoadDefinitionFile(path string) (Definition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	def, err := ParseDefinitionYAML(content)
	if err != nil {
		return Definition{}, fmt.Errorf("workflow: %s: %w", path, err)
	}
	return def, nil
}

// Normalized lowercases keys and roles and validates the graph.
func (d Definition) Normalized() (Definition, error) {
	out := Definition{
		Code:         normalizeKey(d.Code),
		Name:         strings.TrimSpace(d.Name),
		InitialState: normalizeKey(d.InitialState),
	}
	for _, s := range d.States {
		out.States = append(out.States, StateDefinition{Key: normalizeKey(s.Key), Final: s.Final})
	}
	for _, a := range d.Actions {
		na := ActionDefinition{Key: normalizeKey(a.Key), To: normalizeKey(a.To)}
		for _, f := range a.From {
			na.From = append(na.From, normalizeKey(f))
		}
		for _, r := range a.Roles {
			na.Roles = append(na.Roles, normalizeKey(r))
		}
		out.Actions = append(out.Actions, na)
	}
	if err := out.Validate(); err != nil {
		return Definition{}, err
	}
	return out, nil
}

func (d Definition) Validate() error {
	if d.Code == "" {
		return fmt.Errorf("workflow: definition code is required")
	}
	states := make(map[string]StateDefinition, len(d.States))
	for _, s := range d.States {
		if s.Key == "" {
			return fmt.Errorf("workflow: %s: state key is required", d.Code)
		}
		if _, dup := states[s.Key]; dup {
			return fmt.Errorf("workflow: %s: duplicate state %q", d.Code, s.Key)
		}
		states[s.Key] = s
	}
	initial, ok := states[d.InitialState]
	if !ok {
		return fmt.Errorf("workflow: %s: unknown initial state %q", d.Code, d.InitialState)
	}
	if initial.Final {
		return fmt.Errorf("workflow: %s: initial state %q is final", d.Code, d.InitialState)
	}
	actions := make(map[string]struct{}, len(d.Actions))
	for _, a := range d.Actions {
		if a.Key == "" {
			return fmt.Errorf("workflow: %s: action key is required", d.Code)
		}
		if _, dup := actions[a.Key]; dup {
			return fmt.Errorf("workflow: %s: duplicate action %q", d.Code, a.Key)
		}
		actions[a.Key] = struct{}{}
		if _, ok := states[a.To]; !ok {
			return fmt.Errorf("workflow: %s: action %q targets unknown state %q", d.Code, a.Key, a.To)
		}
		if len(a.From) == 0 {
			return fmt.Errorf("workflow: %s: action %q has no source state", d.Code, a.Key)
		}
		for _, f := range a.From {
			s, ok := states[f]
			if !ok {
				return fmt.Errorf("workflow: %s: action %q starts from unknown state %q", d.Code, a.Key, f)
			}
			if s.Final {
				return fmt.Errorf("workflow: %s: action %q starts from final state %q", d.Code, a.Key, f)
			}
		}
		if len(a.Roles) == 0 {
			return fmt.Errorf("workflow: %s: action %q allows no roles", d.Code, a.Key)
		}
	}
	return nil
}

func (d Definition) Action(key string) (ActionDefinition, bool) {
	key = normalizeKey(key)
	for _, a := range d.Actions {
		if a.Key == key {
			return a, true
		}
	}
	return ActionDefinition{}, false
}

func (d Definition) IsFinal(state string) bool {
	for _, s := range d.States {
		if s.Key == state {
			return s.Final
		}
	}
	return false
}

func (a ActionDefinition) AllowedFrom(state string) bool {
	for _, f := range a.From {
		if f == state {
			return true
		}
	}
	return false
}

// Policies renders casbin rules granting each action to its roles.
func (d Definition) Policies() [][]string {
	out := make([][]string, 0, len(d.Actions)*2)
	for _, a := range d.Actions {
		for _, r := range a.Roles {
			out = append(out, []string{authz.SubjectForRole(r), d.Code, "*", a.Key})
		}
	}
	return out
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
