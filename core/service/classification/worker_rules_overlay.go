package classification

import (
	"fmt"
	"os"

	"jobtrack_worker/core/domain"

	"gopkg.in/yaml.v3"
)

// Overlay is the rules section of RULES_FILE. Rules are appended after the
// built-in rules of the same label; a non-empty Priority replaces the default order.
type Overlay struct {
	Priority []domain.EmailType `yaml:"priority"`
	Rules    []RuleSpec         `yaml:"rules"`
}

// LoadOverlay reads the rules section from a YAML file. An empty path yields an empty overlay.
func LoadOverlay(path string) (Overlay, error) {
	var o Overlay
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return o, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(data, &o); err != nil {
		return o, fmt.Errorf("parse rules file: %w", err)
	}
	return o, nil
}

// Apply returns base with the overlay merged in.
func (o Overlay) Apply(base RuleSet) RuleSet {
	out := RuleSet{
		Priority: base.Priority,
		Rules:    append([]RuleSpec(nil), base.Rules...),
	}
	if len(o.Priority) > 0 {
		out.Priority = o.Priority
	}
	out.Rules = append(out.Rules, o.Rules...)
	return out
}
