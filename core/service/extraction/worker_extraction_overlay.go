package extraction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Overlay is the extraction section of RULES_FILE. Sources with a known name
// replace the built-in entry; new names are appended. A non-empty Gazetteer
// replaces the default place list.
type Overlay struct {
	Sources   []SourceSpec `yaml:"sources"`
	Gazetteer []string     `yaml:"gazetteer"`
}

// LoadOverlay reads the extraction section from a YAML file. An empty path yields an empty overlay.
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
func (o Overlay) Apply(base Config) Config {
	out := Config{
		Sources:   append([]SourceSpec(nil), base.Sources...),
		Gazetteer: base.Gazetteer,
	}
	for _, s := range o.Sources {
		replaced := false
		for i := range out.Sources {
			if out.Sources[i].Name == s.Name {
				out.Sources[i] = s
				replaced = true
				break
			}
		}
		if !replaced {
			out.Sources = append(out.Sources, s)
		}
	}
	if len(o.Gazetteer) > 0 {
		out.Gazetteer = o.Gazetteer
	}
	return out
}
