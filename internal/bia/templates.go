package bia

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

var templates = mustParseTemplates(templatesYAML)

func mustParseTemplates(data []byte) map[string][]BusinessProcess {
	var out map[string][]BusinessProcess
	if err := yaml.Unmarshal(data, &out); err != nil {
		panic(fmt.Errorf("bia: parse templates: %w", err))
	}
	for name, ps := range out {
		for i := range ps {
			if err := ps[i].Validate(); err != nil {
				panic(fmt.Errorf("bia: template %s[%d]: %w", name, i, err))
			}
		}
	}
	return out
}

// TemplateNames lists the built-in templates alphabetically.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns copies of the processes of a named template.
func Template(name string) ([]BusinessProcess, error) {
	ps, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	out := make([]BusinessProcess, len(ps))
	for i, p := range ps {
		out[i] = p.Clone()
	}
	return out, nil
}
