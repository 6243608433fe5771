package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"firewall-policy-resolver/internal/model"
)

// ParseFilters reads a JSON array of rule collections as returned by the API.
func ParseFilters(r io.Reader) ([]model.RuleCollection, error) {
	var filters []model.RuleCollection
	dec := json.NewDecoder(r)
	if err := dec.Decode(&filters); err != nil {
		return nil, fmt.Errorf("decoding filters: %w", err)
	}
	for i, f := range filters {
		switch f.Type {
		case model.ScopeDepartment, model.ScopeVM:
		default:
			return nil, fmt.Errorf("filter %d (%q): unknown type %q", i, f.Name, f.Type)
		}
	}
	return filters, nil
}

// SplitByScope separates department and VM collections, keeping order.
func SplitByScope(filters []model.RuleCollection) (dept, vm []model.RuleCollection) {
	for _, f := range filters {
		if f.Type == model.ScopeDepartment {
			dept = append(dept, f)
		} else {
			vm = append(vm, f)
		}
	}
	return dept, vm
}

type templateCatalog struct {
	Templates []model.Template `yaml:"templates"`
}

// ParseTemplates reads a YAML template catalog.
func ParseTemplates(r io.Reader) ([]model.Template, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading template catalog: %w", err)
	}
	var catalog templateCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing template catalog YAML: %w", err)
	}
	if err := validateCatalog(catalog.Templates); err != nil {
		return nil, fmt.Errorf("validating template catalog: %w", err)
	}
	return catalog.Templates, nil
}

func validateCatalog(templates []model.Template) error {
	seen := make(map[string]bool)
	for i, t := range templates {
		id := strings.TrimSpace(t.Template)
		if id == "" {
			return fmt.Errorf("template %d: identifier is required", i)
		}
		if seen[id] {
			return fmt.Errorf("template %q: duplicate identifier", id)
		}
		seen[id] = true
	}
	return nil
}

// FindTemplate looks a template up by identifier.
func FindTemplate(catalog []model.Template, id string) (model.Template, bool) {
	for _, t := range catalog {
		if t.Template == id {
			return t, true
		}
	}
	return model.Template{}, false
}
