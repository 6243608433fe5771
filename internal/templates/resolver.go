package templates

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/store"
	"firewall-policy-resolver/pkg/wellknown"
)

var (
	ErrTemplateNotApplied     = errors.New("template not applied")
	ErrTemplateAlreadyApplied = errors.New("template already applied")
)

// TemplateNotAppliedError is returned by Remove when the scope carries no
// collection named after the template.
type TemplateNotAppliedError struct {
	Template string
	Scope    model.Scope
}

func (e *TemplateNotAppliedError) Error() string {
	return fmt.Sprintf("template %q is not applied to %s", e.Template, e.Scope)
}

func (e *TemplateNotAppliedError) Is(target error) bool {
	return target == ErrTemplateNotApplied
}

// Matcher returns a predicate that reports whether a collection name is one
// of the catalog's template identifiers.
func Matcher(catalog []model.Template) func(name string) bool {
	ids := make(map[string]struct{}, len(catalog))
	for _, t := range catalog {
		ids[t.Template] = struct{}{}
	}
	return func(name string) bool {
		_, ok := ids[name]
		return ok
	}
}

// IsApplied reports whether any of filters is named after tpl.
func IsApplied(tpl model.Template, filters []model.RuleCollection) bool {
	return findByName(filters, tpl.Template) != nil
}

// AppliedIn lists every (template, scope) pair found in filters, in catalog order.
func AppliedIn(catalog []model.Template, filters []model.RuleCollection) []model.AppliedTemplate {
	applied := []model.AppliedTemplate{}
	for _, tpl := range catalog {
		for _, f := range filters {
			if f.Name == tpl.Template {
				applied = append(applied, model.AppliedTemplate{Template: tpl, Scope: f.Type, FilterID: f.ID})
			}
		}
	}
	return applied
}

func findByName(filters []model.RuleCollection, name string) *model.RuleCollection {
	for i := range filters {
		if filters[i].Name == name {
			return &filters[i]
		}
	}
	return nil
}

// Resolver applies and removes templates against a FilterStore. The
// check-then-act sequence is not atomic; the store's unique (scope, name)
// constraint settles concurrent applies.
type Resolver struct {
	store  store.FilterStore
	logger *slog.Logger
	now    func() time.Time
}

func NewResolver(s store.FilterStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: s, logger: logger, now: time.Now}
}

func (r *Resolver) IsApplied(tpl model.Template, scope model.Scope) (bool, error) {
	filters, err := r.store.ListFilters(scope)
	if err != nil {
		return false, fmt.Errorf("listing filters for %s: %w", scope, err)
	}
	return IsApplied(tpl, filters), nil
}

// Applied returns the catalog templates currently applied to scope.
func (r *Resolver) Applied(catalog []model.Template, scope model.Scope) ([]model.Template, error) {
	filters, err := r.store.ListFilters(scope)
	if err != nil {
		return nil, fmt.Errorf("listing filters for %s: %w", scope, err)
	}
	var out []model.Template
	for _, a := range AppliedIn(catalog, filters) {
		out = append(out, a.Template)
	}
	return out, nil
}

// Apply creates the template's collection in scope. It refuses when the
// template is already applied.
func (r *Resolver) Apply(tpl model.Template, scope model.Scope) (*model.RuleCollection, error) {
	applied, err := r.IsApplied(tpl, scope)
	if err != nil {
		return nil, err
	}
	if applied {
		return nil, fmt.Errorf("%w: %s on %s", ErrTemplateAlreadyApplied, tpl.Template, scope)
	}

	rules, err := Materialize(tpl)
	if err != nil {
		return nil, err
	}

	filter := &model.RuleCollection{
		ID:          uuid.NewString(),
		Name:        tpl.Template,
		Type:        scope.Type,
		ScopeID:     scope.ID,
		Description: fmt.Sprintf("Applied from template %s", displayName(tpl)),
		Rules:       rules,
		UpdatedAt:   r.now().UTC(),
	}
	if err := r.store.CreateFilter(filter); err != nil {
		return nil, fmt.Errorf("applying template %s to %s: %w", tpl.Template, scope, err)
	}
	r.logger.Info("Template applied", "template", tpl.Template, "scope", scope.String(), "filter_id", filter.ID, "rules", len(rules))
	return filter, nil
}

// Remove deletes the collection named after the template from scope.
func (r *Resolver) Remove(tpl model.Template, scope model.Scope) error {
	filters, err := r.store.ListFilters(scope)
	if err != nil {
		return fmt.Errorf("listing filters for %s: %w", scope, err)
	}
	filter := findByName(filters, tpl.Template)
	if filter == nil {
		return &TemplateNotAppliedError{Template: tpl.Template, Scope: scope}
	}
	if err := r.store.DeleteFilter(filter.ID); err != nil {
		return fmt.Errorf("removing template %s from %s: %w", tpl.Template, scope, err)
	}
	r.logger.Info("Template removed", "template", tpl.Template, "scope", scope.String(), "filter_id", filter.ID)
	return nil
}

// Materialize expands a template's rule specs into full rules with fresh ids.
func Materialize(tpl model.Template) ([]model.Rule, error) {
	rules := make([]model.Rule, 0, len(tpl.Rules))
	for i, spec := range tpl.Rules {
		proto := spec.Protocol.Normalize()
		ports, err := wellknown.ResolvePort(spec.Port, proto)
		if err != nil {
			return nil, fmt.Errorf("template %s rule %d: %w", tpl.Template, i, err)
		}
		rule := model.Rule{
			ID:        uuid.NewString(),
			Protocol:  proto,
			Direction: spec.Direction,
			Action:    spec.Action,
			Comment:   spec.Description,
		}
		if !ports.Any {
			start, end := ports.Start, ports.End
			rule.DstPortStart = &start
			rule.DstPortEnd = &end
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func displayName(tpl model.Template) string {
	if tpl.Name != "" {
		return tpl.Name
	}
	return tpl.Template
}
