package engine

import (
	"fmt"
	"sort"

	"github.com/fvbommel/sortorder"

	"firewall-policy-resolver/internal/model"
)

// TemplateMatcher reports whether a collection name is a known template identifier.
type TemplateMatcher func(name string) bool

type rankedRule struct {
	effective  model.EffectiveRule
	collection int
}

// Merge flattens department and VM collections into one effective sequence.
// Department rules always precede VM rules. Within a scope rules sort by
// priority, then collection order, then natural id order. A VM rule that
// shares a (protocol, direction, port) tuple with an enabled department
// rule is kept and tagged with OverriddenBy.
func Merge(filters []model.RuleCollection, isTemplate TemplateMatcher) ([]model.EffectiveRule, error) {
	var dept, vm []rankedRule
	for ci, filter := range filters {
		origin := model.OriginCustom
		if isTemplate != nil && isTemplate(filter.Name) {
			origin = model.OriginTemplate
		}
		for _, rule := range filter.Rules {
			if err := rule.Validate(); err != nil {
				return nil, fmt.Errorf("filter %q: %w", filter.Name, err)
			}
			rr := rankedRule{
				effective: model.EffectiveRule{
					Rule:       rule,
					Scope:      filter.Type,
					FilterID:   filter.ID,
					FilterName: filter.Name,
					Origin:     origin,
					Enabled:    rule.Enabled(),
				},
				collection: ci,
			}
			switch filter.Type {
			case model.ScopeDepartment:
				dept = append(dept, rr)
			case model.ScopeVM:
				vm = append(vm, rr)
			default:
				return nil, fmt.Errorf("filter %q: %w", filter.Name, &model.ValidationError{
					Field:  "type",
					Reason: fmt.Sprintf("unknown scope type %q", filter.Type),
				})
			}
		}
	}

	sortScope(dept)
	sortScope(vm)

	governing := make(map[model.ConflictKey]string)
	for _, rr := range dept {
		if !rr.effective.Enabled {
			continue
		}
		key := conflictKey(rr.effective.Rule)
		if _, ok := governing[key]; !ok {
			governing[key] = rr.effective.ID
		}
	}

	out := make([]model.EffectiveRule, 0, len(dept)+len(vm))
	for _, rr := range dept {
		out = append(out, rr.effective)
	}
	for _, rr := range vm {
		if id, ok := governing[conflictKey(rr.effective.Rule)]; ok {
			rr.effective.OverriddenBy = id
		}
		out = append(out, rr.effective)
	}
	return out, nil
}

func sortScope(rules []rankedRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if pa, pb := a.effective.PriorityValue(), b.effective.PriorityValue(); pa != pb {
			return pa < pb
		}
		if a.collection != b.collection {
			return a.collection < b.collection
		}
		return sortorder.NaturalLess(a.effective.ID, b.effective.ID)
	})
}
