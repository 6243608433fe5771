package engine

import (
	"sort"

	"github.com/fvbommel/sortorder"

	"firewall-policy-resolver/internal/model"
)

const ConflictIssue = "Conflicting actions for same port/protocol"

// DetectConflicts groups enabled rules by (protocol, direction, dst ports)
// and reports every group whose normalized actions disagree. Duplicates
// with the same action are not conflicts. Output does not depend on input order.
// A structurally invalid enabled rule fails the whole call with a
// *model.ValidationError.
func DetectConflicts(rules []model.EffectiveRule) ([]model.Conflict, error) {
	groups := make(map[model.ConflictKey][]model.EffectiveRule)
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		key := conflictKey(rule.Rule)
		groups[key] = append(groups[key], rule)
	}

	var conflicts []model.Conflict
	for key, members := range groups {
		if len(members) < 2 {
			continue
		}
		actions := make(map[model.Action]struct{})
		ids := make([]string, 0, len(members))
		for _, m := range members {
			actions[NormalizeAction(m.Action)] = struct{}{}
			ids = append(ids, m.ID)
		}
		if len(actions) < 2 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return sortorder.NaturalLess(ids[i], ids[j]) })
		conflicts = append(conflicts, model.Conflict{
			Key:     key,
			RuleIDs: ids,
			Issue:   ConflictIssue,
		})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Key.String() < conflicts[j].Key.String()
	})
	return conflicts, nil
}
