package engine

import "firewall-policy-resolver/internal/model"

func intPtr(v int) *int { return &v }

func portRule(id, proto, direction, action string, start, end int) model.Rule {
	return model.Rule{
		ID:           id,
		Protocol:     model.Protocol(proto),
		Direction:    direction,
		Action:       action,
		DstPortStart: intPtr(start),
		DstPortEnd:   intPtr(end),
	}
}

func deptFilter(id, name string, rules ...model.Rule) model.RuleCollection {
	return model.RuleCollection{ID: id, Name: name, Type: model.ScopeDepartment, ScopeID: "dept-1", Rules: rules}
}

func vmFilter(id, name string, rules ...model.Rule) model.RuleCollection {
	return model.RuleCollection{ID: id, Name: name, Type: model.ScopeVM, ScopeID: "vm-1", Rules: rules}
}

func effective(rules ...model.Rule) []model.EffectiveRule {
	out := make([]model.EffectiveRule, 0, len(rules))
	for _, r := range rules {
		out = append(out, model.EffectiveRule{Rule: r, Scope: model.ScopeVM, Enabled: r.Enabled()})
	}
	return out
}

func ruleIDs(rules []model.EffectiveRule) []string {
	ids := make([]string, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}
