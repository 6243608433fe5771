package engine

import (
	"fmt"
	"log/slog"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/templates"
)

// Input is everything a resolution pass needs, fully materialized by the caller.
type Input struct {
	DepartmentFilters []model.RuleCollection
	VMFilters         []model.RuleCollection
	Templates         []model.Template
	WithRisk          bool
}

type Result struct {
	Rules            []model.EffectiveRule   `json:"rules"`
	Conflicts        []model.Conflict        `json:"conflicts"`
	Summary          model.Summary           `json:"summary"`
	AppliedTemplates []model.AppliedTemplate `json:"appliedTemplates"`
}

// Resolver is the single entry point for the API layer. It holds no state
// between calls.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

func (r *Resolver) Resolve(in Input) (*Result, error) {
	filters := make([]model.RuleCollection, 0, len(in.DepartmentFilters)+len(in.VMFilters))
	filters = append(filters, in.DepartmentFilters...)
	filters = append(filters, in.VMFilters...)

	rules, err := Merge(filters, templates.Matcher(in.Templates))
	if err != nil {
		return nil, fmt.Errorf("merging filters: %w", err)
	}

	if in.WithRisk {
		for i := range rules {
			score := ScoreRule(rules[i].Rule)
			rules[i].Risk = &score
		}
	}

	conflicts, err := DetectConflicts(rules)
	if err != nil {
		return nil, fmt.Errorf("detecting conflicts: %w", err)
	}
	applied := templates.AppliedIn(in.Templates, filters)

	summary := Summarize(rules, conflicts)
	summary.AppliedTemplatesCount = len(applied)
	summary.FiltersCount = len(filters)

	r.logger.Debug("Resolved policy",
		"filters", len(filters),
		"rules", len(rules),
		"conflicts", len(conflicts),
		"applied_templates", len(applied))

	return &Result{
		Rules:            rules,
		Conflicts:        conflicts,
		Summary:          summary,
		AppliedTemplates: applied,
	}, nil
}

// Summarize counts rules by direction, action, state and origin.
func Summarize(rules []model.EffectiveRule, conflicts []model.Conflict) model.Summary {
	s := model.Summary{Total: len(rules), Conflicts: len(conflicts)}
	for _, rule := range rules {
		switch NormalizeDirection(rule.Direction) {
		case model.Inbound:
			s.Inbound++
		case model.Outbound:
			s.Outbound++
		}
		switch NormalizeAction(rule.Action) {
		case model.ActionAllow:
			s.Allow++
		case model.ActionDeny:
			s.Deny++
		case model.ActionReject:
			s.Reject++
		}
		if rule.Enabled {
			s.Enabled++
		} else {
			s.Disabled++
		}
		if rule.Origin == model.OriginTemplate {
			s.Template++
		} else {
			s.Custom++
		}
	}
	return s
}
