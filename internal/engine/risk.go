package engine

import (
	"sort"

	"github.com/fvbommel/sortorder"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/utils"
)

// Risk factor labels, in the order they are evaluated.
const (
	FactorInboundAllowed   = "Inbound traffic allowed"
	FactorWidePortRange    = "Wide port range"
	FactorMultiplePorts    = "Multiple ports open"
	FactorAllPorts         = "All ports open"
	FactorBroadSource      = "Broad source network"
	FactorBroadDestination = "Broad destination network"
	FactorAnySource        = "Allows any source"
)

// riskWeights is how much each factor adds to a rule's score.
var riskWeights = map[string]int{
	FactorInboundAllowed:   3,
	FactorWidePortRange:    2,
	FactorMultiplePorts:    1,
	FactorAllPorts:         2,
	FactorBroadSource:      2,
	FactorBroadDestination: 1,
	FactorAnySource:        1,
}

// ScoreRule computes a heuristic risk score for a single rule. It never fails;
// malformed fields simply contribute nothing.
func ScoreRule(rule model.Rule) model.RiskScore {
	var factors []string

	if NormalizeDirection(rule.Direction) == model.Inbound && NormalizeAction(rule.Action) == model.ActionAllow {
		factors = append(factors, FactorInboundAllowed)
	}

	if span, ok := utils.PortSpan(rule.DstPortStart, rule.DstPortEnd); ok {
		if span > 100 {
			factors = append(factors, FactorWidePortRange)
		} else if span > 10 {
			factors = append(factors, FactorMultiplePorts)
		}
	}
	if rule.DstPortStart == nil && rule.DstPortEnd == nil {
		factors = append(factors, FactorAllPorts)
	}

	if rule.SrcIPMask != nil && *rule.SrcIPMask < 16 {
		factors = append(factors, FactorBroadSource)
	}
	if rule.DstIPMask != nil && *rule.DstIPMask < 16 {
		factors = append(factors, FactorBroadDestination)
	}
	if utils.IsAnyAddress(rule.SrcIPAddr) {
		factors = append(factors, FactorAnySource)
	}

	score := 0
	for _, f := range factors {
		score += riskWeights[f]
	}
	if factors == nil {
		factors = []string{}
	}
	return model.RiskScore{Score: score, Level: LevelFor(score), Factors: factors}
}

// LevelFor maps a score onto its label: >=6 high, >=3 medium, >=1 low.
func LevelFor(score int) model.RiskLevel {
	switch {
	case score >= 6:
		return model.RiskHigh
	case score >= 3:
		return model.RiskMedium
	case score >= 1:
		return model.RiskLow
	default:
		return model.RiskMinimal
	}
}

// SortByRisk orders rules most dangerous first. Rules without a computed
// score are scored on the fly.
func SortByRisk(rules []model.EffectiveRule) {
	score := func(r model.EffectiveRule) model.RiskScore {
		if r.Risk != nil {
			return *r.Risk
		}
		return ScoreRule(r.Rule)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := score(rules[i]), score(rules[j])
		if a.Level.Rank() != b.Level.Rank() {
			return a.Level.Rank() > b.Level.Rank()
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return sortorder.NaturalLess(rules[i].ID, rules[j].ID)
	})
}
