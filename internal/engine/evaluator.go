package engine

import (
	"net"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/utils"
)

const (
	ReasonMatchRule    = "MATCH_RULE"
	ReasonImplicitDeny = "IMPLICIT_DENY"
)

// Query describes a flow to look up in an effective rule set. SrcIP and
// DstIP are optional; nil matches any rule address.
type Query struct {
	Protocol  model.Protocol
	Direction model.Direction
	Port      int
	SrcIP     net.IP
	DstIP     net.IP
}

type Decision struct {
	Action  model.Action
	Rule    *model.EffectiveRule
	Reason  string
	Matched bool
}

// Evaluator answers "what happens to this flow" against a merged rule set.
// The first enabled rule in effective order wins, so department rules
// govern over VM rules for the same tuple.
type Evaluator struct {
	Rules []model.EffectiveRule
}

func NewEvaluator(rules []model.EffectiveRule) *Evaluator {
	return &Evaluator{Rules: rules}
}

func (e *Evaluator) Evaluate(q Query) Decision {
	for i := range e.Rules {
		rule := &e.Rules[i]
		if !rule.Enabled {
			continue
		}
		if e.matches(rule, q) {
			return Decision{
				Action:  NormalizeAction(rule.Action),
				Rule:    rule,
				Reason:  ReasonMatchRule,
				Matched: true,
			}
		}
	}
	return Decision{Action: model.ActionDeny, Reason: ReasonImplicitDeny}
}

func (e *Evaluator) matches(rule *model.EffectiveRule, q Query) bool {
	proto := NormalizeProtocol(rule.Protocol)
	if proto != model.AnyProtocol && proto != NormalizeProtocol(q.Protocol) {
		return false
	}
	if NormalizeDirection(rule.Direction) != q.Direction {
		return false
	}
	if !matchPort(rule.DstPortStart, rule.DstPortEnd, q.Port) {
		return false
	}
	return matchAddr(rule.SrcIPAddr, rule.SrcIPMask, q.SrcIP) &&
		matchAddr(rule.DstIPAddr, rule.DstIPMask, q.DstIP)
}

func matchPort(start, end *int, port int) bool {
	if start == nil || end == nil {
		return true
	}
	return port >= *start && port <= *end
}

func matchAddr(addr string, mask *int, ip net.IP) bool {
	if ip == nil || utils.IsAnyAddress(addr) {
		return true
	}
	network := utils.RuleNet(addr, mask)
	if network == nil {
		return false
	}
	return network.Contains(ip)
}
