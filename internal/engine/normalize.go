package engine

import (
	"strings"

	"firewall-policy-resolver/internal/model"
)

// NormalizeAction maps a raw action string onto allow, deny or reject.
// Unrecognized input, including the empty string, yields ActionUnknown.
func NormalizeAction(raw string) model.Action {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "allow", "accept", "permit":
		return model.ActionAllow
	case "deny", "drop", "block":
		return model.ActionDeny
	case "reject":
		return model.ActionReject
	default:
		return model.ActionUnknown
	}
}

// NormalizeDirection maps a raw direction string onto inbound or outbound.
func NormalizeDirection(raw string) model.Direction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inbound", "in", "ingress":
		return model.Inbound
	case "outbound", "out", "egress":
		return model.Outbound
	default:
		return model.DirectionUnknown
	}
}

// NormalizeProtocol lowercases the protocol; empty and "all" mean any.
func NormalizeProtocol(raw model.Protocol) model.Protocol {
	return raw.Normalize()
}

func conflictKey(r model.Rule) model.ConflictKey {
	return model.ConflictKey{
		Protocol:  NormalizeProtocol(r.Protocol),
		Direction: NormalizeDirection(r.Direction),
		Ports:     r.DstPortKey(),
	}
}
