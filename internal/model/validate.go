package model

import "fmt"

// ValidationError reports a structurally malformed rule. The rule is never
// repaired; callers surface the error as-is.
type ValidationError struct {
	RuleID string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("invalid rule: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid rule %s: %s: %s", e.RuleID, e.Field, e.Reason)
}

// Validate checks id presence, port bounds and mask lengths.
func (r Rule) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if err := validatePortRange(r.ID, "srcPort", r.SrcPortStart, r.SrcPortEnd); err != nil {
		return err
	}
	if err := validatePortRange(r.ID, "dstPort", r.DstPortStart, r.DstPortEnd); err != nil {
		return err
	}
	if err := validateMask(r.ID, "srcIpMask", r.SrcIPMask); err != nil {
		return err
	}
	return validateMask(r.ID, "dstIpMask", r.DstIPMask)
}

func validatePortRange(id, field string, start, end *int) error {
	for _, p := range []*int{start, end} {
		if p != nil && (*p < 0 || *p > 65535) {
			return &ValidationError{RuleID: id, Field: field, Reason: fmt.Sprintf("port %d out of range 0-65535", *p)}
		}
	}
	switch {
	case start != nil && end == nil:
		return &ValidationError{RuleID: id, Field: field + "End", Reason: "missing while start is set"}
	case start != nil && *end < *start:
		return &ValidationError{RuleID: id, Field: field + "End", Reason: fmt.Sprintf("%d is lower than start %d", *end, *start)}
	}
	return nil
}

func validateMask(id, field string, mask *int) error {
	if mask != nil && (*mask < 0 || *mask > 32) {
		return &ValidationError{RuleID: id, Field: field, Reason: fmt.Sprintf("prefix length %d out of range 0-32", *mask)}
	}
	return nil
}
