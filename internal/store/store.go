package store

import (
	"errors"

	"firewall-policy-resolver/internal/model"
)

var (
	ErrFilterNotFound  = errors.New("filter not found")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrDuplicateFilter = errors.New("filter with this name already exists in scope")
)

// FilterStore persists rule collections. Implementations enforce a unique
// (scope, name) pair so concurrent template applies cannot both succeed.
type FilterStore interface {
	// ListFilters returns the scope's collections in insertion order.
	ListFilters(scope model.Scope) ([]model.RuleCollection, error)
	CreateFilter(filter *model.RuleCollection) error
	DeleteFilter(id string) error
	RuleDeleter
}

type RuleDeleter interface {
	DeleteRule(id string) error
}
