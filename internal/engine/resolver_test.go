package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-resolver/internal/model"
)

func TestResolveDepartmentOverridesVM(t *testing.T) {
	in := Input{
		DepartmentFilters: []model.RuleCollection{
			deptFilter("fd", "dept-baseline", portRule("d1", "tcp", "INBOUND", "ALLOW", 1, 65535)),
		},
		VMFilters: []model.RuleCollection{
			vmFilter("fv", "vm-lockdown", portRule("v1", "tcp", "inbound", "deny", 1, 65535)),
		},
		WithRisk: true,
	}

	res, err := NewResolver(nil).Resolve(in)
	require.NoError(t, err)
	require.Len(t, res.Rules, 2)

	dept := res.Rules[0]
	assert.Equal(t, "d1", dept.ID)
	require.NotNil(t, dept.Risk)
	assert.Equal(t, []string{"Inbound traffic allowed", "Wide port range", "Allows any source"}, dept.Risk.Factors)
	assert.GreaterOrEqual(t, dept.Risk.Score, 6)
	assert.Equal(t, model.RiskHigh, dept.Risk.Level)

	assert.Equal(t, "d1", res.Rules[1].OverriddenBy)

	decision := NewEvaluator(res.Rules).Evaluate(Query{Protocol: model.TCP, Direction: model.Inbound, Port: 443})
	assert.Equal(t, model.ActionAllow, decision.Action)

	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, []string{"d1", "v1"}, res.Conflicts[0].RuleIDs)
}

func TestResolveSummaryAndTemplates(t *testing.T) {
	disabled := portRule("v3", "udp", "outbound", "reject", 53, 53)
	disabled.State = "disabled"

	catalog := []model.Template{
		{Template: "web-server", Name: "Web Server"},
		{Template: "ssh", Name: "SSH"},
	}
	in := Input{
		DepartmentFilters: []model.RuleCollection{
			deptFilter("fd", "ssh", portRule("d1", "tcp", "inbound", "allow", 22, 22)),
		},
		VMFilters: []model.RuleCollection{
			vmFilter("fv1", "web-server", portRule("v1", "tcp", "inbound", "allow", 80, 80)),
			vmFilter("fv2", "custom", portRule("v2", "tcp", "outbound", "deny", 25, 25), disabled),
		},
		Templates: catalog,
	}

	res, err := NewResolver(nil).Resolve(in)
	require.NoError(t, err)

	assert.Equal(t, model.Summary{
		Total:                 4,
		Inbound:               2,
		Outbound:              2,
		Allow:                 2,
		Deny:                  1,
		Reject:                1,
		Enabled:               3,
		Disabled:              1,
		Custom:                2,
		Template:              2,
		Conflicts:             0,
		AppliedTemplatesCount: 2,
		FiltersCount:          3,
	}, res.Summary)

	require.Len(t, res.AppliedTemplates, 2)
	assert.Equal(t, "web-server", res.AppliedTemplates[0].Template.Template)
	assert.Equal(t, model.ScopeVM, res.AppliedTemplates[0].Scope)
	assert.Equal(t, "ssh", res.AppliedTemplates[1].Template.Template)
	assert.Equal(t, model.ScopeDepartment, res.AppliedTemplates[1].Scope)

	for _, r := range res.Rules {
		assert.Nil(t, r.Risk, "risk is only computed on request")
	}
}

func TestResolveDepartmentOnly(t *testing.T) {
	res, err := NewResolver(nil).Resolve(Input{
		DepartmentFilters: []model.RuleCollection{deptFilter("fd", "base", portRule("d1", "tcp", "inbound", "allow", 22, 22))},
	})
	require.NoError(t, err)
	assert.Len(t, res.Rules, 1)
	assert.Empty(t, res.Conflicts)
	assert.Empty(t, res.AppliedTemplates)
}

func TestResolveSurfacesValidationError(t *testing.T) {
	_, err := NewResolver(nil).Resolve(Input{
		VMFilters: []model.RuleCollection{vmFilter("fv", "x", portRule("bad", "tcp", "inbound", "allow", 90, 80))},
	})
	var vErr *model.ValidationError
	require.True(t, errors.As(err, &vErr), "got %v", err)
}
