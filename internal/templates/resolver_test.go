package templates

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/store"
)

var (
	webTemplate = model.Template{
		Template:    "web-server",
		Name:        "Web Server",
		Description: "HTTP and HTTPS from anywhere",
		Rules: []model.TemplateRule{
			{Port: "80", Protocol: "TCP", Direction: "inbound", Action: "allow", Description: "HTTP"},
			{Port: "https", Protocol: "tcp", Direction: "inbound", Action: "allow", Description: "HTTPS"},
			{Protocol: "icmp", Direction: "inbound", Action: "allow"},
		},
	}
	sshTemplate = model.Template{Template: "ssh", Name: "SSH"}
	vm1         = model.Scope{Type: model.ScopeVM, ID: "vm-1"}
)

func TestApplyThenRemove(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), nil)

	applied, err := r.IsApplied(webTemplate, vm1)
	require.NoError(t, err)
	assert.False(t, applied)

	filter, err := r.Apply(webTemplate, vm1)
	require.NoError(t, err)
	assert.Equal(t, "web-server", filter.Name)
	assert.Equal(t, model.ScopeVM, filter.Type)
	assert.Equal(t, "vm-1", filter.ScopeID)
	assert.Equal(t, "Applied from template Web Server", filter.Description)
	assert.NotEmpty(t, filter.ID)

	applied, err = r.IsApplied(webTemplate, vm1)
	require.NoError(t, err)
	assert.True(t, applied)

	require.NoError(t, r.Remove(webTemplate, vm1))

	applied, err = r.IsApplied(webTemplate, vm1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplyTwiceIsRejected(t *testing.T) {
	s := store.NewMemoryStore()
	r := NewResolver(s, nil)

	_, err := r.Apply(webTemplate, vm1)
	require.NoError(t, err)

	_, err = r.Apply(webTemplate, vm1)
	assert.ErrorIs(t, err, ErrTemplateAlreadyApplied)

	filters, err := s.ListFilters(vm1)
	require.NoError(t, err)
	assert.Len(t, filters, 1)
}

func TestApplyIsScopedToOneScope(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), nil)
	_, err := r.Apply(webTemplate, vm1)
	require.NoError(t, err)

	applied, err := r.IsApplied(webTemplate, model.Scope{Type: model.ScopeVM, ID: "vm-2"})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRemoveNotAppliedTemplate(t *testing.T) {
	r := NewResolver(store.NewMemoryStore(), nil)

	err := r.Remove(sshTemplate, vm1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotApplied))

	var notApplied *TemplateNotAppliedError
	require.ErrorAs(t, err, &notApplied)
	assert.Equal(t, "ssh", notApplied.Template)
	assert.Equal(t, vm1, notApplied.Scope)
}

func TestAppliedListsCatalogTemplates(t *testing.T) {
	s := store.NewMemoryStore(
		model.RuleCollection{ID: "f1", Name: "custom", Type: model.ScopeVM, ScopeID: "vm-1"},
		model.RuleCollection{ID: "f2", Name: "ssh", Type: model.ScopeVM, ScopeID: "vm-1"},
	)
	r := NewResolver(s, nil)

	applied, err := r.Applied([]model.Template{webTemplate, sshTemplate}, vm1)
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, "ssh", applied[0].Template)
}

func TestMaterialize(t *testing.T) {
	rules, err := Materialize(webTemplate)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	assert.Equal(t, model.TCP, rules[0].Protocol)
	require.NotNil(t, rules[0].DstPortStart)
	assert.Equal(t, 80, *rules[0].DstPortStart)
	assert.Equal(t, 80, *rules[0].DstPortEnd)
	assert.Equal(t, "HTTP", rules[0].Comment)

	assert.Equal(t, 443, *rules[1].DstPortStart)

	assert.Nil(t, rules[2].DstPortStart, "icmp rule without port means any port")
	assert.NotEqual(t, rules[0].ID, rules[1].ID)
}

func TestMaterializeNormalizesProtocol(t *testing.T) {
	rules, err := Materialize(model.Template{
		Template: "open",
		Rules: []model.TemplateRule{
			{Protocol: "ALL", Direction: "outbound", Action: "allow"},
			{Protocol: "UDP", Port: "domain", Direction: "outbound", Action: "allow"},
		},
	})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, model.AnyProtocol, rules[0].Protocol)
	assert.Equal(t, model.UDP, rules[1].Protocol)
	assert.Equal(t, 53, *rules[1].DstPortStart)
}

func TestMaterializeUnknownService(t *testing.T) {
	_, err := Materialize(model.Template{
		Template: "broken",
		Rules:    []model.TemplateRule{{Port: "not-a-service", Protocol: "tcp"}},
	})
	assert.Error(t, err)
}

func TestMatcherAndAppliedIn(t *testing.T) {
	catalog := []model.Template{webTemplate, sshTemplate}
	isTemplate := Matcher(catalog)
	assert.True(t, isTemplate("ssh"))
	assert.False(t, isTemplate("SSH"), "matching is exact")

	filters := []model.RuleCollection{
		{ID: "d1", Name: "ssh", Type: model.ScopeDepartment},
		{ID: "v1", Name: "ssh", Type: model.ScopeVM},
		{ID: "v2", Name: "mine", Type: model.ScopeVM},
	}
	applied := AppliedIn(catalog, filters)
	require.Len(t, applied, 2)
	assert.Equal(t, model.ScopeDepartment, applied[0].Scope)
	assert.Equal(t, "v1", applied[1].FilterID)
	assert.True(t, IsApplied(sshTemplate, filters))
	assert.False(t, IsApplied(webTemplate, filters))
}
