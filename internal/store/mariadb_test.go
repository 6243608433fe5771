package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewall-policy-resolver/internal/model"
)

var testDSN = "root:static@tcp(127.0.0.1:3306)/firewall_mgmt"

// openTestStore skips when no MariaDB server is reachable.
func openTestStore(t *testing.T) *MariaDBStore {
	t.Helper()
	s, err := NewMariaDBStore(testDSN)
	if err != nil {
		t.Skipf("MariaDB not reachable: %v", err)
	}
	t.Cleanup(s.Close)

	for _, table := range []string{"fw_rule", "fw_filter"} {
		s.db.Exec("DROP TABLE IF EXISTS " + table)
	}
	require.NoError(t, s.Migrate())
	return s
}

func TestMariaDBStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)

	start, end, mask := 22, 22, 24
	filter := &model.RuleCollection{
		ID: "f1", Name: "ssh-access", Type: model.ScopeVM, ScopeID: "vm-1",
		Rules: []model.Rule{
			{ID: "r1", Protocol: model.TCP, Direction: "INBOUND", Action: "ALLOW",
				SrcIPAddr: "10.0.0.0", SrcIPMask: &mask, DstPortStart: &start, DstPortEnd: &end},
			{ID: "r2", Protocol: model.ICMP, Direction: "inbound", Action: "deny", State: "disabled"},
		},
	}
	require.NoError(t, s.CreateFilter(filter))

	filters, err := s.ListFilters(filter.Scope())
	require.NoError(t, err)
	require.Len(t, filters, 1)
	require.Len(t, filters[0].Rules, 2)

	r1 := filters[0].Rules[0]
	assert.Equal(t, "r1", r1.ID)
	require.NotNil(t, r1.DstPortStart)
	assert.Equal(t, 22, *r1.DstPortStart)
	require.NotNil(t, r1.SrcIPMask)
	assert.Equal(t, 24, *r1.SrcIPMask)
	assert.Nil(t, r1.Priority)
	assert.Nil(t, filters[0].Rules[1].DstPortStart)
	assert.False(t, filters[0].Rules[1].Enabled())

	err = s.CreateFilter(&model.RuleCollection{ID: "f2", Name: "ssh-access", Type: model.ScopeVM, ScopeID: "vm-1"})
	assert.ErrorIs(t, err, ErrDuplicateFilter)

	res := DeleteRules(s, []string{"r1", "nope"}, nil)
	assert.Equal(t, []string{"r1"}, res.Succeeded)
	assert.Len(t, res.Failed, 1)

	require.NoError(t, s.DeleteFilter("f1"))
	assert.ErrorIs(t, s.DeleteFilter("f1"), ErrFilterNotFound)
}

func TestNewMariaDBStoreErrors(t *testing.T) {
	_, err := NewMariaDBStore("invalid-dsn")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing dsn")
}

func TestIsDuplicateEntry(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	assert.True(t, isDuplicateEntry(dup))
	assert.True(t, isDuplicateEntry(fmt.Errorf("insert: %w", dup)))
	assert.False(t, isDuplicateEntry(&mysql.MySQLError{Number: 1146}))
	assert.False(t, isDuplicateEntry(errors.New("boom")))
}

type stubResult struct {
	rows int64
	err  error
}

func (r stubResult) LastInsertId() (int64, error) { return 0, nil }
func (r stubResult) RowsAffected() (int64, error) { return r.rows, r.err }

func TestRequireAffected(t *testing.T) {
	assert.NoError(t, requireAffected(stubResult{rows: 1}, ErrRuleNotFound, "r1"))
	assert.ErrorIs(t, requireAffected(stubResult{}, ErrRuleNotFound, "r1"), ErrRuleNotFound)

	driverErr := errors.New("driver does not report affected rows")
	err := requireAffected(stubResult{err: driverErr}, ErrFilterNotFound, "f1")
	assert.ErrorIs(t, err, driverErr)
	assert.NotErrorIs(t, err, ErrFilterNotFound)
}
