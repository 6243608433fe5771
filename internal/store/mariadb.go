package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"firewall-policy-resolver/internal/model"
)

const mysqlErrDuplicateEntry = 1062

// Schema creates the tables used by MariaDBStore.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS fw_filter (
		seq BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		id VARCHAR(64) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		scope_type VARCHAR(16) NOT NULL,
		scope_id VARCHAR(64) NOT NULL,
		description TEXT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE KEY uniq_scope_name (scope_type, scope_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS fw_rule (
		seq BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT,
		id VARCHAR(64) NOT NULL UNIQUE,
		filter_id VARCHAR(64) NOT NULL,
		protocol VARCHAR(16) NOT NULL,
		direction VARCHAR(16) NOT NULL,
		action VARCHAR(16) NOT NULL,
		priority INT NULL,
		src_ip_addr VARCHAR(64) NULL,
		src_ip_mask INT NULL,
		dst_ip_addr VARCHAR(64) NULL,
		dst_ip_mask INT NULL,
		src_port_start INT NULL,
		src_port_end INT NULL,
		dst_port_start INT NULL,
		dst_port_end INT NULL,
		state VARCHAR(16) NULL,
		comment TEXT NULL,
		INDEX idx_filter (filter_id)
	)`,
}

// MariaDBStore keeps filters in MariaDB/MySQL.
type MariaDBStore struct {
	db *sql.DB
}

func NewMariaDBStore(dsn string) (*MariaDBStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	cfg.ParseTime = true

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &MariaDBStore{db: db}, nil
}

func (s *MariaDBStore) Close() {
	s.db.Close()
}

// Migrate creates missing tables.
func (s *MariaDBStore) Migrate() error {
	for _, stmt := range Schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

func (s *MariaDBStore) ListFilters(scope model.Scope) ([]model.RuleCollection, error) {
	rows, err := s.db.Query(
		"SELECT id, name, scope_type, scope_id, description, updated_at FROM fw_filter WHERE scope_type = ? AND scope_id = ? ORDER BY seq ASC",
		string(scope.Type), scope.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []model.RuleCollection
	for rows.Next() {
		var f model.RuleCollection
		var scopeType string
		var description sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &scopeType, &f.ScopeID, &description, &f.UpdatedAt); err != nil {
			return nil, err
		}
		f.Type = model.ScopeType(scopeType)
		f.Description = description.String
		filters = append(filters, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range filters {
		rules, err := s.loadRules(filters[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rules for filter %s: %w", filters[i].ID, err)
		}
		filters[i].Rules = rules
	}
	return filters, nil
}

func (s *MariaDBStore) loadRules(filterID string) ([]model.Rule, error) {
	rows, err := s.db.Query(`SELECT id, protocol, direction, action, priority,
		src_ip_addr, src_ip_mask, dst_ip_addr, dst_ip_mask,
		src_port_start, src_port_end, dst_port_start, dst_port_end, state, comment
		FROM fw_rule WHERE filter_id = ? ORDER BY seq ASC`, filterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.Rule
	for rows.Next() {
		var r model.Rule
		var protocol string
		var priority, srcMask, dstMask, srcStart, srcEnd, dstStart, dstEnd sql.NullInt64
		var srcAddr, dstAddr, state, comment sql.NullString
		if err := rows.Scan(&r.ID, &protocol, &r.Direction, &r.Action, &priority,
			&srcAddr, &srcMask, &dstAddr, &dstMask,
			&srcStart, &srcEnd, &dstStart, &dstEnd, &state, &comment); err != nil {
			return nil, err
		}
		r.Protocol = model.Protocol(protocol)
		r.Priority = nullInt(priority)
		r.SrcIPAddr = srcAddr.String
		r.SrcIPMask = nullInt(srcMask)
		r.DstIPAddr = dstAddr.String
		r.DstIPMask = nullInt(dstMask)
		r.SrcPortStart = nullInt(srcStart)
		r.SrcPortEnd = nullInt(srcEnd)
		r.DstPortStart = nullInt(dstStart)
		r.DstPortEnd = nullInt(dstEnd)
		r.State = state.String
		r.Comment = comment.String
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// CreateFilter inserts the filter and its rules in one transaction. A
// (scope, name) collision returns ErrDuplicateFilter.
func (s *MariaDBStore) CreateFilter(filter *model.RuleCollection) error {
	if filter.UpdatedAt.IsZero() {
		filter.UpdatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec("INSERT INTO fw_filter (id, name, scope_type, scope_id, description, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		filter.ID, filter.Name, string(filter.Type), filter.ScopeID, filter.Description, filter.UpdatedAt)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("%w: %s in %s", ErrDuplicateFilter, filter.Name, filter.Scope())
		}
		return err
	}

	for _, r := range filter.Rules {
		_, err := tx.Exec(`INSERT INTO fw_rule (id, filter_id, protocol, direction, action, priority,
			src_ip_addr, src_ip_mask, dst_ip_addr, dst_ip_mask,
			src_port_start, src_port_end, dst_port_start, dst_port_end, state, comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, filter.ID, string(r.Protocol), r.Direction, r.Action, r.Priority,
			r.SrcIPAddr, r.SrcIPMask, r.DstIPAddr, r.DstIPMask,
			r.SrcPortStart, r.SrcPortEnd, r.DstPortStart, r.DstPortEnd, r.State, r.Comment)
		if err != nil {
			return fmt.Errorf("inserting rule %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *MariaDBStore) DeleteFilter(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM fw_filter WHERE id = ?", id)
	if err != nil {
		return err
	}
	if err := requireAffected(res, ErrFilterNotFound, id); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM fw_rule WHERE filter_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *MariaDBStore) DeleteRule(id string) error {
	res, err := s.db.Exec("DELETE FROM fw_rule WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireAffected(res, ErrRuleNotFound, id)
}

// requireAffected maps a delete that touched no row onto notFound.
func requireAffected(res sql.Result, notFound error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}

func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
