package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/parser"
	"firewall-policy-resolver/internal/store"
)

var errDepartmentRequired = errors.New("--department is required when resolving a VM or using the mariadb provider")

// workspace wraps the configured FilterStore. For the file provider it
// holds the file contents in memory and writes them back on Save.
type workspace struct {
	store store.FilterStore
	mem   *store.MemoryStore
	db    *store.MariaDBStore
	path  string
}

func openWorkspace(provider string) (*workspace, error) {
	switch provider {
	case "file":
		if filtersFile == "" {
			return nil, fmt.Errorf("filters file path must be provided for file provider")
		}
		f, err := os.Open(filtersFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		filters, err := parser.ParseFilters(f)
		if err != nil {
			return nil, err
		}
		mem := store.NewMemoryStore(filters...)
		return &workspace{store: mem, mem: mem, path: filtersFile}, nil
	case "mariadb":
		if dbDSN == "" {
			return nil, fmt.Errorf("database connection string must be provided for mariadb provider")
		}
		db, err := store.NewMariaDBStore(dbDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return &workspace{store: db, db: db}, nil
	default:
		return nil, fmt.Errorf("unknown filter provider: %s", provider)
	}
}

// SelectFilters returns the department and VM collections to resolve. A VM
// is always resolved against its own department, so a VM id needs a
// department id. With the file provider, omitting both selects everything.
func (w *workspace) SelectFilters(deptID, vmID string) (dept, vm []model.RuleCollection, err error) {
	if vmID != "" && deptID == "" {
		return nil, nil, errDepartmentRequired
	}

	if w.mem != nil {
		for _, f := range w.mem.All() {
			switch {
			case f.Type == model.ScopeDepartment && (deptID == "" || f.ScopeID == deptID):
				dept = append(dept, f)
			case f.Type == model.ScopeVM && (vmID == "" && deptID == "" || vmID != "" && f.ScopeID == vmID):
				vm = append(vm, f)
			}
		}
		return dept, vm, nil
	}

	if deptID == "" {
		return nil, nil, errDepartmentRequired
	}
	if dept, err = w.store.ListFilters(model.Scope{Type: model.ScopeDepartment, ID: deptID}); err != nil {
		return nil, nil, err
	}
	if vmID != "" {
		if vm, err = w.store.ListFilters(model.Scope{Type: model.ScopeVM, ID: vmID}); err != nil {
			return nil, nil, err
		}
	}
	return dept, vm, nil
}

// Save persists in-memory changes back to the filters file.
func (w *workspace) Save() error {
	if w.mem == nil {
		return nil
	}
	data, err := json.MarshalIndent(w.mem.All(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0644)
}

func (w *workspace) Close() {
	if w.db != nil {
		w.db.Close()
	}
}
