package store

import "log/slog"

type ItemError struct {
	ID  string `json:"id"`
	Err error  `json:"-"`
	// Message mirrors Err for JSON output.
	Message string `json:"error"`
}

// BatchResult reports per-item outcomes of a bulk operation.
type BatchResult struct {
	Succeeded []string    `json:"succeeded"`
	Failed    []ItemError `json:"failed"`
}

// OK reports whether every item succeeded.
func (b BatchResult) OK() bool {
	return len(b.Failed) == 0
}

// DeleteRules issues one delete per id. Failures are collected, never rolled
// back. A nil logger falls back to slog.Default.
func DeleteRules(d RuleDeleter, ids []string, logger *slog.Logger) BatchResult {
	if logger == nil {
		logger = slog.Default()
	}
	res := BatchResult{Succeeded: []string{}, Failed: []ItemError{}}
	for _, id := range ids {
		if err := d.DeleteRule(id); err != nil {
			logger.Warn("Failed to delete rule", "rule_id", id, "error", err)
			res.Failed = append(res.Failed, ItemError{ID: id, Err: err, Message: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	return res
}
