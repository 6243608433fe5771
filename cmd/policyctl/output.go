package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"firewall-policy-resolver/internal/engine"
	"firewall-policy-resolver/internal/model"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	return table
}

func writeResult(w io.Writer, format string, res *engine.Result) error {
	switch format {
	case "json":
		return writeJSON(w, res)
	case "table":
	default:
		return fmt.Errorf("invalid format %q", format)
	}

	rules := newTable(w, []string{"ID", "SCOPE", "ORIGIN", "PROTOCOL", "DIRECTION", "ACTION", "PORTS", "SOURCE", "ENABLED", "OVERRIDDEN BY", "RISK"})
	for _, r := range res.Rules {
		risk := ""
		if r.Risk != nil {
			risk = fmt.Sprintf("%s (%d)", r.Risk.Level, r.Risk.Score)
		}
		rules.Append([]string{
			r.ID,
			string(r.Scope),
			string(r.Origin),
			string(engine.NormalizeProtocol(r.Protocol)),
			string(engine.NormalizeDirection(r.Direction)),
			string(engine.NormalizeAction(r.Action)),
			r.DstPortKey(),
			formatSource(r.Rule),
			strconv.FormatBool(r.Enabled),
			r.OverriddenBy,
			risk,
		})
	}
	rules.Render()

	if len(res.Conflicts) > 0 {
		fmt.Fprintln(w)
		conflicts := newTable(w, []string{"KEY", "RULES", "ISSUE"})
		for _, c := range res.Conflicts {
			conflicts.Append([]string{c.Key.String(), strings.Join(c.RuleIDs, ", "), c.Issue})
		}
		conflicts.Render()
	}

	s := res.Summary
	fmt.Fprintln(w)
	summary := newTable(w, []string{"TOTAL", "INBOUND", "OUTBOUND", "ALLOW", "DENY", "REJECT", "ENABLED", "DISABLED", "CUSTOM", "TEMPLATE", "CONFLICTS", "TEMPLATES", "FILTERS"})
	summary.Append(itoaAll(s.Total, s.Inbound, s.Outbound, s.Allow, s.Deny, s.Reject, s.Enabled, s.Disabled,
		s.Custom, s.Template, s.Conflicts, s.AppliedTemplatesCount, s.FiltersCount))
	summary.Render()
	return nil
}

func writeDecision(w io.Writer, format string, q engine.Query, d engine.Decision) error {
	ruleID := ""
	if d.Rule != nil {
		ruleID = d.Rule.ID
	}
	switch format {
	case "json":
		return writeJSON(w, map[string]any{
			"protocol":  q.Protocol,
			"direction": q.Direction,
			"port":      q.Port,
			"action":    d.Action,
			"ruleId":    ruleID,
			"reason":    d.Reason,
		})
	case "table":
		table := newTable(w, []string{"PROTOCOL", "DIRECTION", "PORT", "ACTION", "RULE", "REASON"})
		table.Append([]string{string(q.Protocol), string(q.Direction), strconv.Itoa(q.Port), string(d.Action), ruleID, d.Reason})
		table.Render()
		return nil
	default:
		return fmt.Errorf("invalid format %q", format)
	}
}

func writeTemplates(w io.Writer, format string, catalog, applied []model.Template) error {
	isApplied := make(map[string]bool, len(applied))
	for _, t := range applied {
		isApplied[t.Template] = true
	}

	switch format {
	case "json":
		type entry struct {
			model.Template
			Applied bool `json:"applied"`
		}
		out := make([]entry, 0, len(catalog))
		for _, t := range catalog {
			out = append(out, entry{Template: t, Applied: isApplied[t.Template]})
		}
		return writeJSON(w, out)
	case "table":
		table := newTable(w, []string{"TEMPLATE", "NAME", "RULES", "APPLIED", "DESCRIPTION"})
		for _, t := range catalog {
			table.Append([]string{t.Template, t.Name, strconv.Itoa(len(t.Rules)), strconv.FormatBool(isApplied[t.Template]), t.Description})
		}
		table.Render()
		return nil
	default:
		return fmt.Errorf("invalid format %q", format)
	}
}

func formatSource(r model.Rule) string {
	if r.SrcIPAddr == "" {
		return "any"
	}
	if r.SrcIPMask == nil {
		return r.SrcIPAddr
	}
	return r.SrcIPAddr + "/" + strconv.Itoa(*r.SrcIPMask)
}

func itoaAll(values ...int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return out
}
