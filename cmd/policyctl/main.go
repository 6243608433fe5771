package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"firewall-policy-resolver/internal/engine"
	"firewall-policy-resolver/internal/model"
	"firewall-policy-resolver/internal/parser"
	"firewall-policy-resolver/internal/store"
	"firewall-policy-resolver/internal/templates"
)

var (
	logLevel      string
	logFile       string
	provider      string
	filtersFile   string
	templatesFile string
	dbDSN         string
	outputFormat  string
	departmentID  string
	vmID          string
	withRisk      bool
	sortByRisk    bool
	scopeType     string
	scopeID       string
	checkProto    string
	checkDir      string
	checkPort     int
	checkSrc      string
	checkDst      string
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "policyctl",
		Short: "Resolve and audit department/VM firewall policy",
		Long: `policyctl merges department and VM firewall filters into the effective rule set,
	reports conflicting rules and risk scores, and applies or removes rule templates.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(setupLogger(logLevel, logFile))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	pf.StringVar(&provider, "provider", "file", "Filter provider type: 'file' or 'mariadb'")
	pf.StringVar(&filtersFile, "filters", "", "Filters JSON file (for 'file' provider)")
	pf.StringVar(&dbDSN, "db", "", "Database connection string (for 'mariadb' provider)")
	pf.StringVar(&templatesFile, "templates", "", "Template catalog YAML file")
	pf.StringVarP(&outputFormat, "format", "f", "json", "Output format: 'json' or 'table'")

	rootCmd.AddCommand(newResolveCmd(), newCheckCmd(), newTemplateCmd(), newRulesCmd())
	return rootCmd
}

func addScopeSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&departmentID, "department", "", "Department ID")
	cmd.Flags().StringVar(&vmID, "vm", "", "VM ID (omit to resolve the department alone)")
}

func addScopeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scopeType, "scope-type", "vm", "Scope type: 'department' or 'vm'")
	cmd.Flags().StringVar(&scopeID, "scope-id", "", "Department or VM ID (required)")
	cmd.MarkFlagRequired("scope-id")
}

func newResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print effective rules, conflicts and summary for a scope",
		RunE:  runResolve,
	}
	addScopeSelectionFlags(cmd)
	cmd.Flags().BoolVar(&withRisk, "risk", false, "Compute per-rule risk scores")
	cmd.Flags().BoolVar(&sortByRisk, "sort-risk", false, "Order rules by risk, most dangerous first (implies --risk)")
	return cmd
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Show the effective action for a protocol/direction/port",
		RunE:  runCheck,
	}
	addScopeSelectionFlags(cmd)
	cmd.Flags().StringVar(&checkProto, "protocol", "tcp", "Protocol (tcp, udp, icmp)")
	cmd.Flags().StringVar(&checkDir, "direction", "inbound", "Direction (inbound, outbound)")
	cmd.Flags().IntVar(&checkPort, "port", 0, "Destination port (required)")
	cmd.Flags().StringVar(&checkSrc, "src", "", "Source IP (optional)")
	cmd.Flags().StringVar(&checkDst, "dst", "", "Destination IP (optional)")
	cmd.MarkFlagRequired("port")
	return cmd
}

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "List, apply or remove rule templates",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List catalog templates and whether they are applied to a scope",
		Args:  cobra.NoArgs,
		RunE:  runTemplateList,
	}
	addScopeFlags(list)

	apply := &cobra.Command{
		Use:   "apply TEMPLATE",
		Short: "Apply a template to a scope",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplateApply,
	}
	addScopeFlags(apply)

	remove := &cobra.Command{
		Use:   "remove TEMPLATE",
		Short: "Remove a template from a scope",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplateRemove,
	}
	addScopeFlags(remove)

	cmd.AddCommand(list, apply, remove)
	return cmd
}

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Bulk rule operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete RULE_ID...",
		Short: "Delete rules one by one, reporting per-rule failures",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRulesDelete,
	})
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func runResolve(cmd *cobra.Command, args []string) error {
	startTime := time.Now()
	in, err := loadInput()
	if err != nil {
		return err
	}
	in.WithRisk = withRisk || sortByRisk

	res, err := engine.NewResolver(slog.Default()).Resolve(in)
	if err != nil {
		slog.Error("Failed to resolve policy", "error", err)
		return err
	}
	if sortByRisk {
		engine.SortByRisk(res.Rules)
	}

	slog.Info("Policy resolved",
		"rules", res.Summary.Total,
		"conflicts", res.Summary.Conflicts,
		"duration", time.Since(startTime))
	return writeResult(cmd.OutOrStdout(), outputFormat, res)
}

func runCheck(cmd *cobra.Command, args []string) error {
	in, err := loadInput()
	if err != nil {
		return err
	}
	res, err := engine.NewResolver(slog.Default()).Resolve(in)
	if err != nil {
		return err
	}

	q := engine.Query{
		Protocol:  engine.NormalizeProtocol(model.Protocol(checkProto)),
		Direction: engine.NormalizeDirection(checkDir),
		Port:      checkPort,
	}
	if q.Direction == model.DirectionUnknown {
		return fmt.Errorf("unknown direction: %s", checkDir)
	}
	if checkSrc != "" {
		if q.SrcIP = net.ParseIP(checkSrc); q.SrcIP == nil {
			return fmt.Errorf("invalid source IP: %s", checkSrc)
		}
	}
	if checkDst != "" {
		if q.DstIP = net.ParseIP(checkDst); q.DstIP == nil {
			return fmt.Errorf("invalid destination IP: %s", checkDst)
		}
	}

	decision := engine.NewEvaluator(res.Rules).Evaluate(q)
	return writeDecision(cmd.OutOrStdout(), outputFormat, q, decision)
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	ws, scope, catalog, err := openTemplateWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	applied, err := templates.NewResolver(ws.store, slog.Default()).Applied(catalog, scope)
	if err != nil {
		return err
	}
	return writeTemplates(cmd.OutOrStdout(), outputFormat, catalog, applied)
}

func runTemplateApply(cmd *cobra.Command, args []string) error {
	ws, scope, catalog, err := openTemplateWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	tpl, ok := parser.FindTemplate(catalog, args[0])
	if !ok {
		return fmt.Errorf("unknown template: %s", args[0])
	}
	filter, err := templates.NewResolver(ws.store, slog.Default()).Apply(tpl, scope)
	if err != nil {
		slog.Error("Failed to apply template", "template", tpl.Template, "scope", scope.String(), "error", err)
		return err
	}
	if err := ws.Save(); err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), filter)
}

func runTemplateRemove(cmd *cobra.Command, args []string) error {
	ws, scope, catalog, err := openTemplateWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	tpl, ok := parser.FindTemplate(catalog, args[0])
	if !ok {
		// Removal only needs the identifier.
		tpl = model.Template{Template: args[0]}
	}
	if err := templates.NewResolver(ws.store, slog.Default()).Remove(tpl, scope); err != nil {
		slog.Error("Failed to remove template", "template", tpl.Template, "scope", scope.String(), "error", err)
		return err
	}
	return ws.Save()
}

func runRulesDelete(cmd *cobra.Command, args []string) error {
	ws, err := openWorkspace(provider)
	if err != nil {
		return err
	}
	defer ws.Close()

	res := store.DeleteRules(ws.store, args, slog.Default())
	if err := ws.Save(); err != nil {
		return err
	}
	if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("%d of %d rule deletions failed", len(res.Failed), len(args))
	}
	return nil
}

func openTemplateWorkspace() (*workspace, model.Scope, []model.Template, error) {
	scope, err := parseScope(scopeType, scopeID)
	if err != nil {
		return nil, scope, nil, err
	}
	catalog, err := loadTemplates(templatesFile)
	if err != nil {
		return nil, scope, nil, err
	}
	ws, err := openWorkspace(provider)
	if err != nil {
		return nil, scope, nil, err
	}
	return ws, scope, catalog, nil
}

func parseScope(kind, id string) (model.Scope, error) {
	switch strings.ToLower(kind) {
	case "department", "dept":
		return model.Scope{Type: model.ScopeDepartment, ID: id}, nil
	case "vm":
		return model.Scope{Type: model.ScopeVM, ID: id}, nil
	default:
		return model.Scope{}, fmt.Errorf("unknown scope type: %s", kind)
	}
}

func loadInput() (engine.Input, error) {
	catalog, err := loadTemplates(templatesFile)
	if err != nil {
		return engine.Input{}, err
	}
	ws, err := openWorkspace(provider)
	if err != nil {
		return engine.Input{}, err
	}
	defer ws.Close()

	dept, vm, err := ws.SelectFilters(departmentID, vmID)
	if err != nil {
		slog.Error("Failed to load filters", "provider", provider, "error", err)
		return engine.Input{}, err
	}
	slog.Info("Loaded filters", "provider", provider, "department_filters", len(dept), "vm_filters", len(vm), "templates", len(catalog))
	return engine.Input{DepartmentFilters: dept, VMFilters: vm, Templates: catalog}, nil
}

func loadTemplates(path string) ([]model.Template, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		slog.Error("Failed to open template catalog", "path", path, "error", err)
		return nil, err
	}
	defer f.Close()
	return parser.ParseTemplates(f)
}

func setupLogger(level, logFilePath string) *slog.Logger {
	var logWriter io.Writer = os.Stderr
	if logFilePath != "" {
		f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			logWriter = f
		}
		// The logger isn't set up yet, so a failed open silently falls back to stderr.
	}

	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "INFO":
		lvl = slog.LevelInfo
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: lvl}))
}
