package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

type Protocol string // "tcp", "udp", "icmp", "any"

const (
	TCP         Protocol = "tcp"
	UDP         Protocol = "udp"
	ICMP        Protocol = "icmp"
	AnyProtocol Protocol = "any"
)

// Normalize lowercases the protocol. Empty and "all" mean any.
func (p Protocol) Normalize() Protocol {
	n := Protocol(strings.ToLower(strings.TrimSpace(string(p))))
	if n == "" || n == "all" {
		return AnyProtocol
	}
	return n
}

type Action string

const (
	ActionAllow   Action = "allow"
	ActionDeny    Action = "deny"
	ActionReject  Action = "reject"
	ActionUnknown Action = "unknown"
)

type Direction string

const (
	Inbound          Direction = "inbound"
	Outbound         Direction = "outbound"
	DirectionUnknown Direction = "unknown"
)

type ScopeType string

const (
	ScopeDepartment ScopeType = "DEPARTMENT"
	ScopeVM         ScopeType = "VM"
)

type Origin string

const (
	OriginCustom   Origin = "custom"
	OriginTemplate Origin = "template"
)

// Scope identifies the department or VM a rule collection is attached to.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id"`
}

func (s Scope) String() string {
	return string(s.Type) + ":" + s.ID
}

// Rule is a single firewall directive as delivered by the storage layer.
// Direction, Action and State are kept raw; absent port bounds mean "any port".
type Rule struct {
	ID           string   `json:"id"`
	Protocol     Protocol `json:"protocol"`
	Direction    string   `json:"direction"`
	Action       string   `json:"action"`
	Priority     *int     `json:"priority,omitempty"`
	SrcIPAddr    string   `json:"srcIpAddr,omitempty"`
	SrcIPMask    *int     `json:"srcIpMask,omitempty"`
	DstIPAddr    string   `json:"dstIpAddr,omitempty"`
	DstIPMask    *int     `json:"dstIpMask,omitempty"`
	SrcPortStart *int     `json:"srcPortStart,omitempty"`
	SrcPortEnd   *int     `json:"srcPortEnd,omitempty"`
	DstPortStart *int     `json:"dstPortStart,omitempty"`
	DstPortEnd   *int     `json:"dstPortEnd,omitempty"`
	State        string   `json:"state,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// PriorityValue returns the rule priority, 0 when unset.
func (r Rule) PriorityValue() int {
	if r.Priority == nil {
		return 0
	}
	return *r.Priority
}

// Enabled reports whether the rule's state marks it active. Unrecognized
// states count as enabled so the rule stays visible to conflict checks.
func (r Rule) Enabled() bool {
	switch strings.ToLower(strings.TrimSpace(r.State)) {
	case "disabled", "disable", "inactive", "off", "false", "0":
		return false
	default:
		return true
	}
}

// DstPortKey is "start-end" when both destination bounds are set, "any" otherwise.
func (r Rule) DstPortKey() string {
	if r.DstPortStart == nil || r.DstPortEnd == nil {
		return "any"
	}
	return strconv.Itoa(*r.DstPortStart) + "-" + strconv.Itoa(*r.DstPortEnd)
}

// RuleCollection is a named, ordered group of rules attached to one scope.
// The API calls these "filters".
type RuleCollection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        ScopeType `json:"type"`
	ScopeID     string    `json:"scopeId,omitempty"`
	Description string    `json:"description,omitempty"`
	Rules       []Rule    `json:"rules"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c RuleCollection) Scope() Scope {
	return Scope{Type: c.Type, ID: c.ScopeID}
}

// PortSpec is a template port: "22", "8000-8080", a service name, or empty for any.
type PortSpec string

// UnmarshalJSON accepts both numbers and strings.
func (p *PortSpec) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*p = PortSpec(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = PortSpec(s)
	return nil
}

type TemplateRule struct {
	Port        PortSpec `json:"port" yaml:"port"`
	Protocol    Protocol `json:"protocol" yaml:"protocol"`
	Direction   string   `json:"direction" yaml:"direction"`
	Action      string   `json:"action" yaml:"action"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Template is a read-only catalog entry. Its Template field is matched
// against RuleCollection.Name to decide whether it is applied.
type Template struct {
	Template    string         `json:"template" yaml:"template"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []TemplateRule `json:"rules" yaml:"rules"`
}

type EffectiveRule struct {
	Rule
	Scope        ScopeType  `json:"scope"`
	FilterID     string     `json:"filterId"`
	FilterName   string     `json:"filterName"`
	Origin       Origin     `json:"origin"`
	Enabled      bool       `json:"enabled"`
	OverriddenBy string     `json:"overriddenBy,omitempty"`
	Risk         *RiskScore `json:"risk,omitempty"`
}

type ConflictKey struct {
	Protocol  Protocol  `json:"protocol"`
	Direction Direction `json:"direction"`
	Ports     string    `json:"ports"`
}

func (k ConflictKey) String() string {
	return string(k.Protocol) + "/" + string(k.Direction) + "/" + k.Ports
}

type Conflict struct {
	Key     ConflictKey `json:"key"`
	RuleIDs []string    `json:"ruleIds"`
	Issue   string      `json:"issue"`
}

type RiskLevel string

const (
	RiskHigh    RiskLevel = "high"
	RiskMedium  RiskLevel = "medium"
	RiskLow     RiskLevel = "low"
	RiskMinimal RiskLevel = "minimal"
)

// Rank orders levels high > medium > low > minimal.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

type RiskScore struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors"`
}

type Summary struct {
	Total                 int `json:"total"`
	Inbound               int `json:"inbound"`
	Outbound              int `json:"outbound"`
	Allow                 int `json:"allow"`
	Deny                  int `json:"deny"`
	Reject                int `json:"reject"`
	Enabled               int `json:"enabled"`
	Disabled              int `json:"disabled"`
	Custom                int `json:"custom"`
	Template              int `json:"template"`
	Conflicts             int `json:"conflicts"`
	AppliedTemplatesCount int `json:"appliedTemplatesCount"`
	FiltersCount          int `json:"filtersCount"`
}

// AppliedTemplate pairs a catalog template with the scope it is applied to.
type AppliedTemplate struct {
	Template Template  `json:"template"`
	Scope    ScopeType `json:"scope"`
	FilterID string    `json:"filterId"`
}
