package permission

import (
	"context"
	"log/slog"
	"regexp"
	"sync"
	"time"

	automation "github.com/execore/automation"
)

// PromptFunc is the caller-supplied interactive prompt callback: given an
// action kind, its parameters, and the assessed risk, it returns whether a
// human approved the action.
type PromptFunc func(actionKind string, params map[string]any, risk Risk) bool

// Stats is the aggregate decision counters exposed by Manager.Stats.
type Stats struct {
	ByActionKind   map[string]int
	ByRisk         map[Risk]int
	ByDecision     map[Decision]int
	PromptsSeen    int
	PromptsAllowed int
}

// PromptApprovalRate returns PromptsAllowed/PromptsSeen, or 0 when no
// prompt has been issued yet.
func (s Stats) PromptApprovalRate() float64 {
	if s.PromptsSeen == 0 {
		return 0
	}
	return float64(s.PromptsAllowed) / float64(s.PromptsSeen)
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPrompt registers the interactive prompt callback invoked when policy
// requires human approval.
func WithPrompt(fn PromptFunc) ManagerOption {
	return func(m *Manager) { m.prompt = fn }
}

// WithAuditSink overrides the default FileAuditSink.
func WithAuditSink(sink AuditSink) ManagerOption {
	return func(m *Manager) { m.audit = sink }
}

// WithDomainAllowlist restricts browser_navigate actions to the given host
// patterns (plain strings or regexes); a final scope violation demotes an
// otherwise-allowed decision to Deny.
func WithDomainAllowlist(domains []string) ManagerOption {
	return func(m *Manager) { m.domainAllow = domains }
}

// WithPathBlocklist denies file actions whose path matches any of the given
// patterns, evaluated as a final scope check after rule evaluation.
func WithPathBlocklist(paths []string) ManagerOption {
	return func(m *Manager) { m.pathBlock = paths }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// WithTracer attaches a Tracer used to emit a permission.decide span around
// every Decide call.
func WithTracer(t automation.Tracer) ManagerOption {
	return func(m *Manager) { m.tracer = t }
}

// Manager is the policy decision point: it computes risk, evaluates rules,
// optionally prompts, applies final scope validation, and durably audits
// every decision before returning it.
type Manager struct {
	rules  *RuleStore
	audit  AuditSink
	prompt PromptFunc
	logger *slog.Logger
	tracer automation.Tracer

	domainAllow []string
	pathBlock   []string

	statsMu sync.Mutex
	stats   Stats
}

// NewManager creates a Manager backed by a FileAuditSink at auditLogPath.
func NewManager(auditLogPath string, opts ...ManagerOption) (*Manager, error) {
	sink, err := NewFileAuditSink(auditLogPath)
	if err != nil {
		return nil, err
	}
	m := &Manager{
		rules:  NewRuleStore(),
		audit:  sink,
		logger: slog.New(slog.NewTextHandler(discardWriter{}, nil)),
		tracer: automation.NoopTracer{},
		stats: Stats{
			ByActionKind: make(map[string]int),
			ByRisk:       make(map[Risk]int),
			ByDecision:   make(map[Decision]int),
		},
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Rules returns the manager's rule store, so callers can add rules
// directly: mgr.Rules().AddRule(...).
func (m *Manager) Rules() *RuleStore { return m.rules }

// Decide runs the full decision algorithm for actionKind with params:
// compute risk, evaluate rules (skipping/pruning expired ones), apply
// prompt-on-ambiguity, apply final scope validation, append an audit
// record, and return the decision. The audit write completes before Decide
// returns, satisfying the write-before-effect ordering guarantee.
func (m *Manager) Decide(actionKind string, params map[string]any) (Decision, error) {
	now := time.Now()
	_, span := m.tracer.Start(context.Background(), "permission.decide", automation.Attr("action.kind", actionKind))
	defer span.End()
	risk := AssessRisk(actionKind, params)

	var decision Decision
	var ruleID string
	var userApproved bool

	if rule, ok := m.rules.Evaluate(actionKind, params, now); ok {
		decision = rule.Decision
		ruleID = rule.ID
	} else {
		decision = defaultDecision(risk)
	}

	if decision == Prompt {
		m.statsMu.Lock()
		m.stats.PromptsSeen++
		m.statsMu.Unlock()
		approved := false
		if m.prompt != nil {
			approved = func() (ok bool) {
				defer func() {
					if r := recover(); r != nil {
						m.logger.Error("permission: prompt callback panicked", "recovered", r)
						ok = false
					}
				}()
				return m.prompt(actionKind, params, risk)
			}()
		}
		userApproved = approved
		if approved {
			decision = Allow
			m.statsMu.Lock()
			m.stats.PromptsAllowed++
			m.statsMu.Unlock()
		} else {
			decision = Deny
			ruleID = ""
		}
	}

	if decision == Allow && m.violatesFinalScope(actionKind, params) {
		decision = Deny
		ruleID = ""
	}

	m.recordStats(actionKind, risk, decision)
	span.SetAttr(automation.Attr("permission.risk", string(risk)), automation.Attr("permission.decision", string(decision)))

	record := AuditRecord{
		ID:           automation.NewID(),
		Timestamp:    now,
		ActionType:   actionKind,
		ActionParams: copyParams(params),
		Decision:     decision,
		UserApproved: userApproved,
		RiskLevel:    risk,
	}
	if err := m.audit.Write(record); err != nil {
		m.logger.Error("permission: audit write failed", "error", err)
		return Deny, err
	}

	if decision != Allow {
		return decision, &automation.PermissionDeniedError{Action: actionKind, Risk: string(risk), RuleID: ruleID}
	}
	return decision, nil
}

func (m *Manager) violatesFinalScope(actionKind string, params map[string]any) bool {
	switch actionKind {
	case "browser_navigate":
		if len(m.domainAllow) == 0 {
			return false
		}
		url, _ := params["url"].(string)
		for _, pattern := range m.domainAllow {
			if matchPattern(pattern, url) {
				return false
			}
		}
		return true
	case "file_read", "file_write", "file_delete", "file_create", "file_move":
		path, _ := params["path"].(string)
		for _, pattern := range m.pathBlock {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchPattern(pattern, value string) bool {
	if re, err := regexp.Compile(pattern); err == nil {
		return re.MatchString(value)
	}
	return pattern == value
}

func (m *Manager) recordStats(actionKind string, risk Risk, decision Decision) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	m.stats.ByActionKind[actionKind]++
	m.stats.ByRisk[risk]++
	m.stats.ByDecision[decision]++
}

// Stats returns a snapshot of the manager's aggregate counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	cp := Stats{
		ByActionKind:   make(map[string]int, len(m.stats.ByActionKind)),
		ByRisk:         make(map[Risk]int, len(m.stats.ByRisk)),
		ByDecision:     make(map[Decision]int, len(m.stats.ByDecision)),
		PromptsSeen:    m.stats.PromptsSeen,
		PromptsAllowed: m.stats.PromptsAllowed,
	}
	for k, v := range m.stats.ByActionKind {
		cp.ByActionKind[k] = v
	}
	for k, v := range m.stats.ByRisk {
		cp.ByRisk[k] = v
	}
	for k, v := range m.stats.ByDecision {
		cp.ByDecision[k] = v
	}
	return cp
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}
