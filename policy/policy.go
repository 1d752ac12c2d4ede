// Package policy implements the advisory policy engine of spec §4.I:
// pure functions from (event, context) to a Decision, composed by
// first-Deny-wins / else-union-of-Requires / else-Allow, enforced only
// at spawn_task and delegate_capability. Grounded on the teacher's
// ingest/processors pipeline (a chain of pure, composable processors
// applied to every entry in order, the first rejection short-circuiting
// the chain) — generalized here from entry transforms to Decision
// composition.
package policy

import (
	"strings"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/klog"
)

// EventKind names a point where policy may be consulted (spec §4.I
// "event ∈ {OnSpawn, OnCapabilityDelegate, OnSend, OnAllocateRegion,
// OnDeadlineMiss}"). OnSend and OnAllocateRegion and OnDeadlineMiss are
// evaluated and audited where wired, even though only OnSpawn and
// OnCapabilityDelegate gate an operation (spec §4.I "Enforcement
// points... at minimum").
type EventKind int

const (
	OnSpawn EventKind = iota
	OnCapabilityDelegate
	OnSend
	OnAllocateRegion
	OnDeadlineMiss
)

func (k EventKind) String() string {
	switch k {
	case OnSpawn:
		return "OnSpawn"
	case OnCapabilityDelegate:
		return "OnCapabilityDelegate"
	case OnSend:
		return "OnSend"
	case OnAllocateRegion:
		return "OnAllocateRegion"
	case OnDeadlineMiss:
		return "OnDeadlineMiss"
	default:
		return "Unknown"
	}
}

// Context is the pure input a policy function is evaluated over. Fields
// are populated only as relevant to the event kind; policies must not
// reach outside Context for ambient state (spec §5 determinism: policy
// decisions are "deterministic over pure context").
type Context struct {
	Event    EventKind
	Identity core.Identity
	Exec     core.ExecutionId
	Target   string // free-form: action name, channel action, region description
	Now      core.Tick
}

// DecisionKind discriminates a policy's verdict (spec §4.I, §9 "Policy
// decision").
type DecisionKind int

const (
	Allow DecisionKind = iota
	Deny
	Require
)

// Decision is a single policy function's verdict. Reason is set for
// Deny; Action is set for Require (a composed Require lists every
// distinct required action, joined by ", ").
type Decision struct {
	Kind   DecisionKind
	Reason string
	Action string
}

func AllowDecision() Decision            { return Decision{Kind: Allow} }
func DenyDecision(reason string) Decision { return Decision{Kind: Deny, Reason: reason} }
func RequireDecision(action string) Decision { return Decision{Kind: Require, Action: action} }

// Func is one pure policy: (event, context) -> Decision.
type Func func(ctx Context) Decision

// Named pairs a Func with the name Audit entries log it under (spec
// §4.I "Audit... policy name, and outcome").
type Named struct {
	Name string
	Fn   Func
}

// Engine composes an ordered list of named policies (spec §4.I
// "Composable").
type Engine struct {
	policies []Named
	audit    []AuditEntry
	log      *klog.Logger
}

// AuditEntry records one composed evaluation (spec §4.I "Audit").
type AuditEntry struct {
	Seq     uint64
	Event   EventKind
	Context Context
	Results []NamedDecision
	Outcome Decision
}

// NamedDecision pairs a single policy's name with its individual verdict,
// so the composed Outcome's provenance survives in the audit trail.
type NamedDecision struct {
	Name     string
	Decision Decision
}

// NewEngine returns an engine evaluating policies in registration order.
func NewEngine(policies ...Named) *Engine {
	return &Engine{policies: policies, log: klog.NewDiscard()}
}

// SetLogger routes non-Allow composed outcomes to l.
func (e *Engine) SetLogger(l *klog.Logger) { e.log = l }

// Register appends a policy to the end of the evaluation order.
func (e *Engine) Register(n Named) { e.policies = append(e.policies, n) }

// Evaluate runs every registered policy against ctx and composes the
// result (spec §4.I "Composition: first Deny wins; otherwise union of
// Requires; otherwise Allow"). The composed Decision never carries
// authority beyond Allow/Deny/Require — it is consulted, not obeyed
// blindly, by the caller (spec §9 "Policy cannot grant authority").
func (e *Engine) Evaluate(ctx Context) Decision {
	var results []NamedDecision
	var requires []string
	var firstDeny *Decision

	for _, p := range e.policies {
		d := p.Fn(ctx)
		results = append(results, NamedDecision{Name: p.Name, Decision: d})
		switch d.Kind {
		case Deny:
			if firstDeny == nil {
				dCopy := d
				firstDeny = &dCopy
			}
		case Require:
			seen := false
			for _, a := range requires {
				if a == d.Action {
					seen = true
					break
				}
			}
			if !seen {
				requires = append(requires, d.Action)
			}
		}
	}

	var outcome Decision
	switch {
	case firstDeny != nil:
		outcome = *firstDeny
	case len(requires) > 0:
		outcome = Decision{Kind: Require, Action: strings.Join(requires, ", ")}
	default:
		outcome = AllowDecision()
	}

	e.audit = append(e.audit, AuditEntry{
		Seq:     uint64(len(e.audit)) + 1,
		Event:   ctx.Event,
		Context: ctx,
		Results: results,
		Outcome: outcome,
	})
	if outcome.Kind != Allow {
		e.log.Debug("policy", "%s on %s -> %v (%s/%s)", ctx.Event, ctx.Exec, outcome.Kind, outcome.Reason, outcome.Action)
	}
	return outcome
}

// Audit returns every composed decision made so far, in evaluation
// order.
func (e *Engine) Audit() []AuditEntry {
	out := make([]AuditEntry, len(e.audit))
	copy(out, e.audit)
	return out
}

// Enforce evaluates ctx and converts a non-Allow outcome into the
// matching KernelError, for use at the spec §4.I "minimum" enforcement
// points (spawn_task, delegate_capability).
func (e *Engine) Enforce(ctx Context) *core.KernelError {
	switch d := e.Evaluate(ctx); d.Kind {
	case Deny:
		return core.PolicyDenied(d.Reason)
	case Require:
		return core.PolicyRequire(d.Action)
	default:
		return nil
	}
}
