package policy

import (
	"testing"

	"github.com/pandagen/kernel/core"
)

func TestFirstDenyWins(t *testing.T) {
	e := NewEngine(
		Named{Name: "allow-all", Fn: func(Context) Decision { return AllowDecision() }},
		Named{Name: "deny-untrusted", Fn: func(ctx Context) Decision {
			if ctx.Identity.TrustDomain != "trusted" {
				return DenyDecision("untrusted domain")
			}
			return AllowDecision()
		}},
		Named{Name: "require-audit", Fn: func(Context) Decision { return RequireDecision("audit-log") }},
	)

	d := e.Evaluate(Context{Event: OnSpawn, Identity: core.Identity{TrustDomain: "guest"}})
	if d.Kind != Deny || d.Reason != "untrusted domain" {
		t.Fatalf("expected Deny(untrusted domain), got %+v", d)
	}
}

func TestRequireWinsOverAllowWhenNoDeny(t *testing.T) {
	e := NewEngine(
		Named{Name: "allow-all", Fn: func(Context) Decision { return AllowDecision() }},
		Named{Name: "require-audit", Fn: func(Context) Decision { return RequireDecision("audit-log") }},
	)
	d := e.Evaluate(Context{Event: OnSpawn})
	if d.Kind != Require || d.Action != "audit-log" {
		t.Fatalf("expected Require(audit-log), got %+v", d)
	}
}

func TestEnforceMapsToKernelErrors(t *testing.T) {
	denyEngine := NewEngine(Named{Name: "deny", Fn: func(Context) Decision { return DenyDecision("no") }})
	if err := denyEngine.Enforce(Context{Event: OnSpawn}); err == nil || err.Kind != core.ErrPolicyDenied {
		t.Fatalf("expected PolicyDenied, got %v", err)
	}

	reqEngine := NewEngine(Named{Name: "require", Fn: func(Context) Decision { return RequireDecision("x") }})
	if err := reqEngine.Enforce(Context{Event: OnSpawn}); err == nil || err.Kind != core.ErrPolicyRequire {
		t.Fatalf("expected PolicyRequire, got %v", err)
	}

	allowEngine := NewEngine()
	if err := allowEngine.Enforce(Context{Event: OnSpawn}); err != nil {
		t.Fatalf("expected nil for no policies registered, got %v", err)
	}
}

func TestAuditRecordsEveryEvaluation(t *testing.T) {
	e := NewEngine(Named{Name: "allow", Fn: func(Context) Decision { return AllowDecision() }})
	e.Evaluate(Context{Event: OnSpawn})
	e.Evaluate(Context{Event: OnSend})
	log := e.Audit()
	if len(log) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(log))
	}
	if log[0].Seq != 1 || log[1].Seq != 2 {
		t.Fatalf("expected sequential Seq, got %d %d", log[0].Seq, log[1].Seq)
	}
}
