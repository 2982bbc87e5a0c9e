package policy

import "github.com/sfmcp/snowflake-mcp/internal/classify"

// Decision is the outcome of gating one statement kind against the policy.
type Decision struct {
	Allowed bool
	// Reason explains a denial in operator terms; empty when allowed.
	Reason string
}

// Authorize decides whether a statement of the given kind may run.
//
// Pure lookup: no I/O, no state. An explicit entry always wins, including
// "unknown: true" — an operator may elect to run statements the classifier
// could not understand. Absent that entry, KindUnknown is denied even under
// the allow-all election: allow-all covers every kind the classifier can
// name, never statements it cannot.
func Authorize(p *Policy, kind classify.Kind) Decision {
	if allowed, ok := p.entries[kind]; ok {
		if allowed {
			return Decision{Allowed: true}
		}
		return Decision{
			Allowed: false,
			Reason:  string(kind) + " statements are explicitly denied by the configured policy",
		}
	}

	if kind == classify.KindUnknown {
		return Decision{
			Allowed: false,
			Reason:  "statement could not be classified; unknown statements are denied unless the policy allows them explicitly",
		}
	}

	if p.allowAll {
		return Decision{Allowed: true}
	}

	return Decision{
		Allowed: false,
		Reason:  string(kind) + " statements are not configured in the policy; unconfigured kinds are denied by default",
	}
}
