package guard

import (
	"fmt"
	"strings"
)

// Nudge is the synthetic steering turn injected back into the conversation
// when a finding survives the budget check, asking the model to verify
// before it finishes.
type Nudge struct {
	Findings []Finding
	Message  string
}

// Policy decides, per run, how many nudges a turn may spend. Spent is
// reset by the caller at the start of every user turn.
type Policy struct {
	cfg   Config
	spent int
}

// NewPolicy creates a Policy from cfg. A zero Config disables nudging.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

// Reset clears the per-turn nudge counter; call once per user message.
func (p *Policy) Reset() {
	if p == nil {
		return
	}
	p.spent = 0
}

// Consider returns a Nudge built from findings if the guard is enabled,
// findings is non-empty, and the per-turn budget isn't exhausted. The
// second return is false when no nudge should be issued (nothing found,
// guard disabled, or budget spent) so the caller can let the turn
// complete undisturbed.
func (p *Policy) Consider(findings []Finding) (Nudge, bool) {
	if p == nil || !p.cfg.Enabled || len(findings) == 0 {
		return Nudge{}, false
	}
	max := p.cfg.MaxNudgesPerTurn
	if max <= 0 {
		max = 3
	}
	if p.spent >= max {
		return Nudge{}, false
	}
	p.spent++
	return Nudge{Findings: findings, Message: renderMessage(findings)}, true
}

func renderMessage(findings []Finding) string {
	var b strings.Builder
	b.WriteString("Before finishing, double-check the following instead of asserting them:\n")
	for _, f := range findings {
		fmt.Fprintf(&b, "- %s\n", f.Detail)
	}
	b.WriteString("Use the appropriate tool to verify, then give a corrected final answer.")
	return b.String()
}
