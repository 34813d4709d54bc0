// Package policy decides whether a page is blocked given its signal tags,
// its URL and the current policy state.
package policy

import (
	"github.com/ppiankov/contentlock/internal/model"
)

// Decision is the full verdict for one page.
type Decision struct {
	Block           bool
	BlockType       model.BlockType
	SelfLockBlocked bool
	ParentalBlocked bool
	Reasons         []string
	// PolicyID names the rule that decided the verdict.
	PolicyID string
}

// Evaluate applies the fixed precedence:
//  1. No signals: allow.
//  2. Active self-lock: the allow-list defers the lock only when
//     ignoreAllowlist is off; otherwise a scope match blocks.
//  3. Parental policy, always evaluated: disabled, allow-list,
//     block-list, then category policy.
//  4. Block if either branch blocked; self-lock wins the block type.
//
// The caller applies tamper correction and expiry first, so an active
// session here is assumed to be running.
func Evaluate(signals []string, rawURL string, state *model.PolicyState) Decision {
	if len(signals) == 0 {
		return Decision{PolicyID: "signals.none"}
	}

	var d Decision
	sl := &state.SelfLock
	if sl.Active {
		switch {
		case !sl.IgnoreAllowlist && InAllowList(rawURL, &state.Parental):
			d.PolicyID = "selflock.allowlist"
		case MatchesScope(signals, sl.Scope):
			d.SelfLockBlocked = true
			d.PolicyID = "selflock.scope." + string(sl.Scope)
		}
	}

	pv := evaluateParental(signals, rawURL, &state.Parental)
	if pv.block {
		d.ParentalBlocked = true
	}
	if !d.SelfLockBlocked {
		d.PolicyID = pv.id
	}

	d.Block = d.SelfLockBlocked || d.ParentalBlocked
	if d.Block {
		d.BlockType = model.BlockParental
		if d.SelfLockBlocked {
			d.BlockType = model.BlockSelfLock
		}
		d.Reasons = Reasons(signals)
	}
	return d
}

type parentalVerdict struct {
	block bool
	id    string
}

func evaluateParental(signals []string, rawURL string, p *model.Parental) parentalVerdict {
	if !p.Enabled {
		return parentalVerdict{id: "parental.disabled"}
	}
	if InAllowList(rawURL, p) {
		return parentalVerdict{id: "parental.allowlist"}
	}
	if InBlockList(rawURL, p) {
		return parentalVerdict{block: true, id: "parental.blocklist"}
	}
	if id := MatchCategory(signals, p); id != "" {
		return parentalVerdict{block: true, id: id}
	}
	return parentalVerdict{id: "parental.allow"}
}

// ShouldBlock is Evaluate reduced to its verdict.
func ShouldBlock(signals []string, rawURL string, state *model.PolicyState) bool {
	return Evaluate(signals, rawURL, state).Block
}
