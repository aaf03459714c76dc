// Package reentrancy provides an adversarial asset receiver that re-enters a
// pool while a withdrawal is releasing value to it, and a scripted scenario
// that measures what each transfer gate lets it get away with.
package reentrancy

import (
	"context"

	"github.com/jmerrifield20/minipool/pkg/address"
)

// Withdrawer is the pool surface the attacker calls back into.
// *pool.Pool satisfies this interface.
type Withdrawer interface {
	Withdraw(ctx context.Context, participant address.Address, amount uint64) (uint64, error)
}

// Attempt is the outcome of one nested withdrawal.
type Attempt struct {
	Depth   int    `json:"depth"`
	Balance uint64 `json:"balance"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// Attacker is an asset.Receiver registered at the attacker's own address.
// Each time it receives value from the pool it immediately asks for amount
// again, up to maxDepth levels of nesting.
type Attacker struct {
	target   Withdrawer
	source   address.Address // only transfers from here trigger re-entry
	self     address.Address
	amount   uint64
	maxDepth int

	depth    int
	attempts []Attempt
}

// NewAttacker creates an Attacker that drains target, which custodies funds
// at source, on behalf of self.
func NewAttacker(target Withdrawer, source, self address.Address, amount uint64, maxDepth int) *Attacker {
	if maxDepth <= 0 {
		maxDepth = 1
	}
	return &Attacker{
		target:   target,
		source:   source,
		self:     self,
		amount:   amount,
		maxDepth: maxDepth,
	}
}

// OnReceive implements asset.Receiver.
func (a *Attacker) OnReceive(ctx context.Context, from address.Address, _ uint64) {
	if from != a.source || a.depth >= a.maxDepth {
		return
	}
	a.depth++
	defer func() { a.depth-- }()

	bal, err := a.target.Withdraw(ctx, a.self, a.amount)
	a.attempts = append(a.attempts, Attempt{Depth: a.depth, Balance: bal, Error: errString(err), Err: err})
}

// Attempts returns every nested withdrawal tried so far, innermost first.
func (a *Attacker) Attempts() []Attempt {
	out := make([]Attempt, len(a.attempts))
	copy(out, a.attempts)
	return out
}

// Succeeded counts nested withdrawals the pool accepted.
func (a *Attacker) Succeeded() int {
	n := 0
	for _, at := range a.attempts {
		if at.Err == nil {
			n++
		}
	}
	return n
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
