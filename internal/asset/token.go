// Package asset implements an in-process fungible token ledger.
//
// Token is the external asset collaborator of the custody pool: it owns the
// authoritative holdings, allowances and supply. Holders may register a
// Receiver hook that is invoked after value arrives, which is how program
// accounts (and adversarial test accounts) get control during a transfer.
package asset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jmerrifield20/minipool/pkg/address"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInvalidRecipient      = errors.New("recipient is the zero address")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrOverflow              = errors.New("amount overflows balance")
)

// Receiver is notified after a transfer has credited its holder. The hook
// runs with no token lock held, so it may call back into the token or into
// anything that uses it.
type Receiver interface {
	OnReceive(ctx context.Context, from address.Address, amount uint64)
}

// ReceiverFunc adapts a plain function to Receiver.
type ReceiverFunc func(ctx context.Context, from address.Address, amount uint64)

// OnReceive implements Receiver.
func (f ReceiverFunc) OnReceive(ctx context.Context, from address.Address, amount uint64) {
	f(ctx, from, amount)
}

// Token is a thread-safe fungible asset ledger.
type Token struct {
	mu         sync.Mutex
	symbol     string
	supply     uint64
	balances   map[address.Address]uint64
	allowances map[address.Address]map[address.Address]uint64
	receivers  map[address.Address]Receiver
	logger     *zap.Logger
}

// New creates an empty Token.
func New(symbol string, logger *zap.Logger) *Token {
	return &Token{
		symbol:     symbol,
		balances:   make(map[address.Address]uint64),
		allowances: make(map[address.Address]map[address.Address]uint64),
		receivers:  make(map[address.Address]Receiver),
		logger:     logger,
	}
}

// Symbol returns the token ticker.
func (t *Token) Symbol() string { return t.symbol }

// Mint creates amount new units held by to.
func (t *Token) Mint(to address.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidRecipient
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.supply > math.MaxUint64-amount {
		return ErrOverflow
	}
	t.supply += amount
	t.balances[to] += amount

	t.logger.Debug("mint",
		zap.String("symbol", t.symbol),
		zap.Stringer("to", to),
		zap.Uint64("amount", amount),
	)
	return nil
}

// Approve sets the amount spender may pull from owner via TransferFrom.
// A zero amount revokes the allowance.
func (t *Token) Approve(owner, spender address.Address, amount uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if amount == 0 {
		delete(t.allowances[owner], spender)
		return
	}
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[address.Address]uint64)
		t.allowances[owner] = m
	}
	m[spender] = amount
}

// Allowance returns the remaining amount spender may pull from owner.
func (t *Token) Allowance(owner, spender address.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allowances[owner][spender]
}

// BalanceOf returns the holdings of holder.
func (t *Token) BalanceOf(holder address.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.balances[holder]
}

// TotalSupply returns the number of units in existence.
func (t *Token) TotalSupply() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.supply
}

// SetReceiver registers a hook for holder. Passing nil removes it.
func (t *Token) SetReceiver(holder address.Address, r Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r == nil {
		delete(t.receivers, holder)
		return
	}
	t.receivers[holder] = r
}

// Transfer moves amount from from to to. The move is all-or-nothing; once it
// is applied the recipient's Receiver, if any, is invoked.
func (t *Token) Transfer(ctx context.Context, from, to address.Address, amount uint64) error {
	if err := validate(to, amount); err != nil {
		return err
	}

	t.mu.Lock()
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	r := t.receivers[to]
	t.mu.Unlock()

	t.notify(ctx, r, from, to, amount)
	return nil
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance.
func (t *Token) TransferFrom(ctx context.Context, spender, from, to address.Address, amount uint64) error {
	if err := validate(to, amount); err != nil {
		return err
	}

	t.mu.Lock()
	allowed := t.allowances[from][spender]
	if allowed < amount {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s may spend %d of %s, requested %d",
			ErrInsufficientAllowance, spender, allowed, from, amount)
	}
	if err := t.move(from, to, amount); err != nil {
		t.mu.Unlock()
		return err
	}
	if allowed != math.MaxUint64 {
		t.allowances[from][spender] = allowed - amount
	}
	r := t.receivers[to]
	t.mu.Unlock()

	t.notify(ctx, r, from, to, amount)
	return nil
}

// move must be called with t.mu held.
func (t *Token) move(from, to address.Address, amount uint64) error {
	bal := t.balances[from]
	if bal < amount {
		return fmt.Errorf("%w: %s holds %d, requested %d", ErrInsufficientFunds, from, bal, amount)
	}
	if from != to && t.balances[to] > math.MaxUint64-amount {
		return ErrOverflow
	}
	t.balances[from] = bal - amount
	t.balances[to] += amount
	return nil
}

func (t *Token) notify(ctx context.Context, r Receiver, from, to address.Address, amount uint64) {
	t.logger.Debug("transfer",
		zap.String("symbol", t.symbol),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.Uint64("amount", amount),
		zap.Bool("hook", r != nil),
	)
	if r != nil {
		r.OnReceive(ctx, from, amount)
	}
}

func validate(to address.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrInvalidRecipient
	}
	return nil
}
