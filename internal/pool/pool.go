package pool

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/jmerrifield20/minipool/internal/guard"
	"github.com/jmerrifield20/minipool/pkg/address"
	"go.uber.org/zap"
)

// AssetLedger is the external fungible asset the pool custodies. Both
// transfers must be all-or-nothing and report failure as an error.
// *asset.Account satisfies this interface.
type AssetLedger interface {
	// TransferFrom pulls amount from payer into to, using the pool's allowance.
	TransferFrom(ctx context.Context, payer, to address.Address, amount uint64) error

	// Transfer releases amount of the pool's holdings to to. It may hand
	// control to code owned by to before returning.
	Transfer(ctx context.Context, to address.Address, amount uint64) error

	// BalanceOf returns the asset holdings of holder.
	BalanceOf(ctx context.Context, holder address.Address) (uint64, error)
}

// Pool tracks per-participant deposits of a single custodied asset and the
// aggregate total. Only Pool methods mutate its state.
//
// Top-level calls from concurrent goroutines should go through a Sequencer;
// the guard treats any overlapping call as re-entry.
type Pool struct {
	self  address.Address
	asset AssetLedger
	gate  Gate
	guard guard.Guard

	// mu protects balances and total. It is never held across a call to asset.
	mu       sync.Mutex
	balances map[address.Address]uint64
	total    uint64

	recorder Recorder // nil = no audit records
	logger   *zap.Logger
}

// New creates an empty Pool custodying funds at self.
func New(self address.Address, asset AssetLedger, gate Gate, logger *zap.Logger) *Pool {
	return &Pool{
		self:     self,
		asset:    asset,
		gate:     gate,
		balances: make(map[address.Address]uint64),
		logger:   logger,
	}
}

// SetRecorder configures the audit recorder.
func (p *Pool) SetRecorder(r Recorder) {
	p.recorder = r
}

// Address returns the custody address of the pool.
func (p *Pool) Address() address.Address { return p.self }

// Gate returns the transfer policy.
func (p *Pool) Gate() Gate { return p.gate }

// enter acquires the guard when the gate requires it.
func (p *Pool) enter() (func(), error) {
	if !p.gate.Guarded {
		return func() {}, nil
	}
	return p.guard.Enter()
}

// Deposit pulls amount from participant into custody and credits it.
// It returns the participant's resulting balance.
func (p *Pool) Deposit(ctx context.Context, participant address.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	release, err := p.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	p.mu.Lock()
	overflow := p.balances[participant] > math.MaxUint64-amount || p.total > math.MaxUint64-amount
	p.mu.Unlock()
	if overflow {
		return 0, ErrOverflow
	}

	if err := p.asset.TransferFrom(ctx, participant, p.self, amount); err != nil {
		p.logger.Warn("deposit pull failed",
			zap.Stringer("participant", participant),
			zap.Uint64("amount", amount),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: %w", ErrExternalTransferFailed, err)
	}

	p.mu.Lock()
	p.balances[participant] += amount
	p.total += amount
	bal, total := p.balances[participant], p.total
	p.mu.Unlock()

	p.record(ctx, KindDeposit, participant, amount, bal, total)
	return bal, nil
}

// Withdraw releases amount of custodied value to participant and debits it.
// The Gate decides whether the debit is committed before or after the
// release. It returns the participant's resulting balance.
func (p *Pool) Withdraw(ctx context.Context, participant address.Address, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	release, err := p.enter()
	if err != nil {
		return 0, err
	}
	defer release()

	p.mu.Lock()
	bal, total := p.balances[participant], p.total
	if amount > bal {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: requested %d, available %d", ErrInsufficientBalance, amount, bal)
	}

	switch p.gate.Ordering {
	case ReleaseThenCommit:
		p.mu.Unlock()
		if err := p.asset.Transfer(ctx, participant, amount); err != nil {
			return 0, p.releaseFailed(participant, amount, err)
		}
		// Written from the snapshot taken before the release.
		p.mu.Lock()
		p.balances[participant] = bal - amount
		p.total = total - amount
		p.mu.Unlock()

	default:
		p.balances[participant] = bal - amount
		p.total -= amount
		p.mu.Unlock()

		if err := p.asset.Transfer(ctx, participant, amount); err != nil {
			p.mu.Lock()
			p.balances[participant] += amount
			p.total += amount
			p.mu.Unlock()
			return 0, p.releaseFailed(participant, amount, err)
		}
	}

	p.mu.Lock()
	bal, total = p.balances[participant], p.total
	p.mu.Unlock()

	p.record(ctx, KindWithdraw, participant, amount, bal, total)
	return bal, nil
}

func (p *Pool) releaseFailed(participant address.Address, amount uint64, err error) error {
	p.logger.Warn("withdraw release failed",
		zap.Stringer("participant", participant),
		zap.Uint64("amount", amount),
		zap.Stringer("gate", p.gate),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %w", ErrExternalTransferFailed, err)
}

// BalanceOf returns the tracked balance of participant. Unknown participants
// have a zero balance.
func (p *Pool) BalanceOf(participant address.Address) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balances[participant]
}

// TotalDeposited returns the aggregate tracked balance.
func (p *Pool) TotalDeposited() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Participants returns every address that has ever held a balance, in
// ascending byte order. Entries that returned to zero are included.
func (p *Pool) Participants() []address.Address {
	p.mu.Lock()
	out := make([]address.Address, 0, len(p.balances))
	for a := range p.balances {
		out = append(out, a)
	}
	p.mu.Unlock()

	slices.SortFunc(out, address.Address.Compare)
	return out
}

// Custody returns the asset balance actually held at the pool address.
func (p *Pool) Custody(ctx context.Context) (uint64, error) {
	held, err := p.asset.BalanceOf(ctx, p.self)
	if err != nil {
		return 0, fmt.Errorf("query custody balance: %w", err)
	}
	return held, nil
}

// Reconcile checks that the balances sum to the total and that the total is
// covered by custody. It returns nil when both hold.
func (p *Pool) Reconcile(ctx context.Context) error {
	p.mu.Lock()
	var sum uint64
	for _, b := range p.balances {
		sum += b
	}
	total := p.total
	p.mu.Unlock()

	if sum != total {
		return fmt.Errorf("%w: balances sum to %d, total is %d", ErrLedgerInconsistent, sum, total)
	}

	held, err := p.Custody(ctx)
	if err != nil {
		return err
	}
	if held < total {
		return fmt.Errorf("%w: tracked %d, held %d", ErrCustodyShortfall, total, held)
	}
	return nil
}

// record emits an audit record in a non-fatal manner.
func (p *Pool) record(ctx context.Context, kind Kind, participant address.Address, amount, bal, total uint64) {
	p.logger.Debug("pool "+string(kind),
		zap.Stringer("participant", participant),
		zap.Uint64("amount", amount),
		zap.Uint64("balance", bal),
		zap.Uint64("total", total),
	)
	if p.recorder == nil {
		return
	}
	rec := Record{
		Participant: participant,
		Kind:        kind,
		Amount:      amount,
		Balance:     bal,
		Total:       total,
		Gate:        p.gate.String(),
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		p.logger.Error("audit record failed (non-fatal)",
			zap.String("kind", string(kind)),
			zap.Stringer("participant", participant),
			zap.Error(err),
		)
	}
}
