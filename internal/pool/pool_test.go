package pool_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/jmerrifield20/minipool/internal/asset"
	"github.com/jmerrifield20/minipool/internal/pool"
	"github.com/jmerrifield20/minipool/pkg/address"
	"go.uber.org/zap"
)

var (
	ctx     = context.Background()
	alice   = address.FromSeed("alice")
	bob     = address.FromSeed("bob")
	charlie = address.FromSeed("charlie")
	custody = address.FromSeed("mini-lending-pool")
)

const userSupply = 10_000

// newPool deploys a token and a pool, funds three users and approves the
// pool for unlimited pulls.
func newPool(t *testing.T, gate pool.Gate) (*pool.Pool, *asset.Token) {
	t.Helper()
	tok := asset.New("TST", zap.NewNop())
	for _, u := range []address.Address{alice, bob, charlie} {
		if err := tok.Mint(u, userSupply); err != nil {
			t.Fatal(err)
		}
		tok.Approve(u, custody, math.MaxUint64)
	}
	return pool.New(custody, asset.NewAccount(tok, custody), gate, zap.NewNop()), tok
}

// assertConserved checks that tracked balances sum to the total and the
// total equals what the token says the pool holds.
func assertConserved(t *testing.T, p *pool.Pool, tok *asset.Token) {
	t.Helper()
	var sum uint64
	for _, a := range p.Participants() {
		sum += p.BalanceOf(a)
	}
	if sum != p.TotalDeposited() {
		t.Errorf("sum(balances)=%d, TotalDeposited()=%d", sum, p.TotalDeposited())
	}
	if held := tok.BalanceOf(custody); held != p.TotalDeposited() {
		t.Errorf("custody=%d, TotalDeposited()=%d", held, p.TotalDeposited())
	}
	if err := p.Reconcile(ctx); err != nil {
		t.Errorf("Reconcile(): %v", err)
	}
}

// ── Deposit ─────────────────────────────────────────────────────────────────

func TestDeposit_tracksBalance(t *testing.T) {
	p, _ := newPool(t, pool.Safe)

	bal, err := p.Deposit(ctx, alice, 100)
	if err != nil {
		t.Fatalf("Deposit() error: %v", err)
	}
	if bal != 100 || p.BalanceOf(alice) != 100 {
		t.Errorf("balance: returned %d, stored %d, want 100", bal, p.BalanceOf(alice))
	}
}

func TestDeposit_multipleAccumulate(t *testing.T) {
	p, _ := newPool(t, pool.Safe)

	_, _ = p.Deposit(ctx, alice, 100)
	_, _ = p.Deposit(ctx, alice, 50)

	if got := p.BalanceOf(alice); got != 150 {
		t.Errorf("BalanceOf: got %d, want 150", got)
	}
}

func TestDeposit_movesCustody(t *testing.T) {
	p, tok := newPool(t, pool.Safe)

	if _, err := p.Deposit(ctx, alice, 100); err != nil {
		t.Fatal(err)
	}
	if got := tok.BalanceOf(custody); got != 100 {
		t.Errorf("pool token balance: got %d, want 100", got)
	}
	if got := tok.BalanceOf(alice); got != userSupply-100 {
		t.Errorf("alice token balance: got %d", got)
	}
	assertConserved(t, p, tok)
}

func TestDeposit_zeroRejected(t *testing.T) {
	p, tok := newPool(t, pool.Safe)

	_, err := p.Deposit(ctx, alice, 0)
	if !errors.Is(err, pool.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if p.BalanceOf(alice) != 0 || p.TotalDeposited() != 0 || tok.BalanceOf(custody) != 0 {
		t.Error("rejected deposit mutated state")
	}
}

func TestDeposit_pullFailureMutatesNothing(t *testing.T) {
	p, tok := newPool(t, pool.Safe)
	tok.Approve(alice, custody, 10)

	_, err := p.Deposit(ctx, alice, 11)
	if !errors.Is(err, pool.ErrExternalTransferFailed) {
		t.Fatalf("expected ErrExternalTransferFailed, got %v", err)
	}
	if !errors.Is(err, asset.ErrInsufficientAllowance) {
		t.Errorf("collaborator error not wrapped: %v", err)
	}
	if p.BalanceOf(alice) != 0 || p.TotalDeposited() != 0 {
		t.Error("failed pull mutated ledger")
	}
	assertConserved(t, p, tok)
}

func TestDeposit_overflowRejected(t *testing.T) {
	stub := &stubLedger{}
	p := pool.New(custody, stub, pool.Safe, zap.NewNop())

	if _, err := p.Deposit(ctx, alice, math.MaxUint64); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Deposit(ctx, bob, 1); !errors.Is(err, pool.ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if stub.pulls != 1 {
		t.Errorf("overflowing deposit reached the asset ledger (%d pulls)", stub.pulls)
	}
}

// ── Withdraw ────────────────────────────────────────────────────────────────

func TestWithdraw_partial(t *testing.T) {
	p, tok := newPool(t, pool.Safe)
	_, _ = p.Deposit(ctx, alice, 100)

	bal, err := p.Withdraw(ctx, alice, 30)
	if err != nil {
		t.Fatalf("Withdraw() error: %v", err)
	}
	if bal != 70 {
		t.Errorf("balance: got %d, want 70", bal)
	}
	if got := tok.BalanceOf(alice); got != userSupply-70 {
		t.Errorf("alice token balance: got %d, want %d", got, userSupply-70)
	}
	assertConserved(t, p, tok)
}

func TestWithdraw_insufficientBalance(t *testing.T) {
	p, tok := newPool(t, pool.Safe)
	_, _ = p.Deposit(ctx, alice, 100)

	_, err := p.Withdraw(ctx, alice, 150)
	if !errors.Is(err, pool.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if p.BalanceOf(alice) != 100 || p.TotalDeposited() != 100 {
		t.Error("rejected withdrawal mutated ledger")
	}
	assertConserved(t, p, tok)
}

func TestWithdraw_zeroRejected(t *testing.T) {
	p, _ := newPool(t, pool.Safe)
	_, _ = p.Deposit(ctx, alice, 100)

	if _, err := p.Withdraw(ctx, alice, 0); !errors.Is(err, pool.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if p.BalanceOf(alice) != 100 {
		t.Error("rejected withdrawal mutated ledger")
	}
}

func TestWithdraw_full(t *testing.T) {
	p, tok := newPool(t, pool.Safe)
	_, _ = p.Deposit(ctx, alice, 100)

	if _, err := p.Withdraw(ctx, alice, 100); err != nil {
		t.Fatal(err)
	}
	if got := p.BalanceOf(alice); got != 0 {
		t.Errorf("BalanceOf after full withdrawal: got %d", got)
	}
	// A zeroed participant is still listed and reads as zero.
	if ps := p.Participants(); len(ps) != 1 || ps[0] != alice {
		t.Errorf("Participants(): got %v", ps)
	}
	assertConserved(t, p, tok)
}

func TestWithdraw_unknownParticipant(t *testing.T) {
	p, _ := newPool(t, pool.Safe)

	if _, err := p.Withdraw(ctx, bob, 1); !errors.Is(err, pool.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestWithdraw_releaseFailureRollsBack(t *testing.T) {
	for _, gate := range []pool.Gate{pool.Safe, pool.OrderingOnly, pool.Unsafe} {
		t.Run(gate.String(), func(t *testing.T) {
			stub := &stubLedger{}
			p := pool.New(custody, stub, gate, zap.NewNop())
			if _, err := p.Deposit(ctx, alice, 100); err != nil {
				t.Fatal(err)
			}

			boom := errors.New("token paused")
			stub.releaseErr = boom

			_, err := p.Withdraw(ctx, alice, 40)
			if !errors.Is(err, pool.ErrExternalTransferFailed) || !errors.Is(err, boom) {
				t.Fatalf("expected wrapped ErrExternalTransferFailed, got %v", err)
			}
			if p.BalanceOf(alice) != 100 || p.TotalDeposited() != 100 {
				t.Errorf("after failed release: balance=%d total=%d, want 100/100",
					p.BalanceOf(alice), p.TotalDeposited())
			}

			// The guard must not be wedged by the failure.
			stub.releaseErr = nil
			if _, err := p.Withdraw(ctx, alice, 40); err != nil {
				t.Errorf("withdraw after failure: %v", err)
			}
		})
	}
}

// ── Scenarios ───────────────────────────────────────────────────────────────

func TestScenario_singleParticipant(t *testing.T) {
	p, tok := newPool(t, pool.Safe)

	_, _ = p.Deposit(ctx, alice, 100)
	_, _ = p.Deposit(ctx, alice, 50)
	if got := p.BalanceOf(alice); got != 150 {
		t.Fatalf("after deposits: got %d, want 150", got)
	}

	if _, err := p.Withdraw(ctx, alice, 30); err != nil {
		t.Fatal(err)
	}
	if got := p.BalanceOf(alice); got != 120 {
		t.Fatalf("after withdraw: got %d, want 120", got)
	}
	if got := p.TotalDeposited(); got != 120 {
		t.Errorf("TotalDeposited: got %d, want 120", got)
	}

	if _, err := p.Withdraw(ctx, alice, 200); !errors.Is(err, pool.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := p.BalanceOf(alice); got != 120 {
		t.Errorf("balance changed by rejected withdrawal: %d", got)
	}
	assertConserved(t, p, tok)
}

func TestScenario_twoParticipantsCheckpoints(t *testing.T) {
	p, tok := newPool(t, pool.Safe)

	steps := []struct {
		name string
		op   func() (uint64, error)
	}{
		{"alice deposits 100", func() (uint64, error) { return p.Deposit(ctx, alice, 100) }},
		{"bob deposits 200", func() (uint64, error) { return p.Deposit(ctx, bob, 200) }},
		{"alice withdraws 30", func() (uint64, error) { return p.Withdraw(ctx, alice, 30) }},
		{"bob withdraws 50", func() (uint64, error) { return p.Withdraw(ctx, bob, 50) }},
	}
	for _, s := range steps {
		if _, err := s.op(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		assertConserved(t, p, tok)
	}

	if got := p.BalanceOf(alice); got != 70 {
		t.Errorf("alice: got %d, want 70", got)
	}
	if got := p.BalanceOf(bob); got != 150 {
		t.Errorf("bob: got %d, want 150", got)
	}
	if got := p.TotalDeposited(); got != 220 {
		t.Errorf("total: got %d, want 220", got)
	}
}

func TestScenario_threeParticipants(t *testing.T) {
	p, tok := newPool(t, pool.Safe)

	want := map[address.Address]uint64{alice: 100, bob: 200, charlie: 150}
	for who, amt := range want {
		if _, err := p.Deposit(ctx, who, amt); err != nil {
			t.Fatal(err)
		}
	}
	for who, amt := range want {
		if got := p.BalanceOf(who); got != amt {
			t.Errorf("%s: got %d, want %d", who, got, amt)
		}
	}
	if got := p.TotalDeposited(); got != 450 {
		t.Errorf("total: got %d, want 450", got)
	}
	assertConserved(t, p, tok)
}

func TestReads_idempotent(t *testing.T) {
	p, _ := newPool(t, pool.Safe)
	_, _ = p.Deposit(ctx, alice, 42)

	b1, t1 := p.BalanceOf(alice), p.TotalDeposited()
	b2, t2 := p.BalanceOf(alice), p.TotalDeposited()
	if b1 != b2 || t1 != t2 {
		t.Errorf("reads changed without mutation: (%d,%d) vs (%d,%d)", b1, t1, b2, t2)
	}
	if p.BalanceOf(bob) != 0 {
		t.Error("unknown participant should read zero")
	}
}

func TestParticipants_sorted(t *testing.T) {
	p, _ := newPool(t, pool.Safe)
	for _, u := range []address.Address{charlie, alice, bob} {
		_, _ = p.Deposit(ctx, u, 1)
	}

	ps := p.Participants()
	if len(ps) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(ps))
	}
	for i := 1; i < len(ps); i++ {
		if ps[i-1].Compare(ps[i]) >= 0 {
			t.Errorf("participants not sorted at %d", i)
		}
	}
}

// ── Recorder ────────────────────────────────────────────────────────────────

func TestRecorder_receivesCommittedState(t *testing.T) {
	p, _ := newPool(t, pool.Safe)

	var got []pool.Record
	p.SetRecorder(pool.RecorderFunc(func(_ context.Context, rec pool.Record) error {
		got = append(got, rec)
		return nil
	}))

	_, _ = p.Deposit(ctx, alice, 100)
	_, _ = p.Withdraw(ctx, alice, 30)
	_, _ = p.Withdraw(ctx, alice, 1_000) // rejected, not recorded

	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	want := []pool.Record{
		{Participant: alice, Kind: pool.KindDeposit, Amount: 100, Balance: 100, Total: 100, Gate: "safe"},
		{Participant: alice, Kind: pool.KindWithdraw, Amount: 30, Balance: 70, Total: 70, Gate: "safe"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRecorder_errorIsNonFatal(t *testing.T) {
	p, _ := newPool(t, pool.Safe)
	p.SetRecorder(pool.RecorderFunc(func(context.Context, pool.Record) error {
		return errors.New("journal unavailable")
	}))

	if _, err := p.Deposit(ctx, alice, 10); err != nil {
		t.Fatalf("recorder failure leaked into Deposit: %v", err)
	}
	if p.BalanceOf(alice) != 10 {
		t.Error("deposit not committed")
	}
}

// ── Stub asset ledger ───────────────────────────────────────────────────────

type stubLedger struct {
	pulls      int
	held       uint64
	pullErr    error
	releaseErr error
}

func (s *stubLedger) TransferFrom(_ context.Context, _, _ address.Address, amount uint64) error {
	if s.pullErr != nil {
		return s.pullErr
	}
	s.pulls++
	s.held += amount
	return nil
}

func (s *stubLedger) Transfer(_ context.Context, _ address.Address, amount uint64) error {
	if s.releaseErr != nil {
		return s.releaseErr
	}
	s.held -= amount
	return nil
}

func (s *stubLedger) BalanceOf(_ context.Context, _ address.Address) (uint64, error) {
	return s.held, nil
}
