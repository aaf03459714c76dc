package pool

import (
	"context"

	"github.com/jmerrifield20/minipool/pkg/address"
)

// Kind names a state-changing pool operation.
type Kind string

const (
	KindDeposit  Kind = "deposit"
	KindWithdraw Kind = "withdraw"
)

// Record describes one committed state change, for external audit.
type Record struct {
	Participant address.Address `json:"participant"`
	Kind        Kind            `json:"kind"`
	Amount      uint64          `json:"amount"`
	Balance     uint64          `json:"balance"` // participant balance after the operation
	Total       uint64          `json:"total"`   // total deposited after the operation
	Gate        string          `json:"gate"`
}

// Recorder receives a Record for every successful Deposit and Withdraw.
// A Recorder error is logged by the Pool and never fails the operation.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// RecorderFunc adapts a plain function to Recorder.
type RecorderFunc func(ctx context.Context, rec Record) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }
