package pool

import (
	"errors"

	"github.com/jmerrifield20/minipool/internal/guard"
)

var (
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrExternalTransferFailed = errors.New("external transfer failed")
	ErrOverflow               = errors.New("amount overflows tracked balance")
	ErrLedgerInconsistent     = errors.New("sum of balances does not match total deposited")
	ErrCustodyShortfall       = errors.New("custody balance below total deposited")

	// ErrReentrantCall is returned by guarded operations invoked while another
	// one is in progress on the same Pool.
	ErrReentrantCall = guard.ErrReentrantCall
)
