package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/jmerrifield20/minipool/internal/pool"
)

// poolErrorStatus maps pool sentinels to HTTP status codes. The checks run
// most specific first: a failed release wraps the collaborator's own error.
func poolErrorStatus(err error) int {
	switch {
	case errors.Is(err, pool.ErrInvalidAmount), errors.Is(err, pool.ErrOverflow):
		return http.StatusBadRequest
	case errors.Is(err, pool.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pool.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, pool.ErrExternalTransferFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorLabel is the metrics label for err.
func errorLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, pool.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, pool.ErrOverflow):
		return "overflow"
	case errors.Is(err, pool.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, pool.ErrReentrantCall):
		return "reentrant_call"
	case errors.Is(err, pool.ErrExternalTransferFailed):
		return "transfer_failed"
	case errors.Is(err, pool.ErrLedgerInconsistent):
		return "ledger_inconsistent"
	case errors.Is(err, pool.ErrCustodyShortfall):
		return "custody_shortfall"
	default:
		return "error"
	}
}
