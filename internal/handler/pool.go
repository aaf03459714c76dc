package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/minipool/internal/identity"
	"github.com/jmerrifield20/minipool/internal/pool"
	"github.com/jmerrifield20/minipool/pkg/address"
	"go.uber.org/zap"
)

// amountRequest is the body of deposit, withdraw and approve. Amount is a
// pointer so a missing field is told apart from an explicit zero.
type amountRequest struct {
	Amount *uint64 `json:"amount" binding:"required"`
}

// PoolHandler exposes the lending pool over HTTP.
type PoolHandler struct {
	pool   *pool.Pool
	seq    *pool.Sequencer
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

// NewPoolHandler creates a PoolHandler. Every state-changing call runs
// through seq so concurrent requests never look like re-entry.
func NewPoolHandler(p *pool.Pool, seq *pool.Sequencer, tokens *identity.TokenIssuer, logger *zap.Logger) *PoolHandler {
	return &PoolHandler{pool: p, seq: seq, tokens: tokens, logger: logger}
}

// Register mounts the pool routes on the given router group.
func (h *PoolHandler) Register(rg *gin.RouterGroup) {
	p := rg.Group("/pool")
	{
		p.POST("/deposit", identity.RequireParticipant(h.tokens), h.Deposit)
		p.POST("/withdraw", identity.RequireParticipant(h.tokens), h.Withdraw)
		p.GET("/balance", identity.OptionalParticipant(h.tokens), h.Balance)
		p.GET("/balances/:address", identity.OptionalParticipant(h.tokens), h.Balance)
		p.GET("/total", h.Total)
		p.GET("/reconcile", h.Reconcile)
	}
}

// Deposit handles POST /pool/deposit.
func (h *PoolHandler) Deposit(c *gin.Context) {
	h.mutate(c, pool.KindDeposit, h.pool.Deposit)
}

// Withdraw handles POST /pool/withdraw.
func (h *PoolHandler) Withdraw(c *gin.Context) {
	h.mutate(c, pool.KindWithdraw, h.pool.Withdraw)
}

type mutation func(ctx context.Context, participant address.Address, amount uint64) (uint64, error)

func (h *PoolHandler) mutate(c *gin.Context, kind pool.Kind, op mutation) {
	participant, ok := identity.ParticipantFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "participant authentication required"})
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var balance uint64
	err := h.seq.Do(c.Request.Context(), func(ctx context.Context) error {
		var err error
		balance, err = op(ctx, participant, *req.Amount)
		return err
	})
	RecordOperation(string(kind), errorLabel(err))
	if err != nil {
		status := poolErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("pool operation failed",
				zap.String("kind", string(kind)),
				zap.Stringer("participant", participant),
				zap.Error(err),
			)
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"participant": participant,
		"balance":     balance,
		"total":       h.pool.TotalDeposited(),
	})
}

// Balance handles GET /pool/balances/:address, and GET /pool/balance for
// the authenticated caller.
func (h *PoolHandler) Balance(c *gin.Context) {
	addr, ok := targetAddress(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"participant": addr,
		"balance":     h.pool.BalanceOf(addr),
	})
}

// Total handles GET /pool/total.
func (h *PoolHandler) Total(c *gin.Context) {
	custody, err := h.pool.Custody(c.Request.Context())
	if err != nil {
		h.logger.Error("read custody balance", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to read custody balance"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   h.pool.TotalDeposited(),
		"custody": custody,
		"gate":    h.pool.Gate().String(),
	})
}

// Reconcile handles GET /pool/reconcile. An inconsistent pool is reported
// in the body with status 200, like a failed journal verification.
func (h *PoolHandler) Reconcile(c *gin.Context) {
	err := h.seq.Do(c.Request.Context(), h.pool.Reconcile)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(poolErrorStatus(err), gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.logger.Warn("pool reconciliation failed", zap.Error(err))
		RecordReconcileFailure(errorLabel(err))
		c.JSON(http.StatusOK, gin.H{
			"consistent": false,
			"error":      err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"consistent": true})
}

// targetAddress resolves the :address path parameter, falling back to the
// participant bound by OptionalParticipant. It writes the error response
// itself when neither is usable.
func targetAddress(c *gin.Context) (address.Address, bool) {
	if raw := c.Param("address"); raw != "" {
		addr, err := address.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return address.Zero, false
		}
		return addr, true
	}
	if addr, ok := identity.ParticipantFromCtx(c); ok {
		return addr, true
	}
	c.JSON(http.StatusUnauthorized, gin.H{"error": "address required, or a Bearer token naming the caller"})
	return address.Zero, false
}
