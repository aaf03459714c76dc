package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/minipool/internal/asset"
	"github.com/jmerrifield20/minipool/internal/identity"
	"github.com/jmerrifield20/minipool/pkg/address"
	"go.uber.org/zap"
)

// AssetHandler exposes the custodied token: holders approve the pool as a
// spender before depositing, and anyone can read balances.
type AssetHandler struct {
	token   *asset.Token
	spender address.Address // the pool's custody address
	tokens  *identity.TokenIssuer
	logger  *zap.Logger
}

// NewAssetHandler creates an AssetHandler whose approvals name spender.
func NewAssetHandler(token *asset.Token, spender address.Address, tokens *identity.TokenIssuer, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{token: token, spender: spender, tokens: tokens, logger: logger}
}

// Register mounts the asset routes on the given router group.
func (h *AssetHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/asset")
	{
		a.POST("/approve", identity.RequireParticipant(h.tokens), h.Approve)
		a.GET("/balance", identity.OptionalParticipant(h.tokens), h.Balance)
		a.GET("/balances/:address", identity.OptionalParticipant(h.tokens), h.Balance)
	}
}

// Approve handles POST /asset/approve. An amount of 0 revokes the allowance.
func (h *AssetHandler) Approve(c *gin.Context) {
	owner, ok := identity.ParticipantFromCtx(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "participant authentication required"})
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.token.Approve(owner, h.spender, *req.Amount)
	RecordOperation("approve", "ok")
	h.logger.Debug("allowance set",
		zap.Stringer("owner", owner),
		zap.Stringer("spender", h.spender),
		zap.Uint64("amount", *req.Amount),
	)

	c.JSON(http.StatusOK, gin.H{
		"owner":     owner,
		"spender":   h.spender,
		"allowance": h.token.Allowance(owner, h.spender),
	})
}

// Balance handles GET /asset/balances/:address, and GET /asset/balance for
// the authenticated caller.
func (h *AssetHandler) Balance(c *gin.Context) {
	holder, ok := targetAddress(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"holder":    holder,
		"symbol":    h.token.Symbol(),
		"balance":   h.token.BalanceOf(holder),
		"allowance": h.token.Allowance(holder, h.spender),
	})
}
