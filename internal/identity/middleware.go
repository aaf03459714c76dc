package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/minipool/pkg/address"
)

const ctxParticipant = "minipool_participant"

// RequireParticipant returns a Gin middleware that requires a valid Bearer
// session token and binds its participant address to the context.
func RequireParticipant(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer token required",
			})
			return
		}

		claims, err := tokens.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid token: " + err.Error(),
			})
			return
		}

		c.Set(ctxParticipant, claims.Participant)
		c.Next()
	}
}

// OptionalParticipant binds the participant when a valid token is present
// and lets anonymous requests through untouched.
func OptionalParticipant(tokens *TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, ok := bearer(c); ok {
			if claims, err := tokens.Verify(tokenStr); err == nil {
				c.Set(ctxParticipant, claims.Participant)
			}
		}
		c.Next()
	}
}

// ParticipantFromCtx returns the address bound by RequireParticipant.
// ok is false on routes without an authenticated caller.
func ParticipantFromCtx(c *gin.Context) (addr address.Address, ok bool) {
	v, exists := c.Get(ctxParticipant)
	if !exists {
		return address.Zero, false
	}
	addr, ok = v.(address.Address)
	return addr, ok
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return tok, tok != ""
}
