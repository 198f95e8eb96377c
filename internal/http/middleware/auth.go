package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/joingroups-backend/internal/auth"
)

// TokenParser validates a bearer token. *auth.Manager implements it.
type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// RequireBearer rejects requests without a valid admin token. On success the
// token subject is stored under "userID" so logging and rate limiting key on
// the operator instead of the IP.
func RequireBearer(p TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		scheme, tok, found := strings.Cut(raw, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
			unauthorized(c, "bearer token required")
			return
		}
		claims, err := p.Parse(strings.TrimSpace(tok))
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Msg("rejected admin token")
			unauthorized(c, "invalid token")
			return
		}
		c.Set("userID", claims.Subject)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="admin"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
