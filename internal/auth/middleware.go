package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// TokenVerifier turns a bearer token into a caller identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (domain.Identity, error)
}

// TokenMiddleware validates bearer tokens and stores the caller in both the
// Gin context and the request context.
func TokenMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			abortUnauthenticated(c, "missing authorization token")
			return
		}

		id, err := verifier.VerifyToken(c.Request.Context(), token)
		if err != nil || id.UserID == "" {
			abortUnauthenticated(c, "invalid token")
			return
		}

		setIdentity(c, id)
		c.Next()
	}
}

// HeaderMiddleware trusts X-User-Id and X-User-Email.
// Use this ONLY for development/testing.
func HeaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if uid == "" {
			abortUnauthenticated(c, "missing X-User-Id header")
			return
		}

		setIdentity(c, domain.Identity{
			UserID: uid,
			Email:  strings.TrimSpace(c.GetHeader("X-User-Email")),
		})
		c.Next()
	}
}

func setIdentity(c *gin.Context, id domain.Identity) {
	c.Set(CtxUserID, id.UserID)
	if id.Email != "" {
		c.Set(CtxEmail, id.Email)
	}
	c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
}

func abortUnauthenticated(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":    false,
		"error": msg,
		"code":  domain.Code(domain.ErrNotAuthenticated),
	})
}

// extractToken extracts the Bearer token from the Authorization header.
// EventSource clients cannot set headers, so an access_token query parameter
// is accepted as well.
func extractToken(c *gin.Context) string {
	bearerToken := c.GetHeader("Authorization")
	if len(bearerToken) > 7 && strings.HasPrefix(bearerToken, "Bearer ") {
		return bearerToken[7:]
	}
	return strings.TrimSpace(c.Query("access_token"))
}
