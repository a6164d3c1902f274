package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
)

type identityKey struct{}

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	if !ok || strings.TrimSpace(id.UserID) == "" {
		return domain.Identity{}, false
	}
	return id, true
}

// UserID extracts the caller's user id from the Gin context.
// This is set by the auth middleware.
func UserID(c *gin.Context) string {
	return strings.TrimSpace(c.GetString(CtxUserID))
}

// contextIdentity implements CurrentUser for providers whose middleware
// already placed the caller in the request context.
type contextIdentity struct{}

func (contextIdentity) CurrentUser(ctx context.Context) (domain.Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return domain.Identity{}, domain.ErrNotAuthenticated
	}
	return id, nil
}
