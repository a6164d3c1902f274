package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/auth"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/service"
)

// Identity is the configured identity provider and the middleware that
// authenticates requests for it.
type Identity struct {
	Provider   service.IdentityProvider
	Middleware gin.HandlerFunc
}

// UserStore is the user directory used in header mode.
type UserStore interface {
	auth.UserDirectory
	EnsureUser(ctx context.Context, id domain.Identity) error
}

func BuildIdentity(ctx context.Context, cfg *config.Config, users UserStore, logger *zap.Logger) (*Identity, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeFirebase:
		client, err := auth.InitializeFirebase(ctx, cfg.Firebase)
		if err != nil {
			return nil, err
		}
		provider := auth.NewFirebaseProvider(client)
		logger.Info("firebase authentication enabled")
		return &Identity{Provider: provider, Middleware: auth.TokenMiddleware(provider)}, nil

	case config.AuthModeHeader:
		seeds, err := auth.ParseSeeds(cfg.Auth.DevUsers)
		if err != nil {
			return nil, fmt.Errorf("DEV_USERS: %w", err)
		}
		provider := auth.NewDirectoryProvider(seeds, users)
		for _, id := range provider.Seeds() {
			if err := users.EnsureUser(ctx, id); err != nil {
				return nil, fmt.Errorf("seed user %s: %w", id.UserID, err)
			}
		}
		logger.Warn("header authentication enabled; do not expose this instance",
			zap.Int("seed_users", len(seeds)),
		)
		return &Identity{Provider: provider, Middleware: auth.HeaderMiddleware()}, nil

	default:
		return nil, fmt.Errorf("unknown AUTH_MODE %q", cfg.Auth.Mode)
	}
}
