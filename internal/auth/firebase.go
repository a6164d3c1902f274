package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/GoSim-25-26J-441/project-collab/config"
	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// InitializeFirebase initializes the Firebase Admin SDK and returns an Auth client
func InitializeFirebase(ctx context.Context, cfg config.FirebaseConfig) (*fbauth.Client, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Auth client: %w", err)
	}

	return authClient, nil
}

// firebaseClient is the part of *fbauth.Client the provider uses.
type firebaseClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
	GetUserByEmail(ctx context.Context, email string) (*fbauth.UserRecord, error)
}

// FirebaseProvider authenticates callers with Firebase ID tokens and resolves
// invitation emails against Firebase Auth.
type FirebaseProvider struct {
	contextIdentity
	client firebaseClient
}

func NewFirebaseProvider(client *fbauth.Client) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, token string) (domain.Identity, error) {
	decoded, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}

	id := domain.Identity{UserID: decoded.UID}
	// Extract email from claims if available
	if email, ok := decoded.Claims["email"].(string); ok {
		id.Email = email
	}
	return id, nil
}

func (p *FirebaseProvider) ResolveEmail(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", domain.ErrMemberNotFound
	}

	user, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if fbauth.IsUserNotFound(err) {
			return "", domain.ErrMemberNotFound
		}
		return "", domain.Unavailable(fmt.Errorf("firebase lookup: %w", err))
	}
	if user == nil || user.UserInfo == nil || user.UID == "" {
		return "", domain.ErrMemberNotFound
	}
	return user.UID, nil
}
