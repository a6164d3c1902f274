package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

// UserDirectory finds users who have signed in before.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (string, error)
}

// DirectoryProvider is the development identity provider. Callers identify
// themselves with headers and emails resolve against a fixed seed list first,
// then against the user directory.
type DirectoryProvider struct {
	contextIdentity
	seeds     map[string]string // lower(email) -> user id
	directory UserDirectory
}

func NewDirectoryProvider(seeds map[string]string, directory UserDirectory) *DirectoryProvider {
	normalized := make(map[string]string, len(seeds))
	for email, id := range seeds {
		normalized[strings.ToLower(strings.TrimSpace(email))] = id
	}
	return &DirectoryProvider{seeds: normalized, directory: directory}
}

func (p *DirectoryProvider) ResolveEmail(ctx context.Context, email string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return "", domain.ErrMemberNotFound
	}
	if id, ok := p.seeds[key]; ok {
		return id, nil
	}
	if p.directory == nil {
		return "", domain.ErrMemberNotFound
	}

	id, err := p.directory.FindUserByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return "", domain.ErrMemberNotFound
		}
		return "", domain.Unavailable(err)
	}
	return id, nil
}

// Seeds returns the configured seed identities.
func (p *DirectoryProvider) Seeds() []domain.Identity {
	out := make([]domain.Identity, 0, len(p.seeds))
	for email, id := range p.seeds {
		out = append(out, domain.Identity{UserID: id, Email: email})
	}
	return out
}

// ParseSeeds reads "uid:email,uid:email" as used by DEV_USERS.
func ParseSeeds(raw string) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, email, ok := strings.Cut(entry, ":")
		id, email = strings.TrimSpace(id), strings.TrimSpace(email)
		if !ok || id == "" || !strings.Contains(email, "@") {
			return nil, fmt.Errorf("invalid user seed %q, want uid:email", entry)
		}
		out[email] = id
	}
	return out, nil
}
