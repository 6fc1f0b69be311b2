// Package tokens guarantees a currently-valid access token for a user,
// refreshing and persisting credentials as needed.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/profilecard-dev/profilecard/discord"
	"github.com/profilecard-dev/profilecard/domain"
	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownUser is returned when no credential record exists for the user.
	ErrUnknownUser = errors.New("no credential record for user")
	// ErrRefreshFailed is returned when the provider rejected or failed the
	// refresh call. The stored record is left untouched in that case.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Refresher is the single provider operation the manager needs.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*discord.Grant, error)
}

// Manager implements the token lifecycle: load, expiry check, refresh, persist.
type Manager struct {
	repo      domain.CredentialRepository
	refresher Refresher
	now       func() time.Time
}

// NewManager wires the manager with its store and provider dependencies.
func NewManager(repo domain.CredentialRepository, refresher Refresher) *Manager {
	return &Manager{
		repo:      repo,
		refresher: refresher,
		now:       time.Now,
	}
}

// EnsureValidToken returns an access token that is valid at the time of the
// call. A stored unexpired token is returned as-is with no network traffic.
// An expired one triggers exactly one refresh; the resulting record replaces
// the stored one wholesale, carrying the previous refresh token forward when
// the provider does not rotate it.
//
// Concurrent calls for the same user may each refresh; both stores write
// whole records last-write-wins, so the race is wasteful but harmless.
func (m *Manager) EnsureValidToken(ctx context.Context, userID string) (string, error) {
	record, err := m.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownUser, userID)
		}
		return "", fmt.Errorf("loading credential record: %w", err)
	}

	now := m.now()
	if !record.Expired(now) {
		return record.AccessToken, nil
	}

	grant, err := m.refresher.Refresh(ctx, record.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	refreshToken := grant.RefreshToken
	if refreshToken == "" {
		refreshToken = record.RefreshToken
	}
	scope := grant.Scope
	if scope == "" {
		scope = record.Scope
	}

	updated := &domain.CredentialRecord{
		UserID:       record.UserID,
		AccessToken:  grant.AccessToken,
		RefreshToken: refreshToken,
		Scope:        scope,
		ExpiresAt:    grant.ExpiresAt,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    now,
	}
	if err := m.repo.Upsert(ctx, updated); err != nil {
		// The refreshed token exists provider-side but we could not persist
		// it; the request fails rather than hand out a token the next
		// request cannot see.
		return "", fmt.Errorf("persisting refreshed credential: %w", err)
	}

	log.Debug().Str("user_id", userID).Time("expires_at", updated.ExpiresAt).
		Msg("Access token refreshed")

	return updated.AccessToken, nil
}
