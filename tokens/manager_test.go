package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/profilecard-dev/profilecard/discord"
	"github.com/profilecard-dev/profilecard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory CredentialRepository with call counters.
type fakeRepo struct {
	mu      sync.Mutex
	records map[string]*domain.CredentialRecord
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[string]*domain.CredentialRecord)}
}

func (r *fakeRepo) Get(_ context.Context, userID string) (*domain.CredentialRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[userID]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *fakeRepo) Upsert(_ context.Context, record *domain.CredentialRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.puts++
	if r.putErr != nil {
		return r.putErr
	}
	cp := *record
	r.records[record.UserID] = &cp
	return nil
}

// fakeRefresher counts refresh calls and returns a canned grant.
type fakeRefresher struct {
	mu    sync.Mutex
	grant *discord.Grant
	err   error
	calls int
	seen  []string
}

func (f *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*discord.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.seen = append(f.seen, refreshToken)
	if f.err != nil {
		return nil, f.err
	}
	return f.grant, nil
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(repo *fakeRepo, refresher *fakeRefresher) *Manager {
	m := NewManager(repo, refresher)
	m.now = func() time.Time { return testNow }
	return m
}

func TestEnsureValidToken_FreshTokenSkipsNetwork(t *testing.T) {
	repo := newFakeRepo()
	repo.records["123"] = &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "fresh-token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(30 * time.Minute),
	}
	refresher := &fakeRefresher{}
	m := newTestManager(repo, refresher)

	first, err := m.EnsureValidToken(context.Background(), "123")
	require.NoError(t, err)
	second, err := m.EnsureValidToken(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, "fresh-token", first)
	assert.Equal(t, first, second)
	assert.Zero(t, refresher.calls)
	assert.Zero(t, repo.puts)
}

func TestEnsureValidToken_ExpiredTokenRefreshes(t *testing.T) {
	repo := newFakeRepo()
	repo.records["123"] = &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "stale-token",
		RefreshToken: "old-refresh",
		Scope:        "identify",
		ExpiresAt:    testNow.Add(-time.Hour),
	}
	refresher := &fakeRefresher{grant: &discord.Grant{
		AccessToken:  "new-token",
		RefreshToken: "new-refresh",
		Scope:        "identify",
		ExpiresAt:    testNow.Add(time.Hour),
	}}
	m := newTestManager(repo, refresher)

	token, err := m.EnsureValidToken(context.Background(), "123")
	require.NoError(t, err)

	assert.Equal(t, "new-token", token)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, []string{"old-refresh"}, refresher.seen)

	stored := repo.records["123"]
	require.NotNil(t, stored)
	assert.Equal(t, "new-token", stored.AccessToken)
	assert.Equal(t, "new-refresh", stored.RefreshToken)
	assert.True(t, stored.ExpiresAt.After(testNow))
}

func TestEnsureValidToken_TokenExpiringNowCountsAsExpired(t *testing.T) {
	repo := newFakeRepo()
	repo.records["123"] = &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "edge-token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow,
	}
	refresher := &fakeRefresher{grant: &discord.Grant{
		AccessToken: "new-token",
		ExpiresAt:   testNow.Add(time.Hour),
	}}
	m := newTestManager(repo, refresher)

	token, err := m.EnsureValidToken(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
	assert.Equal(t, 1, refresher.calls)
}

func TestEnsureValidToken_CarriesRefreshTokenForward(t *testing.T) {
	repo := newFakeRepo()
	repo.records["123"] = &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "stale-token",
		RefreshToken: "keep-me",
		ExpiresAt:    testNow.Add(-time.Minute),
	}
	// Provider did not rotate the refresh token.
	refresher := &fakeRefresher{grant: &discord.Grant{
		AccessToken: "new-token",
		ExpiresAt:   testNow.Add(time.Hour),
	}}
	m := newTestManager(repo, refresher)

	_, err := m.EnsureValidToken(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "keep-me", repo.records["123"].RefreshToken)
}

func TestEnsureValidToken_UnknownUser(t *testing.T) {
	repo := newFakeRepo()
	refresher := &fakeRefresher{}
	m := newTestManager(repo, refresher)

	_, err := m.EnsureValidToken(context.Background(), "no-such-user")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, refresher.calls)
}

func TestEnsureValidToken_RefreshFailureLeavesStoreUntouched(t *testing.T) {
	repo := newFakeRepo()
	original := &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "stale-token",
		RefreshToken: "revoked",
		ExpiresAt:    testNow.Add(-time.Hour),
	}
	repo.records["123"] = original
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}
	m := newTestManager(repo, refresher)

	_, err := m.EnsureValidToken(context.Background(), "123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.Zero(t, repo.puts)
	assert.Equal(t, "stale-token", repo.records["123"].AccessToken)
}

func TestEnsureValidToken_StoreWriteFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	repo.records["123"] = &domain.CredentialRecord{
		UserID:       "123",
		AccessToken:  "stale-token",
		RefreshToken: "refresh",
		ExpiresAt:    testNow.Add(-time.Hour),
	}
	repo.putErr = errors.New("write concern error")
	refresher := &fakeRefresher{grant: &discord.Grant{
		AccessToken: "new-token",
		ExpiresAt:   testNow.Add(time.Hour),
	}}
	m := newTestManager(repo, refresher)

	_, err := m.EnsureValidToken(context.Background(), "123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownUser)
	assert.NotErrorIs(t, err, ErrRefreshFailed)
}

func TestEnsureValidToken_StoreReadFailureSurfaces(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = errors.New("connection reset")
	m := newTestManager(repo, &fakeRefresher{})

	_, err := m.EnsureValidToken(context.Background(), "123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownUser)
}
