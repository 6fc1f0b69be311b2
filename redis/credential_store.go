// Package redis provides a Redis-backed credential store, selectable as an
// alternative engine to MongoDB. Records are stored as JSON values without a
// TTL: refresh tokens outlive any access-token lifetime and must survive
// restarts.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/profilecard-dev/profilecard/domain"
	"github.com/redis/go-redis/v9"
)

// CredentialStore implements domain.CredentialRepository using Redis.
type CredentialStore struct {
	client *redis.Client
	prefix string
}

// NewCredentialStore creates a new CredentialStore instance.
func NewCredentialStore(client *redis.Client, prefix string) *CredentialStore {
	return &CredentialStore{
		client: client,
		prefix: prefix,
	}
}

func (s *CredentialStore) key(userID string) string {
	return fmt.Sprintf("%s:credential:%s", s.prefix, userID)
}

func (s *CredentialStore) Get(ctx context.Context, userID string) (*domain.CredentialRecord, error) {
	payload, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential from Redis: %w", err)
	}

	var record domain.CredentialRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential record: %w", err)
	}
	return &record, nil
}

func (s *CredentialStore) Upsert(ctx context.Context, record *domain.CredentialRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal credential record: %w", err)
	}

	// SET writes the whole value atomically; concurrent refreshes for the
	// same user resolve last-write-wins.
	if err := s.client.Set(ctx, s.key(record.UserID), payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to set credential in Redis: %w", err)
	}
	return nil
}

// Ensure interface compliance
var _ domain.CredentialRepository = (*CredentialStore)(nil)
