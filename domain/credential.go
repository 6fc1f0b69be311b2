package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCredentialNotFound is returned when no credential record exists for a user.
	ErrCredentialNotFound = errors.New("credential record not found")
)

// CredentialRecord holds the OAuth tokens granted by Discord for one end-user.
// There is exactly one record per user; refreshes replace the record wholesale so
// that an access token and its expiry can never come from different grants.
type CredentialRecord struct {
	UserID       string    `bson:"user_id" json:"user_id"`
	AccessToken  string    `bson:"access_token" json:"access_token"`
	RefreshToken string    `bson:"refresh_token" json:"refresh_token"`
	Scope        string    `bson:"scope" json:"scope"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// Expired reports whether the access token is no longer usable at the given
// instant. A token expiring exactly now counts as expired.
func (c *CredentialRecord) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// CredentialRepository is the persistence contract for credential records.
// Implementations must provide read-your-writes consistency per user id and must
// write records atomically (last-write-wins is fine, partial writes are not).
//
// Deleting records is an administrative concern outside this service; the
// contract is deliberately get/upsert only.
type CredentialRepository interface {
	// Get returns the record for the given user id, or ErrCredentialNotFound.
	Get(ctx context.Context, userID string) (*CredentialRecord, error)

	// Upsert inserts the record, or replaces the existing one wholesale.
	Upsert(ctx context.Context, record *CredentialRecord) error
}
