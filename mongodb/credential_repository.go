package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/profilecard-dev/profilecard/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CredentialRepositoryMongo implements domain.CredentialRepository.
type CredentialRepositoryMongo struct {
	collection *mongo.Collection
}

// NewCredentialRepository creates the repository and ensures its indexes.
func NewCredentialRepository(ctx context.Context, db *mongo.Database) (*CredentialRepositoryMongo, error) {
	repo := &CredentialRepositoryMongo{
		collection: db.Collection(CredentialsCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to create oauth_credentials indexes")
	}
	return repo, nil
}

func (r *CredentialRepositoryMongo) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		// One credential record per user; Upsert replaces it wholesale.
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	_, err := r.collection.Indexes().CreateOne(ctx, indexModel)
	if err != nil {
		return fmt.Errorf("failed to create indexes for %s collection: %w", CredentialsCollection, err)
	}
	log.Info().Msgf("Indexes for %s collection ensured.", CredentialsCollection)
	return nil
}

func (r *CredentialRepositoryMongo) Get(ctx context.Context, userID string) (*domain.CredentialRecord, error) {
	var record domain.CredentialRecord
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCredentialNotFound
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Error loading credential record")
		return nil, err
	}
	return &record, nil
}

func (r *CredentialRepositoryMongo) Upsert(ctx context.Context, record *domain.CredentialRecord) error {
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	// ReplaceOne keeps the §4.1 contract: the whole document is swapped in a
	// single write, so a stale access token can never pair with a fresh expiry.
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"user_id": record.UserID},
		record,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		log.Error().Err(err).Str("user_id", record.UserID).Msg("Error upserting credential record")
		return err
	}
	return nil
}

// Ensure interface compliance
var _ domain.CredentialRepository = (*CredentialRepositoryMongo)(nil)
