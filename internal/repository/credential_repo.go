package repository

import (
	"context"
	"errors"

	"feedback-backend/internal/database"
	"feedback-backend/internal/models"
	"feedback-backend/internal/store"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var _ store.CredentialStore = (*CredentialRepo)(nil)

type CredentialRepo struct {
	collection *mongo.Collection
}

func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{
		collection: database.GetCollection("credentials"),
	}
}

func (r *CredentialRepo) Create(ctx context.Context, credential *models.Credential) error {
	_, err := r.collection.InsertOne(ctx, credential)
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}

func (r *CredentialRepo) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var credential models.Credential
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&credential)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &credential, nil
}

// EnsureIndexes creates necessary indexes for the credentials collection
func (r *CredentialRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
