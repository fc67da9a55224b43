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

var _ store.FeedbackStore = (*FeedbackRepo)(nil)

type FeedbackRepo struct {
	collection *mongo.Collection
}

func NewFeedbackRepo() *FeedbackRepo {
	return &FeedbackRepo{
		collection: database.GetCollection("feedbacks"),
	}
}

func (r *FeedbackRepo) AllocateID() string {
	return store.NewPushID()
}

// Put replaces the document; an upsert takes _id from the filter.
func (r *FeedbackRepo) Put(ctx context.Context, feedback models.Feedback) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": feedback.ID}, feedback, options.Replace().SetUpsert(true))
	return err
}

// PatchText sets only the text field; userId and timestamp are left alone.
func (r *FeedbackRepo) PatchText(ctx context.Context, id, text string) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":         bson.M{"text": text},
		"$setOnInsert": bson.M{"id": id},
	}, options.UpdateOne().SetUpsert(true))
	return err
}

func (r *FeedbackRepo) Delete(ctx context.Context, id string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *FeedbackRepo) Get(ctx context.Context, id string) (*models.Feedback, error) {
	var feedback models.Feedback
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&feedback)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &feedback, nil
}

func (r *FeedbackRepo) Find(ctx context.Context, q store.Query) ([]models.Feedback, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	feedbacks := []models.Feedback{}
	if err := cursor.All(ctx, &feedbacks); err != nil {
		return nil, err
	}
	return feedbacks, nil
}

// Listen watches the whole collection rather than a filtered stream: delete
// events carry no document, so a userId filter in the pipeline would miss them.
func (r *FeedbackRepo) Listen(ctx context.Context, q store.Query, l store.Listener[models.Feedback]) (store.Subscription, error) {
	load := func(ctx context.Context) ([]models.Feedback, error) {
		return r.Find(ctx, q)
	}
	return listen(ctx, r.collection, load, store.SameFeedback, l)
}

// EnsureIndexes creates necessary indexes for the feedbacks collection
func (r *FeedbackRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
	})
	return err
}
