package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func documentOf(t *testing.T, v interface{}) bson.M {
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	doc := bson.M{}
	require.NoError(t, bson.Unmarshal(raw, &doc))
	return doc
}

func TestUserDocumentCarriesUID(t *testing.T) {
	doc := documentOf(t, User{UID: "u1", Email: "a@x.com", Username: "ann"})
	assert.Equal(t, bson.M{"uid": "u1", "email": "a@x.com", "username": "ann"}, doc)
}

func TestFeedbackDocumentCarriesID(t *testing.T) {
	doc := documentOf(t, Feedback{ID: "f1", UserID: "u1", Text: "hi", Timestamp: 42})
	assert.Equal(t, bson.M{"id": "f1", "userId": "u1", "text": "hi", "timestamp": int64(42)}, doc)
}

func TestDocumentsDecodeWithStoreKey(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"_id": "f1", "id": "f1", "userId": "u1", "text": "hi", "timestamp": int64(7)})
	require.NoError(t, err)
	var feedback Feedback
	require.NoError(t, bson.Unmarshal(raw, &feedback))
	assert.Equal(t, Feedback{ID: "f1", UserID: "u1", Text: "hi", Timestamp: 7}, feedback)
}
