package models

import "time"

// UnknownUser is shown for feedback whose owner has no users document.
const UnknownUser = "Unknown User"

// Feedback is stored under feedbacks/{id}; the body repeats the id.
type Feedback struct {
	ID        string `bson:"id" json:"id"`
	UserID    string `bson:"userId" json:"userId"`
	Text      string `bson:"text" json:"text"`
	Timestamp int64  `bson:"timestamp" json:"timestamp"`
}

// FeedbackWithUser is a feedback row joined with its owner's username.
type FeedbackWithUser struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// NowMillis returns the current time as epoch milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
