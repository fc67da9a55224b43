package notify

import (
	"context"

	"feedback-backend/internal/models"
)

// Notifier publishes messages to a team channel. The mock logs them; a real
// Slack client can be dropped in without touching callers.
type Notifier interface {
	Publish(ctx context.Context, message string) error
}

// Mailer sends account emails.
type Mailer interface {
	SendWelcome(ctx context.Context, user models.User) error
}

func FeedbackMessage(username, text string) string {
	return "📝 *New Feedback Received*\n" +
		"User: `" + username + "`\n" +
		"Feedback: " + text
}
