package notify

import (
	"context"
	"fmt"
	"html"

	"feedback-backend/internal/models"

	"github.com/golang/glog"
	"github.com/resend/resend-go/v2"
)

type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewMailer returns a resend backed mailer, or a logging one when apiKey is empty.
func NewMailer(apiKey, from string) Mailer {
	if apiKey == "" {
		glog.Warningf("[mail]RESEND_API_KEY not set, emails are only logged\n")
		return devMailer{}
	}
	return &ResendMailer{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (m *ResendMailer) SendWelcome(ctx context.Context, user models.User) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{user.Email},
		Subject: "Welcome to Customer Feedback",
		Html:    welcomeHTML(user.Username),
	}
	sent, err := m.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	glog.Infof("[mail]welcome sent to %s (id %s)\n", user.Email, sent.Id)
	return nil
}

type devMailer struct{}

func (devMailer) SendWelcome(ctx context.Context, user models.User) error {
	glog.Infof("[mail][dev]welcome for %s <%s>\n", user.Username, user.Email)
	return nil
}

func welcomeHTML(username string) string {
	return fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 480px; margin: 0 auto; padding: 24px;">
			<h2 style="color: #333;">Welcome, %s!</h2>
			<p>Your account is ready. Tell us what you think any time from the app.</p>
			<p style="color: #aaa; font-size: 12px;">
				If you didn't create this account, you can safely ignore this email.
			</p>
		</div>
	`, html.EscapeString(username))
}
