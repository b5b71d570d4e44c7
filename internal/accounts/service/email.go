package service

import (
	"context"
	"fmt"

	"github.com/pixelgrove/pixelgrove/pkg/slogx"
)

// EmailSender delivers confirmation mail. Swappable so deployments without
// an SMTP relay can fall back to logging the link.
type EmailSender interface {
	SendConfirmation(ctx context.Context, email, nickname, confirmURL string) error
}

// LogEmailSender writes the confirmation link to the log instead of
// sending mail. Useful for local development and tests.
type LogEmailSender struct{}

func (LogEmailSender) SendConfirmation(ctx context.Context, email, nickname, confirmURL string) error {
	slogx.FromContext(ctx).Info("confirmation email (log delivery)",
		"to", email,
		"nickname", nickname,
		"url", confirmURL,
	)
	return nil
}

// ConfirmURL builds the link embedded in confirmation mail.
func ConfirmURL(baseURL, token string) string {
	return fmt.Sprintf("%s/api/auth/confirmed_email/%s", baseURL, token)
}
