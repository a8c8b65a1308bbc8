// Package email sends transactional mail. Services depend on the
// EmailSender interface; the Resend implementation is wired in main.
package email

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v3"
)

// EmailSender delivers password reset links.
type EmailSender interface {
	// SendPasswordReset mails the plaintext token embedded in a reset link.
	SendPasswordReset(ctx context.Context, toEmail, token string) error
}

type resendSender struct {
	client    *resend.Client
	fromEmail string
	appURL    string
}

// NewResendSender builds a sender on the Resend API. fromEmail must belong
// to a domain verified in Resend.
func NewResendSender(apiKey, fromEmail, appURL string) EmailSender {
	return &resendSender{
		client:    resend.NewClient(apiKey),
		fromEmail: fromEmail,
		appURL:    appURL,
	}
}

// ResetLink is the URL the user follows to choose a new password.
func ResetLink(appURL, token string) string {
	return strings.TrimRight(appURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func (s *resendSender) SendPasswordReset(ctx context.Context, toEmail, token string) error {
	link := ResetLink(s.appURL, token)

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("DevChat <%s>", s.fromEmail),
		To:      []string{toEmail},
		Subject: "Reset your DevChat password",
		Html:    resetHTML(link),
		Text:    resetText(link),
	}

	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func resetText(link string) string {
	return "We received a request to reset your DevChat password.\n\n" +
		"Open this link to choose a new one (valid for 20 minutes):\n" + link + "\n\n" +
		"If you did not ask for this, ignore this email.\n"
}

func resetHTML(link string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="margin:0;padding:24px;background:#4c3c4c;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:480px;margin:0 auto;background:#ffffff;border-radius:6px;padding:32px;">
    <h1 style="font-size:22px;margin:0 0 16px 0;">DevChat</h1>
    <p style="font-size:15px;line-height:1.6;">We received a request to reset your password.</p>
    <p><a href="%s" style="background:#4c3c4c;color:#ffffff;padding:10px 24px;border-radius:4px;text-decoration:none;">Reset password</a></p>
    <p style="font-size:13px;color:#666;">The link expires in 20 minutes. If you did not ask for this, ignore this email.</p>
    <p style="font-size:13px;color:#666;word-break:break-all;">%s</p>
  </div>
</body>
</html>`, link, link)
}
