// Package mailer delivers the verification and password reset mail. Sending
// is best effort: callers log failures and never fail the operation that
// triggered the mail.
package mailer

import "context"

// Mailer delivers account mail carrying a signed token
type Mailer interface {
	// SendVerification mails the email confirmation link
	SendVerification(ctx context.Context, recipient string, username string, token string) error

	// SendPasswordReset mails the password reset link
	SendPasswordReset(ctx context.Context, recipient string, username string, token string) error
}
