package testutil

import (
	"context"
	"sync"
)

// SentMail is one mail recorded by RecordingMailer
type SentMail struct {
	Kind      string // "verification" or "reset"
	Recipient string
	Username  string
	Token     string
}

// RecordingMailer implements mailer.Mailer and records what was sent
// instead of sending anything
type RecordingMailer struct {
	mu   sync.Mutex
	Sent []SentMail

	// FailWith makes every send return this error
	FailWith error
}

func (m *RecordingMailer) SendVerification(_ context.Context, recipient string, username string, token string) error {
	return m.record("verification", recipient, username, token)
}

func (m *RecordingMailer) SendPasswordReset(_ context.Context, recipient string, username string, token string) error {
	return m.record("reset", recipient, username, token)
}

func (m *RecordingMailer) record(kind string, recipient string, username string, token string) error {
	if m.FailWith != nil {
		return m.FailWith
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, SentMail{Kind: kind, Recipient: recipient, Username: username, Token: token})
	return nil
}

// Last returns the most recent mail or false when nothing was sent
func (m *RecordingMailer) Last() (SentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Sent) == 0 {
		return SentMail{}, false
	}
	return m.Sent[len(m.Sent)-1], true
}
