package mail

import (
	"context"
	"log"
)

// LogMailer is the fallback transport used when no broker is
// configured (local development, tests).  It records the send and
// succeeds.
type LogMailer struct{}

func NewLogMailer() *LogMailer { return &LogMailer{} }

func (m *LogMailer) SendVerification(_ context.Context, to, name, token string) error {
	log.Printf("mail: [verification] to=%s name=%q token=%s", to, name, token)
	return nil
}

func (m *LogMailer) SendWelcome(_ context.Context, to, name string) error {
	log.Printf("mail: [welcome] to=%s name=%q", to, name)
	return nil
}

func (m *LogMailer) SendPasswordReset(_ context.Context, to, name, token string) error {
	log.Printf("mail: [password_reset] to=%s name=%q token=%s", to, name, token)
	return nil
}
