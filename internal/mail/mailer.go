// Package mail is the outbound mail transport.  Auth flows hand
// templated messages to a Mailer; the default implementation publishes
// them to a durable RabbitMQ queue consumed by a background worker, so
// a slow or unavailable provider never blocks a request.  Sending is
// always best-effort: callers log failures and carry on.
package mail

import "context"

// Templates understood by the delivery worker.
const (
	TemplateVerification  = "verification"
	TemplateWelcome       = "welcome"
	TemplatePasswordReset = "password_reset"
)

// Message is one templated email job.  Token carries the verification
// or reset token for templates that embed a link; VerifyURL/ResetURL
// construction is the worker's concern.
type Message struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Template string `json:"template"`
	Token    string `json:"token,omitempty"`
	QueuedAt string `json:"queued_at"`
}

// Mailer sends templated messages.  Implementations must not panic
// and should return quickly; delivery happens out of band.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
	SendWelcome(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, name, token string) error
}
