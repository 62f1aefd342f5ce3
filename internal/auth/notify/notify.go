// Package notify delivers out-of-band messages (verification codes, reset
// links) to users. The service layer only sees the Dispatcher interface, so
// swapping SMTP for a queue or a dev logger is a wiring change.
package notify

import "context"

// Template selects which message body a dispatch renders.
type Template string

const (
	TemplateVerificationCode Template = "verification_code"
	TemplatePasswordReset    Template = "password_reset"
)

// Dispatcher sends a templated message to a single recipient. Payload values
// are secret-bearing (codes, tokens); implementations must never log them.
type Dispatcher interface {
	Send(ctx context.Context, to string, tmpl Template, payload map[string]string) error
}
