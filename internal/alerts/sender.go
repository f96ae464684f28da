package alerts

import "context"

// Sender delivers a formatted alert message. Telegram is the production
// implementation; Stdout backs --dry-run.
type Sender interface {
	Send(ctx context.Context, message string) error
}
