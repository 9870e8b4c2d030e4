// Package notify delivers formatted mail notifications to the operator
// chat.
package notify

import "context"

// Notifier sends one text message to the configured chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}
