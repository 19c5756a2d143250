package adapter

import "context"

// Notifier sends a plain-text operator message.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
