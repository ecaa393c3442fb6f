package notify

import "context"

// Notifier delivers a push notification to a device token. Delivery is
// best-effort; callers log failures and never let them affect the
// state transition that triggered the notification.
type Notifier interface {
	Send(ctx context.Context, pushToken, title, body string) error
}

// Nop discards all notifications; used when no push provider is
// configured and in tests
type Nop struct{}

// Send implements Notifier
func (Nop) Send(ctx context.Context, pushToken, title, body string) error {
	return nil
}
