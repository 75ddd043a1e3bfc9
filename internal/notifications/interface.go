package notifications

import "context"

// NotificationInterface defines the contract for trending alerts
type NotificationInterface interface {
	NotifyTrending(ctx context.Context) (int, error)
}
