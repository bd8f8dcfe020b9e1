package port

import "context"

type Notifier interface {
	// Notify shows a transient message to the user
	Notify(ctx context.Context, message string)
}
