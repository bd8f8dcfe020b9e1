package port

import "context"

type PersistentKV interface {
	// Get returns the value stored under key, ok is false when nothing is stored
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set overwrites the value stored under key
	Set(ctx context.Context, key, value string) error
}
