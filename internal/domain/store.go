package domain

import "context"

// Store is the persisted key-value store holding the session record.
// Values are scalars encoded as strings by the caller.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}
