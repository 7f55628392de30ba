package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// WorkspaceLocker coordinates workspace access across replicas. The
// workspace manager already serializes within one process; a locker extends
// that guarantee to multi-instance deployments.
type WorkspaceLocker interface {
	// Lock blocks until the lock for the key is acquired, the context is
	// canceled, or the TTL expires (implementation specific). The returned
	// UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
