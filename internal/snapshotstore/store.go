// Package snapshotstore persists engine snapshots across process restarts,
// either to a local encrypted file or to Redis.
package snapshotstore

import "context"

// Store saves and loads an opaque snapshot blob. Load returns
// (nil, nil) when no snapshot has been saved yet.
type Store interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
}
