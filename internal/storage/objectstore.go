package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object. Key is the bare filename, with
// any store-internal prefix already stripped.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is the durable remote tier. Implementations carry no
// business logic: keys in, bytes out.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Healthy(ctx context.Context) error
}
