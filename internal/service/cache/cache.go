package cache

import "time"

// BytesCache stores serialized retrieval results keyed by query shape.
// FlushBytes drops everything at once; ingest paths use it so cached
// price and news responses never outlive the data they were built from.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
	FlushBytes() error
}
