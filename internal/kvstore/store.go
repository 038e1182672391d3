package kvstore

import (
	"context"
	"time"
)

// ZMember is one member of a sorted set.
type ZMember struct {
	Member string
	Score  float64
}

// Store is the key-value capability shared by every invocation. Sorted sets
// order members by score, then by member.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value; a ttl of zero never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)

	ZAdd(ctx context.Context, key string, members ...ZMember) error
	// ZRange returns members from start to stop inclusive; a negative stop
	// counts from the end.
	ZRange(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZRem(ctx context.Context, key string, members ...string) error
	ZCard(ctx context.Context, key string) (int64, error)
}
