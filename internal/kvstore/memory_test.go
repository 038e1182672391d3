package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SetGetExpire(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{
		values: make(map[string]memoryEntry),
		zsets:  make(map[string]map[string]float64),
		now:    func() time.Time { return now },
	}
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", time.Hour))
	value, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", value)

	now = now.Add(2 * time.Hour)
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore_SetNX(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "claim", "x", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.SetNX(ctx, "claim", "y", time.Hour)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Del(ctx, "claim"))
	ok, err = store.SetNX(ctx, "claim", "z", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStore_IncrBy(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	v, err := store.IncrBy(ctx, "counter", 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), v)
	v, err = store.IncrBy(ctx, "counter", 2)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	require.NoError(t, store.Set(ctx, "text", "abc", 0))
	_, err = store.IncrBy(ctx, "text", 1)
	require.Error(t, err)
}

func TestMemoryStore_SortedSet(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.ZAdd(ctx, "q",
		ZMember{Member: "carol"}, ZMember{Member: "alice"}, ZMember{Member: "bob"}, ZMember{Member: "alice"}))

	card, err := store.ZCard(ctx, "q")
	require.NoError(t, err)
	require.Equal(t, int64(3), card)

	first, err := store.ZRange(ctx, "q", 0, 1)
	require.NoError(t, err)
	require.Equal(t, []ZMember{{Member: "alice"}, {Member: "bob"}}, first)

	all, err := store.ZRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.NoError(t, store.ZRem(ctx, "q", "alice"))
	rest, err := store.ZRange(ctx, "q", 0, 10)
	require.NoError(t, err)
	require.Equal(t, []ZMember{{Member: "bob"}, {Member: "carol"}}, rest)

	empty, err := store.ZRange(ctx, "missing", 0, -1)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestNormalizeRange(t *testing.T) {
	cases := []struct {
		length, start, stop int64
		from, to            int64
		ok                  bool
	}{
		{length: 5, start: 0, stop: -1, from: 0, to: 5, ok: true},
		{length: 5, start: 0, stop: 74, from: 0, to: 5, ok: true},
		{length: 5, start: 2, stop: 3, from: 2, to: 4, ok: true},
		{length: 5, start: 6, stop: 8, ok: false},
		{length: 0, start: 0, stop: -1, ok: false},
		{length: 5, start: -2, stop: -1, from: 3, to: 5, ok: true},
	}
	for _, tc := range cases {
		from, to, ok := normalizeRange(tc.length, tc.start, tc.stop)
		require.Equal(t, tc.ok, ok, "%+v", tc)
		if ok {
			require.Equal(t, tc.from, from, "%+v", tc)
			require.Equal(t, tc.to, to, "%+v", tc)
		}
	}
}
