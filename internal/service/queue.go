package service

import (
	"context"

	"github.com/xxxsen/notesync/internal/kvstore"
)

// WorkQueue is the durable set of usernames awaiting transfer. A non-empty
// queue means a transfer run is in progress.
type WorkQueue struct {
	kv kvstore.Store
}

func NewWorkQueue(kv kvstore.Store) *WorkQueue {
	return &WorkQueue{kv: kv}
}

func (q *WorkQueue) Enqueue(ctx context.Context, usernames []string) error {
	if len(usernames) == 0 {
		return nil
	}
	members := make([]kvstore.ZMember, 0, len(usernames))
	for _, name := range usernames {
		members = append(members, kvstore.ZMember{Member: name, Score: 0})
	}
	return q.kv.ZAdd(ctx, keyNotesQueue, members...)
}

func (q *WorkQueue) Size(ctx context.Context) (int64, error) {
	return q.kv.ZCard(ctx, keyNotesQueue)
}

// PeekBatch returns up to n usernames without removing them. Repeated calls
// return the same order until the queue changes.
func (q *WorkQueue) PeekBatch(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := q.kv.ZRange(ctx, keyNotesQueue, 0, int64(n-1))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		out = append(out, m.Member)
	}
	return out, nil
}

func (q *WorkQueue) Remove(ctx context.Context, username string) error {
	return q.kv.ZRem(ctx, keyNotesQueue, username)
}
