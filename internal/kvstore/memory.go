package kvstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value    string
	expireAt time.Time
}

type memoryStore struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	zsets  map[string]map[string]float64
	now    func() time.Time
}

func NewMemory() Store {
	return &memoryStore{
		values: make(map[string]memoryEntry),
		zsets:  make(map[string]map[string]float64),
		now:    time.Now,
	}
}

func (s *memoryStore) getLocked(key string) (string, bool) {
	entry, ok := s.values[key]
	if !ok {
		return "", false
	}
	if !entry.expireAt.IsZero() && !s.now().Before(entry.expireAt) {
		delete(s.values, key)
		return "", false
	}
	return entry.value, true
}

func (s *memoryStore) setLocked(key, value string, ttl time.Duration) {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expireAt = s.now().Add(ttl)
	}
	s.values[key] = entry
}

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.getLocked(key)
	return value, ok, nil
}

func (s *memoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl)
	return nil
}

func (s *memoryStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.getLocked(key); ok {
		return false, nil
	}
	s.setLocked(key, value, ttl)
	return true, nil
}

func (s *memoryStore) Del(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
		delete(s.zsets, key)
	}
	return nil
}

func (s *memoryStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var current int64
	if value, ok := s.getLocked(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("value of %s is not an integer: %w", key, err)
		}
		current = parsed
	}
	current += delta
	entry := s.values[key]
	entry.value = strconv.FormatInt(current, 10)
	s.values[key] = entry
	return current, nil
}

func (s *memoryStore) ZAdd(ctx context.Context, key string, members ...ZMember) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.zsets[key]
	if !ok {
		set = make(map[string]float64)
		s.zsets[key] = set
	}
	for _, m := range members {
		set[m.Member] = m.Score
	}
	return nil
}

func (s *memoryStore) sortedLocked(key string) []ZMember {
	set := s.zsets[key]
	out := make([]ZMember, 0, len(set))
	for member, score := range set {
		out = append(out, ZMember{Member: member, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (s *memoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedLocked(key)
	from, to, ok := normalizeRange(int64(len(all)), start, stop)
	if !ok {
		return []ZMember{}, nil
	}
	return append([]ZMember(nil), all[from:to]...), nil
}

func (s *memoryStore) ZRem(ctx context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.zsets[key]
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(s.zsets, key)
	}
	return nil
}

func (s *memoryStore) ZCard(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.zsets[key])), nil
}

// normalizeRange converts redis style inclusive bounds into a slice range.
func normalizeRange(length, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start = length + start
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop = length + stop
	}
	if stop >= length {
		stop = length - 1
	}
	if length == 0 || start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop + 1, true
}
