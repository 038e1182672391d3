package wiki

import (
	"context"
	"database/sql"
	"sync"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type memoryStore struct {
	mu    sync.Mutex
	pages map[string]model.WikiPage
}

func init() {
	Register("memory", func(args interface{}, db *sql.DB) (Store, error) {
		return NewMemory(), nil
	})
}

func NewMemory() Store {
	return &memoryStore{pages: make(map[string]model.WikiPage)}
}

func memoryKey(community, name string) string {
	return community + "/" + name
}

func (s *memoryStore) Get(ctx context.Context, community, name string) (*model.WikiPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[memoryKey(community, name)]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &page, nil
}

func (s *memoryStore) Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	if err := validName(community, name); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(community, name)
	if _, ok := s.pages[key]; ok {
		return nil, appErr.ErrConflict
	}
	page := newPage(community, name, content, reason)
	s.pages[key] = *page
	return page, nil
}

func (s *memoryStore) Update(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(community, name)
	page, ok := s.pages[key]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	revise(&page, content, reason)
	s.pages[key] = page
	return &page, nil
}

func (s *memoryStore) UpdateSettings(ctx context.Context, community, name string, listed bool, perm model.WikiPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := memoryKey(community, name)
	page, ok := s.pages[key]
	if !ok {
		return appErr.ErrNotFound
	}
	page.Listed = listed
	page.Permission = perm
	s.pages[key] = page
	return nil
}
