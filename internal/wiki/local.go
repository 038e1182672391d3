package wiki

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type localConfig struct {
	Dir string `json:"dir"`
}

// localStore keeps one JSON document per page under dir/<community>/<name>.json.
type localStore struct {
	mu  sync.Mutex
	dir string
}

func init() {
	Register("local", createLocalStore)
}

func createLocalStore(args interface{}, db *sql.DB) (Store, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local wiki store dir is required")
	}
	return NewLocal(config.Dir), nil
}

func NewLocal(dir string) Store {
	return &localStore{dir: dir}
}

func (s *localStore) path(community, name string) string {
	return filepath.Join(s.dir, community, name+".json")
}

func (s *localStore) read(community, name string) (*model.WikiPage, error) {
	if err := validName(community, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(community, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	var page model.WikiPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decode wiki page %s: %w", name, err)
	}
	return &page, nil
}

func (s *localStore) write(page *model.WikiPage) error {
	path := s.path(page.Community, page.Name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *localStore) Get(ctx context.Context, community, name string) (*model.WikiPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(community, name)
}

func (s *localStore) Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.read(community, name); err == nil {
		return nil, appErr.ErrConflict
	} else if !errors.Is(err, appErr.ErrNotFound) {
		return nil, err
	}
	page := newPage(community, name, content, reason)
	if err := s.write(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *localStore) Update(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.read(community, name)
	if err != nil {
		return nil, err
	}
	revise(page, content, reason)
	if err := s.write(page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *localStore) UpdateSettings(ctx context.Context, community, name string, listed bool, perm model.WikiPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, err := s.read(community, name)
	if err != nil {
		return err
	}
	page.Listed = listed
	page.Permission = perm
	return s.write(page)
}
