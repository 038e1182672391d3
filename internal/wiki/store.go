package wiki

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/model"
)

// Store is durable per-community page storage. Get reports a missing page
// with appErr.ErrNotFound; Create fails with appErr.ErrConflict when the page
// exists.
type Store interface {
	Get(ctx context.Context, community, name string) (*model.WikiPage, error)
	Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error)
	Update(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error)
	UpdateSettings(ctx context.Context, community, name string, listed bool, perm model.WikiPermission) error
}

type Factory func(args interface{}, db *sql.DB) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func New(cfg config.WikiConfig, db *sql.DB) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("wiki.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported wiki store type: %s", cfg.Type)
	}
	return factory(cfg.Data, db)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("wiki store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode wiki store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode wiki store config: %w", err)
	}
	return nil
}

func newPage(community, name, content, reason string) *model.WikiPage {
	return &model.WikiPage{
		Community:  community,
		Name:       name,
		Content:    content,
		RevisionID: uuid.NewString(),
		Reason:     reason,
		Listed:     true,
		Permission: model.WikiPermissionDefault,
		Mtime:      time.Now().Unix(),
	}
}

func revise(page *model.WikiPage, content, reason string) {
	page.Content = content
	page.Reason = reason
	page.RevisionID = uuid.NewString()
	page.Mtime = time.Now().Unix()
}

func validName(community, name string) error {
	for _, part := range []string{community, name} {
		if part == "" || strings.ContainsAny(part, `/\`) || part == "." || part == ".." {
			return fmt.Errorf("invalid wiki page path %q/%q", community, name)
		}
	}
	return nil
}
