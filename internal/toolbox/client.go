package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/wiki"
)

const (
	UsernotesPage = "usernotes"
	ConfigPage    = "toolbox"
)

// Client reads and appends legacy usernotes kept on community wiki pages.
// Decoded pages are cached by revision, so a cache entry is never stale.
type Client struct {
	store wiki.Store
	cache *expirable.LRU[string, *model.LegacyNotes]
}

func NewClient(store wiki.Store, size int, ttl time.Duration) *Client {
	c := &Client{store: store}
	if size > 0 && ttl > 0 {
		c.cache = expirable.NewLRU[string, *model.LegacyNotes](size, nil, ttl)
	}
	return c
}

func cacheKey(community, revision string) string {
	return community + "#" + revision
}

// GetNotes returns every user's notes. A missing page is an empty store.
func (c *Client) GetNotes(ctx context.Context, community string) (*model.LegacyNotes, error) {
	page, err := c.store.Get(ctx, community, UsernotesPage)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return &model.LegacyNotes{Community: community, Users: map[string][]model.LegacyNote{}}, nil
		}
		return nil, fmt.Errorf("load usernotes page: %w", err)
	}
	key := cacheKey(community, page.RevisionID)
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			logutil.GetLogger(ctx).Debug("usernotes cache hit", zap.String("revision", page.RevisionID))
			return cached, nil
		}
	}
	doc, users, err := parseUsernotes(page.Content)
	if err != nil {
		return nil, err
	}
	notes := toLegacyNotes(community, page.RevisionID, doc, users)
	if c.cache != nil {
		c.cache.Add(key, notes)
	}
	return notes, nil
}

// Revision returns the current usernotes page revision, or "" when absent.
func (c *Client) Revision(ctx context.Context, community string) (string, error) {
	page, err := c.store.Get(ctx, community, UsernotesPage)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return page.RevisionID, nil
}

// NoteTypes returns the community's note taxonomy, falling back to
// DefaultNoteTypes when the config page is missing or unreadable.
func (c *Client) NoteTypes(ctx context.Context, community string) ([]model.LegacyNoteType, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("community", community))
	page, err := c.store.Get(ctx, community, ConfigPage)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			logger.Info("toolbox config page not found, using default note types")
			return cloneTypes(DefaultNoteTypes), nil
		}
		return nil, err
	}
	var cfg rawConfig
	if err := json.Unmarshal([]byte(page.Content), &cfg); err != nil {
		logger.Warn("toolbox config page unreadable, using default note types", zap.Error(err))
		return cloneTypes(DefaultNoteTypes), nil
	}
	if len(cfg.UsernoteColors) == 0 {
		return cloneTypes(DefaultNoteTypes), nil
	}
	return cfg.UsernoteColors, nil
}

// AddNote prepends note to the user's history and writes the page back,
// creating it when the community has no usernotes yet.
func (c *Client) AddNote(ctx context.Context, community string, note model.LegacyNote, reason string) error {
	page, err := c.store.Get(ctx, community, UsernotesPage)
	exists := true
	if err != nil {
		if !errors.Is(err, appErr.ErrNotFound) {
			return fmt.Errorf("load usernotes page: %w", err)
		}
		exists = false
	}
	content := ""
	if exists {
		content = page.Content
	}
	doc, users, err := parseUsernotes(content)
	if err != nil {
		return err
	}
	user := users[note.Username]
	user.Notes = append([]rawNote{toRawNote(doc, note)}, user.Notes...)
	users[note.Username] = user

	rendered, err := renderUsernotes(doc, users)
	if err != nil {
		return err
	}
	if exists {
		_, err = c.store.Update(ctx, community, UsernotesPage, rendered, reason)
	} else {
		_, err = c.store.Create(ctx, community, UsernotesPage, rendered, reason)
	}
	if err != nil {
		return fmt.Errorf("write usernotes page: %w", err)
	}
	return nil
}

func cloneTypes(types []model.LegacyNoteType) []model.LegacyNoteType {
	out := make([]model.LegacyNoteType, len(types))
	copy(out, types)
	return out
}
