package wiki

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/pkg/dbutil"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

type dbStore struct {
	db *sql.DB
}

func init() {
	Register("db", func(args interface{}, db *sql.DB) (Store, error) {
		if db == nil {
			return nil, fmt.Errorf("db wiki store requires a database")
		}
		return NewDB(db), nil
	})
}

func NewDB(db *sql.DB) Store {
	return &dbStore{db: db}
}

var pageColumns = []string{"community", "name", "content", "revision_id", "reason", "listed", "permission", "mtime"}

func (s *dbStore) Get(ctx context.Context, community, name string) (*model.WikiPage, error) {
	where := map[string]interface{}{"community": community, "name": name}
	sqlStr, args, err := builder.BuildSelect("wiki_pages", where, pageColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var page model.WikiPage
	var listed int
	var perm int
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&page.Community,
		&page.Name,
		&page.Content,
		&page.RevisionID,
		&page.Reason,
		&listed,
		&perm,
		&page.Mtime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	page.Listed = listed == 1
	page.Permission = model.WikiPermission(perm)
	return &page, nil
}

func (s *dbStore) Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	if err := validName(community, name); err != nil {
		return nil, err
	}
	page := newPage(community, name, content, reason)
	data := map[string]interface{}{
		"community":   page.Community,
		"name":        page.Name,
		"content":     page.Content,
		"revision_id": page.RevisionID,
		"reason":      page.Reason,
		"listed":      boolToInt(page.Listed),
		"permission":  int(page.Permission),
		"ctime":       page.Mtime,
		"mtime":       page.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("wiki_pages", []map[string]interface{}{data})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if dbutil.IsConflict(err) {
			return nil, appErr.ErrConflict
		}
		return nil, err
	}
	return page, nil
}

func (s *dbStore) Update(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	page, err := s.Get(ctx, community, name)
	if err != nil {
		return nil, err
	}
	revise(page, content, reason)
	where := map[string]interface{}{"community": community, "name": name}
	update := map[string]interface{}{
		"content":     page.Content,
		"revision_id": page.RevisionID,
		"reason":      page.Reason,
		"mtime":       page.Mtime,
	}
	if err := s.exec(ctx, where, update); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *dbStore) UpdateSettings(ctx context.Context, community, name string, listed bool, perm model.WikiPermission) error {
	where := map[string]interface{}{"community": community, "name": name}
	update := map[string]interface{}{
		"listed":     boolToInt(listed),
		"permission": int(perm),
		"mtime":      time.Now().Unix(),
	}
	return s.exec(ctx, where, update)
}

func (s *dbStore) exec(ctx context.Context, where, update map[string]interface{}) error {
	sqlStr, args, err := builder.BuildUpdate("wiki_pages", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
