package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/didi/gendry/builder"

	"github.com/xxxsen/notesync/internal/pkg/dbutil"
)

type postgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgres(db *sql.DB) Store {
	return &postgresStore{db: db, now: time.Now}
}

func (s *postgresStore) expireAt(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return s.now().Add(ttl).UnixMilli()
}

func (s *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	where := map[string]interface{}{"key": key}
	sqlStr, args, err := builder.BuildSelect("kv_entries", where, []string{"value", "expire_at"})
	if err != nil {
		return "", false, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var value string
	var expireAt int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&value, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	if expireAt > 0 && expireAt <= s.now().UnixMilli() {
		_ = s.deleteExpired(ctx, key)
		return "", false, nil
	}
	return value, true, nil
}

func (s *postgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	const query = `
		INSERT INTO kv_entries (key, value, expire_at, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			expire_at = EXCLUDED.expire_at,
			mtime = EXCLUDED.mtime
	`
	_, err := s.db.ExecContext(ctx, query, key, value, s.expireAt(ttl), s.now().Unix())
	return err
}

func (s *postgresStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := s.deleteExpired(ctx, key); err != nil {
		return false, err
	}
	const query = `
		INSERT INTO kv_entries (key, value, expire_at, mtime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, key, value, s.expireAt(ttl), s.now().Unix())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *postgresStore) deleteExpired(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_entries WHERE key = $1 AND expire_at > 0 AND expire_at <= $2`
	_, err := s.db.ExecContext(ctx, query, key, s.now().UnixMilli())
	return err
}

func (s *postgresStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	in := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		in = append(in, key)
	}
	for _, table := range []string{"kv_entries", "kv_sorted_sets"} {
		sqlStr, args, err := builder.BuildDelete(table, map[string]interface{}{"key in": in})
		if err != nil {
			return err
		}
		sqlStr, args = dbutil.Finalize(sqlStr, args)
		if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	const query = `
		INSERT INTO kv_entries (key, value, expire_at, mtime)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (key) DO UPDATE SET
			value = (CAST(kv_entries.value AS BIGINT) + $4)::TEXT,
			mtime = EXCLUDED.mtime
		RETURNING value
	`
	var value string
	err := s.db.QueryRowContext(ctx, query, key, strconv.FormatInt(delta, 10), s.now().Unix(), delta).Scan(&value)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(value, 10, 64)
}

func (s *postgresStore) ZAdd(ctx context.Context, key string, members ...ZMember) error {
	if len(members) == 0 {
		return nil
	}
	now := s.now().Unix()
	values := make([]string, 0, len(members))
	args := make([]interface{}, 0, len(members)*4)
	for i, m := range members {
		base := i * 4
		values = append(values, fmt.Sprintf("($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4))
		args = append(args, key, m.Member, m.Score, now)
	}
	query := "INSERT INTO kv_sorted_sets (key, member, score, ctime) VALUES " +
		strings.Join(values, ", ") +
		" ON CONFLICT (key, member) DO UPDATE SET score = EXCLUDED.score"
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *postgresStore) ZRange(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	if start < 0 || stop < 0 {
		card, err := s.ZCard(ctx, key)
		if err != nil {
			return nil, err
		}
		from, to, ok := normalizeRange(card, start, stop)
		if !ok {
			return []ZMember{}, nil
		}
		start, stop = from, to-1
	}
	if start > stop {
		return []ZMember{}, nil
	}
	where := map[string]interface{}{
		"key":      key,
		"_orderby": "score asc, member asc",
		"_limit":   []uint{uint(start), uint(stop - start + 1)},
	}
	sqlStr, args, err := builder.BuildSelect("kv_sorted_sets", where, []string{"member", "score"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ZMember, 0)
	for rows.Next() {
		var m ZMember
		if err := rows.Scan(&m.Member, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *postgresStore) ZRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	in := make([]interface{}, 0, len(members))
	for _, m := range members {
		in = append(in, m)
	}
	where := map[string]interface{}{"key": key, "member in": in}
	sqlStr, args, err := builder.BuildDelete("kv_sorted_sets", where)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = s.db.ExecContext(ctx, sqlStr, args...)
	return err
}

func (s *postgresStore) ZCard(ctx context.Context, key string) (int64, error) {
	sqlStr, args := dbutil.Finalize("SELECT COUNT(*) FROM kv_sorted_sets WHERE key=?", []interface{}{key})
	var count int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PurgeExpired removes expired plain keys and reports how many were removed.
func PurgeExpired(ctx context.Context, db *sql.DB, now time.Time) (int64, error) {
	const query = `DELETE FROM kv_entries WHERE expire_at > 0 AND expire_at <= $1`
	res, err := db.ExecContext(ctx, query, now.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
