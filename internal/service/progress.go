package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/wiki"
)

const mirrorReason = "Storing completion date for transfer"

// ProgressTracker owns transfer milestones, run counters and the durable
// mirror page. Milestones are epoch milliseconds in the key-value store.
type ProgressTracker struct {
	kv        kvstore.Store
	wiki      wiki.Store
	community string
}

func NewProgressTracker(kv kvstore.Store, pages wiki.Store, community string) *ProgressTracker {
	return &ProgressTracker{kv: kv, wiki: pages, community: community}
}

func (p *ProgressTracker) getTime(ctx context.Context, key string) (*time.Time, error) {
	raw, ok, err := p.kv.Get(ctx, key)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}

func (p *ProgressTracker) setTime(ctx context.Context, key string, t time.Time) error {
	return p.kv.Set(ctx, key, strconv.FormatInt(t.UnixMilli(), 10), 0)
}

func (p *ProgressTracker) setTimeIfUnset(ctx context.Context, key string, t time.Time) (bool, error) {
	return p.kv.SetNX(ctx, key, strconv.FormatInt(t.UnixMilli(), 10), 0)
}

// RecordFullTransferFinished never moves finishedTransferAt backwards.
func (p *ProgressTracker) RecordFullTransferFinished(ctx context.Context, now time.Time) error {
	current, err := p.getTime(ctx, keyFinishedTransfer)
	if err != nil {
		return err
	}
	if current != nil && !now.After(*current) {
		return nil
	}
	return p.setTime(ctx, keyFinishedTransfer, now)
}

// RecordIncrementalSyncStarted reports whether this call set the milestone.
func (p *ProgressTracker) RecordIncrementalSyncStarted(ctx context.Context, now time.Time) (bool, error) {
	return p.setTimeIfUnset(ctx, keySyncStarted, now)
}

func (p *ProgressTracker) RecordBulkRunFinished(ctx context.Context, now time.Time) (bool, error) {
	return p.setTimeIfUnset(ctx, keyBulkFinished, now)
}

func (p *ProgressTracker) RecordSyncCompleted(ctx context.Context, now time.Time) error {
	return p.setTime(ctx, keyLastSyncCompleted, now)
}

func (p *ProgressTracker) MarkWikiUpdatePending(ctx context.Context) error {
	return p.kv.Set(ctx, keyWikiPageUpdate, "true", 0)
}

func (p *ProgressTracker) ClearWikiUpdatePending(ctx context.Context) error {
	return p.kv.Del(ctx, keyWikiPageUpdate)
}

func (p *ProgressTracker) IsWikiUpdatePending(ctx context.Context) (bool, error) {
	_, ok, err := p.kv.Get(ctx, keyWikiPageUpdate)
	return ok, err
}

func (p *ProgressTracker) LastRevisionProcessed(ctx context.Context) (string, error) {
	raw, _, err := p.kv.Get(ctx, keyWikiPageRevision)
	return raw, err
}

func (p *ProgressTracker) SetLastRevisionProcessed(ctx context.Context, revision string) error {
	return p.kv.Set(ctx, keyWikiPageRevision, revision, 0)
}

// State reads every milestone concurrently.
func (p *ProgressTracker) State(ctx context.Context) (model.ProgressState, error) {
	var state model.ProgressState
	g, gctx := errgroup.WithContext(ctx)
	times := []struct {
		key string
		dst **time.Time
	}{
		{keyFinishedTransfer, &state.FinishedTransferAt},
		{keyBulkFinished, &state.BulkFinishedAt},
		{keySyncStarted, &state.SyncStartedAt},
		{keyLastSyncCompleted, &state.LastSyncCompletedAt},
	}
	for _, item := range times {
		item := item
		g.Go(func() error {
			t, err := p.getTime(gctx, item.key)
			if err != nil {
				return err
			}
			*item.dst = t
			return nil
		})
	}
	g.Go(func() error {
		rev, err := p.LastRevisionProcessed(gctx)
		state.LastWikiRevisionProcessed = rev
		return err
	})
	g.Go(func() error {
		pending, err := p.IsWikiUpdatePending(gctx)
		state.WikiUpdatePending = pending
		return err
	})
	if err := g.Wait(); err != nil {
		return model.ProgressState{}, err
	}
	return state, nil
}

func (p *ProgressTracker) Counters(ctx context.Context) (model.RunCounters, error) {
	var counters model.RunCounters
	g, gctx := errgroup.WithContext(ctx)
	fields := []struct {
		key string
		dst *int64
	}{
		{keyUsersTransferred, &counters.UsersTransferred},
		{keyNotesTransferred, &counters.NotesTransferred},
		{keyNotesErrored, &counters.NotesErrored},
		{keyUsersSkipped, &counters.UsersSkipped},
	}
	for _, f := range fields {
		f := f
		g.Go(func() error {
			raw, ok, err := p.kv.Get(gctx, f.key)
			if err != nil || !ok {
				return err
			}
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("parse %s: %w", f.key, err)
			}
			*f.dst = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.RunCounters{}, err
	}
	return counters, nil
}

// AddCounters increments each non-zero field atomically in the store.
func (p *ProgressTracker) AddCounters(ctx context.Context, delta model.RunCounters) error {
	for _, f := range []struct {
		key   string
		delta int64
	}{
		{keyUsersTransferred, delta.UsersTransferred},
		{keyNotesTransferred, delta.NotesTransferred},
		{keyNotesErrored, delta.NotesErrored},
		{keyUsersSkipped, delta.UsersSkipped},
	} {
		if f.delta == 0 {
			continue
		}
		if _, err := p.kv.IncrBy(ctx, f.key, f.delta); err != nil {
			return fmt.Errorf("increment %s: %w", f.key, err)
		}
	}
	return nil
}

func (p *ProgressTracker) ResetCounters(ctx context.Context) error {
	return p.kv.Del(ctx, keyUsersTransferred, keyNotesTransferred, keyNotesErrored, keyUsersSkipped)
}

// FlushToDurableStorage writes the milestones to the mirror page, creating it
// hidden and mods-only when absent, then clears the pending flag.
func (p *ProgressTracker) FlushToDurableStorage(ctx context.Context) error {
	state, err := p.State(ctx)
	if err != nil {
		return err
	}
	mirror := model.DurableMirror{
		CompletedDate:     toMillis(state.FinishedTransferAt),
		SyncStarted:       toMillis(state.SyncStartedAt),
		LastSyncCompleted: toMillis(state.LastSyncCompletedAt),
	}
	data, err := json.Marshal(mirror)
	if err != nil {
		return err
	}
	_, err = p.wiki.Get(ctx, p.community, MirrorPageName)
	switch {
	case err == nil:
		if _, err := p.wiki.Update(ctx, p.community, MirrorPageName, string(data), mirrorReason); err != nil {
			return fmt.Errorf("update mirror page: %w", err)
		}
	case errors.Is(err, appErr.ErrNotFound):
		if _, err := p.wiki.Create(ctx, p.community, MirrorPageName, string(data), mirrorReason); err != nil {
			return fmt.Errorf("create mirror page: %w", err)
		}
		if err := p.wiki.UpdateSettings(ctx, p.community, MirrorPageName, false, model.WikiPermissionModsOnly); err != nil {
			return fmt.Errorf("restrict mirror page: %w", err)
		}
	default:
		return fmt.Errorf("load mirror page: %w", err)
	}
	logutil.GetLogger(ctx).Info("progress mirror flushed", zap.String("community", p.community), zap.String("content", string(data)))
	return p.ClearWikiUpdatePending(ctx)
}

// LoadFromDurableStorage seeds milestones from a previous install's mirror.
// A missing page means no prior history. Counters are never restored.
func (p *ProgressTracker) LoadFromDurableStorage(ctx context.Context) (bool, error) {
	page, err := p.wiki.Get(ctx, p.community, MirrorPageName)
	if err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load mirror page: %w", err)
	}
	var mirror model.DurableMirror
	if err := json.Unmarshal([]byte(page.Content), &mirror); err != nil {
		return false, fmt.Errorf("decode mirror page: %w", err)
	}
	for _, item := range []struct {
		key string
		ms  *int64
	}{
		{keyFinishedTransfer, mirror.CompletedDate},
		{keySyncStarted, mirror.SyncStarted},
		{keyLastSyncCompleted, mirror.LastSyncCompleted},
	} {
		if item.ms == nil || *item.ms == 0 {
			continue
		}
		if err := p.kv.Set(ctx, item.key, strconv.FormatInt(*item.ms, 10), 0); err != nil {
			return false, err
		}
	}
	logutil.GetLogger(ctx).Info("progress imported from mirror page", zap.String("community", p.community))
	return true, nil
}

func toMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}
