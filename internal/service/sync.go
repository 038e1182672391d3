package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/native"
)

type SyncConfig struct {
	Community   string
	AppUsername string
	Staleness   time.Duration
	DedupTTL    time.Duration
}

// SyncService handles incremental sync in both directions once a bulk
// transfer has completed.
type SyncService struct {
	cfg        SyncConfig
	kv         kvstore.Store
	api        native.API
	legacy     LegacyNoteStore
	tracker    *ProgressTracker
	mapping    *MappingStore
	settings   *SettingsService
	reconciler *Reconciler
	seen       *expirable.LRU[string, struct{}]
	now        func() time.Time
}

func NewSyncService(cfg SyncConfig, kv kvstore.Store, api native.API, legacy LegacyNoteStore, tracker *ProgressTracker,
	mapping *MappingStore, settings *SettingsService, reconciler *Reconciler) *SyncService {
	if cfg.Staleness <= 0 {
		cfg.Staleness = 30 * time.Second
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 6 * time.Hour
	}
	return &SyncService{
		cfg:        cfg,
		kv:         kv,
		api:        api,
		legacy:     legacy,
		tracker:    tracker,
		mapping:    mapping,
		settings:   settings,
		reconciler: reconciler,
		seen:       expirable.NewLRU[string, struct{}](1024, nil, cfg.DedupTTL),
		now:        time.Now,
	}
}

func (s *SyncService) HandleModAction(ctx context.Context, ev model.ModAction) error {
	if ev.Community != "" && ev.Community != s.cfg.Community {
		return nil
	}
	switch ev.Action {
	case model.ModActionWikiRevise:
		return s.Forward(ctx, ev)
	case model.ModActionAddNote:
		return s.Reverse(ctx, ev)
	}
	return nil
}

// transferCompleted gates both sync paths on a finished bulk transfer.
func transferCompleted(state model.ProgressState) bool {
	return state.FinishedTransferAt != nil
}

// Forward copies legacy notes written since the last watermark to the
// native store.
func (s *SyncService) Forward(ctx context.Context, ev model.ModAction) error {
	logger := logutil.GetLogger(ctx).With(zap.String("community", s.cfg.Community), zap.String("path", "forward"))
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.ForwardSync {
		return nil
	}
	state, err := s.tracker.State(ctx)
	if err != nil {
		return err
	}
	if !transferCompleted(state) {
		return nil
	}
	if ev.Moderator == s.cfg.AppUsername {
		return s.tracker.FlushToDurableStorage(ctx)
	}

	revision, err := s.legacy.Revision(ctx, s.cfg.Community)
	if err != nil {
		return fmt.Errorf("load usernotes revision: %w", err)
	}
	if revision == state.LastWikiRevisionProcessed {
		return nil
	}

	from := state.FinishedTransferAt
	if state.LastSyncCompletedAt != nil && (from == nil || state.LastSyncCompletedAt.After(*from)) {
		from = state.LastSyncCompletedAt
	}
	now := s.now()
	window := model.TimeWindow{Start: from, End: &now}

	notes, err := s.legacy.GetNotes(ctx, s.cfg.Community)
	if err != nil {
		return fmt.Errorf("load legacy notes: %w", err)
	}
	users := UsersInScope(notes, window)
	if len(users) == 0 {
		logger.Info("usernotes changed without new notes")
		if err := s.tracker.SetLastRevisionProcessed(ctx, revision); err != nil {
			return err
		}
		return s.tracker.FlushToDurableStorage(ctx)
	}

	mapping, err := s.mapping.GetMapping(ctx)
	if err != nil {
		return err
	}
	logger.Info("new usernotes found", zap.Int("users", len(users)))
	for _, user := range users {
		if _, err := s.reconciler.TransferUser(ctx, user, s.cfg.Community, notes, mapping, window); err != nil {
			logger.Error("transfer user failed", zap.String("user", user), zap.Error(err))
		}
	}
	if err := s.tracker.SetLastRevisionProcessed(ctx, revision); err != nil {
		return err
	}
	return s.completeSync(ctx, now)
}

// completeSync advances the sync watermark. Crossing the sync-started
// boundary flushes the mirror at once; later syncs leave it to the daily job.
func (s *SyncService) completeSync(ctx context.Context, now time.Time) error {
	started, err := s.tracker.RecordIncrementalSyncStarted(ctx, now)
	if err != nil {
		return err
	}
	if err := s.tracker.RecordSyncCompleted(ctx, now); err != nil {
		return err
	}
	if started {
		return s.tracker.FlushToDurableStorage(ctx)
	}
	return s.tracker.MarkWikiUpdatePending(ctx)
}

// Reverse copies a freshly created native note into the legacy store. The
// transferredNote key is claimed before writing and released if the write
// fails, so a redelivered event creates at most one legacy note.
func (s *SyncService) Reverse(ctx context.Context, ev model.ModAction) error {
	if ev.TargetUser == "" || ev.Moderator == s.cfg.AppUsername {
		return nil
	}
	logger := logutil.GetLogger(ctx).With(zap.String("community", s.cfg.Community), zap.String("path", "reverse"), zap.String("user", ev.TargetUser))
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !settings.ReverseSync {
		return nil
	}
	state, err := s.tracker.State(ctx)
	if err != nil {
		return err
	}
	if !transferCompleted(state) {
		return nil
	}

	notes, err := s.api.RecentNotes(ctx, s.cfg.Community, ev.TargetUser, native.FilterNote, 1)
	if err != nil {
		return fmt.Errorf("load recent native notes: %w", err)
	}
	if len(notes) == 0 {
		logger.Info("no native note found for event")
		return nil
	}
	note := notes[0]
	ref := ev.ActionedAt
	if ref.IsZero() {
		ref = s.now()
	}
	if note.CreatedAt.Before(ref.Add(-s.cfg.Staleness)) {
		logger.Info("native note is too old", zap.Time("created_at", note.CreatedAt))
		return nil
	}
	if note.Note == "" || note.User == "" {
		logger.Info("native note has no text or user")
		return nil
	}
	if _, ok := s.seen.Get(note.ID); ok {
		return nil
	}
	key := transferredNotePrefix + note.ID
	claimed, err := s.kv.SetNX(ctx, key, strconv.FormatInt(s.now().UnixMilli(), 10), s.cfg.DedupTTL)
	if err != nil {
		return err
	}
	if !claimed {
		s.seen.Add(note.ID, struct{}{})
		return nil
	}

	mapping, err := s.mapping.GetMapping(ctx)
	if err != nil {
		return s.release(ctx, key, err)
	}
	noteType, _ := ReverseKey(note.Label, mapping)
	legacyNote := model.LegacyNote{
		Username:          note.User,
		Text:              note.Note,
		NoteType:          noteType,
		ModeratorUsername: note.Operator,
		ContextPermalink:  s.permalink(ctx, note.ContentID),
		Timestamp:         note.CreatedAt,
	}
	reason := fmt.Sprintf("%q via Toolbox Notes Transfer", "create new note on "+note.User)
	if err := s.legacy.AddNote(ctx, s.cfg.Community, legacyNote, reason); err != nil {
		return s.release(ctx, key, fmt.Errorf("write legacy note: %w", err))
	}
	s.seen.Add(note.ID, struct{}{})

	if revision, err := s.legacy.Revision(ctx, s.cfg.Community); err == nil {
		if err := s.tracker.SetLastRevisionProcessed(ctx, revision); err != nil {
			return err
		}
	}
	logger.Info("native note saved as usernote", zap.String("note_id", note.ID), zap.String("note_type", noteType))
	return s.completeSync(ctx, s.now())
}

func (s *SyncService) release(ctx context.Context, key string, cause error) error {
	if err := s.kv.Del(ctx, key); err != nil {
		logutil.GetLogger(ctx).Error("release dedup claim failed", zap.String("key", key), zap.Error(err))
	}
	return cause
}

// permalink resolves a native content id, falling back to a synthesised
// link when the API cannot supply one.
func (s *SyncService) permalink(ctx context.Context, contentID string) string {
	if contentID == "" {
		return ""
	}
	link, err := s.api.GetPermalink(ctx, contentID)
	if err == nil {
		return link
	}
	logutil.GetLogger(ctx).Warn("resolve permalink failed", zap.String("content_id", contentID), zap.Error(err))
	if id, ok := ParseContentID(contentID); ok {
		return LegacyPermalink(s.cfg.Community, id)
	}
	return ""
}
