package service

import (
	"context"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
)

type SettingsService struct {
	kv      kvstore.Store
	tracker *ProgressTracker
	now     func() time.Time
}

func NewSettingsService(kv kvstore.Store, tracker *ProgressTracker) *SettingsService {
	return &SettingsService{kv: kv, tracker: tracker, now: time.Now}
}

func (s *SettingsService) Get(ctx context.Context) (model.Settings, error) {
	forward, err := s.flag(ctx, keyForwardSync)
	if err != nil {
		return model.Settings{}, err
	}
	reverse, err := s.flag(ctx, keyReverseSync)
	if err != nil {
		return model.Settings{}, err
	}
	return model.Settings{ForwardSync: forward, ReverseSync: reverse}, nil
}

func (s *SettingsService) flag(ctx context.Context, key string) (bool, error) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	v, _ := strconv.ParseBool(raw)
	return v, nil
}

// SetForwardSync stamps lastSyncCompletedAt on the first enable so notes
// written before it are not swept into the first incremental window.
func (s *SettingsService) SetForwardSync(ctx context.Context, enabled bool) error {
	if enabled {
		state, err := s.tracker.State(ctx)
		if err != nil {
			return err
		}
		if state.LastSyncCompletedAt == nil {
			now := s.now()
			if err := s.tracker.RecordSyncCompleted(ctx, now); err != nil {
				return err
			}
			logutil.GetLogger(ctx).Info("forward sync enabled for the first time", zap.Time("watermark", now))
		}
	}
	return s.kv.Set(ctx, keyForwardSync, strconv.FormatBool(enabled), 0)
}

func (s *SettingsService) SetReverseSync(ctx context.Context, enabled bool) error {
	return s.kv.Set(ctx, keyReverseSync, strconv.FormatBool(enabled), 0)
}

func (s *SettingsService) Update(ctx context.Context, settings model.Settings) (model.Settings, error) {
	if err := s.SetForwardSync(ctx, settings.ForwardSync); err != nil {
		return model.Settings{}, err
	}
	if err := s.SetReverseSync(ctx, settings.ReverseSync); err != nil {
		return model.Settings{}, err
	}
	return s.Get(ctx)
}
