package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesync/internal/model"
)

func TestSettings_FirstForwardEnableStampsWatermark(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)

	settings, err := h.settings.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Settings{}, settings)

	require.NoError(t, h.settings.SetForwardSync(ctx, true))
	state, err := h.tracker.State(ctx)
	require.NoError(t, err)
	require.True(t, h.now.Equal(*state.LastSyncCompletedAt))

	// later toggles keep the watermark
	first := h.now
	h.now = h.now.Add(time.Hour)
	require.NoError(t, h.settings.SetForwardSync(ctx, false))
	require.NoError(t, h.settings.SetForwardSync(ctx, true))
	state, err = h.tracker.State(ctx)
	require.NoError(t, err)
	require.True(t, first.Equal(*state.LastSyncCompletedAt))
}

func TestSettings_Update(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	got, err := h.settings.Update(ctx, model.Settings{ReverseSync: true})
	require.NoError(t, err)
	require.Equal(t, model.Settings{ReverseSync: true}, got)

	state, err := h.tracker.State(ctx)
	require.NoError(t, err)
	require.Nil(t, state.LastSyncCompletedAt)
}
