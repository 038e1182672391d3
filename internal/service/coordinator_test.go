package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/schedule"
)

func startRun(t *testing.T, h *harness) *TransferPrompt {
	t.Helper()
	ctx := context.Background()
	prompt, err := h.transfer.Start(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PhaseAwaitingConfirmation, prompt.Phase)
	prompt, err = h.transfer.Confirm(ctx)
	require.NoError(t, err)
	return prompt
}

func TestCoordinator_SingleBatchFinishes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	for _, user := range []string{"alice", "bob", "carol"} {
		h.legacy.put(legacyNote(user, "note for "+user, "ban", h.now.AddDate(0, 0, -10)))
	}

	prompt := startRun(t, h)
	require.Equal(t, 3, prompt.UserCount)
	size, err := h.queue.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), size)
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))

	require.NoError(t, h.coordinator.Tick(ctx))

	size, err = h.queue.Size(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
	for _, user := range []string{"alice", "bob", "carol"} {
		require.Len(t, h.api.createdFor(user), 1)
	}
	phase, err := h.phases.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PhaseSyncMode, phase.Kind)
	require.NotNil(t, phase.FinishedAt)

	state, err := h.tracker.State(ctx)
	require.NoError(t, err)
	require.True(t, h.now.Equal(*state.FinishedTransferAt))
	require.NotNil(t, state.BulkFinishedAt)
	_, err = h.pages.Get(ctx, testCommunity, MirrorPageName)
	require.NoError(t, err)

	require.Len(t, h.notifier.bodies, 1)
	require.Contains(t, h.notifier.bodies[0], "3 notes were transferred for 3 users")
	counters, err := h.tracker.Counters(ctx)
	require.NoError(t, err)
	require.True(t, counters.IsZero())
	require.Zero(t, h.jobCount(t, JobTransferUsers))
}

func TestCoordinator_MultipleBatches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.api.unavailable["user1"] = true
	for i := 0; i < 5; i++ {
		h.legacy.put(legacyNote(fmt.Sprintf("user%d", i), "n", "ban", h.now.AddDate(0, 0, -1)))
	}
	startRun(t, h)

	require.NoError(t, h.coordinator.Tick(ctx))
	size, err := h.queue.Size(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), size)
	require.Empty(t, h.notifier.bodies)

	require.NoError(t, h.coordinator.Tick(ctx))
	require.NoError(t, h.coordinator.Tick(ctx))
	size, err = h.queue.Size(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
	require.Len(t, h.notifier.bodies, 1)
	require.Contains(t, h.notifier.bodies[0], "4 notes were transferred for 4 users")
	require.Contains(t, h.notifier.bodies[0], "Notes for 1 suspended, shadowbanned or deleted user were not transferred.")

	// a stray tick after finishing does not notify again
	require.NoError(t, h.coordinator.Tick(ctx))
	require.Len(t, h.notifier.bodies, 1)
}

func TestCoordinator_ExactBatchFinishesOnEmptyTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 2)
	h.legacy.put(legacyNote("alice", "n", "ban", h.now.AddDate(0, 0, -1)))
	h.legacy.put(legacyNote("bob", "n", "ban", h.now.AddDate(0, 0, -1)))
	startRun(t, h)

	require.NoError(t, h.coordinator.Tick(ctx))
	require.Empty(t, h.notifier.bodies)
	require.NoError(t, h.coordinator.Tick(ctx))
	require.Len(t, h.notifier.bodies, 1)
}

func TestCoordinator_FinishedTransferIsMonotonicAcrossRuns(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	h.legacy.put(legacyNote("alice", "n", "ban", h.now.AddDate(0, 0, -1)))
	startRun(t, h)
	require.NoError(t, h.coordinator.Tick(ctx))
	first, err := h.tracker.State(ctx)
	require.NoError(t, err)

	h.now = h.now.Add(time.Hour)
	h.legacy.put(legacyNote("bob", "n", "ban", h.now.Add(-time.Minute)))
	startRun(t, h)
	require.NoError(t, h.coordinator.Tick(ctx))
	second, err := h.tracker.State(ctx)
	require.NoError(t, err)
	require.True(t, second.FinishedTransferAt.After(*first.FinishedTransferAt))
	require.Len(t, h.api.createdFor("alice"), 1)
	require.Len(t, h.api.createdFor("bob"), 1)
}

func TestCoordinator_CancelsDuplicateJobs(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 1)
	for _, user := range []string{"alice", "bob", "carol"} {
		h.legacy.put(legacyNote(user, "n", "ban", h.now.AddDate(0, 0, -1)))
	}
	startRun(t, h)
	for i := 0; i < 2; i++ {
		_, err := h.scheduler.RunJob(ctx, schedule.JobRequest{Name: JobTransferUsers, Cron: "* * * * *"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, h.jobCount(t, JobTransferUsers))
	jobs, err := h.scheduler.ListJobs(ctx)
	require.NoError(t, err)
	firstID := jobs[0].ID

	require.NoError(t, h.coordinator.Tick(ctx))
	jobs, err = h.scheduler.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, firstID, jobs[0].ID)
}

func TestCoordinator_EnsureJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)

	recreated, err := h.coordinator.EnsureJob(ctx)
	require.NoError(t, err)
	require.False(t, recreated)
	require.Zero(t, h.jobCount(t, JobTransferUsers))

	require.NoError(t, h.queue.Enqueue(ctx, []string{"alice"}))
	recreated, err = h.coordinator.EnsureJob(ctx)
	require.NoError(t, err)
	require.True(t, recreated)
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))

	recreated, err = h.coordinator.EnsureJob(ctx)
	require.NoError(t, err)
	require.False(t, recreated)
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))
}

func TestCoordinator_FinishRetriedAfterFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	for _, user := range []string{"alice", "bob"} {
		h.legacy.put(legacyNote(user, "note for "+user, "ban", h.now.AddDate(0, 0, -3)))
	}
	startRun(t, h)
	h.pages.setCreateErr(fmt.Errorf("wiki backend unavailable"))

	require.Error(t, h.coordinator.Tick(ctx))

	size, err := h.queue.Size(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
	phase, err := h.phases.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PhaseRunning, phase.Kind)
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))
	require.Empty(t, h.notifier.bodies)
	_, err = h.transfer.Start(ctx)
	require.ErrorIs(t, err, appErr.ErrTransferInProgress)

	h.pages.setCreateErr(nil)
	require.NoError(t, h.coordinator.Tick(ctx))

	phase, err = h.phases.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, model.PhaseSyncMode, phase.Kind)
	_, err = h.pages.Get(ctx, testCommunity, MirrorPageName)
	require.NoError(t, err)
	require.Len(t, h.notifier.bodies, 1)
	require.Contains(t, h.notifier.bodies[0], "2 notes were transferred for 2 users")
	require.Zero(t, h.jobCount(t, JobTransferUsers))
	for _, user := range []string{"alice", "bob"} {
		require.Len(t, h.api.createdFor(user), 1)
	}
	counters, err := h.tracker.Counters(ctx)
	require.NoError(t, err)
	require.True(t, counters.IsZero())
}

func TestCoordinator_LostJobRecoveredWhileFinishing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	h.legacy.put(legacyNote("alice", "note", "ban", h.now.AddDate(0, 0, -3)))
	startRun(t, h)
	h.pages.setCreateErr(fmt.Errorf("wiki backend unavailable"))
	require.Error(t, h.coordinator.Tick(ctx))

	// the scheduler lost its entries, e.g. across a restart
	jobs, err := h.scheduler.ListJobs(ctx)
	require.NoError(t, err)
	for _, job := range jobs {
		require.NoError(t, h.scheduler.CancelJob(ctx, job.ID))
	}

	recreated, err := h.coordinator.EnsureJob(ctx)
	require.NoError(t, err)
	require.True(t, recreated)
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))

	require.NoError(t, h.install.HandleInstallOrUpgrade(ctx))
	require.Equal(t, 1, h.jobCount(t, JobTransferUsers))

	h.pages.setCreateErr(nil)
	require.NoError(t, h.coordinator.Tick(ctx))
	needed, err := h.coordinator.NeedsJob(ctx)
	require.NoError(t, err)
	require.False(t, needed)
	require.Zero(t, h.jobCount(t, JobTransferUsers))
}
