package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/notify"
	"github.com/xxxsen/notesync/internal/schedule"
)

type CoordinatorConfig struct {
	Community string
	BatchSize int
	Cron      string
}

// Coordinator drains the work queue in bounded batches, one batch per tick
// of the TransferUsers job, and finishes the run once the queue is empty.
type Coordinator struct {
	cfg        CoordinatorConfig
	queue      *WorkQueue
	tracker    *ProgressTracker
	mapping    *MappingStore
	phases     *PhaseStore
	legacy     LegacyNoteStore
	reconciler *Reconciler
	scheduler  schedule.Scheduler
	notifier   notify.Notifier
	settings   *SettingsService
	now        func() time.Time
}

func NewCoordinator(cfg CoordinatorConfig, queue *WorkQueue, tracker *ProgressTracker, mapping *MappingStore, phases *PhaseStore,
	legacy LegacyNoteStore, reconciler *Reconciler, scheduler schedule.Scheduler, notifier notify.Notifier, settings *SettingsService) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 75
	}
	if cfg.Cron == "" {
		cfg.Cron = "* * * * *"
	}
	return &Coordinator{
		cfg:        cfg,
		queue:      queue,
		tracker:    tracker,
		mapping:    mapping,
		phases:     phases,
		legacy:     legacy,
		reconciler: reconciler,
		scheduler:  scheduler,
		notifier:   notifier,
		settings:   settings,
		now:        time.Now,
	}
}

// Tick processes one batch. Per-user failures are logged and the user is
// still removed, so a tick always leaves the queue resumable.
func (c *Coordinator) Tick(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("community", c.cfg.Community))
	if err := c.enforceSingleton(ctx); err != nil {
		logger.Error("enforce single transfer job failed", zap.Error(err))
	}
	batch, err := c.queue.PeekBatch(ctx, c.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("peek work queue: %w", err)
	}
	if len(batch) == 0 {
		logger.Info("work queue is empty")
		return c.finish(ctx)
	}

	window, err := c.runWindow(ctx)
	if err != nil {
		return err
	}
	notes, err := c.legacy.GetNotes(ctx, c.cfg.Community)
	if err != nil {
		return fmt.Errorf("load legacy notes: %w", err)
	}
	mapping, err := c.mapping.GetMapping(ctx)
	if err != nil {
		return fmt.Errorf("load mapping: %w", err)
	}
	logger.Info("processing batch", zap.Int("users", len(batch)), zap.Timep("from", window.Start), zap.Timep("to", window.End))

	for _, user := range batch {
		if _, err := c.reconciler.TransferUser(ctx, user, c.cfg.Community, notes, mapping, window); err != nil {
			logger.Error("transfer user failed", zap.String("user", user), zap.Error(err))
		}
		if err := c.queue.Remove(ctx, user); err != nil {
			return fmt.Errorf("remove %s from work queue: %w", user, err)
		}
	}
	logger.Info("batch processed", zap.Int("users", len(batch)))

	if len(batch) < c.cfg.BatchSize {
		return c.finish(ctx)
	}
	return nil
}

// runWindow prefers the window frozen into the Running phase at confirmation.
func (c *Coordinator) runWindow(ctx context.Context) (model.TimeWindow, error) {
	phase, err := c.phases.Get(ctx)
	if err != nil {
		return model.TimeWindow{}, err
	}
	if phase.Kind == model.PhaseRunning && phase.Window != nil {
		return *phase.Window, nil
	}
	state, err := c.tracker.State(ctx)
	if err != nil {
		return model.TimeWindow{}, err
	}
	return transferWindow(state), nil
}

// transferWindow scopes a manual run: after the last completed bulk run and
// before incremental sync took over.
func transferWindow(state model.ProgressState) model.TimeWindow {
	var window model.TimeWindow
	if state.FinishedTransferAt != nil && state.BulkFinishedAt != nil {
		window.Start = state.FinishedTransferAt
	}
	window.End = state.SyncStartedAt
	return window
}

// finish is a no-op unless the phase is Running, so a run finishes once.
// The transfer job is retired only after every step succeeded; on error it
// stays scheduled and the next tick retries finish.
func (c *Coordinator) finish(ctx context.Context) error {
	logger := logutil.GetLogger(ctx).With(zap.String("community", c.cfg.Community))
	phase, err := c.phases.Get(ctx)
	if err != nil {
		return err
	}
	if phase.Kind != model.PhaseRunning {
		logger.Info("no running transfer to finish", zap.String("phase", string(phase.Kind)))
		return c.retireJobs(ctx)
	}

	now := c.now()
	if err := c.tracker.RecordFullTransferFinished(ctx, now); err != nil {
		return err
	}
	if _, err := c.tracker.RecordBulkRunFinished(ctx, now); err != nil {
		return err
	}
	if err := c.tracker.FlushToDurableStorage(ctx); err != nil {
		return err
	}

	counters, err := c.tracker.Counters(ctx)
	if err != nil {
		return err
	}
	settings, err := c.settings.Get(ctx)
	if err != nil {
		return err
	}
	if err := c.notifier.Notify(ctx, SummarySubject, BuildSummary(c.cfg.Community, counters, settings)); err != nil {
		logger.Error("send completion notification failed", zap.Error(err))
	}

	finishedAt := now.UTC()
	if _, err := c.phases.Transition(ctx, model.Phase{
		Kind:       model.PhaseSyncMode,
		Window:     phase.Window,
		UserCount:  phase.UserCount,
		StartedAt:  phase.StartedAt,
		FinishedAt: &finishedAt,
	}); err != nil {
		return err
	}
	// Confirm resets again before the next run
	if err := c.tracker.ResetCounters(ctx); err != nil {
		logger.Error("reset counters failed", zap.Error(err))
	}
	logger.Info("transfer finished",
		zap.Int64("users", counters.UsersTransferred),
		zap.Int64("notes", counters.NotesTransferred),
		zap.Int64("errored", counters.NotesErrored),
		zap.Int64("skipped", counters.UsersSkipped))
	return c.retireJobs(ctx)
}

func (c *Coordinator) transferJobs(ctx context.Context) ([]schedule.ScheduledJob, error) {
	jobs, err := c.scheduler.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	var out []schedule.ScheduledJob
	for _, job := range jobs {
		if job.Name == JobTransferUsers {
			out = append(out, job)
		}
	}
	return out, nil
}

// enforceSingleton keeps the first TransferUsers job and cancels the rest.
func (c *Coordinator) enforceSingleton(ctx context.Context) error {
	jobs, err := c.transferJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) <= 1 {
		return nil
	}
	for _, job := range jobs[1:] {
		if err := c.scheduler.CancelJob(ctx, job.ID); err != nil {
			return err
		}
	}
	logutil.GetLogger(ctx).Warn("cancelled duplicate transfer jobs", zap.Int("count", len(jobs)-1))
	return nil
}

func (c *Coordinator) retireJobs(ctx context.Context) error {
	jobs, err := c.transferJobs(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if err := c.scheduler.CancelJob(ctx, job.ID); err != nil {
			return err
		}
	}
	return nil
}

// Schedule registers the recurring job unless one already exists.
func (c *Coordinator) Schedule(ctx context.Context) error {
	jobs, err := c.transferJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		return c.enforceSingleton(ctx)
	}
	if _, err := c.scheduler.RunJob(ctx, schedule.JobRequest{Name: JobTransferUsers, Cron: c.cfg.Cron}); err != nil {
		return fmt.Errorf("schedule transfer job: %w", err)
	}
	return nil
}

// NeedsJob reports whether a run still needs the transfer job: users are
// queued, or the queue drained but finishing has not completed yet.
func (c *Coordinator) NeedsJob(ctx context.Context) (bool, error) {
	size, err := c.queue.Size(ctx)
	if err != nil {
		return false, err
	}
	if size > 0 {
		return true, nil
	}
	phase, err := c.phases.Get(ctx)
	if err != nil {
		return false, err
	}
	return phase.Kind == model.PhaseRunning, nil
}

// EnsureJob re-creates a lost transfer job while a run is unfinished.
func (c *Coordinator) EnsureJob(ctx context.Context) (bool, error) {
	needed, err := c.NeedsJob(ctx)
	if err != nil || !needed {
		return false, err
	}
	jobs, err := c.transferJobs(ctx)
	if err != nil {
		return false, err
	}
	if len(jobs) > 0 {
		return false, c.enforceSingleton(ctx)
	}
	if err := c.Schedule(ctx); err != nil {
		return false, err
	}
	logutil.GetLogger(ctx).Info("transfer job was missing and has been rescheduled")
	return true, nil
}
