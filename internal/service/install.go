package service

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/schedule"
)

type InstallService struct {
	community   string
	flushCron   string
	queue       *WorkQueue
	tracker     *ProgressTracker
	mapping     *MappingStore
	legacy      LegacyNoteStore
	scheduler   schedule.Scheduler
	coordinator *Coordinator
}

func NewInstallService(community, flushCron string, queue *WorkQueue, tracker *ProgressTracker, mapping *MappingStore,
	legacy LegacyNoteStore, scheduler schedule.Scheduler, coordinator *Coordinator) *InstallService {
	if flushCron == "" {
		flushCron = "0 0 * * *"
	}
	return &InstallService{
		community:   community,
		flushCron:   flushCron,
		queue:       queue,
		tracker:     tracker,
		mapping:     mapping,
		legacy:      legacy,
		scheduler:   scheduler,
		coordinator: coordinator,
	}
}

// HandleInstall seeds the mapping from the community taxonomy and imports
// milestones left by a previous install.
func (s *InstallService) HandleInstall(ctx context.Context) error {
	types, err := s.legacy.NoteTypes(ctx, s.community)
	if err != nil {
		return fmt.Errorf("load note types: %w", err)
	}
	if _, err := s.mapping.SeedFromTaxonomy(ctx, types); err != nil {
		return fmt.Errorf("seed mapping: %w", err)
	}
	imported, err := s.tracker.LoadFromDurableStorage(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("install handled", zap.String("community", s.community), zap.Bool("history_imported", imported))
	return s.HandleInstallOrUpgrade(ctx)
}

// ownedJobs are cancelled and recreated on install or upgrade. Other jobs
// sharing the scheduler are left alone.
var ownedJobs = map[string]bool{JobTransferUsers: true, JobUpdateWikiPage: true}

// HandleInstallOrUpgrade cancels the transfer and flush jobs and re-registers
// the daily flush, plus the transfer job while a run is unfinished.
func (s *InstallService) HandleInstallOrUpgrade(ctx context.Context) error {
	jobs, err := s.scheduler.ListJobs(ctx)
	if err != nil {
		return err
	}
	var owned []schedule.ScheduledJob
	for _, job := range jobs {
		if ownedJobs[job.Name] {
			owned = append(owned, job)
		}
	}
	for _, job := range owned {
		if err := s.scheduler.CancelJob(ctx, job.ID); err != nil {
			return err
		}
	}
	if _, err := s.scheduler.RunJob(ctx, schedule.JobRequest{Name: JobUpdateWikiPage, Cron: s.flushCron}); err != nil {
		return fmt.Errorf("schedule %s: %w", JobUpdateWikiPage, err)
	}
	unfinished, err := s.coordinator.NeedsJob(ctx)
	if err != nil {
		return err
	}
	if unfinished {
		if err := s.coordinator.Schedule(ctx); err != nil {
			return err
		}
	}
	logutil.GetLogger(ctx).Info("jobs rescheduled", zap.Int("cancelled", len(owned)), zap.Bool("transfer_unfinished", unfinished))
	return nil
}

// UpdateWikiPage flushes the mirror when a sync left it stale.
func (s *InstallService) UpdateWikiPage(ctx context.Context) error {
	pending, err := s.tracker.IsWikiUpdatePending(ctx)
	if err != nil {
		return err
	}
	if !pending {
		return nil
	}
	return s.tracker.FlushToDurableStorage(ctx)
}
