package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

// MappingField is one row of the note type mapping form.
type MappingField struct {
	Key     string                    `json:"key"`
	Text    string                    `json:"text"`
	Current model.NativeLabel         `json:"current,omitempty"`
	Options []model.NativeLabelOption `json:"options"`
}

// TransferPrompt is what the moderator sees next in the manual flow.
type TransferPrompt struct {
	Phase     model.PhaseKind `json:"phase"`
	Message   string          `json:"message"`
	Fields    []MappingField  `json:"fields,omitempty"`
	UserCount int             `json:"user_count,omitempty"`
	Remaining int64           `json:"remaining,omitempty"`
}

type TransferService struct {
	community   string
	queue       *WorkQueue
	tracker     *ProgressTracker
	mapping     *MappingStore
	phases      *PhaseStore
	legacy      LegacyNoteStore
	coordinator *Coordinator
	settings    *SettingsService
	now         func() time.Time
}

func NewTransferService(community string, queue *WorkQueue, tracker *ProgressTracker, mapping *MappingStore, phases *PhaseStore,
	legacy LegacyNoteStore, coordinator *Coordinator, settings *SettingsService) *TransferService {
	return &TransferService{
		community:   community,
		queue:       queue,
		tracker:     tracker,
		mapping:     mapping,
		phases:      phases,
		legacy:      legacy,
		coordinator: coordinator,
		settings:    settings,
		now:         time.Now,
	}
}

// Start begins the manual flow. It answers with the mapping form while
// taxonomy keys are unmapped, otherwise with the confirmation prompt.
func (s *TransferService) Start(ctx context.Context) (*TransferPrompt, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("community", s.community))
	remaining, err := s.queue.Size(ctx)
	if err != nil {
		return nil, err
	}
	phase, err := s.phases.Get(ctx)
	if err != nil {
		return nil, err
	}
	if remaining > 0 || phase.Kind == model.PhaseRunning {
		if recreated, err := s.coordinator.EnsureJob(ctx); err != nil {
			logger.Error("recover transfer job failed", zap.Error(err))
		} else if recreated {
			logger.Info("transfer job recreated on start request")
		}
		return &TransferPrompt{Phase: model.PhaseRunning, Remaining: remaining,
				Message: fmt.Sprintf("Import is already in progress! %d users still to go.", remaining)},
			fmt.Errorf("%w: %d users still to go", appErr.ErrTransferInProgress, remaining)
	}

	state, err := s.tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	if state.FinishedTransferAt != nil && state.BulkFinishedAt != nil {
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		if settings.ForwardSync || settings.ReverseSync {
			return nil, appErr.ErrSyncMode
		}
	}

	types, err := s.legacy.NoteTypes(ctx, s.community)
	if err != nil {
		return nil, fmt.Errorf("load note types: %w", err)
	}
	mapping, err := s.mapping.GetMapping(ctx)
	if err != nil {
		return nil, err
	}
	if unmapped := UnmappedTypes(types, mapping); len(unmapped) > 0 {
		if _, err := s.phases.Transition(ctx, model.Phase{Kind: model.PhaseAwaitingTypeMapping, UnmappedTypes: unmapped}); err != nil {
			return nil, err
		}
		logger.Info("note types need mapping", zap.Strings("unmapped", unmapped))
		return &TransferPrompt{
			Phase:   model.PhaseAwaitingTypeMapping,
			Message: "Please choose mappings for Usernote types",
			Fields:  mappingFields(types, mapping),
		}, nil
	}
	return s.confirmationPrompt(ctx, state)
}

func mappingFields(types []model.LegacyNoteType, mapping []model.NoteTypeMapping) []MappingField {
	fields := make([]MappingField, 0, len(types))
	for _, t := range types {
		field := MappingField{Key: t.Key, Text: t.Text, Options: model.NativeLabels}
		if label, ok := lookupKey(t.Key, mapping); ok {
			field.Current = label
		}
		fields = append(fields, field)
	}
	return fields
}

// SubmitMapping saves the form values. Every taxonomy key must map to a
// known label.
func (s *TransferService) SubmitMapping(ctx context.Context, values map[string]model.NativeLabel) (*TransferPrompt, error) {
	types, err := s.legacy.NoteTypes(ctx, s.community)
	if err != nil {
		return nil, fmt.Errorf("load note types: %w", err)
	}
	mapping := make([]model.NoteTypeMapping, 0, len(values))
	var missing []string
	for _, t := range types {
		label, ok := values[t.Key]
		if !ok || !label.Valid() {
			missing = append(missing, t.Key)
			continue
		}
		mapping = append(mapping, model.NoteTypeMapping{Key: t.Key, Value: label})
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", appErr.ErrMappingIncomplete, missing)
	}
	if err := s.mapping.SetMapping(ctx, mapping); err != nil {
		return nil, err
	}
	state, err := s.tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	return s.confirmationPrompt(ctx, state)
}

func (s *TransferService) scope(ctx context.Context, state model.ProgressState) (model.TimeWindow, []string, error) {
	window := transferWindow(state)
	notes, err := s.legacy.GetNotes(ctx, s.community)
	if err != nil {
		return model.TimeWindow{}, nil, fmt.Errorf("load legacy notes: %w", err)
	}
	return window, UsersInScope(notes, window), nil
}

func (s *TransferService) confirmationPrompt(ctx context.Context, state model.ProgressState) (*TransferPrompt, error) {
	window, users, err := s.scope(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, appErr.ErrNothingToTransfer
	}
	if _, err := s.phases.Transition(ctx, model.Phase{
		Kind:      model.PhaseAwaitingConfirmation,
		Window:    &window,
		UserCount: len(users),
	}); err != nil {
		return nil, err
	}
	verb, noun := "are", "users"
	if len(users) == 1 {
		verb, noun = "is", "user"
	}
	return &TransferPrompt{
		Phase:     model.PhaseAwaitingConfirmation,
		UserCount: len(users),
		Message:   fmt.Sprintf("There %s %d %s with notes available to transfer. Do you want to proceed with transfer?", verb, len(users), noun),
	}, nil
}

// Confirm recomputes the scope, queues the users and starts the run.
func (s *TransferService) Confirm(ctx context.Context) (*TransferPrompt, error) {
	remaining, err := s.queue.Size(ctx)
	if err != nil {
		return nil, err
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: %d users still to go", appErr.ErrTransferInProgress, remaining)
	}
	phase, err := s.phases.Get(ctx)
	if err != nil {
		return nil, err
	}
	if phase.Kind != model.PhaseAwaitingConfirmation {
		return nil, fmt.Errorf("%w: transfer has not been started", appErr.ErrInvalid)
	}
	state, err := s.tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	window, users, err := s.scope(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, appErr.ErrNothingToTransfer
	}

	if err := s.tracker.ResetCounters(ctx); err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(ctx, users); err != nil {
		return nil, fmt.Errorf("enqueue users: %w", err)
	}
	startedAt := s.now().UTC()
	if _, err := s.phases.Transition(ctx, model.Phase{
		Kind:      model.PhaseRunning,
		Window:    &window,
		UserCount: len(users),
		StartedAt: &startedAt,
	}); err != nil {
		return nil, err
	}
	if err := s.coordinator.Schedule(ctx); err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("transfer queued", zap.Int("users", len(users)))
	return &TransferPrompt{
		Phase:     model.PhaseRunning,
		UserCount: len(users),
		Message:   "Notes will now be transferred in the background. A notification will be sent on completion.",
	}, nil
}

// Status reports the phase alongside progress for the status endpoint.
type Status struct {
	Phase    model.Phase         `json:"phase"`
	Queued   int64               `json:"queued"`
	Progress model.ProgressState `json:"progress"`
	Counters model.RunCounters   `json:"counters"`
	Settings model.Settings      `json:"settings"`
}

func (s *TransferService) Status(ctx context.Context) (*Status, error) {
	phase, err := s.phases.Get(ctx)
	if err != nil {
		return nil, err
	}
	queued, err := s.queue.Size(ctx)
	if err != nil {
		return nil, err
	}
	state, err := s.tracker.State(ctx)
	if err != nil {
		return nil, err
	}
	counters, err := s.tracker.Counters(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Phase: phase, Queued: queued, Progress: state, Counters: counters, Settings: settings}, nil
}
