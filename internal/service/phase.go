package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

var phaseTransitions = map[model.PhaseKind][]model.PhaseKind{
	model.PhaseUninitialized:        {model.PhaseAwaitingTypeMapping, model.PhaseAwaitingConfirmation},
	model.PhaseAwaitingTypeMapping:  {model.PhaseAwaitingTypeMapping, model.PhaseAwaitingConfirmation},
	model.PhaseAwaitingConfirmation: {model.PhaseAwaitingTypeMapping, model.PhaseAwaitingConfirmation, model.PhaseRunning},
	model.PhaseRunning:              {model.PhaseSyncMode},
	model.PhaseSyncMode:             {model.PhaseAwaitingTypeMapping, model.PhaseAwaitingConfirmation},
}

// PhaseStore persists the lifecycle phase as one JSON value.
type PhaseStore struct {
	kv  kvstore.Store
	now func() time.Time
}

func NewPhaseStore(kv kvstore.Store) *PhaseStore {
	return &PhaseStore{kv: kv, now: time.Now}
}

func (s *PhaseStore) Get(ctx context.Context) (model.Phase, error) {
	raw, ok, err := s.kv.Get(ctx, keyPhase)
	if err != nil {
		return model.Phase{}, err
	}
	if !ok {
		return model.Phase{Kind: model.PhaseUninitialized}, nil
	}
	var phase model.Phase
	if err := json.Unmarshal([]byte(raw), &phase); err != nil {
		return model.Phase{}, fmt.Errorf("decode phase: %w", err)
	}
	return phase, nil
}

// Transition moves to next if the current phase allows it.
func (s *PhaseStore) Transition(ctx context.Context, next model.Phase) (model.Phase, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return model.Phase{}, err
	}
	if !canTransition(current.Kind, next.Kind) {
		return model.Phase{}, fmt.Errorf("%w: phase %s cannot move to %s", appErr.ErrConflict, current.Kind, next.Kind)
	}
	next.EnteredAt = s.now().UTC()
	data, err := json.Marshal(next)
	if err != nil {
		return model.Phase{}, err
	}
	if err := s.kv.Set(ctx, keyPhase, string(data), 0); err != nil {
		return model.Phase{}, err
	}
	return next, nil
}

func canTransition(from, to model.PhaseKind) bool {
	for _, allowed := range phaseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
