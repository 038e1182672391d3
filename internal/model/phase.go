package model

import "time"

type PhaseKind string

const (
	PhaseUninitialized        PhaseKind = "uninitialized"
	PhaseAwaitingTypeMapping  PhaseKind = "awaiting_type_mapping"
	PhaseAwaitingConfirmation PhaseKind = "awaiting_confirmation"
	PhaseRunning              PhaseKind = "running"
	PhaseSyncMode             PhaseKind = "sync_mode"
)

// Phase is the persisted lifecycle state. Only the fields belonging to Kind
// are populated.
type Phase struct {
	Kind PhaseKind `json:"kind"`

	// AwaitingTypeMapping
	UnmappedTypes []string `json:"unmapped_types,omitempty"`

	// AwaitingConfirmation and Running
	Window     *TimeWindow `json:"window,omitempty"`
	UserCount  int         `json:"user_count,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	EnteredAt  time.Time   `json:"entered_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
