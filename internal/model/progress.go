package model

import "time"

// ProgressState is the milestone half of the transfer progress.
type ProgressState struct {
	FinishedTransferAt        *time.Time `json:"finished_transfer_at,omitempty"`
	BulkFinishedAt            *time.Time `json:"bulk_finished_at,omitempty"`
	SyncStartedAt             *time.Time `json:"sync_started_at,omitempty"`
	LastSyncCompletedAt       *time.Time `json:"last_sync_completed_at,omitempty"`
	LastWikiRevisionProcessed string     `json:"last_wiki_revision_processed,omitempty"`
	WikiUpdatePending         bool       `json:"wiki_update_pending"`
}

// RunCounters aggregate the outcome of one transfer run.
type RunCounters struct {
	UsersTransferred int64 `json:"users_transferred"`
	NotesTransferred int64 `json:"notes_transferred"`
	NotesErrored     int64 `json:"notes_errored"`
	UsersSkipped     int64 `json:"users_skipped"`
}

func (c RunCounters) IsZero() bool {
	return c == RunCounters{}
}

// DurableMirror is the JSON document kept on the hidden wiki page.
type DurableMirror struct {
	CompletedDate     *int64 `json:"completedDate,omitempty"`
	SyncStarted       *int64 `json:"syncStarted,omitempty"`
	LastSyncCompleted *int64 `json:"lastSyncCompleted,omitempty"`
}

// TimeWindow is an open interval; a nil bound is unbounded on that side.
type TimeWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func (w TimeWindow) Contains(ts time.Time) bool {
	if w.Start != nil && !ts.After(*w.Start) {
		return false
	}
	if w.End != nil && !ts.Before(*w.End) {
		return false
	}
	return true
}
