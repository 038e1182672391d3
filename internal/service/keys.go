package service

import (
	"context"

	"github.com/xxxsen/notesync/internal/model"
)

const (
	keyNotesQueue        = "NotesQueue"
	keyMapping           = "UsernoteLabelMapping"
	keyFinishedTransfer  = "FinishedTransfer"
	keyBulkFinished      = "BulkFinished"
	keySyncStarted       = "SyncStarted"
	keyLastSyncCompleted = "LastSyncCompleted"
	keyUsersTransferred  = "UsersTransferred"
	keyNotesTransferred  = "NotesTransferred"
	keyNotesErrored      = "NotesErrored"
	keyUsersSkipped      = "UsersSkipped"
	keyWikiPageRevision  = "wikiPageRevision"
	keyWikiPageUpdate    = "wikiPageUpdate"
	keyPhase             = "TransferPhase"
	keyForwardSync       = "automaticForwardTransfer"
	keyReverseSync       = "automaticReverseTransfer"

	transferredNotePrefix = "transferredNote~"
)

const (
	MirrorPageName = "toolboxnotesxfer"

	JobTransferUsers  = "TransferUsers"
	JobUpdateWikiPage = "updateWikiPage"
)

// LegacyNoteStore is the legacy usernotes capability.
type LegacyNoteStore interface {
	GetNotes(ctx context.Context, community string) (*model.LegacyNotes, error)
	Revision(ctx context.Context, community string) (string, error)
	NoteTypes(ctx context.Context, community string) ([]model.LegacyNoteType, error)
	AddNote(ctx context.Context, community string, note model.LegacyNote, reason string) error
}
