package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/model"
	"github.com/xxxsen/notesync/internal/native"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
)

// TransferOutcome summarises one user's transfer. The same figures are added
// to the shared run counters.
type TransferOutcome struct {
	Attempted   int
	Transferred int
	Errored     int
	Skipped     bool
}

type Reconciler struct {
	api      native.API
	tracker  *ProgressTracker
	location *time.Location
	now      func() time.Time
}

func NewReconciler(api native.API, tracker *ProgressTracker, location *time.Location) *Reconciler {
	if location == nil {
		location = time.UTC
	}
	return &Reconciler{api: api, tracker: tracker, location: location, now: time.Now}
}

// NotesInWindow returns the user's notes strictly inside window, oldest first.
func NotesInWindow(notes []model.LegacyNote, window model.TimeWindow) []model.LegacyNote {
	out := make([]model.LegacyNote, 0, len(notes))
	for _, n := range notes {
		if window.Contains(n.Timestamp) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// UsersInScope lists users with at least one note strictly inside window.
func UsersInScope(notes *model.LegacyNotes, window model.TimeWindow) []string {
	var users []string
	for _, name := range notes.Usernames() {
		for _, n := range notes.Get(name) {
			if window.Contains(n.Timestamp) {
				users = append(users, name)
				break
			}
		}
	}
	sort.Strings(users)
	return users
}

// ComposeNoteText renders "<text>, added by <mod>", dated unless the note
// was written on the same calendar day as now.
func ComposeNoteText(note model.LegacyNote, now time.Time, loc *time.Location) string {
	text := note.Text + ", added by " + note.ModeratorUsername
	noteDay := note.Timestamp.In(loc).Format("2006-01-02")
	if noteDay != now.In(loc).Format("2006-01-02") {
		text += " on " + noteDay
	}
	return text
}

func (r *Reconciler) TransferUser(ctx context.Context, username, community string, all *model.LegacyNotes, mapping []model.NoteTypeMapping, window model.TimeWindow) (TransferOutcome, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("user", username))
	notes := NotesInWindow(all.Get(username), window)
	if len(notes) == 0 {
		logger.Info("no notes in window, user changed since enumeration")
		return TransferOutcome{}, nil
	}

	if _, err := r.api.GetUser(ctx, username); err != nil {
		if !errors.Is(err, appErr.ErrUserUnavailable) {
			logger.Warn("resolve user failed, skipping", zap.Error(err))
		} else {
			logger.Info("user is deleted, suspended or shadowbanned, skipping")
		}
		out := TransferOutcome{Skipped: true}
		return out, r.tracker.AddCounters(ctx, model.RunCounters{UsersSkipped: 1})
	}

	now := r.now()
	var out TransferOutcome
	for _, note := range notes {
		out.Attempted++
		req := model.NewNativeNote{
			Community: community,
			Username:  username,
			Note:      ComposeNoteText(note, now, r.location),
		}
		if label, ok := ResolveLabel(note.NoteType, mapping); ok {
			req.Label = label
		}
		if id, ok := ResolveContentID(note.ContextPermalink); ok {
			req.ContentID = id.String()
		}
		if _, err := r.api.CreateNote(ctx, req); err != nil {
			out.Errored++
			logger.Error("create native note failed", zap.Time("note_time", note.Timestamp), zap.Error(err))
			continue
		}
		out.Transferred++
	}
	logger.Info("user transferred", zap.Int("transferred", out.Transferred), zap.Int("errored", out.Errored))

	return out, r.tracker.AddCounters(ctx, model.RunCounters{
		UsersTransferred: 1,
		NotesTransferred: int64(out.Transferred),
		NotesErrored:     int64(out.Errored),
	})
}
