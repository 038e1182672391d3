package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
	appErr "github.com/xxxsen/notesync/internal/pkg/errors"
	"github.com/xxxsen/notesync/internal/schedule"
	"github.com/xxxsen/notesync/internal/wiki"
)

const testCommunity = "testsub"

type fakeNative struct {
	mu          sync.Mutex
	created     []model.NewNativeNote
	unavailable map[string]bool
	failNotes   map[string]bool
	recent      map[string][]model.NativeNote
	permalinks  map[string]string
}

func newFakeNative() *fakeNative {
	return &fakeNative{
		unavailable: map[string]bool{},
		failNotes:   map[string]bool{},
		recent:      map[string][]model.NativeNote{},
		permalinks:  map[string]string{},
	}
}

func (f *fakeNative) CreateNote(ctx context.Context, note model.NewNativeNote) (*model.NativeNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for text := range f.failNotes {
		if len(note.Note) >= len(text) && note.Note[:len(text)] == text {
			return nil, fmt.Errorf("native api request failed: 500")
		}
	}
	f.created = append(f.created, note)
	return &model.NativeNote{ID: fmt.Sprintf("note%d", len(f.created)), User: note.Username, Note: note.Note, Label: note.Label}, nil
}

func (f *fakeNative) RecentNotes(ctx context.Context, community, username, filter string, limit int) ([]model.NativeNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recent[username], nil
}

func (f *fakeNative) GetUser(ctx context.Context, username string) (*model.NativeUser, error) {
	if f.unavailable[username] {
		return nil, appErr.ErrUserUnavailable
	}
	return &model.NativeUser{ID: "t2_" + username, Username: username}, nil
}

func (f *fakeNative) GetPermalink(ctx context.Context, contentID string) (string, error) {
	if link, ok := f.permalinks[contentID]; ok {
		return link, nil
	}
	return "", appErr.ErrNotFound
}

func (f *fakeNative) createdFor(user string) []model.NewNativeNote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NewNativeNote
	for _, n := range f.created {
		if n.Username == user {
			out = append(out, n)
		}
	}
	return out
}

type fakeLegacy struct {
	mu       sync.Mutex
	notes    map[string][]model.LegacyNote
	revision int
	types    []model.LegacyNoteType
	added    []model.LegacyNote
	addErr   error
}

func newFakeLegacy() *fakeLegacy {
	return &fakeLegacy{
		notes: map[string][]model.LegacyNote{},
		types: []model.LegacyNoteType{{Key: "gooduser", Text: "Good Contributor"}, {Key: "spamwatch", Text: "Spam Watch"}, {Key: "ban", Text: "Ban"}},
	}
}

func (f *fakeLegacy) put(note model.LegacyNote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[note.Username] = append(f.notes[note.Username], note)
	f.revision++
}

func (f *fakeLegacy) GetNotes(ctx context.Context, community string) (*model.LegacyNotes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make(map[string][]model.LegacyNote, len(f.notes))
	for k, v := range f.notes {
		users[k] = append([]model.LegacyNote(nil), v...)
	}
	return &model.LegacyNotes{Community: community, RevisionID: fmt.Sprint(f.revision), Users: users}, nil
}

func (f *fakeLegacy) Revision(ctx context.Context, community string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprint(f.revision), nil
}

func (f *fakeLegacy) NoteTypes(ctx context.Context, community string) ([]model.LegacyNoteType, error) {
	return f.types, nil
}

func (f *fakeLegacy) AddNote(ctx context.Context, community string, note model.LegacyNote, reason string) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.mu.Lock()
	f.added = append(f.added, note)
	f.mu.Unlock()
	f.put(note)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
	bodies   []string
}

func (f *fakeNotifier) Notify(ctx context.Context, subject, markdown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, markdown)
	return nil
}

// flakyPages fails page creation while createErr is set.
type flakyPages struct {
	wiki.Store
	mu        sync.Mutex
	createErr error
}

func (f *flakyPages) setCreateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

func (f *flakyPages) Create(ctx context.Context, community, name, content, reason string) (*model.WikiPage, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.Create(ctx, community, name, content, reason)
}

type noopJob struct{ name string }

func (j noopJob) Name() string                  { return j.name }
func (j noopJob) Run(ctx context.Context) error { return nil }

// harness wires every component over in-memory adapters with a fixed clock.
type harness struct {
	now         time.Time
	kv          kvstore.Store
	pages       *flakyPages
	api         *fakeNative
	legacy      *fakeLegacy
	notifier    *fakeNotifier
	scheduler   *schedule.CronScheduler
	queue       *WorkQueue
	tracker     *ProgressTracker
	mapping     *MappingStore
	phases      *PhaseStore
	settings    *SettingsService
	reconciler  *Reconciler
	coordinator *Coordinator
	transfer    *TransferService
	sync        *SyncService
	install     *InstallService
}

func newHarness(t *testing.T, batchSize int) *harness {
	t.Helper()
	h := &harness{
		now:       time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
		kv:        kvstore.NewMemory(),
		pages:     &flakyPages{Store: wiki.NewMemory()},
		api:       newFakeNative(),
		legacy:    newFakeLegacy(),
		notifier:  &fakeNotifier{},
		scheduler: schedule.NewCronScheduler(),
	}
	clock := func() time.Time { return h.now }
	h.scheduler.Register(noopJob{name: JobTransferUsers})
	h.scheduler.Register(noopJob{name: JobUpdateWikiPage})

	h.queue = NewWorkQueue(h.kv)
	h.tracker = NewProgressTracker(h.kv, h.pages, testCommunity)
	h.mapping = NewMappingStore(h.kv)
	h.phases = NewPhaseStore(h.kv)
	h.phases.now = clock
	h.settings = NewSettingsService(h.kv, h.tracker)
	h.settings.now = clock
	h.reconciler = NewReconciler(h.api, h.tracker, time.UTC)
	h.reconciler.now = clock
	h.coordinator = NewCoordinator(CoordinatorConfig{Community: testCommunity, BatchSize: batchSize}, h.queue, h.tracker,
		h.mapping, h.phases, h.legacy, h.reconciler, h.scheduler, h.notifier, h.settings)
	h.coordinator.now = clock
	h.transfer = NewTransferService(testCommunity, h.queue, h.tracker, h.mapping, h.phases, h.legacy, h.coordinator, h.settings)
	h.transfer.now = clock
	h.sync = NewSyncService(SyncConfig{Community: testCommunity, AppUsername: "notesync-bot"}, h.kv, h.api, h.legacy,
		h.tracker, h.mapping, h.settings, h.reconciler)
	h.sync.now = clock
	h.install = NewInstallService(testCommunity, "", h.queue, h.tracker, h.mapping, h.legacy, h.scheduler, h.coordinator)
	return h
}

func (h *harness) jobCount(t *testing.T, name string) int {
	t.Helper()
	jobs, err := h.scheduler.ListJobs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, j := range jobs {
		if j.Name == name {
			n++
		}
	}
	return n
}

func legacyNote(user, text, noteType string, ts time.Time) model.LegacyNote {
	return model.LegacyNote{Username: user, Text: text, NoteType: noteType, ModeratorUsername: "mod1", Timestamp: ts}
}
