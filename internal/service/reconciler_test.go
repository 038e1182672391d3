package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xxxsen/notesync/internal/model"
)

func TestNotesInWindow_OpenInterval(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2, t3 := t1.Add(time.Hour), t1.Add(2*time.Hour)
	notes := []model.LegacyNote{legacyNote("u", "c", "", t3), legacyNote("u", "b", "", t2), legacyNote("u", "a", "", t1)}

	got := NotesInWindow(notes, model.TimeWindow{Start: &t1, End: &t3})
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].Text)

	all := NotesInWindow(notes, model.TimeWindow{})
	require.Equal(t, []string{"a", "b", "c"}, []string{all[0].Text, all[1].Text, all[2].Text})
}

func TestNotesInWindow_Property(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rapid.Check(t, func(t *rapid.T) {
		offsets := rapid.SliceOfN(rapid.IntRange(0, 1000), 0, 30).Draw(t, "offsets")
		lo := rapid.IntRange(0, 1000).Draw(t, "lo")
		hi := rapid.IntRange(0, 1000).Draw(t, "hi")
		start, end := base.Add(time.Duration(lo)*time.Minute), base.Add(time.Duration(hi)*time.Minute)

		notes := make([]model.LegacyNote, 0, len(offsets))
		want := 0
		for _, off := range offsets {
			ts := base.Add(time.Duration(off) * time.Minute)
			notes = append(notes, legacyNote("u", "n", "", ts))
			if off > lo && off < hi {
				want++
			}
		}
		got := NotesInWindow(notes, model.TimeWindow{Start: &start, End: &end})
		if len(got) != want {
			t.Fatalf("got %d notes, want %d", len(got), want)
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Before(got[i-1].Timestamp) {
				t.Fatalf("notes out of order at %d", i)
			}
		}
	})
}

func TestComposeNoteText(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	note := legacyNote("u", "Spammed thread", "", now.Add(-2*time.Hour))
	require.Equal(t, "Spammed thread, added by mod1", ComposeNoteText(note, now, time.UTC))

	note.Timestamp = now.AddDate(0, 0, -1)
	require.Equal(t, "Spammed thread, added by mod1 on 2024-06-14", ComposeNoteText(note, now, time.UTC))
}

func TestReconciler_TransferUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	day := h.now.AddDate(0, 0, -3)
	h.legacy.put(legacyNote("alice", "second", "ban", day.Add(time.Hour)))
	first := legacyNote("alice", "first", "custom", day)
	first.ContextPermalink = "https://www.reddit.com/r/testsub/comments/abc/title/def/"
	h.legacy.put(first)
	h.api.failNotes["second"] = true
	notes, err := h.legacy.GetNotes(ctx, testCommunity)
	require.NoError(t, err)

	out, err := h.reconciler.TransferUser(ctx, "alice", testCommunity, notes, DefaultMapping(), model.TimeWindow{})
	require.NoError(t, err)
	require.Equal(t, TransferOutcome{Attempted: 2, Transferred: 1, Errored: 1}, out)

	created := h.api.createdFor("alice")
	require.Len(t, created, 1)
	require.Equal(t, "first, added by mod1 on 2024-06-12", created[0].Note)
	require.Equal(t, model.NativeLabel(""), created[0].Label)
	require.Equal(t, "t1_def", created[0].ContentID)

	counters, err := h.tracker.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RunCounters{UsersTransferred: 1, NotesTransferred: 1, NotesErrored: 1}, counters)
}

func TestReconciler_SkipsUnavailableUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	h.legacy.put(legacyNote("ghost", "x", "ban", h.now.Add(-time.Hour)))
	h.api.unavailable["ghost"] = true
	notes, err := h.legacy.GetNotes(ctx, testCommunity)
	require.NoError(t, err)

	out, err := h.reconciler.TransferUser(ctx, "ghost", testCommunity, notes, DefaultMapping(), model.TimeWindow{})
	require.NoError(t, err)
	require.True(t, out.Skipped)
	require.Empty(t, h.api.createdFor("ghost"))
	counters, err := h.tracker.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, model.RunCounters{UsersSkipped: 1}, counters)
}

func TestReconciler_EmptyWindowIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, 50)
	h.legacy.put(legacyNote("alice", "x", "ban", h.now.Add(-time.Hour)))
	notes, err := h.legacy.GetNotes(ctx, testCommunity)
	require.NoError(t, err)
	start := h.now

	out, err := h.reconciler.TransferUser(ctx, "alice", testCommunity, notes, DefaultMapping(), model.TimeWindow{Start: &start})
	require.NoError(t, err)
	require.Equal(t, TransferOutcome{}, out)
	counters, err := h.tracker.Counters(ctx)
	require.NoError(t, err)
	require.True(t, counters.IsZero())
}
