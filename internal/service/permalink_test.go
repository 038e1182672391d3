package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xxxsen/notesync/internal/model"
)

func TestResolveContentID(t *testing.T) {
	tests := []struct {
		name      string
		permalink string
		want      string
		ok        bool
	}{
		{"comment", "https://www.reddit.com/r/sub/comments/abc123/title/def456/", "t1_def456", true},
		{"post", "https://www.reddit.com/r/sub/comments/abc123/title/", "t3_abc123", true},
		{"relative", "/r/sub/comments/abc/t/", "t3_abc", true},
		{"no slug", "https://www.reddit.com/comments/abc123", "", false},
		{"modmail", "https://mod.reddit.com/mail/all/xyz", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveContentID(tt.permalink)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got.String())
		})
	}
}

func TestResolveContentID_CommentSegmentWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		post := rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(t, "post")
		slug := rapid.StringMatching(`[a-z0-9_]{1,30}`).Draw(t, "slug")
		comment := rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(t, "comment")
		got, ok := ResolveContentID("https://www.reddit.com/r/sub/comments/" + post + "/" + slug + "/" + comment + "/")
		if !ok || got.Kind != model.ContentKindComment || got.ID != comment {
			t.Fatalf("got %v %v, want comment %s", got, ok, comment)
		}
	})
}

func TestResolveContentID_PostOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		post := rapid.StringMatching(`[a-z0-9]{1,8}`).Draw(t, "post")
		slug := rapid.StringMatching(`[a-z0-9_]{1,30}`).Draw(t, "slug")
		got, ok := ResolveContentID("/r/sub/comments/" + post + "/" + slug + "/")
		if !ok || got.Kind != model.ContentKindPost || got.ID != post {
			t.Fatalf("got %v %v, want post %s", got, ok, post)
		}
	})
}

func TestResolveContentID_NonMatchingIsAbsent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "permalink")
		got, ok := ResolveContentID(s)
		if !ok && got != (model.ContentID{}) {
			t.Fatalf("absent result carried a value: %v", got)
		}
	})
}

func TestLegacyPermalink_RoundTrips(t *testing.T) {
	for _, id := range []model.ContentID{
		{Kind: model.ContentKindPost, ID: "abc"},
		{Kind: model.ContentKindComment, ID: "def"},
	} {
		got, ok := ResolveContentID(LegacyPermalink("sub", id))
		require.True(t, ok)
		require.Equal(t, id, got)

		parsed, ok := ParseContentID(id.String())
		require.True(t, ok)
		require.Equal(t, id, parsed)
	}
	_, ok := ParseContentID("t2_user")
	require.False(t, ok)
}
