package model

import "time"

// LegacyNote is a single usernote as stored in the legacy note store.
type LegacyNote struct {
	Username          string    `json:"username"`
	Text              string    `json:"text"`
	NoteType          string    `json:"note_type"`
	ModeratorUsername string    `json:"moderator_username"`
	ContextPermalink  string    `json:"context_permalink,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// LegacyNoteType is one entry of a community's legacy note taxonomy.
type LegacyNoteType struct {
	Key   string `json:"key"`
	Text  string `json:"text"`
	Color string `json:"color,omitempty"`
}

// LegacyNotes holds every user's notes for one community, keyed by username.
type LegacyNotes struct {
	Community  string
	RevisionID string
	Users      map[string][]LegacyNote
}

func (n *LegacyNotes) Get(username string) []LegacyNote {
	if n == nil || n.Users == nil {
		return nil
	}
	return n.Users[username]
}

func (n *LegacyNotes) Usernames() []string {
	if n == nil {
		return nil
	}
	names := make([]string, 0, len(n.Users))
	for name := range n.Users {
		names = append(names, name)
	}
	return names
}

type ContentKind string

const (
	ContentKindPost    ContentKind = "t3"
	ContentKindComment ContentKind = "t1"
)

// ContentID identifies a post or comment on the native platform.
type ContentID struct {
	Kind ContentKind
	ID   string
}

func (c ContentID) String() string {
	if c.ID == "" {
		return ""
	}
	return string(c.Kind) + "_" + c.ID
}

// NativeNote is a note read back from the native note API.
type NativeNote struct {
	ID        string      `json:"id"`
	CreatedAt time.Time   `json:"created_at"`
	Operator  string      `json:"operator"`
	User      string      `json:"user"`
	Note      string      `json:"note"`
	Label     NativeLabel `json:"label,omitempty"`
	ContentID string      `json:"content_id,omitempty"`
}

// NewNativeNote is the payload for creating a note on the native platform.
type NewNativeNote struct {
	Community string
	Username  string
	Note      string
	Label     NativeLabel
	ContentID string
}

type NativeUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}
