package toolbox

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/klauspost/compress/zlib"

	"github.com/xxxsen/notesync/internal/model"
)

const usernotesSchema = 6

// rawUsernotes is the document stored on the usernotes wiki page.
type rawUsernotes struct {
	Ver       int          `json:"ver"`
	Constants rawConstants `json:"constants"`
	Blob      string       `json:"blob"`
}

type rawConstants struct {
	Users    []string `json:"users"`
	Warnings []string `json:"warnings"`
}

type rawUser struct {
	Notes []rawNote `json:"ns"`
}

// rawNote fields index into rawConstants: M into users, W into warnings.
type rawNote struct {
	Text      string `json:"n"`
	Timestamp int64  `json:"t"`
	Mod       int    `json:"m"`
	Link      string `json:"l"`
	Warning   int    `json:"w"`
}

type rawConfig struct {
	UsernoteColors []model.LegacyNoteType `json:"usernoteColors"`
}

// DefaultNoteTypes is the taxonomy used when a community has no config page.
var DefaultNoteTypes = []model.LegacyNoteType{
	{Key: "gooduser", Text: "Good Contributor", Color: "green"},
	{Key: "spamwatch", Text: "Spam Watch", Color: "fuchsia"},
	{Key: "spamwarn", Text: "Spam Warning", Color: "purple"},
	{Key: "abusewarn", Text: "Abuse Warning", Color: "orange"},
	{Key: "ban", Text: "Ban", Color: "red"},
	{Key: "permban", Text: "Permanent Ban", Color: "darkred"},
	{Key: "botban", Text: "Bot Ban", Color: "black"},
}

func decodeBlob(blob string) (map[string]rawUser, error) {
	users := map[string]rawUser{}
	if blob == "" {
		return users, nil
	}
	compressed, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("decode usernotes blob: %w", err)
	}
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open usernotes blob: %w", err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("inflate usernotes blob: %w", err)
	}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse usernotes blob: %w", err)
	}
	return users, nil
}

func encodeBlob(users map[string]rawUser) (string, error) {
	data, err := json.Marshal(users)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	writer := zlib.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func parseUsernotes(content string) (*rawUsernotes, map[string]rawUser, error) {
	doc := &rawUsernotes{Ver: usernotesSchema}
	if strings.TrimSpace(content) == "" {
		return doc, map[string]rawUser{}, nil
	}
	if err := json.Unmarshal([]byte(content), doc); err != nil {
		return nil, nil, fmt.Errorf("parse usernotes page: %w", err)
	}
	if doc.Ver != usernotesSchema {
		return nil, nil, fmt.Errorf("unsupported usernotes schema version %d", doc.Ver)
	}
	users, err := decodeBlob(doc.Blob)
	if err != nil {
		return nil, nil, err
	}
	return doc, users, nil
}

func renderUsernotes(doc *rawUsernotes, users map[string]rawUser) (string, error) {
	blob, err := encodeBlob(users)
	if err != nil {
		return "", err
	}
	doc.Ver = usernotesSchema
	doc.Blob = blob
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func lookup(values []string, idx int) string {
	if idx < 0 || idx >= len(values) {
		return ""
	}
	return values[idx]
}

func indexOf(values *[]string, value string) int {
	for i, v := range *values {
		if v == value {
			return i
		}
	}
	*values = append(*values, value)
	return len(*values) - 1
}

func toLegacyNotes(community, revision string, doc *rawUsernotes, users map[string]rawUser) *model.LegacyNotes {
	out := &model.LegacyNotes{
		Community:  community,
		RevisionID: revision,
		Users:      make(map[string][]model.LegacyNote, len(users)),
	}
	for name, user := range users {
		notes := make([]model.LegacyNote, 0, len(user.Notes))
		for _, n := range user.Notes {
			notes = append(notes, model.LegacyNote{
				Username:          name,
				Text:              n.Text,
				NoteType:          lookup(doc.Constants.Warnings, n.Warning),
				ModeratorUsername: lookup(doc.Constants.Users, n.Mod),
				ContextPermalink:  unsquashPermalink(n.Link),
				Timestamp:         time.Unix(n.Timestamp, 0).UTC(),
			})
		}
		out.Users[name] = notes
	}
	return out
}

func toRawNote(doc *rawUsernotes, note model.LegacyNote) rawNote {
	raw := rawNote{
		Text:      note.Text,
		Timestamp: note.Timestamp.Unix(),
		Mod:       indexOf(&doc.Constants.Users, note.ModeratorUsername),
		Link:      squashPermalink(note.ContextPermalink),
	}
	if note.NoteType == "" {
		raw.Warning = -1
	} else {
		raw.Warning = indexOf(&doc.Constants.Warnings, note.NoteType)
	}
	return raw
}

var permalinkPattern = regexp.MustCompile(`/comments/(\w+)(?:/[^/]*/(\w+))?`)

// squashPermalink stores content links in the compact "l,<post>[,<comment>]"
// form; anything else is kept as is.
func squashPermalink(permalink string) string {
	if permalink == "" {
		return ""
	}
	m := permalinkPattern.FindStringSubmatch(permalink)
	if m == nil {
		return permalink
	}
	if m[2] != "" {
		return "l," + m[1] + "," + m[2]
	}
	return "l," + m[1]
}

func unsquashPermalink(link string) string {
	if !strings.HasPrefix(link, "l,") {
		return link
	}
	parts := strings.Split(link, ",")
	switch len(parts) {
	case 2:
		return "https://www.reddit.com/comments/" + parts[1] + "/_/"
	case 3:
		return "https://www.reddit.com/comments/" + parts[1] + "/_/" + parts[2]
	default:
		return ""
	}
}
