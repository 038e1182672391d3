package service

import (
	"regexp"
	"strings"

	"github.com/xxxsen/notesync/internal/model"
)

var contentPermalinkPattern = regexp.MustCompile(`/comments/(\w{1,8})/\w+/(\w{1,8})?`)

// ResolveContentID extracts the native content id from a permalink. The
// comment segment wins over the post segment.
func ResolveContentID(permalink string) (model.ContentID, bool) {
	if permalink == "" {
		return model.ContentID{}, false
	}
	m := contentPermalinkPattern.FindStringSubmatch(permalink)
	if m == nil {
		return model.ContentID{}, false
	}
	if m[2] != "" {
		return model.ContentID{Kind: model.ContentKindComment, ID: m[2]}, true
	}
	if m[1] != "" {
		return model.ContentID{Kind: model.ContentKindPost, ID: m[1]}, true
	}
	return model.ContentID{}, false
}

// ParseContentID parses the "t1_<id>" / "t3_<id>" form.
func ParseContentID(s string) (model.ContentID, bool) {
	kind, id, ok := strings.Cut(s, "_")
	if !ok || id == "" {
		return model.ContentID{}, false
	}
	switch model.ContentKind(kind) {
	case model.ContentKindComment, model.ContentKindPost:
		return model.ContentID{Kind: model.ContentKind(kind), ID: id}, true
	}
	return model.ContentID{}, false
}

// LegacyPermalink builds a permalink that ResolveContentID maps back to id.
func LegacyPermalink(community string, id model.ContentID) string {
	base := "https://www.reddit.com/r/" + community + "/comments/"
	switch id.Kind {
	case model.ContentKindPost:
		return base + id.ID + "/_/"
	case model.ContentKindComment:
		return base + "_/_/" + id.ID
	}
	return ""
}
