package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xxxsen/notesync/internal/kvstore"
	"github.com/xxxsen/notesync/internal/model"
)

// defaultLabels covers both historical and current legacy key spellings.
var defaultLabels = map[string]model.NativeLabel{
	"gooduser":  model.LabelHelpfulUser,
	"watch":     model.LabelSpamWatch,
	"spamwatch": model.LabelSpamWatch,
	"warning":   model.LabelSpamWarning,
	"spamwarn":  model.LabelSpamWarning,
	"abusewarn": model.LabelAbuseWarning,
	"ban":       model.LabelBan,
	"permban":   model.LabelPermaBan,
	"botban":    model.LabelBotBan,
	"bot_ban":   model.LabelBotBan,
}

var defaultKeyOrder = []string{
	"gooduser", "watch", "spamwatch", "warning", "spamwarn",
	"abusewarn", "ban", "permban", "botban", "bot_ban",
}

// keySynonyms links legacy keys renamed upstream.
var keySynonyms = map[string][]string{
	"watch":     {"spamwatch"},
	"spamwatch": {"watch"},
	"warning":   {"spamwarn"},
	"spamwarn":  {"warning"},
	"botban":    {"bot_ban"},
	"bot_ban":   {"botban"},
}

const helpfulUserKey = "gooduser"

func DefaultMapping() []model.NoteTypeMapping {
	out := make([]model.NoteTypeMapping, 0, len(defaultKeyOrder))
	for _, key := range defaultKeyOrder {
		out = append(out, model.NoteTypeMapping{Key: key, Value: defaultLabels[key]})
	}
	return out
}

type MappingStore struct {
	kv kvstore.Store
}

func NewMappingStore(kv kvstore.Store) *MappingStore {
	return &MappingStore{kv: kv}
}

// GetMapping returns the stored table, seeding the default table first when
// none has been stored.
func (s *MappingStore) GetMapping(ctx context.Context) ([]model.NoteTypeMapping, error) {
	raw, ok, err := s.kv.Get(ctx, keyMapping)
	if err != nil {
		return nil, err
	}
	if !ok {
		mapping := DefaultMapping()
		if err := s.SetMapping(ctx, mapping); err != nil {
			return nil, err
		}
		return mapping, nil
	}
	var mapping []model.NoteTypeMapping
	if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
		return nil, fmt.Errorf("decode note type mapping: %w", err)
	}
	return mapping, nil
}

func (s *MappingStore) SetMapping(ctx context.Context, mapping []model.NoteTypeMapping) error {
	data, err := json.Marshal(dedupMapping(mapping))
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, keyMapping, string(data), 0)
}

// SeedFromTaxonomy replaces the table with defaults for the community's own
// keys. Keys without a known default are left for the moderator to map.
func (s *MappingStore) SeedFromTaxonomy(ctx context.Context, types []model.LegacyNoteType) ([]model.NoteTypeMapping, error) {
	mapping := make([]model.NoteTypeMapping, 0, len(types))
	for _, t := range types {
		if label, ok := defaultLabels[t.Key]; ok {
			mapping = append(mapping, model.NoteTypeMapping{Key: t.Key, Value: label})
		}
	}
	if err := s.SetMapping(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// dedupMapping keeps the last entry for each key, in first-seen order.
func dedupMapping(mapping []model.NoteTypeMapping) []model.NoteTypeMapping {
	index := make(map[string]int, len(mapping))
	out := make([]model.NoteTypeMapping, 0, len(mapping))
	for _, m := range mapping {
		if i, ok := index[m.Key]; ok {
			out[i] = m
			continue
		}
		index[m.Key] = len(out)
		out = append(out, m)
	}
	return out
}

// ResolveLabel maps a legacy key to a native label. An unmapped key falls
// back to the label of a mapped historical synonym.
func ResolveLabel(key string, mapping []model.NoteTypeMapping) (model.NativeLabel, bool) {
	if key == "" {
		return "", false
	}
	if label, ok := lookupKey(key, mapping); ok {
		return label, true
	}
	for _, synonym := range keySynonyms[key] {
		if label, ok := lookupKey(synonym, mapping); ok {
			return label, true
		}
	}
	return "", false
}

func lookupKey(key string, mapping []model.NoteTypeMapping) (model.NativeLabel, bool) {
	for _, m := range mapping {
		if m.Key == key && m.Value.Valid() {
			return m.Value, true
		}
	}
	return "", false
}

// ReverseKey maps a native label to the first legacy key mapped to it.
// SOLID_CONTRIBUTOR has no default key, so it falls back to gooduser when
// that key is mapped.
func ReverseKey(label model.NativeLabel, mapping []model.NoteTypeMapping) (string, bool) {
	if label == "" {
		return "", false
	}
	for _, m := range mapping {
		if m.Value == label {
			return m.Key, true
		}
	}
	if label == model.LabelSolidContributor {
		for _, m := range mapping {
			if m.Key == helpfulUserKey {
				return helpfulUserKey, true
			}
		}
	}
	return "", false
}

// UnmappedTypes lists taxonomy keys without an explicit mapping.
func UnmappedTypes(types []model.LegacyNoteType, mapping []model.NoteTypeMapping) []string {
	var out []string
	for _, t := range types {
		if _, ok := lookupKey(t.Key, mapping); !ok {
			out = append(out, t.Key)
		}
	}
	return out
}
