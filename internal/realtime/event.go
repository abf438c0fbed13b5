package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"brainsync-client/internal/cache"
)

type Kind string

const (
	KindNoteCreated Kind = "note-created"
	KindNoteUpdated Kind = "note-updated"
	KindNoteDeleted Kind = "note-deleted"
)

// Event is one decoded push frame. Only Kind is guaranteed; the rest is best effort.
type Event struct {
	Kind       Kind
	Name       string
	NoteId     string
	Title      string
	ReceivedAt time.Time
}

// KindSpec describes what the client does with one event kind.
type KindSpec struct {
	Kind     Kind
	Names    []string
	Tags     []cache.Tag
	Describe func(Event) string
}

// Registry maps wire names to kinds. Names are matched case-insensitively with '_' and '-'
// treated alike, so NOTE_CREATED and note-created are the same name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]KindSpec
}

func NewRegistry(specs ...KindSpec) *Registry {
	r := &Registry{byName: make(map[string]KindSpec)}
	for _, s := range specs {
		r.Register(s)
	}
	return r
}

func (r *Registry) Register(spec KindSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[normalizeName(string(spec.Kind))] = spec
	for _, n := range spec.Names {
		r.byName[normalizeName(n)] = spec
	}
}

func (r *Registry) Lookup(name string) (KindSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.byName[normalizeName(name)]
	return spec, ok
}

func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
}

func DefaultRegistry() *Registry {
	return NewRegistry(
		KindSpec{
			Kind:  KindNoteCreated,
			Names: []string{"new-note"},
			Tags:  []cache.Tag{cache.TagNotes},
			Describe: func(e Event) string {
				return describe("New note", e.Title)
			},
		},
		KindSpec{
			Kind: KindNoteUpdated,
			Tags: []cache.Tag{cache.TagNotes},
			Describe: func(e Event) string {
				return describe("Note updated", e.Title)
			},
		},
		KindSpec{
			Kind: KindNoteDeleted,
			Tags: []cache.Tag{cache.TagNotes},
			Describe: func(e Event) string {
				return describe("Note deleted", e.Title)
			},
		},
	)
}

func describe(prefix, title string) string {
	if title == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %q", prefix, title)
}

// frame covers both the flat shape ({"type":"new-note",...}) and the hub's notification
// envelope ({"type":"notification","data":{"type_code":"NOTE_CREATED",...}}).
// Only the kind is required: payload fields of an unexpected JSON type read as empty.
type frame struct {
	Type      looseString     `json:"type"`
	Kind      looseString     `json:"kind"`
	TypeCode  looseString     `json:"type_code"`
	NoteId    looseString     `json:"noteId"`
	NoteIdAlt looseString     `json:"note_id"`
	EntityId  looseString     `json:"entity_id"`
	Id        looseString     `json:"id"`
	Title     looseString     `json:"title"`
	Data      json.RawMessage `json:"data"`
}

func (f frame) name() string {
	for _, n := range []looseString{f.TypeCode, f.Type, f.Kind} {
		if n != "" {
			return string(n)
		}
	}
	return ""
}

func (f frame) noteId() string {
	for _, id := range []looseString{f.NoteId, f.NoteIdAlt, f.EntityId, f.Id} {
		if id != "" {
			return string(id)
		}
	}
	return ""
}

// looseString accepts strings and numbers. Any other JSON value decodes to "".
type looseString string

func (s *looseString) UnmarshalJSON(raw []byte) error {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}
	*s = ""
	return nil
}

// Decode parses one frame. ok is false for well-formed frames of an unknown kind.
func (r *Registry) Decode(raw []byte, now time.Time) (Event, KindSpec, bool, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, KindSpec{}, false, fmt.Errorf("decode push frame: %w", err)
	}

	if normalizeName(string(f.Type)) == "notification" && len(f.Data) > 0 {
		var inner frame
		if err := json.Unmarshal(f.Data, &inner); err != nil {
			return Event{}, KindSpec{}, false, fmt.Errorf("decode notification data: %w", err)
		}
		f = inner
	} else if len(f.Data) > 0 && f.noteId() == "" {
		// Flat kind with its payload nested under data.
		var inner frame
		if json.Unmarshal(f.Data, &inner) == nil {
			f.NoteId = looseString(inner.noteId())
			if f.Title == "" {
				f.Title = inner.Title
			}
		}
	}

	name := f.name()
	spec, ok := r.Lookup(name)
	if !ok {
		return Event{Name: name, ReceivedAt: now}, KindSpec{}, false, nil
	}

	return Event{
		Kind:       spec.Kind,
		Name:       name,
		NoteId:     f.noteId(),
		Title:      string(f.Title),
		ReceivedAt: now,
	}, spec, true, nil
}
