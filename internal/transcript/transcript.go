// Package transcript is the ordered chat log of a wizard session.
//
// An entry is either literal text or a directive to render an interactive
// widget. The transcript never interprets widgets; it only keeps order.
// Entries are never edited: an update is a RemoveByID followed by Append.
package transcript

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Author of an entry.
type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
	AuthorSystem    Author = "system"
)

// Kind tags an entry as text or widget.
type Kind string

const (
	KindText   Kind = "text"
	KindWidget Kind = "widget"
)

// Widget names the interactive element a widget entry stands for. The name
// doubles as the entry id so callers can remove the live instance.
type Widget string

const (
	WidgetConfigSelection Widget = "config_selection"
	WidgetObjectifFlow    Widget = "objectif_flow"
	WidgetCibleFlow       Widget = "cible_flow"
	WidgetGeneratingPlan  Widget = "generating_plan"
	WidgetPlanSummary     Widget = "plan_summary"
)

// Entry is one transcript item.
type Entry struct {
	ID         string
	Author     Author
	Kind       Kind
	Text       string // KindText only
	Widget     Widget // KindWidget only
	Payload    any    // optional widget data
	CreatedAt  time.Time
	ScenarioID int64
}

// Text builds a text entry with a fresh id.
func Text(author Author, text string) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Author:    author,
		Kind:      KindText,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// WidgetEntry builds an assistant widget entry whose id is the widget name.
func WidgetEntry(w Widget, payload any) Entry {
	return Entry{
		ID:        string(w),
		Author:    AuthorAssistant,
		Kind:      KindWidget,
		Widget:    w,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// EventType says what changed.
type EventType int

const (
	EventAppended EventType = iota
	EventRemoved
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventAppended:
		return "appended"
	case EventRemoved:
		return "removed"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

// Event is delivered to subscribers after each mutation. Entry is empty for
// EventReset.
type Event struct {
	Type  EventType
	Entry Entry
}

// Transcript is safe for concurrent use.
type Transcript struct {
	// notifyMu serialises mutation+notification so subscribers observe events
	// in mutation order. Subscribers must not mutate the transcript.
	notifyMu sync.Mutex
	mu       sync.RWMutex
	entries  []Entry
	subs     map[int]func(Event)
	nextSub  int
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{subs: make(map[int]func(Event))}
}

// Subscribe registers fn and returns a function that removes it.
func (t *Transcript) Subscribe(fn func(Event)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

// Append adds e at the end. Missing ids and timestamps are filled in.
// No deduplication happens: two entries may share an id.
func (t *Transcript) Append(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Kind == "" {
		e.Kind = KindText
	}

	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.entries = append(t.entries, e)
	subs := t.subscribers()
	t.mu.Unlock()

	notify(subs, Event{Type: EventAppended, Entry: e})
	return e
}

// RemoveByID removes the first entry with the given id and reports whether
// one was found.
func (t *Transcript) RemoveByID(id string) bool {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	idx := -1
	for i := range t.entries {
		if t.entries[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		return false
	}
	removed := t.entries[idx]
	t.entries = append(t.entries[:idx:idx], t.entries[idx+1:]...)
	subs := t.subscribers()
	t.mu.Unlock()

	notify(subs, Event{Type: EventRemoved, Entry: removed})
	return true
}

// Reset empties the log.
func (t *Transcript) Reset() {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	t.entries = nil
	subs := t.subscribers()
	t.mu.Unlock()

	notify(subs, Event{Type: EventReset})
}

// Entries returns a copy of the log in order.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Count returns how many entries carry id.
func (t *Transcript) Count(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, e := range t.entries {
		if e.ID == id {
			n++
		}
	}
	return n
}

// subscribers must be called with mu held.
func (t *Transcript) subscribers() []func(Event) {
	if len(t.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids) // registration order
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = t.subs[id]
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}
