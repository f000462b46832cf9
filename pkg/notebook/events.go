package notebook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// EventKind names what happened.
type EventKind string

const (
	EventCreated         EventKind = "created"
	EventUpdated         EventKind = "updated"
	EventSaved           EventKind = "saved"
	EventSaveFailed      EventKind = "save_failed"
	EventDeleted         EventKind = "deleted"
	EventEnrichment      EventKind = "enrichment"
	EventExternalChange  EventKind = "external_change"
	EventTaxonomyChanged EventKind = "taxonomy_changed"
	EventSettingsChanged EventKind = "settings_changed"
	EventImported        EventKind = "imported"
)

// Event is published to subscribers.
type Event struct {
	Kind       EventKind `json:"kind"`
	Collection string    `json:"collection"`
	Key        string    `json:"key,omitempty"`
	Status     string    `json:"status,omitempty"`
	Error      string    `json:"error,omitempty"`
	Time       time.Time `json:"time"`
}

// Path is the string subscription patterns match against.
func (e Event) Path() string {
	if e.Key == "" {
		return e.Collection
	}
	return e.Collection + "/" + e.Key
}

type subscriber struct {
	pattern string
	ch      chan Event
}

// broker fans events out to subscribers without ever blocking the
// publisher; a full subscriber loses the event.
type broker struct {
	buffer int
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newBroker(buffer int, logger *slog.Logger) *broker {
	if buffer <= 0 {
		buffer = 100
	}
	return &broker{buffer: buffer, logger: logger, subs: make(map[*subscriber]struct{})}
}

func (b *broker) subscribe(ctx context.Context, pattern string) (<-chan Event, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, doublestar.ErrBadPattern
	}

	sub := &subscriber{pattern: pattern, ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		ch := make(chan Event)
		close(ch)
		return ch, nil
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(sub)
	}()
	return sub.ch, nil
}

func (b *broker) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; ok {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *broker) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	path := ev.Path()

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		if ok, _ := doublestar.Match(sub.pattern, path); !ok {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("subscriber is full, dropping event", "kind", ev.Kind, "key", ev.Key)
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
}

func (b *broker) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
