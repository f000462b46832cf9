// Package notebook is the application service of the note-taking core.
//
// A Notebook keeps every note in memory and treats that copy as the UI
// state: edits land there first and reach the store through the debounced
// persistence scheduler. Writes that change a note's title or content
// schedule an enrichment cycle, whose result is merged back into both the
// store and the in-memory copy.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/persist"
	"github.com/aretw0/notetaker/pkg/taxonomy"
	"github.com/aretw0/notetaker/pkg/typed"
)

// Notebook is the note-taking service.
type Notebook struct {
	store     core.Store
	resolver  *taxonomy.Resolver
	scheduler *persist.Scheduler
	enricher  *enrich.Orchestrator
	processor enrich.Processor
	events    *broker
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu    sync.RWMutex
	notes map[string]core.Note

	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
}

type options struct {
	logger       *slog.Logger
	now          func() time.Time
	newID        func() string
	persistDelay time.Duration
	enrichDelay  time.Duration
	processor    enrich.Processor
	eventBuffer  int
	watch        bool
}

// Option configures a Notebook.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces the uuid generator for notes and categories.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithPersistDelay sets the quiet period before an edit is written.
func WithPersistDelay(d time.Duration) Option {
	return func(o *options) { o.persistDelay = d }
}

// WithEnrichDelay sets the quiet period before a note is enriched.
func WithEnrichDelay(d time.Duration) Option {
	return func(o *options) { o.enrichDelay = d }
}

// WithProcessor sets the external task processor. Without one, every AI
// feature fails with core.ErrConfigurationRequired.
func WithProcessor(p enrich.Processor) Option {
	return func(o *options) { o.processor = p }
}

// WithEventBuffer sets the per-subscriber buffer. Zero means 100.
func WithEventBuffer(size int) Option {
	return func(o *options) { o.eventBuffer = size }
}

// WithWatch reloads notes changed by other processes when the store
// supports it.
func WithWatch(enabled bool) Option {
	return func(o *options) { o.watch = enabled }
}

// Open loads every note of store into memory and starts the pipelines.
// The store must already be initialized.
func Open(ctx context.Context, store core.Store, opts ...Option) (*Notebook, error) {
	o := &options{
		now:          time.Now,
		newID:        uuid.NewString,
		persistDelay: persist.DefaultDelay,
		enrichDelay:  enrich.DefaultDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.processor == nil {
		o.processor = unconfigured{}
	}

	nb := &Notebook{
		store:     store,
		processor: o.processor,
		events:    newBroker(o.eventBuffer, o.logger),
		logger:    o.logger,
		now:       o.now,
		newID:     o.newID,
		notes:     make(map[string]core.Note),
	}
	nb.resolver = taxonomy.New(store, taxonomy.WithIDGenerator(o.newID), taxonomy.WithLogger(o.logger))
	nb.scheduler = persist.New(nb.write,
		persist.WithDelay(o.persistDelay),
		persist.WithLogger(o.logger),
		persist.WithErrorHandler(nb.writeFailed),
	)
	nb.enricher = enrich.New(target{nb: nb}, o.processor, nb.resolver,
		enrich.WithDelay(o.enrichDelay),
		enrich.WithLogger(o.logger),
		enrich.WithClock(o.now),
		enrich.WithObserver(nb.enrichmentChanged),
	)

	if err := nb.reload(ctx); err != nil {
		return nil, err
	}
	if o.watch {
		if err := nb.startWatch(ctx); err != nil {
			return nil, err
		}
	}
	nb.logger.Debug("notebook opened", "notes", len(nb.notes), "store", core.ComponentName(store, "store"))
	return nb, nil
}

// reload replaces the in-memory notes with the persisted ones.
func (nb *Notebook) reload(ctx context.Context) error {
	notes, err := typed.Notes.List(ctx, nb.store)
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}
	cache := make(map[string]core.Note, len(notes))
	for _, n := range notes {
		cache[n.ID] = n
	}
	nb.mu.Lock()
	nb.notes = cache
	nb.mu.Unlock()
	return nil
}

// Close flushes pending edits, waits for in-flight enrichment and stops
// the watcher. The store is left open.
func (nb *Notebook) Close(ctx context.Context) error {
	var err error
	nb.closeOnce.Do(func() {
		if nb.stopWatch != nil {
			nb.stopWatch()
			<-nb.watchDone
		}
		err = errors.Join(
			nb.scheduler.Close(ctx),
			nb.enricher.Close(ctx),
		)
		nb.events.close()
	})
	return err
}

// Store returns the underlying store.
func (nb *Notebook) Store() core.Store { return nb.store }

// Taxonomy returns the category resolver.
func (nb *Notebook) Taxonomy() *taxonomy.Resolver { return nb.resolver }

// Subscribe streams events whose path ("notes/<id>", "projects", ...)
// matches pattern. The channel closes when ctx ends or the notebook closes.
func (nb *Notebook) Subscribe(ctx context.Context, pattern string) (<-chan Event, error) {
	return nb.events.subscribe(ctx, pattern)
}

func (nb *Notebook) publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = nb.now()
	}
	nb.events.publish(ev)
}

// Get returns the in-memory note.
func (nb *Notebook) Get(id string) (core.Note, error) {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	n, ok := nb.notes[id]
	if !ok {
		return core.Note{}, core.NotFound(core.CollectionNotes, id)
	}
	return n.Clone(), nil
}

// Filter selects notes in List. Zero values match everything except
// archived notes and templates.
type Filter struct {
	ProjectID string
	SubjectID string
	Tag       string
	Query     string // case-insensitive match on title, content or summary
	Archived  bool   // only archived notes
	Templates bool   // only templates
}

func (f Filter) match(n core.Note) bool {
	if n.IsArchived != f.Archived || n.IsTemplate != f.Templates {
		return false
	}
	if f.ProjectID != "" && n.ProjectID != f.ProjectID {
		return false
	}
	if f.SubjectID != "" && n.SubjectID != f.SubjectID {
		return false
	}
	if f.Tag != "" && !slices.ContainsFunc(n.Tags, func(t string) bool { return strings.EqualFold(t, f.Tag) }) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		hay := strings.ToLower(n.Title + "\n" + n.Content + "\n" + n.Summary)
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

// List returns the matching notes, most recently updated first.
func (nb *Notebook) List(f Filter) []core.Note {
	nb.mu.RLock()
	out := make([]core.Note, 0, len(nb.notes))
	for _, n := range nb.notes {
		if f.match(n) {
			out = append(out, n.Clone())
		}
	}
	nb.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.Note) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Templates returns every template note.
func (nb *Notebook) Templates() []core.Note {
	return nb.List(Filter{Templates: true})
}

func (nb *Notebook) all() []core.Note {
	nb.mu.RLock()
	defer nb.mu.RUnlock()
	out := make([]core.Note, 0, len(nb.notes))
	for _, n := range nb.notes {
		out = append(out, n.Clone())
	}
	return out
}

// SaveStatus reports the persistence state of a note.
func (nb *Notebook) SaveStatus(id string) (persist.State, error) {
	return nb.scheduler.Status(id), nb.scheduler.Err(id)
}

// Flush writes pending edits of note id now.
func (nb *Notebook) Flush(ctx context.Context, id string) error {
	return nb.scheduler.Flush(ctx, id)
}

// FlushAll writes every pending edit now.
func (nb *Notebook) FlushAll(ctx context.Context) error {
	return nb.scheduler.FlushAll(ctx)
}

// NotebookState exposes the service internals for observability.
type NotebookState struct {
	Notes       int    `json:"notes"`
	Subscribers int    `json:"subscribers"`
	Watching    bool   `json:"watching"`
	Store       string `json:"store"`
	StoreState  any    `json:"store_state,omitempty"`
	Persistence any    `json:"persistence"`
	Enrichment  any    `json:"enrichment"`
	Taxonomy    any    `json:"taxonomy"`
}

// State implements introspection.Introspectable.
func (nb *Notebook) State() any {
	nb.mu.RLock()
	count := len(nb.notes)
	nb.mu.RUnlock()
	return NotebookState{
		Notes:       count,
		Subscribers: nb.events.len(),
		Watching:    nb.stopWatch != nil,
		Store:       core.ComponentName(nb.store, "store"),
		StoreState:  core.StateOf(nb.store),
		Persistence: nb.scheduler.State(),
		Enrichment:  nb.enricher.State(),
		Taxonomy:    nb.resolver.Stats(),
	}
}

func (nb *Notebook) ComponentType() string { return "notebook" }

var _ introspection.Introspectable = (*Notebook)(nil)
var _ introspection.Component = (*Notebook)(nil)

// unconfigured is the processor used when none is set.
type unconfigured struct{}

func (unconfigured) Process(ctx context.Context, task enrich.Task, _ core.Settings, _ []core.Project) (enrich.Result, error) {
	return enrich.Result{}, &core.OpError{Op: string(task.Kind), Msg: "no AI provider is configured", Err: core.ErrConfigurationRequired}
}
