package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/taxonomy"
)

// DefaultDelay is the quiet period before a note is submitted.
const DefaultDelay = 3 * time.Second

// Status is the per-note enrichment state. Merged and Failed are resting
// states that behave like Idle for the next edit.
type Status int

const (
	Idle Status = iota
	Scheduled
	InFlight
	Merged
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case InFlight:
		return "in_flight"
	case Merged:
		return "merged"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Event reports a state change of one note.
type Event struct {
	NoteID string
	Status Status
	Err    error
	Note   *core.Note // set when Status is Merged
}

// errSkipped ends a cycle without a result, e.g. the note became empty.
var errSkipped = errors.New("enrichment skipped")

type machine struct {
	status  Status
	timer   *time.Timer
	gen     uint64
	rerun   bool
	dropped bool // forgotten while in flight
	err     error
	changed time.Time
	done    chan struct{}
}

// Orchestrator owns one enrichment state machine per note.
type Orchestrator struct {
	target    Target
	processor Processor
	resolver  *taxonomy.Resolver
	delay     time.Duration
	now       func() time.Time
	logger    *slog.Logger
	observers []func(Event)

	mu       sync.Mutex
	machines map[string]*machine
	closed   bool
	wg       sync.WaitGroup
	merged   int
	failed   int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithDelay(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.delay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithObserver registers fn for every state change. fn must not block.
func WithObserver(fn func(Event)) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, fn) }
}

// New creates an orchestrator.
func New(target Target, processor Processor, resolver *taxonomy.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		target:    target,
		processor: processor,
		resolver:  resolver,
		delay:     DefaultDelay,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
		machines:  make(map[string]*machine),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Notify tells the orchestrator that a write changed the title or content
// of note id. A missing credential fails the cycle immediately.
func (o *Orchestrator) Notify(ctx context.Context, id string) error {
	note, err := o.target.Load(ctx, id)
	if err != nil {
		return err
	}
	if note.DisableAiSync {
		return nil
	}
	settings, err := o.target.Settings(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return core.ErrClosed
	}
	m := o.machine(id)
	if !settings.HasCredential() {
		if m.status == InFlight {
			o.mu.Unlock()
			return nil
		}
		cfgErr := configurationRequired(id)
		o.disarm(m)
		o.set(m, Failed, cfgErr)
		o.mu.Unlock()
		o.emit(Event{NoteID: id, Status: Failed, Err: cfgErr})
		return cfgErr
	}
	if m.status == InFlight {
		m.rerun = true
		o.mu.Unlock()
		return nil
	}
	o.arm(id, m)
	o.mu.Unlock()
	o.emit(Event{NoteID: id, Status: Scheduled})
	return nil
}

func configurationRequired(id string) error {
	return &core.OpError{Op: "enrich", Collection: core.CollectionNotes, Key: id, Err: core.ErrConfigurationRequired}
}

// machine returns the state machine of id, creating it. Caller holds o.mu.
func (o *Orchestrator) machine(id string) *machine {
	m, ok := o.machines[id]
	if !ok {
		m = &machine{}
		o.machines[id] = m
	}
	return m
}

func (o *Orchestrator) set(m *machine, s Status, err error) {
	m.status = s
	m.err = err
	m.changed = o.now()
}

// arm (re)starts the debounce of m. Caller holds o.mu.
func (o *Orchestrator) arm(id string, m *machine) {
	o.disarm(m)
	m.gen++
	gen := m.gen
	o.set(m, Scheduled, nil)
	o.wg.Add(1)
	m.timer = time.AfterFunc(o.delay, func() { o.fire(id, gen) })
}

// disarm stops the debounce of m. Caller holds o.mu.
func (o *Orchestrator) disarm(m *machine) {
	if m.timer != nil && m.timer.Stop() {
		o.wg.Done()
	}
	m.timer = nil
	if m.status == Scheduled {
		o.set(m, Idle, nil)
	}
}

func (o *Orchestrator) fire(id string, gen uint64) {
	defer o.wg.Done()

	o.mu.Lock()
	m, ok := o.machines[id]
	if !ok || m.gen != gen || m.status != Scheduled || o.closed {
		o.mu.Unlock()
		return
	}
	m.timer = nil
	o.begin(m)
	o.mu.Unlock()
	o.emit(Event{NoteID: id, Status: InFlight})

	note, err := o.cycle(context.Background(), id, false)
	o.finish(id, m, note, err)
}

// begin moves m to InFlight. Caller holds o.mu.
func (o *Orchestrator) begin(m *machine) {
	o.set(m, InFlight, nil)
	m.done = make(chan struct{})
}

func (o *Orchestrator) finish(id string, m *machine, note core.Note, err error) {
	var ev Event
	o.mu.Lock()
	switch {
	case errors.Is(err, errSkipped):
		o.set(m, Idle, nil)
		ev = Event{NoteID: id, Status: Idle}
	case err != nil:
		o.set(m, Failed, err)
		o.failed++
		ev = Event{NoteID: id, Status: Failed, Err: err}
	default:
		o.set(m, Merged, nil)
		o.merged++
		ev = Event{NoteID: id, Status: Merged, Note: &note}
	}
	close(m.done)
	m.done = nil
	rerun := m.rerun && !o.closed && !m.dropped
	m.rerun = false
	if rerun {
		o.arm(id, m)
	}
	o.mu.Unlock()

	if err != nil && !errors.Is(err, errSkipped) {
		o.logger.Warn("enrichment failed", "id", id, "error", err)
	} else if err == nil {
		o.logger.Debug("enrichment merged", "id", id)
	}
	o.emit(ev)
	if rerun {
		o.emit(Event{NoteID: id, Status: Scheduled})
	}
}

// cycle submits the persisted note and merges the result. Manual runs
// ignore the opt-out flag.
func (o *Orchestrator) cycle(ctx context.Context, id string, manual bool) (merged core.Note, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment of %s panicked: %v", id, r)
		}
	}()

	settings, err := o.target.Settings(ctx)
	if err != nil {
		return core.Note{}, err
	}
	if !settings.HasCredential() {
		return core.Note{}, configurationRequired(id)
	}
	note, err := o.target.Load(ctx, id)
	if err != nil {
		return core.Note{}, err
	}
	if strings.TrimSpace(note.Content) == "" {
		if manual {
			return core.Note{}, &core.OpError{Op: "enrich", Collection: core.CollectionNotes, Key: id, Msg: "the note has no content to analyze"}
		}
		return core.Note{}, errSkipped
	}
	if note.DisableAiSync && !manual {
		return core.Note{}, errSkipped
	}
	projects, err := o.target.Projects(ctx)
	if err != nil {
		return core.Note{}, err
	}

	task := Task{Kind: TaskFullAnalysis, Note: &note}
	res, err := o.processor.Process(ctx, task, settings, projects)
	if err != nil {
		return core.Note{}, err
	}
	if err := Validate(task.Kind, res); err != nil {
		return core.Note{}, err
	}

	placement, err := o.resolver.Resolve(ctx, res.Organized.Project, res.Organized.Subject, "")
	if err != nil {
		return core.Note{}, err
	}
	org := *res.Organized
	now := o.now()
	return o.target.Commit(ctx, id, func(current core.Note) core.Note {
		return Apply(current, org, placement, now)
	})
}

// Run enriches note id now and waits for the merge. A scheduled cycle is
// absorbed; an in-flight one is awaited first.
func (o *Orchestrator) Run(ctx context.Context, id string) (core.Note, error) {
	var m *machine
	for m == nil {
		o.mu.Lock()
		if o.closed {
			o.mu.Unlock()
			return core.Note{}, core.ErrClosed
		}
		cur := o.machine(id)
		if cur.status != InFlight {
			o.disarm(cur)
			o.begin(cur)
			o.wg.Add(1)
			m = cur
			o.mu.Unlock()
			break
		}
		done := cur.done
		o.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return core.Note{}, ctx.Err()
		}
	}
	defer o.wg.Done()

	o.emit(Event{NoteID: id, Status: InFlight})
	note, err := o.cycle(ctx, id, true)
	o.finish(id, m, note, err)
	return note, err
}

// Status returns the state of note id and the error of a failed cycle.
func (o *Orchestrator) Status(id string) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.machines[id]
	if !ok {
		return Idle, nil
	}
	return m.status, m.err
}

// Forget drops the machine of a deleted note. An in-flight cycle is left
// to finish; its merge fails because the note is gone, and its outcome is
// no longer tracked.
func (o *Orchestrator) Forget(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	m, ok := o.machines[id]
	if !ok {
		return
	}
	if m.status == InFlight {
		m.rerun = false
		m.dropped = true
	} else {
		o.disarm(m)
	}
	delete(o.machines, id)
}

// Close drops scheduled cycles and waits for in-flight ones.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	for _, m := range o.machines {
		o.disarm(m)
		m.rerun = false
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) emit(ev Event) {
	for _, fn := range o.observers {
		fn(ev)
	}
}

// OrchestratorState exposes the state machines for observability.
type OrchestratorState struct {
	Delay    string            `json:"delay"`
	Machines map[string]string `json:"machines"`
	Merged   int               `json:"merged"`
	Failed   int               `json:"failed"`
	Closed   bool              `json:"closed"`
}

// State implements introspection.Introspectable.
func (o *Orchestrator) State() any {
	o.mu.Lock()
	defer o.mu.Unlock()
	machines := make(map[string]string, len(o.machines))
	for id, m := range o.machines {
		machines[id] = m.status.String()
	}
	return OrchestratorState{
		Delay:    o.delay.String(),
		Machines: machines,
		Merged:   o.merged,
		Failed:   o.failed,
		Closed:   o.closed,
	}
}

func (o *Orchestrator) ComponentType() string { return "enrich-orchestrator" }

var _ introspection.Introspectable = (*Orchestrator)(nil)
var _ introspection.Component = (*Orchestrator)(nil)
