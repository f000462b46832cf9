// Package persist coalesces rapid edits into debounced durable writes.
//
// Every key owns an entry in a timer table. An entry is armed by Schedule,
// fires after a quiet period and runs the write function, which must read
// the latest value itself. At most one write per key runs at a time; an
// edit that arrives meanwhile is remembered and produces exactly one
// follow-up write.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/notetaker/pkg/core"
)

// DefaultDelay is the quiet period used when none is configured.
const DefaultDelay = 1500 * time.Millisecond

// WriteFunc durably persists the current value of key.
type WriteFunc func(ctx context.Context, key string) error

// State is the scheduling state of a key.
type State int

const (
	Idle State = iota
	Scheduled
	InFlight
	InFlightPending
	Dirty
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case InFlight:
		return "in_flight"
	case InFlightPending:
		return "in_flight_pending"
	case Dirty:
		return "dirty"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type entry struct {
	timer   *time.Timer
	gen     uint64
	armed   bool
	running bool
	pending bool
	dirty   bool
	lastErr error
	done    chan struct{}
}

// Scheduler is the debounced persistence scheduler.
type Scheduler struct {
	write     WriteFunc
	delay     time.Duration
	logger    *slog.Logger
	onError   func(key string, err error)
	onWritten func(key string)

	mu       sync.Mutex
	entries  map[string]*entry
	closed   bool
	timers   sync.WaitGroup
	writes   int
	failures int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay sets the quiet period.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithErrorHandler is called for every failed background write.
func WithErrorHandler(fn func(key string, err error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// WithWrittenHandler is called after every successful write.
func WithWrittenHandler(fn func(key string)) Option {
	return func(s *Scheduler) { s.onWritten = fn }
}

// New creates a scheduler around write.
func New(write WriteFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		write:   write,
		delay:   DefaultDelay,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Delay returns the configured quiet period.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Schedule requests a write of key after the quiet period, restarting the
// period if one was already pending.
func (s *Scheduler) Schedule(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return core.ErrClosed
	}
	e := s.entry(key)
	if e.running {
		e.pending = true
		return nil
	}
	s.arm(key, e)
	return nil
}

// entry returns the table row of key, creating it. Caller holds s.mu.
func (s *Scheduler) entry(key string) *entry {
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e
}

// arm (re)starts the timer of e. Caller holds s.mu.
func (s *Scheduler) arm(key string, e *entry) {
	s.disarm(e)
	e.gen++
	gen := e.gen
	e.armed = true
	s.timers.Add(1)
	e.timer = time.AfterFunc(s.delay, func() { s.fire(key, gen) })
}

// disarm stops a pending timer. Caller holds s.mu.
func (s *Scheduler) disarm(e *entry) {
	if e.timer != nil && e.timer.Stop() {
		s.timers.Done()
	}
	e.timer = nil
	e.armed = false
}

func (s *Scheduler) fire(key string, gen uint64) {
	defer s.timers.Done()

	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok || !e.armed || e.gen != gen {
		s.mu.Unlock()
		return
	}
	e.armed = false
	e.timer = nil
	if e.running {
		e.pending = true
		s.mu.Unlock()
		return
	}
	s.begin(e)
	s.mu.Unlock()

	err := s.run(context.Background(), key)
	s.finish(key, e, true, err)
	if err != nil && s.onError != nil {
		s.onError(key, err)
	}
}

// begin marks e as in flight. Caller holds s.mu.
func (s *Scheduler) begin(e *entry) {
	e.running = true
	e.done = make(chan struct{})
}

func (s *Scheduler) run(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("write %s panicked: %v", key, r)
		}
		if err != nil {
			s.logger.Warn("write failed", "key", key, "error", err, "duration", time.Since(start))
		} else {
			s.logger.Debug("written", "key", key, "duration", time.Since(start))
		}
	}()
	return s.write(ctx, key)
}

// finish leaves the in-flight state. wrote is false for Exclusive sections.
func (s *Scheduler) finish(key string, e *entry, wrote bool, err error) {
	s.mu.Lock()
	e.running = false
	close(e.done)
	e.done = nil

	if wrote {
		if err != nil {
			e.dirty = true
			e.lastErr = err
			s.failures++
		} else {
			e.dirty = false
			e.lastErr = nil
			s.writes++
		}
	}
	if e.pending {
		e.pending = false
		s.arm(key, e)
	}
	if !e.armed && !e.dirty && s.entries[key] == e {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if wrote && err == nil && s.onWritten != nil {
		s.onWritten(key)
	}
}

// Flush writes key now if it has a pending or failed write, waiting for any
// write already in flight. It returns the error of the write it ran.
func (s *Scheduler) Flush(ctx context.Context, key string) error {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			s.mu.Unlock()
			return nil
		}
		if e.running {
			done := e.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !e.armed && !e.dirty {
			s.mu.Unlock()
			return nil
		}
		s.disarm(e)
		s.begin(e)
		s.mu.Unlock()

		err := s.run(ctx, key)
		s.finish(key, e, true, err)
		if err != nil {
			return err
		}
	}
}

// FlushAll flushes every key that has work outstanding.
func (s *Scheduler) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	s.mu.Unlock()

	var errs []error
	for _, key := range keys {
		if err := s.Flush(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Exclusive runs fn while holding the in-flight slot of key, so no write of
// key overlaps it. A timer that fires meanwhile becomes a follow-up write.
func (s *Scheduler) Exclusive(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	e, err := s.acquire(ctx, key)
	if err != nil {
		return err
	}
	defer s.finish(key, e, false, nil)
	return fn(ctx)
}

func (s *Scheduler) acquire(ctx context.Context, key string) (*entry, error) {
	for {
		s.mu.Lock()
		e := s.entry(key)
		if !e.running {
			s.begin(e)
			s.mu.Unlock()
			return e, nil
		}
		done := e.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Forget drops any pending write of key after the in-flight one, if any,
// completes.
func (s *Scheduler) Forget(ctx context.Context, key string) error {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			s.mu.Unlock()
			return nil
		}
		if e.running {
			done := e.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		s.disarm(e)
		delete(s.entries, key)
		s.mu.Unlock()
		return nil
	}
}

// Status reports the scheduling state of key.
func (s *Scheduler) Status(key string) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateOf(s.entries[key])
}

func (s *Scheduler) stateOf(e *entry) State {
	switch {
	case e == nil:
		return Idle
	case e.running && (e.pending || e.armed):
		return InFlightPending
	case e.running:
		return InFlight
	case e.armed:
		return Scheduled
	case e.dirty:
		return Dirty
	}
	return Idle
}

// Err returns the error of the last failed write of key, if it is still dirty.
func (s *Scheduler) Err(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.dirty {
		return e.lastErr
	}
	return nil
}

// Close refuses new work, flushes everything outstanding and waits for
// background writes.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	err := s.FlushAll(ctx)

	done := make(chan struct{})
	go func() {
		s.timers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// SchedulerState exposes the timer table for observability.
type SchedulerState struct {
	Delay    string            `json:"delay"`
	Entries  map[string]string `json:"entries"`
	Writes   int               `json:"writes"`
	Failures int               `json:"failures"`
	Closed   bool              `json:"closed"`
}

// State implements introspection.Introspectable.
func (s *Scheduler) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make(map[string]string, len(s.entries))
	for key, e := range s.entries {
		entries[key] = s.stateOf(e).String()
	}
	return SchedulerState{
		Delay:    s.delay.String(),
		Entries:  entries,
		Writes:   s.writes,
		Failures: s.failures,
		Closed:   s.closed,
	}
}

func (s *Scheduler) ComponentType() string { return "persist-scheduler" }

var _ introspection.Introspectable = (*Scheduler)(nil)
var _ introspection.Component = (*Scheduler)(nil)
