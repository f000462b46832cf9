package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
)

// Watch reports changes made to the vault by other processes (editors,
// git pull, sync tools). Matching records are reloaded into memory before
// the event is sent. pattern is a doublestar glob over "collection/key".
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}

	events := make(chan core.Event, 64)
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, pattern, events), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     10 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("fs-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			r.config.Logger.Warn("watcher stop failed", "error", err)
		}
		close(events)
	}()

	return events, nil
}

// Reconcile compares the files on disk with the in-memory records, loads
// every difference and returns one event per changed record.
func (r *Repository) Reconcile(ctx context.Context) ([]core.Event, error) {
	defer r.recordReconcile()

	onDisk := make(map[string]map[string]bool)
	var events []core.Event

	for _, collection := range core.Collections() {
		onDisk[collection] = make(map[string]bool)
		entries, err := os.ReadDir(filepath.Join(r.Path, collection))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if ctx.Err() != nil {
				return events, ctx.Err()
			}
			if entry.IsDir() {
				continue
			}
			rec, _, err := r.readEntry(collection, entry)
			if err != nil {
				r.reportError(err)
				continue
			}
			if rec.Key == "" {
				continue
			}
			onDisk[collection][rec.Key] = true
			if e, changed := r.syncRecord(ctx, rec); changed {
				events = append(events, e)
			}
		}

		recs, err := r.mem.List(ctx, collection)
		if err != nil {
			return events, err
		}
		for _, rec := range recs {
			if !onDisk[collection][rec.Key] {
				if e, changed := r.syncDelete(collection, rec.Key); changed {
					events = append(events, e)
				}
			}
		}
	}
	return events, nil
}

// reloadPath refreshes the record stored at an absolute path.
func (r *Repository) reloadPath(ctx context.Context, path string) (core.Event, bool, error) {
	collection, key, ok := r.resolvePath(path)
	if !ok {
		return core.Event{}, false, nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		e, changed := r.syncDelete(collection, key)
		return e, changed, nil
	}

	rec, err := r.readFile(collection, key)
	if err != nil {
		return core.Event{}, false, err
	}
	if info, err := os.Stat(path); err == nil {
		r.cache.Set(r.relPath(collection, key), &indexEntry{Collection: collection, Key: key, Data: rec.Data, LastModified: info.ModTime()})
	}
	e, changed := r.syncRecord(ctx, rec)
	return e, changed, nil
}

func (r *Repository) syncRecord(ctx context.Context, rec core.Record) (core.Event, bool) {
	eType := core.EventModify
	current, err := r.mem.Get(ctx, rec.Collection, rec.Key)
	if err != nil {
		eType = core.EventCreate
	} else if sameJSON(current.Data, rec.Data) {
		return core.Event{}, false
	}
	if err := r.mem.Load([]memory.Op{{Record: rec}}); err != nil {
		r.reportError(err)
		return core.Event{}, false
	}
	return core.Event{Type: eType, Collection: rec.Collection, Key: rec.Key, Timestamp: time.Now().Unix()}, true
}

func (r *Repository) syncDelete(collection, key string) (core.Event, bool) {
	if _, err := r.mem.Get(context.Background(), collection, key); err != nil {
		return core.Event{}, false
	}
	_ = r.mem.Load([]memory.Op{{Record: core.Record{Collection: collection, Key: key}, Delete: true}})
	r.cache.Delete(r.relPath(collection, key))
	return core.Event{Type: core.EventDelete, Collection: collection, Key: key, Timestamp: time.Now().Unix()}, true
}

// resolvePath maps an absolute file path to its record address.
func (r *Repository) resolvePath(path string) (collection, key string, ok bool) {
	rel, err := filepath.Rel(r.Path, path)
	if err != nil {
		return "", "", false
	}
	dir, name := filepath.Split(filepath.ToSlash(rel))
	collection = strings.TrimSuffix(dir, "/")
	if _, err := core.Indices(collection); err != nil {
		return "", "", false
	}
	ext := r.serializer(collection).Ext()
	if strings.HasPrefix(name, TempFilePrefix) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ext {
		return "", "", false
	}
	key, err = decodeKey(strings.TrimSuffix(name, ext))
	if err != nil || key == "" {
		return "", "", false
	}
	return collection, key, true
}

func (r *Repository) matches(pattern, collection, key string) bool {
	ok, err := doublestar.Match(pattern, collection+"/"+key)
	return err == nil && ok
}

func sameJSON(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// debouncer coalesces bursts of events per record into the last one.
type debouncer struct {
	delay   time.Duration
	mu      sync.Mutex
	timers  map[string]*time.Timer
	wg      sync.WaitGroup
	stopped bool
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) add(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.mu.Lock()
		if d.timers[key] == t {
			delete(d.timers, key)
		}
		d.mu.Unlock()
		fn()
	})
	d.timers[key] = t
}

// stopAndWait drops pending events and waits for running callbacks.
func (d *debouncer) stopAndWait(timeout time.Duration) {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
	}
}

// recursiveAdd registers the root and every collection directory.
func (r *Repository) recursiveAdd(w *fsnotify.Watcher) error {
	for _, collection := range core.Collections() {
		dir := filepath.Join(r.Path, collection)
		if !r.config.ReadOnly {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return nil
}
