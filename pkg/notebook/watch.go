package notebook

import (
	"context"
	"fmt"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/persist"
	"github.com/aretw0/notetaker/pkg/typed"
)

func watchable(s core.Store) (core.Watchable, bool) {
	if w, ok := s.(core.Watchable); ok {
		return w, true
	}
	if u, ok := s.(interface{ Unwrap() core.Store }); ok {
		return watchable(u.Unwrap())
	}
	return nil, false
}

// startWatch follows external changes to notes. Stores that cannot watch
// are ignored.
func (nb *Notebook) startWatch(ctx context.Context) error {
	w, ok := watchable(nb.store)
	if !ok {
		nb.logger.Debug("store does not support watching", "store", core.ComponentName(nb.store, "store"))
		return nil
	}
	watchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	events, err := w.Watch(watchCtx, core.CollectionNotes+"/**")
	if err != nil {
		cancel()
		return fmt.Errorf("failed to watch store: %w", err)
	}
	nb.stopWatch = cancel
	nb.watchDone = make(chan struct{})
	go func() {
		defer close(nb.watchDone)
		for ev := range events {
			nb.external(watchCtx, ev)
		}
	}()
	return nil
}

// external reconciles one externally changed note. A note with an edit
// waiting to be written keeps the in-memory version; the next write wins.
func (nb *Notebook) external(ctx context.Context, ev core.Event) {
	if ev.Collection != core.CollectionNotes || ev.Key == "" {
		return
	}
	if st := nb.scheduler.Status(ev.Key); st != persist.Idle {
		nb.logger.Debug("external change ignored", "id", ev.Key, "state", st.String())
		return
	}

	if ev.Type == core.EventDelete {
		nb.mu.Lock()
		delete(nb.notes, ev.Key)
		nb.mu.Unlock()
		nb.enricher.Forget(ev.Key)
	} else {
		n, err := typed.Notes.Get(ctx, nb.store, ev.Key)
		if err != nil {
			nb.logger.Warn("failed to reload note", "id", ev.Key, "error", err)
			return
		}
		nb.mu.Lock()
		nb.notes[n.ID] = n
		nb.mu.Unlock()
	}
	nb.publish(Event{Kind: EventExternalChange, Collection: core.CollectionNotes, Key: ev.Key, Status: string(ev.Type)})
}
