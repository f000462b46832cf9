package platform

import (
	"context"
	"errors"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

// App is an open notebook together with the store it owns.
type App struct {
	*notebook.Notebook
	store core.Store
}

// New opens the store selected by opts and a notebook on top of it.
//
//	app, err := platform.New(ctx, "./notes", platform.WithAdapter("sqlite"))
func New(ctx context.Context, uri string, opts ...Option) (*App, error) {
	store, err := Init(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	nb, err := notebook.Open(ctx, store, o.notebook...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &App{Notebook: nb, store: store}, nil
}

// Close flushes the notebook and closes the store.
func (a *App) Close(ctx context.Context) error {
	return errors.Join(a.Notebook.Close(ctx), a.store.Close())
}
