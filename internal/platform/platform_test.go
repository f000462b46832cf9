package platform_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/notebook"
)

func TestInitAdapters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name    string
		uri     string
		adapter string
		check   func(t *testing.T, s core.Store)
	}{
		{"fs", filepath.Join(dir, "vault"), platform.AdapterFS, func(t *testing.T, s core.Store) {
			repo, ok := s.(*fs.Repository)
			require.True(t, ok, "got %T", s)
			assert.Equal(t, filepath.Join(dir, "vault"), repo.Path)
			assert.DirExists(t, filepath.Join(dir, "vault", core.CollectionNotes))
		}},
		{"sqlite directory", filepath.Join(dir, "db"), platform.AdapterSQLite, func(t *testing.T, s core.Store) {
			assert.FileExists(t, filepath.Join(dir, "db", platform.DatabaseFile))
		}},
		{"sqlite file", filepath.Join(dir, "one.db"), platform.AdapterSQLite, func(t *testing.T, s core.Store) {
			assert.FileExists(t, filepath.Join(dir, "one.db"))
		}},
		{"memory", "", platform.AdapterMemory, func(t *testing.T, s core.Store) {
			_, ok := s.(*memory.Store)
			assert.True(t, ok, "got %T", s)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := platform.Init(ctx, tt.uri, platform.WithAdapter(tt.adapter))
			require.NoError(t, err)
			defer s.Close()
			tt.check(t, s)
		})
	}

	_, err := platform.Init(ctx, dir, platform.WithAdapter("s3"))
	assert.Error(t, err)
}

func TestInitMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, err := platform.Init(context.Background(), missing, platform.WithMustExist(true))
	assert.Error(t, err)
	_, err = os.Stat(missing)
	assert.True(t, os.IsNotExist(err))
}

func TestInitReadOnly(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := platform.Init(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ro, err := platform.Init(ctx, dir, platform.WithReadOnly(true))
	require.NoError(t, err)
	defer ro.Close()
	err = ro.Put(ctx, core.Record{Collection: core.CollectionSettings, Key: core.SettingsID, Data: []byte(`{}`)})
	assert.True(t, errors.Is(err, core.ErrReadOnly))
}

func TestNewAppRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	app, err := platform.New(ctx, dir, platform.WithAdapter(platform.AdapterSQLite), platform.WithPersistDelay(time.Hour))
	require.NoError(t, err)
	n, err := app.Create(ctx, notebook.Draft{Title: "persisted"})
	require.NoError(t, err)
	_, err = app.SetContent(ctx, n.ID, "persisted", "pending edit")
	require.NoError(t, err)
	require.NoError(t, app.Close(ctx), "close flushes the pending edit")

	app, err = platform.New(ctx, dir, platform.WithAdapter(platform.AdapterSQLite))
	require.NoError(t, err)
	defer app.Close(ctx)
	got, err := app.Get(n.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending edit", got.Content)
}
