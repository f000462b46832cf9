package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/notetaker/pkg/adapters/fs"
	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/adapters/sqlite"
	"github.com/aretw0/notetaker/pkg/core"
)

// DatabaseFile is the sqlite file created when the uri is a directory.
const DatabaseFile = "notetaker.db"

// Init opens and initializes the store selected by opts. The uri is
// adapter-specific: a directory for fs, a file or directory for sqlite,
// ignored for memory.
func Init(ctx context.Context, uri string, opts ...Option) (core.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	store := o.store
	if store == nil {
		var err error
		switch o.adapter {
		case AdapterFS, "":
			store = newFS(uri, o)
		case AdapterSQLite:
			store, err = newSQLite(uri, o)
		case AdapterMemory:
			store = memory.New(memory.Options{})
		default:
			return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := store.Initialize(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if o.readOnly {
		store = core.ReadOnly(store)
	}
	o.logger.Debug("store ready", "adapter", core.ComponentName(store, o.adapter), "read_only", o.readOnly)
	return store, nil
}

// resolve applies the dev sandbox to a filesystem path.
func resolve(uri string, o *options) string {
	bypass := o.readOnly || !o.devSafety
	sandbox := o.forceTemp || (IsDevRun() && !bypass)
	path := ResolvePath(uri, sandbox)

	if IsDevRun() {
		switch {
		case o.readOnly:
			o.logger.Debug("read-only mode, dev sandbox bypassed", "path", path)
		case bypass:
			o.logger.Warn("dev sandbox disabled", "path", path)
		default:
			o.logger.Debug("dev sandbox enabled", "path", path)
		}
	}
	if sandbox && path != uri {
		o.logger.Warn("running in sandbox", "original_path", uri, "resolved_path", path)
	}
	return path
}

func newFS(uri string, o *options) core.Store {
	return fs.NewRepository(fs.Config{
		Path:         resolve(uri, o),
		SystemDir:    o.systemDir,
		AutoInit:     o.autoInit,
		MustExist:    o.mustExist,
		Versioned:    o.versioned,
		ReadOnly:     o.readOnly,
		Logger:       o.logger,
		ErrorHandler: o.errorHandler,
	})
}

func newSQLite(uri string, o *options) (core.Store, error) {
	path := uri
	if path != ":memory:" {
		path = resolve(uri, o)
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".db" && ext != ".sqlite" && ext != ".sqlite3" {
			path = filepath.Join(path, DatabaseFile)
		}
		if o.mustExist || o.readOnly {
			if _, err := os.Stat(path); err != nil {
				return nil, fmt.Errorf("database does not exist: %s", path)
			}
		} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return sqlite.Open(sqlite.Config{Path: path, Logger: o.logger})
}
