// Package fs stores records as files: Markdown notes with YAML frontmatter
// and JSON for everything else, optionally versioned with git.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/notetaker/pkg/adapters/memory"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/git"
)

// DefaultSystemDir holds the index cache, the journal and the git lock.
const DefaultSystemDir = ".notetaker"

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path         string
	SystemDir    string // defaults to DefaultSystemDir
	AutoInit     bool   // git init when Versioned and the path is not a repository
	MustExist    bool
	Versioned    bool // commit every transaction to git
	ReadOnly     bool // never write to disk, not even recovery or cache
	Logger       *slog.Logger
	ErrorHandler func(error)
	Serializers  map[string]Serializer // per collection, defaults to DefaultSerializers
}

// Repository implements core.Store on top of a directory. All records are
// held in memory and every committed transaction is written through to disk.
type Repository struct {
	Path   string
	config Config
	mem    *memory.Store
	git    *git.Client
	cache  *cache

	mu            sync.RWMutex
	watcherActive bool
	lastReconcile *time.Time
	lastCommit    *time.Time
	recovered     int
}

// NewRepository creates a new filesystem-backed repository.
// Initialize must be called before use.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.Serializers == nil {
		config.Serializers = DefaultSerializers()
	}

	r := &Repository{
		Path:   config.Path,
		config: config,
		git:    git.NewClient(config.Path, filepath.Join(config.SystemDir, "git.lock"), config.Logger),
		cache:  newCache(config.Path, config.SystemDir),
	}
	r.mem = memory.New(memory.Options{OnCommit: r.commit})
	return r
}

// Initialize prepares the directory, recovers an interrupted commit and
// loads every record into memory.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", r.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", r.Path)
		}
	}

	if !r.config.ReadOnly {
		for _, dir := range append(core.Collections(), r.config.SystemDir) {
			if err := os.MkdirAll(filepath.Join(r.Path, dir), 0755); err != nil {
				return fmt.Errorf("failed to create vault directory: %w", err)
			}
		}
		if r.config.Versioned {
			if err := r.initGit(); err != nil {
				return err
			}
		}
		if err := r.recover(ctx); err != nil {
			return err
		}
	} else if _, err := os.Stat(r.journalPath()); err == nil {
		r.config.Logger.Warn("vault has an interrupted commit; open it writable to recover", "path", r.Path)
	}

	return r.load()
}

func (r *Repository) initGit() error {
	if !git.IsInstalled() {
		return fmt.Errorf("git is not installed")
	}

	wasNewRepo := false
	if !r.git.IsRepo() {
		if !r.config.AutoInit {
			return fmt.Errorf("path is not a git repository: %s", r.Path)
		}
		if err := r.git.Init(); err != nil {
			return fmt.Errorf("failed to git init: %w", err)
		}
		wasNewRepo = true
	}

	mod, err := r.ensureIgnore()
	if err != nil {
		return fmt.Errorf("failed to ensure .gitignore: %w", err)
	}

	if mod && wasNewRepo {
		if err := r.git.Add(".gitignore"); err != nil {
			return fmt.Errorf("failed to add .gitignore: %w", err)
		}
		if err := r.git.Commit(git.FormatCommitMessage(git.CommitTypeChore, "", fmt.Sprintf("configure %s ignore", r.config.SystemDir), "")); err != nil {
			return fmt.Errorf("failed to commit .gitignore: %w", err)
		}
	}
	return nil
}

func (r *Repository) ensureIgnore() (bool, error) {
	ignorePath := filepath.Join(r.Path, ".gitignore")
	ignoreEntry := r.config.SystemDir + "/"

	content, err := os.ReadFile(ignorePath)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}

	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == ignoreEntry {
			return false, nil
		}
	}

	var sb strings.Builder
	sb.Write(content)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(ignoreEntry + "\n")

	return true, writeFileAtomic(ignorePath, []byte(sb.String()), 0644)
}

// load walks every collection directory and hydrates the in-memory store.
func (r *Repository) load() error {
	if err := r.cache.Load(); err != nil {
		r.config.Logger.Warn("ignoring unreadable index cache", "error", err)
	}

	seen := make(map[string]bool)
	var ops []memory.Op

	for _, collection := range core.Collections() {
		dir := filepath.Join(r.Path, collection)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			rec, relPath, err := r.readEntry(collection, entry)
			if err != nil {
				r.reportError(err)
				continue
			}
			if rec.Key == "" {
				continue
			}
			seen[relPath] = true
			ops = append(ops, memory.Op{Record: rec})
		}
	}

	if err := r.mem.Load(ops); err != nil {
		return err
	}

	r.cache.Prune(seen)
	if !r.config.ReadOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save index cache", "error", err)
		}
	}
	r.config.Logger.Debug("vault loaded", "path", r.Path, "records", len(ops))
	return nil
}

// readEntry decodes one file, using the cache when its mtime is unchanged.
// Files that do not belong to the store yield an empty record.
func (r *Repository) readEntry(collection string, entry fs.DirEntry) (core.Record, string, error) {
	name := entry.Name()
	ser := r.serializer(collection)
	if strings.HasPrefix(name, TempFilePrefix) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ser.Ext() {
		return core.Record{}, "", nil
	}
	key, err := decodeKey(strings.TrimSuffix(name, ser.Ext()))
	if err != nil {
		return core.Record{}, "", fmt.Errorf("invalid file name %s/%s: %w", collection, name, err)
	}

	relPath := filepath.ToSlash(filepath.Join(collection, name))
	info, err := entry.Info()
	if err != nil {
		return core.Record{}, "", err
	}

	if cached, ok := r.cache.Get(relPath, info.ModTime()); ok {
		return core.Record{Collection: collection, Key: key, Data: cached.Data}, relPath, nil
	}

	rec, err := r.readFile(collection, key)
	if err != nil {
		return core.Record{}, "", err
	}
	r.cache.Set(relPath, &indexEntry{Collection: collection, Key: key, Data: rec.Data, LastModified: info.ModTime()})
	return rec, relPath, nil
}

func (r *Repository) readFile(collection, key string) (core.Record, error) {
	raw, err := os.ReadFile(r.filePath(collection, key))
	if err != nil {
		return core.Record{}, err
	}
	data, err := r.serializer(collection).Decode(raw)
	if err != nil {
		return core.Record{}, fmt.Errorf("failed to decode %s/%s: %w", collection, key, err)
	}
	return core.Record{Collection: collection, Key: key, Data: data}, nil
}

// Get retrieves a record by key.
func (r *Repository) Get(ctx context.Context, collection, key string) (core.Record, error) {
	return r.mem.Get(ctx, collection, key)
}

// List returns the records of a collection ordered by key.
func (r *Repository) List(ctx context.Context, collection string) ([]core.Record, error) {
	return r.mem.List(ctx, collection)
}

// ScanByIndex returns the records whose index equals value.
func (r *Repository) ScanByIndex(ctx context.Context, collection, index, value string) ([]core.Record, error) {
	return r.mem.ScanByIndex(ctx, collection, index, value)
}

// Put writes a single record.
func (r *Repository) Put(ctx context.Context, rec core.Record) error {
	return r.mem.Put(ctx, rec)
}

// Delete removes a single record.
func (r *Repository) Delete(ctx context.Context, collection, key string) error {
	return r.mem.Delete(ctx, collection, key)
}

// BulkPut writes all records in one commit.
func (r *Repository) BulkPut(ctx context.Context, recs []core.Record) error {
	return r.mem.BulkPut(ctx, recs)
}

// Transact runs fn and writes its changes to disk all-or-nothing.
func (r *Repository) Transact(ctx context.Context, fn func(tx core.Tx) error) error {
	return r.mem.Transact(ctx, fn)
}

// Close releases the in-memory copy and persists the index cache.
func (r *Repository) Close() error {
	if !r.config.ReadOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save index cache", "error", err)
		}
	}
	return r.mem.Close()
}

func (r *Repository) serializer(collection string) Serializer {
	if s, ok := r.config.Serializers[collection]; ok {
		return s
	}
	return NewJSONSerializer()
}

func (r *Repository) relPath(collection, key string) string {
	return collection + "/" + encodeKey(key) + r.serializer(collection).Ext()
}

func (r *Repository) filePath(collection, key string) string {
	return filepath.Join(r.Path, filepath.FromSlash(r.relPath(collection, key)))
}

func (r *Repository) journalPath() string {
	return filepath.Join(r.Path, r.config.SystemDir, "journal.json")
}

func (r *Repository) reportError(err error) {
	if r.config.ErrorHandler != nil {
		r.config.ErrorHandler(err)
		return
	}
	r.config.Logger.Warn("skipping unreadable file", "error", err)
}

// encodeKey makes a key safe to use as a file name on every platform.
func encodeKey(key string) string {
	return url.QueryEscape(key)
}

func decodeKey(name string) (string, error) {
	return url.QueryUnescape(name)
}

var _ core.Store = (*Repository)(nil)
var _ core.Watchable = (*Repository)(nil)
