package notetaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/git"
)

// --- Types ---

// App is an open notebook together with the store it owns.
type App = platform.App

// Option configures New and Init.
type Option = platform.Option

// Storage adapters.
const (
	AdapterFS     = platform.AdapterFS
	AdapterSQLite = platform.AdapterSQLite
	AdapterMemory = platform.AdapterMemory
)

// --- Configuration ---

// WithAdapter selects the storage adapter by name.
func WithAdapter(name string) Option { return platform.WithAdapter(name) }

// WithStore injects an already open store.
func WithStore(s core.Store) Option { return platform.WithStore(s) }

// WithLogger sets the logger of the store and the notebook.
func WithLogger(logger *slog.Logger) Option { return platform.WithLogger(logger) }

// WithVersioning records every write as a git commit (fs adapter).
func WithVersioning(enabled bool) Option { return platform.WithVersioning(enabled) }

// WithAutoInit creates the vault when it does not exist.
func WithAutoInit(auto bool) Option { return platform.WithAutoInit(auto) }

// WithMustExist fails when the vault does not exist.
func WithMustExist(must bool) Option { return platform.WithMustExist(must) }

// WithReadOnly rejects every write.
func WithReadOnly(enabled bool) Option { return platform.WithReadOnly(enabled) }

// WithDevSafety re-roots paths under the temp directory for go run and go test.
func WithDevSafety(enabled bool) Option { return platform.WithDevSafety(enabled) }

// WithForceTemp always re-roots the path under the temp directory.
func WithForceTemp(force bool) Option { return platform.WithForceTemp(force) }

// WithSystemDir names the hidden directory of the fs adapter.
func WithSystemDir(name string) Option { return platform.WithSystemDir(name) }

// WithProcessor sets the enrichment processor.
func WithProcessor(p enrich.Processor) Option { return platform.WithProcessor(p) }

// WithPersistDelay sets the save debounce window.
func WithPersistDelay(d time.Duration) Option { return platform.WithPersistDelay(d) }

// WithEnrichDelay sets the enrichment debounce window.
func WithEnrichDelay(d time.Duration) Option { return platform.WithEnrichDelay(d) }

// WithEventBuffer sets the buffer of each event subscription.
func WithEventBuffer(size int) Option { return platform.WithEventBuffer(size) }

// WithWatch reloads notes changed on disk by other programs (fs adapter).
func WithWatch(enabled bool) Option { return platform.WithWatch(enabled) }

// --- Factory ---

// New opens the store and a notebook on top of it.
func New(ctx context.Context, path string, opts ...Option) (*App, error) {
	return platform.New(ctx, path, opts...)
}

// Init opens and initializes the store only.
func Init(ctx context.Context, path string, opts ...Option) (core.Store, error) {
	return platform.Init(ctx, path, opts...)
}

// --- Safety & Utils ---

// ResolvePath returns the path a vault would be opened at.
func ResolvePath(userPath string, sandbox bool) string {
	return platform.ResolvePath(userPath, sandbox)
}

// IsDevRun reports whether the process runs under go run or go test.
func IsDevRun() bool { return platform.IsDevRun() }

// FindRoot looks upwards from startDir for a notebook root.
func FindRoot(startDir string) (string, error) { return platform.FindRoot(startDir) }

// --- Change reasons ---

// WithChangeReason sets the commit message used by versioned writes in ctx.
func WithChangeReason(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, core.ChangeReasonKey, git.AppendFooter(msg))
}

// FormatChangeReason builds a Conventional Commit message with the footer.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return git.FormatCommitMessage(ctype, scope, subject, body)
}
