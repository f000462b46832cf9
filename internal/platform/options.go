package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/notebook"
)

// Adapter names.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
	AdapterMemory = "memory"
)

type options struct {
	store        core.Store
	adapter      string
	logger       *slog.Logger
	versioned    bool
	autoInit     bool
	mustExist    bool
	readOnly     bool
	devSafety    bool
	forceTemp    bool
	systemDir    string
	errorHandler func(error)
	notebook     []notebook.Option
}

// Option configures Init and New.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		autoInit:  true,
		devSafety: true,
	}
}

// WithStore injects a store; the adapter options are then ignored.
func WithStore(s core.Store) Option {
	return func(o *options) { o.store = s }
}

// WithAdapter selects the storage adapter by name: "fs" (default),
// "sqlite" or "memory".
func WithAdapter(name string) Option {
	return func(o *options) { o.adapter = name }
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
		o.notebook = append(o.notebook, notebook.WithLogger(logger))
	}
}

// WithVersioning commits every fs transaction to git.
func WithVersioning(enabled bool) Option {
	return func(o *options) { o.versioned = enabled }
}

// WithAutoInit runs git init on a versioned vault that is not a repository
// yet. Enabled by default.
func WithAutoInit(auto bool) Option {
	return func(o *options) { o.autoInit = auto }
}

// WithMustExist fails when the vault directory does not exist.
func WithMustExist(must bool) Option {
	return func(o *options) { o.mustExist = must }
}

// WithReadOnly rejects every write with core.ErrReadOnly. The dev sandbox
// is bypassed, since nothing can be damaged.
func WithReadOnly(enabled bool) Option {
	return func(o *options) { o.readOnly = enabled }
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
// Enabled by default.
func WithDevSafety(enabled bool) Option {
	return func(o *options) { o.devSafety = enabled }
}

// WithForceTemp always opens the sandboxed path.
func WithForceTemp(force bool) Option {
	return func(o *options) { o.forceTemp = force }
}

// WithSystemDir names the fs adapter's hidden directory.
func WithSystemDir(name string) Option {
	return func(o *options) { o.systemDir = name }
}

// WithWatcherErrorHandler receives runtime failures of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) { o.errorHandler = fn }
}

// WithProcessor sets the AI task processor.
func WithProcessor(p enrich.Processor) Option {
	return func(o *options) { o.notebook = append(o.notebook, notebook.WithProcessor(p)) }
}

// WithPersistDelay sets the quiet period before an edit is written.
func WithPersistDelay(d time.Duration) Option {
	return func(o *options) { o.notebook = append(o.notebook, notebook.WithPersistDelay(d)) }
}

// WithEnrichDelay sets the quiet period before a note is enriched.
func WithEnrichDelay(d time.Duration) Option {
	return func(o *options) { o.notebook = append(o.notebook, notebook.WithEnrichDelay(d)) }
}

// WithEventBuffer sets the per-subscriber event buffer.
func WithEventBuffer(size int) Option {
	return func(o *options) { o.notebook = append(o.notebook, notebook.WithEventBuffer(size)) }
}

// WithWatch follows changes made to the vault by other processes.
func WithWatch(enabled bool) Option {
	return func(o *options) { o.notebook = append(o.notebook, notebook.WithWatch(enabled)) }
}

// WithNotebookOptions passes options through to notebook.Open.
func WithNotebookOptions(opts ...notebook.Option) Option {
	return func(o *options) { o.notebook = append(o.notebook, opts...) }
}
