package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/aretw0/notetaker/internal/config"
	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

var (
	cfgFile string
	verbose bool

	cfg    config.Config
	logger = slog.New(slog.DiscardHandler)
)

// flagKeys binds persistent flags to configuration keys.
var flagKeys = map[string]string{
	"adapter":   "store.adapter",
	"path":      "store.path",
	"git":       "store.git",
	"read-only": "store.read_only",
	"watch":     "store.watch",
	"provider":  "enrich.provider",
	"model":     "enrich.model",
	"log-file":  "log.file",
	"log-level": "log.level",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notetaker",
	Short: "A local-first notebook with automatic organization",
	Long: `Notetaker keeps your notes in a local store, saves every edit after a
short pause and files notes into projects and subjects with the help of a
language model.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := config.New(cfgFile)
		for name, key := range flagKeys {
			if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(name)); err != nil {
				return err
			}
		}
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		logger, err = newLogger(cfg.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		logger.Debug("configuration loaded", "file", v.ConfigFileUsed(), "adapter", cfg.Store.Adapter, "path", cfg.Store.Path)
		return nil
	},
}

func newLogger(c config.Log) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	var w io.Writer = &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxAgeDays,
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./notetaker.yaml or ~/.config/notetaker/notetaker.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.String("adapter", platform.AdapterFS, "Storage adapter (fs, sqlite, memory)")
	flags.String("path", "./notes-vault", "Path of the notebook")
	flags.Bool("git", false, "Record every write as a git commit (fs adapter)")
	flags.Bool("read-only", false, "Open the store read-only")
	flags.Bool("watch", false, "Pick up changes made to the vault by other programs (fs adapter)")
	flags.String("provider", config.ProviderOpenAI, "Enrichment provider (openai, anthropic, none)")
	flags.String("model", "", "Model used by the enrichment provider")
	flags.String("log-file", "", "Write JSON logs to a rotated file instead of stderr")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
}

// openApp opens the configured notebook. The caller must close it so that
// pending edits are saved.
func openApp(ctx context.Context, opts ...platform.Option) (*platform.App, error) {
	all := append(cfg.Options(logger), opts...)
	app, err := platform.New(ctx, cfg.Store.Path, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook at %s: %w", cfg.Store.Path, err)
	}
	return app, nil
}

// withApp runs fn against an open notebook and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *platform.App) error) error {
	return withAppContext(cmd.Context(), fn)
}

// withAppContext is withApp for commands that own their context. The
// notebook is closed with an uncancelled context so pending edits are
// saved even after an interrupt.
func withAppContext(ctx context.Context, fn func(ctx context.Context, app *platform.App) error) error {
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	runErr := fn(ctx, app)
	if err := app.Close(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		return fmt.Errorf("failed to close notebook: %w", err)
	}
	return runErr
}

// resolveNote accepts a full note id or an unambiguous prefix of one.
func resolveNote(app *platform.App, ref string) (core.Note, error) {
	if n, err := app.Get(ref); err == nil {
		return n, nil
	}
	var found []core.Note
	for _, n := range allNotes(app) {
		if strings.HasPrefix(n.ID, ref) {
			found = append(found, n)
		}
	}
	switch len(found) {
	case 0:
		return core.Note{}, core.NotFound(core.CollectionNotes, ref)
	case 1:
		return found[0], nil
	}
	return core.Note{}, fmt.Errorf("note id %q is ambiguous: %d notes match", ref, len(found))
}

// resolveProject accepts a project id or a case-insensitive name.
func resolveProject(ctx context.Context, app *platform.App, ref string) (core.Project, error) {
	projects, err := app.Projects(ctx)
	if err != nil {
		return core.Project{}, err
	}
	for _, p := range projects {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range projects {
		if strings.EqualFold(p.Name, strings.TrimSpace(ref)) {
			return p, nil
		}
	}
	return core.Project{}, core.NotFound(core.CollectionProjects, ref)
}

// readContent returns the inline text, or the file contents when path is
// set. A path of "-" reads stdin.
func readContent(cmd *cobra.Command, inline, path string) (string, error) {
	switch path {
	case "":
		return inline, nil
	case "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(b), nil
}
