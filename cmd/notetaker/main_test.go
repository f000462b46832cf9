package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/internal/config"
	"github.com/aretw0/notetaker/pkg/core"
	"github.com/aretw0/notetaker/pkg/enrich"
	"github.com/aretw0/notetaker/pkg/notebook"
	"github.com/aretw0/notetaker/pkg/persist"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("notetaker %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestCommandsRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "vault")
	base := []string{"--adapter", "sqlite", "--path", dir, "--provider", "none", "--log-level", "error"}

	out := run(t, append(base, "init", "--ai-language", "Portuguese")...)
	assert.Contains(t, out, "Notebook initialized")

	run(t, append(base, "new", "--title", "Groceries", "--content", "milk and eggs", "--project", "Home")...)

	out = run(t, append(base, "list", "--json")...)
	var notes []core.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	var titles []string
	for _, n := range notes {
		titles = append(titles, n.Title)
	}
	assert.Contains(t, titles, "Groceries")

	out = run(t, append(base, "settings", "show")...)
	assert.Contains(t, out, "Portuguese")
	assert.Contains(t, out, "not set")
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	assert.Equal(t, "notetaker version dev\n", out)
}

func TestNewLoggerWritesRotatedFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "notetaker.log")
	l, err := newLogger(config.Log{Level: "info", File: file, MaxSizeMB: 1})
	require.NoError(t, err)
	l.Info("hello", "k", "v")

	b, err := os.ReadFile(file)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(b), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])

	_, err = newLogger(config.Log{Level: "loud"})
	assert.Error(t, err)
}

func TestBuildStatusTree(t *testing.T) {
	state := notebook.NotebookState{
		Notes: 2,
		Store: "memory-store",
		StoreState: map[string]any{
			"commits": 3,
		},
		Persistence: persist.SchedulerState{
			Delay:   "1s",
			Entries: map[string]string{"b": "dirty", "a": "scheduled"},
		},
		Enrichment: enrich.OrchestratorState{
			Delay:    "2s",
			Machines: map[string]string{"a": "merged"},
		},
	}
	tree := buildStatusTree(state)
	require.Len(t, tree.Children, 4)
	assert.Equal(t, "2", tree.Metadata["notes"])
	assert.Equal(t, "3", tree.Children[0].Metadata["commits"])

	persistence := tree.Children[1]
	assert.Equal(t, "running", persistence.Status)
	require.Len(t, persistence.Children, 2)
	assert.Equal(t, "a", persistence.Children[0].Name)
	assert.Equal(t, "pending", persistence.Children[0].Status)
	assert.Equal(t, "failed", persistence.Children[1].Status)

	enrichment := tree.Children[2]
	require.Len(t, enrichment.Children, 1)
	assert.Equal(t, "finished", enrichment.Children[0].Status)

	state.Persistence = persist.SchedulerState{Closed: true}
	assert.Equal(t, "stopped", buildStatusTree(state).Children[1].Status)
}

func TestMimeOf(t *testing.T) {
	assert.Equal(t, "text/html", mimeOf("page.html", nil))
	assert.Equal(t, "image/png", mimeOf("shot.png", nil))
	assert.Equal(t, "text/plain", mimeOf("README", []byte("plain words")))
}
