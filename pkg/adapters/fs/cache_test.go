package fs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	c := newCache(dir, DefaultSystemDir)
	require.NoError(t, c.Load())

	mtime := time.Now().Truncate(time.Second)
	c.Set("notes/a.md", &indexEntry{Collection: "notes", Key: "a", Data: []byte(`{"id":"a"}`), LastModified: mtime})
	require.NoError(t, c.Save())

	_, err := os.Stat(filepath.Join(dir, DefaultSystemDir, "index.json"))
	require.NoError(t, err)

	c2 := newCache(dir, DefaultSystemDir)
	require.NoError(t, c2.Load())

	entry, ok := c2.Get("notes/a.md", mtime)
	require.True(t, ok)
	assert.JSONEq(t, `{"id":"a"}`, string(entry.Data))

	_, ok = c2.Get("notes/a.md", mtime.Add(time.Second))
	assert.False(t, ok, "stale mtime must miss")

	c2.Prune(map[string]bool{})
	assert.Equal(t, 0, c2.Len())
}

func TestCache_CorruptedSelfHeals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultSystemDir, "index.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0644))

	c := newCache(dir, DefaultSystemDir)
	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())
	require.NoError(t, c.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version":2`)
}
