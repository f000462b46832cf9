package git

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Lock(t *testing.T) {
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, filepath.Join(".notetaker", "git.lock"), nil)

	unlock, err := client.Lock(context.Background())
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}

	lockPath := filepath.Join(tmpDir, ".notetaker", "git.lock")
	if _, err := os.Stat(lockPath); os.IsNotExist(err) {
		t.Error("Lock file not created")
	}

	// A second acquisition must wait; give up via context.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()

	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("Lock file not removed after unlock")
	}
}

func TestClient_CommitFlow(t *testing.T) {
	if !IsInstalled() {
		t.Skip("git not installed")
	}
	tmpDir := t.TempDir()
	client := NewClient(tmpDir, "", nil)

	require.NoError(t, client.Init())
	assert.True(t, client.IsRepo())

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "a.md"), []byte("hello"), 0644))
	require.NoError(t, client.Add("a.md"))
	require.NoError(t, client.Commit(FormatCommitMessage(CommitTypeDocs, "notes", "add a", "")))

	// Nothing staged: no error, no commit.
	require.NoError(t, client.Commit("empty"))

	require.NoError(t, os.Remove(filepath.Join(tmpDir, "a.md")))
	require.NoError(t, client.Rm("a.md"))
	require.NoError(t, client.Commit("remove a"))

	subjects, err := client.Log(5)
	require.NoError(t, err)
	assert.Equal(t, []string{"remove a", "docs(notes): add a"}, subjects)
}
