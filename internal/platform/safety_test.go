package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsDevRun(t *testing.T) {
	if !IsDevRun() {
		t.Fatalf("a test binary must count as a dev run")
	}
}

func TestResolvePath(t *testing.T) {
	inTemp := filepath.Join(t.TempDir(), "vault")
	sandbox := filepath.Join(os.TempDir(), "notetaker-dev")

	tests := []struct {
		name    string
		path    string
		sandbox bool
		want    string
	}{
		{"no sandbox", "notes", false, "notes"},
		{"empty without sandbox", "", false, "."},
		{"temp path is trusted", inTemp, true, inTemp},
		{"relative path is re-rooted", "./my-notes", true, filepath.Join(sandbox, "my-notes")},
		{"current dir", ".", true, filepath.Join(sandbox, "default")},
		{"empty", "", true, filepath.Join(sandbox, "default")},
		{"traversal keeps the base name", "../../etc/notes", true, filepath.Join(sandbox, "notes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolvePath(tt.path, tt.sandbox); got != tt.want {
				t.Errorf("ResolvePath(%q, %v) = %q, want %q", tt.path, tt.sandbox, got, tt.want)
			}
		})
	}
}
