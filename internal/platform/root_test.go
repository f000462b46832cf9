package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	base := t.TempDir()
	vault := filepath.Join(base, "vault")
	nested := filepath.Join(vault, "notes", "deep")
	configured := filepath.Join(base, "configured")
	empty := filepath.Join(base, "empty")

	for _, dir := range []string{nested, configured, empty, filepath.Join(vault, ".notetaker")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(configured, ConfigFile), []byte("store:\n  adapter: sqlite\n"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		start   string
		want    string
		wantErr bool
	}{
		{"at root", vault, vault, false},
		{"nested", nested, vault, false},
		{"config file", configured, configured, false},
		{"no root", empty, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.start)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindRoot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != "" && filepath.Clean(got) != filepath.Clean(tt.want) {
				t.Errorf("FindRoot() = %v, want %v", got, tt.want)
			}
		})
	}
}
