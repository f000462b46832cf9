package platform

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/notetaker/pkg/adapters/fs"
)

// ConfigFile marks a notebook root next to its data.
const ConfigFile = "notetaker.yaml"

// FindRoot looks upwards from startDir for a notebook root: a directory
// holding the system directory, a .git directory or a notetaker.yaml file.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, fs.DefaultSystemDir) || hasFile(dir, ".git") || hasFile(dir, ConfigFile) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}
