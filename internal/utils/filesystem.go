package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileExists checks if a file exists
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDir creates a directory with all parent directories
func CreateDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// WriteFile writes content to a file with the given permissions, creating
// directories if needed
func WriteFile(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := CreateDir(dir); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return os.WriteFile(path, content, perm)
}

// FindInDirOrParent returns the path of name in dir, or else in dir's parent
func FindInDirOrParent(dir, name string) (string, bool) {
	candidates := []string{filepath.Join(dir, name)}
	if parent := filepath.Dir(filepath.Clean(dir)); parent != filepath.Clean(dir) {
		candidates = append(candidates, filepath.Join(parent, name))
	}

	for _, path := range candidates {
		if FileExists(path) {
			return path, true
		}
	}
	return "", false
}
