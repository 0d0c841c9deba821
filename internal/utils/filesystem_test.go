package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFileOperations(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("CreateDir", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test", "nested", "dir")
		if err := CreateDir(path); err != nil {
			t.Errorf("CreateDir() error = %v", err)
		}
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			t.Error("Directory was not created")
		}
		if FileExists(path) {
			t.Error("FileExists() = true for a directory")
		}
	})

	t.Run("WriteFile", func(t *testing.T) {
		path := filepath.Join(tmpDir, "reports", "metrics.txt")
		if err := WriteFile(path, []byte("report"), 0600); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
		if !FileExists(path) {
			t.Fatal("File was not created")
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile() error = %v", err)
		}
		if string(content) != "report" {
			t.Errorf("content = %s, want 'report'", string(content))
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %v, want 0600", info.Mode().Perm())
		}
	})
}

func TestFindInDirOrParent(t *testing.T) {
	root := t.TempDir()
	child := filepath.Join(root, "app")
	if err := CreateDir(child); err != nil {
		t.Fatal(err)
	}

	if _, ok := FindInDirOrParent(child, ".env"); ok {
		t.Error("found .env before it was written")
	}

	parentEnv := filepath.Join(root, ".env")
	if err := WriteFile(parentEnv, []byte("A=1\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got, ok := FindInDirOrParent(child, ".env"); !ok || got != parentEnv {
		t.Errorf("FindInDirOrParent() = %q, %v, want parent .env", got, ok)
	}

	childEnv := filepath.Join(child, ".env")
	if err := WriteFile(childEnv, []byte("A=2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got, _ := FindInDirOrParent(child, ".env"); got != childEnv {
		t.Errorf("FindInDirOrParent() = %q, want the working directory .env first", got)
	}
}
