package vegetation

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFlagsWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grass.yaml")
	other := filepath.Join(dir, "other.yaml")
	if err := os.WriteFile(path, []byte("species: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := WatchSpecies(path, nil)
	if err != nil {
		t.Fatalf("WatchSpecies() error = %v", err)
	}
	defer w.Close()

	if w.Changed() {
		t.Fatal("no change yet")
	}

	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("species: []\n# edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !w.Changed() {
		if time.Now().After(deadline) {
			t.Fatal("write was not observed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	if _, err := WatchSpecies(filepath.Join(t.TempDir(), "nope", "grass.yaml"), nil); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
