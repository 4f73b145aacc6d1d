package clone

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestJobLifecycle(t *testing.T) {
	j := NewJob(false)
	if j.ID == "" {
		t.Fatalf("job ID empty")
	}

	path, err := j.TempFile(t.TempDir(), "db_clone_*.custom")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	if filepath.Ext(path) != ".custom" {
		t.Fatalf("unexpected suffix: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("temp file missing before cleanup: %v", err)
	}

	j.Cleanup()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("temp file survived cleanup")
	}
}

func TestJobCleanupTolerantOfMissingFiles(t *testing.T) {
	j := NewJob(false)
	j.Track(filepath.Join(t.TempDir(), "never_created"))
	// must not panic or complain
	j.Cleanup()
}

func TestJobKeepPreservesArtifacts(t *testing.T) {
	j := NewJob(true)
	path, err := j.TempFile(t.TempDir(), "db_clone_*.custom")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	j.Cleanup()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("keep=true must preserve artifacts: %v", err)
	}
}

func TestJobArtifactsSnapshot(t *testing.T) {
	j := NewJob(true)
	path, err := j.TempFile(t.TempDir(), "db_clone_*.custom")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	extra := filepath.Join(t.TempDir(), "extra.custom")
	j.Track(extra)

	got := j.Artifacts()
	if want := []string{path, extra}; !reflect.DeepEqual(got, want) {
		t.Fatalf("artifacts = %v, want %v", got, want)
	}

	got[0] = "clobbered"
	if j.Artifacts()[0] != path {
		t.Fatal("Artifacts must return a copy, not the backing slice")
	}
}

func TestJobIDsUnique(t *testing.T) {
	a, b := NewJob(false), NewJob(false)
	if a.ID == b.ID {
		t.Fatalf("two jobs share an ID: %s", a.ID)
	}
}
