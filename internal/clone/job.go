package clone

import (
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/Nano112/db-clone-tool/internal/util/fs"
)

// Job is one clone run: a stable ID for log correlation plus every temp
// artifact the run allocated. The artifact list only grows; Cleanup removes
// all of it best-effort.
type Job struct {
	ID        string
	artifacts []string
	keep      bool
}

// NewJob creates a run with a fresh ID. keep=true disables artifact removal.
func NewJob(keep bool) *Job {
	return &Job{ID: uuid.NewString(), keep: keep}
}

// TempFile allocates an empty temp file in dir (or the system default when
// dir is empty) and records it for cleanup. A user-supplied dir is created
// if missing.
func (j *Job) TempFile(dir, pattern string) (string, error) {
	if dir != "" {
		if err := fs.MkdirP(dir); err != nil {
			return "", fmt.Errorf("create temp dir: %w", err)
		}
	}
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	j.Track(path)
	return path, nil
}

// Track records a path for later cleanup.
func (j *Job) Track(path string) {
	j.artifacts = append(j.artifacts, path)
}

// Artifacts returns the recorded paths in creation order.
func (j *Job) Artifacts() []string {
	return append([]string(nil), j.artifacts...)
}

// Cleanup deletes every tracked path unless the job was created with keep.
// Removal errors are swallowed; a file that is already gone is not a failure.
func (j *Job) Cleanup() {
	if j.keep {
		return
	}
	for _, p := range j.artifacts {
		_ = os.Remove(p)
	}
}

func (j *Job) String() string { return fmt.Sprintf("Job(%s)", j.ID) }
