package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// FileLock wraps gofrs/flock keyed by the clone target identity.
type FileLock struct {
	fl   *flock.Flock
	path string
}

// New returns a lock at /tmp/dbclone_<hash>.lock. key should identify the
// target database (host:port/name) so that two clones into the same target
// exclude each other while clones into different targets run in parallel.
func New(key string) *FileLock {
	sum := sha256.Sum256([]byte(key))
	name := fmt.Sprintf("/tmp/dbclone_%s.lock", hex.EncodeToString(sum[:8]))
	return &FileLock{fl: flock.New(name), path: name}
}

// TryLock attempts non-blocking lock.
func (l *FileLock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Unlock releases.
func (l *FileLock) Unlock() error {
	// Release the OS-level lock first.
	if err := l.fl.Unlock(); err != nil {
		return err
	}
	// Best-effort cleanup: remove the lock file so it does not linger in /tmp.
	// Ignore any error (e.g. if another process already removed it).
	_ = os.Remove(l.path)
	return nil
}
