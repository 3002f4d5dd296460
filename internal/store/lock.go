package store

import (
	"path/filepath"

	"github.com/gofrs/flock"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// processLock guards a single on-disk store against being opened for
// writing by more than one process at a time: SQLite's own locking
// only serializes within one process's *sql.DB, not across processes
// sharing a WAL file.
type processLock struct {
	flock *flock.Flock
}

func newProcessLock(dbPath string) *processLock {
	return &processLock{flock: flock.New(dbPath + ".lock")}
}

// acquire takes a non-blocking exclusive lock, failing fast if another
// process already holds it rather than hanging indefinitely.
func (l *processLock) acquire() error {
	ok, err := l.flock.TryLock()
	if err != nil {
		return rlmerr.Database("failed to acquire store lock at "+filepath.Clean(l.flock.Path()), err)
	}
	if !ok {
		return rlmerr.Database("store already open by another process: "+l.flock.Path(), nil)
	}
	return nil
}

func (l *processLock) release() error {
	if l.flock == nil || !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}
