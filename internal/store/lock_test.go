package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessLock_AcquireReleaseRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	l := newProcessLock(path)

	require.NoError(t, l.acquire())
	require.NoError(t, l.release())
}

func TestProcessLock_SecondAcquireFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	first := newProcessLock(path)
	require.NoError(t, first.acquire())
	defer first.release()

	second := newProcessLock(path)
	err := second.acquire()
	assert.Error(t, err)
}

func TestProcessLock_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	l := newProcessLock(path)
	require.NoError(t, l.release())
}

func TestOpen_SecondProcessOnSamePathFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")

	first, err := Open(path)
	require.NoError(t, err)
	defer first.Close()

	_, err = Open(path)
	assert.Error(t, err)
}
