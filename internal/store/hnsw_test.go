package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	rlmerr "github.com/rlmfs/rlm/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHNSWIndex_ZeroDimensionsIsUnavailable(t *testing.T) {
	idx := NewHNSWIndex(0)
	ctx := context.Background()

	err := idx.Add(ctx, 1, []float32{1, 2, 3})
	require.Error(t, err)

	var rerr *rlmerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rlmerr.CodeFeatureNotEnabled, rerr.Code)
}

func TestHNSWIndex_AddSearchRoundTrip(t *testing.T) {
	idx := NewHNSWIndex(3)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, 2, []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, 3, []float32{0.9, 0.1, 0}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].ChunkID)
}

func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := NewHNSWIndex(3)
	_, err := idx.Search(context.Background(), []float32{1, 2}, 5)
	require.Error(t, err)

	var rerr *rlmerr.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, rlmerr.CodeDimensionMismatch, rerr.Code)
}

func TestHNSWIndex_RemoveReportsExistence(t *testing.T) {
	idx := NewHNSWIndex(2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 10, []float32{1, 1}))

	removed, err := idx.Remove(ctx, 10)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = idx.Remove(ctx, 10)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestHNSWIndex_LenTracksLiveEntries(t *testing.T) {
	idx := NewHNSWIndex(2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 1, []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, 2, []float32{0, 1}))
	assert.Equal(t, 2, idx.Len())

	_, err := idx.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.Len())
}

func TestHNSWIndex_ClearResetsState(t *testing.T) {
	idx := NewHNSWIndex(2)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 1, []float32{1, 0}))

	idx.Clear()
	assert.Equal(t, 0, idx.Len())

	results, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SearchOnEmptyIndexReturnsEmpty(t *testing.T) {
	idx := NewHNSWIndex(2)
	results, err := idx.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWIndex_SaveLoadRoundTrip(t *testing.T) {
	idx := NewHNSWIndex(3)
	ctx := context.Background()
	require.NoError(t, idx.Add(ctx, 1, []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, 2, []float32{0, 1, 0}))

	dir := t.TempDir()
	path := filepath.Join(dir, "index.bin")
	require.NoError(t, idx.Save(path))

	loaded := NewHNSWIndex(3)
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, idx.Len(), loaded.Len())

	results, err := loaded.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1), results[0].ChunkID)

	_, err = os.Stat(path + ".meta")
	require.NoError(t, err)
}

func TestHNSWIndex_CloseMarksUnavailable(t *testing.T) {
	idx := NewHNSWIndex(2)
	require.NoError(t, idx.Close())

	err := idx.Add(context.Background(), 1, []float32{1, 0})
	assert.Error(t, err)
}
