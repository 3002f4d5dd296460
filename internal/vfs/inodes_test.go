package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_FixedInodes(t *testing.T) {
	cases := map[uint64]Kind{
		InodeRoot:          KindRoot,
		InodeBuffersDir:    KindBuffersDir,
		InodeChunksDir:     KindChunksDir,
		InodeEmbeddingsDir: KindEmbeddingsDir,
		InodeSearchDir:     KindSearchDir,
		InodeStatsJSON:     KindStatsFile,
		InodeQueryTxt:      KindQueryFile,
		InodeResultsJSON:   KindResultsFile,
	}
	for inode, want := range cases {
		assert.Equal(t, want, Classify(inode).Kind)
	}
}

func TestClassify_RangeBasedRoundTrip(t *testing.T) {
	assert.Equal(t, Ref{Kind: KindBufferFile, ID: 42}, Classify(bufferFileInode(42)))
	assert.Equal(t, Ref{Kind: KindBufferChunksDir, ID: 7}, Classify(bufferChunksDirInode(7)))
	assert.Equal(t, Ref{Kind: KindChunkFile, ID: 99}, Classify(chunkFileInode(99)))
	assert.Equal(t, Ref{Kind: KindChunksMetaFile, ID: 3}, Classify(chunksMetaInode(3)))
	assert.Equal(t, Ref{Kind: KindEmbeddingFile, ID: 5}, Classify(embeddingFileInode(5)))
}

func TestClassify_RangesDoNotOverlap(t *testing.T) {
	// The highest buffer-file inode plausible in a small corpus must
	// never alias into the chunks-dir range, etc.
	assert.NotEqual(t, KindBufferChunksDir, Classify(bufferFileInode(1)).Kind)
	assert.NotEqual(t, KindBufferFile, Classify(bufferChunksDirInode(1)).Kind)
}

func TestClassify_UnknownInodeBelowRanges(t *testing.T) {
	assert.Equal(t, KindUnknown, Classify(999).Kind)
}

func TestKindIsDir(t *testing.T) {
	dirs := []Kind{KindRoot, KindBuffersDir, KindChunksDir, KindEmbeddingsDir, KindSearchDir, KindBufferChunksDir}
	for _, k := range dirs {
		assert.True(t, k.IsDir(), "kind %v should be a directory", k)
	}
	files := []Kind{KindStatsFile, KindQueryFile, KindResultsFile, KindBufferFile, KindChunkFile, KindChunksMetaFile, KindEmbeddingFile, KindUnknown}
	for _, k := range files {
		assert.False(t, k.IsDir(), "kind %v should not be a directory", k)
	}
}
