package vfs

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rlmfs/rlm/internal/corpus"
	"github.com/rlmfs/rlm/internal/embed"
	"github.com/rlmfs/rlm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFS(t *testing.T) (*FileSystem, *store.Store) {
	t.Helper()
	s, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	fs := NewFileSystem(s, nil, embed.NewStaticEmbedder(), func() int64 { return 1000 })
	return fs, s
}

func seedFSBuffer(t *testing.T, s *store.Store, name, content string) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	id, err := s.InsertBuffer(ctx, &corpus.Buffer{Name: name, Content: content, CreatedAt: 1, UpdatedAt: 1})
	require.NoError(t, err)

	chunk := corpus.NewChunkBuilder(id, 0, 0, len(content), content).Strategy("fixed").CreatedAt(1).Build()
	require.NoError(t, s.InsertChunks(ctx, id, []*corpus.Chunk{chunk}))

	chunks, err := s.GetChunks(ctx, id)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	return id, *chunks[0].ID
}

func TestFileSystem_ReadDir_Root(t *testing.T) {
	fs, _ := newTestFS(t)
	entries, err := fs.ReadDir(context.Background(), InodeRoot)
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.ElementsMatch(t, []string{"buffers", "chunks", "embeddings", "search", "stats.json"}, names)
}

func TestFileSystem_ReadDir_SearchDir(t *testing.T) {
	fs, _ := newTestFS(t)
	entries, err := fs.ReadDir(context.Background(), InodeSearchDir)
	require.NoError(t, err)

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	assert.ElementsMatch(t, []string{"query.txt", "results.json"}, names)
}

func TestFileSystem_ReadDir_BuffersDirListsBuffers(t *testing.T) {
	fs, s := newTestFS(t)
	id, _ := seedFSBuffer(t, s, "doc", "hello world")

	entries, err := fs.ReadDir(context.Background(), InodeBuffersDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, bufferFileInode(id), entries[0].Inode)
}

func TestFileSystem_ReadDir_BufferChunksDirListsChunksAndMetadata(t *testing.T) {
	fs, s := newTestFS(t)
	id, chunkID := seedFSBuffer(t, s, "doc", "hello world")

	entries, err := fs.ReadDir(context.Background(), bufferChunksDirInode(id))
	require.NoError(t, err)

	var sawChunk, sawMeta bool
	for _, e := range entries {
		if e.Inode == chunkFileInode(chunkID) {
			sawChunk = true
		}
		if e.Name == "metadata.json" {
			sawMeta = true
		}
	}
	assert.True(t, sawChunk)
	assert.True(t, sawMeta)
}

func TestFileSystem_ReadDir_NonDirectoryInodeIsErrNotDir(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.ReadDir(context.Background(), InodeStatsJSON)
	assert.ErrorIs(t, err, ErrNotDir)
}

func TestFileSystem_Lookup_DelegatesToReadDir(t *testing.T) {
	fs, _ := newTestFS(t)
	inode, err := fs.Lookup(context.Background(), InodeRoot, "stats.json")
	require.NoError(t, err)
	assert.Equal(t, InodeStatsJSON, inode)
}

func TestFileSystem_Lookup_UnknownNameIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Lookup(context.Background(), InodeRoot, "nonexistent")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_Attr_DirectoryReportsModeAndNoSize(t *testing.T) {
	fs, _ := newTestFS(t)
	node, err := fs.Attr(context.Background(), InodeRoot)
	require.NoError(t, err)
	assert.True(t, node.IsDir)
	assert.EqualValues(t, 0o755, node.Mode)
}

func TestFileSystem_Attr_UnknownInodeIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Attr(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_Attr_MissingBufferIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Attr(context.Background(), bufferFileInode(12345))
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_Attr_MissingEmbeddingIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Attr(context.Background(), embeddingFileInode(12345))
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_Attr_ExistingBufferReportsSize(t *testing.T) {
	fs, s := newTestFS(t)
	id, _ := seedFSBuffer(t, s, "doc", "hello world")

	node, err := fs.Attr(context.Background(), bufferFileInode(id))
	require.NoError(t, err)
	assert.False(t, node.IsDir)
	assert.EqualValues(t, len("hello world"), node.Size)
}

func TestFileSystem_Read_StatsFile(t *testing.T) {
	fs, s := newTestFS(t)
	seedFSBuffer(t, s, "doc", "hello world")

	data, err := fs.Read(context.Background(), InodeStatsJSON)
	require.NoError(t, err)

	var stats statsJSON
	require.NoError(t, json.Unmarshal(data, &stats))
	assert.EqualValues(t, 1, stats.BufferCount)
}

func TestFileSystem_Read_BufferFileReturnsContent(t *testing.T) {
	fs, s := newTestFS(t)
	id, _ := seedFSBuffer(t, s, "doc", "hello world")

	data, err := fs.Read(context.Background(), bufferFileInode(id))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFileSystem_Read_ChunkFileReturnsContent(t *testing.T) {
	fs, s := newTestFS(t)
	_, chunkID := seedFSBuffer(t, s, "doc", "hello world")

	data, err := fs.Read(context.Background(), chunkFileInode(chunkID))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestFileSystem_Read_EmbeddingFileMissingIsNotExist(t *testing.T) {
	fs, s := newTestFS(t)
	_, chunkID := seedFSBuffer(t, s, "doc", "hello world")

	_, err := fs.Read(context.Background(), embeddingFileInode(chunkID))
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_Read_UnknownInodeIsNotExist(t *testing.T) {
	fs, _ := newTestFS(t)
	_, err := fs.Read(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestFileSystem_CheckOpen_OnlyQueryTxtAcceptsWrite(t *testing.T) {
	fs, _ := newTestFS(t)
	assert.NoError(t, fs.CheckOpen(InodeQueryTxt, OpenWronly))
	assert.ErrorIs(t, fs.CheckOpen(InodeStatsJSON, OpenWronly), ErrPermission)
	assert.ErrorIs(t, fs.CheckOpen(InodeResultsJSON, OpenRdwr), ErrPermission)
}

func TestFileSystem_CheckOpen_ReadOnlyFlagsAlwaysAllowed(t *testing.T) {
	fs, _ := newTestFS(t)
	assert.NoError(t, fs.CheckOpen(InodeStatsJSON, 0))
	assert.NoError(t, fs.CheckOpen(InodeBuffersDir, 0))
}

func TestFileSystem_Write_NonQueryInodeIsPermission(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Write(context.Background(), InodeStatsJSON, []byte("x"))
	assert.ErrorIs(t, err, ErrPermission)
}

func TestFileSystem_Write_InvalidUTF8IsInvalid(t *testing.T) {
	fs, _ := newTestFS(t)
	err := fs.Write(context.Background(), InodeQueryTxt, []byte{0xff, 0xfe, 0xfd})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestFileSystem_Write_EmptyQueryClearsResults(t *testing.T) {
	fs, s := newTestFS(t)
	id, _ := seedFSBuffer(t, s, "doc", "the quick brown fox")
	_, err := s.Stats(context.Background())
	require.NoError(t, err)
	_ = id

	require.NoError(t, fs.Write(context.Background(), InodeQueryTxt, []byte("   ")))

	query, err := fs.Read(context.Background(), InodeQueryTxt)
	require.NoError(t, err)
	assert.Equal(t, "", string(query))

	results, err := fs.Read(context.Background(), InodeResultsJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(results))
}

func TestFileSystem_Write_QueryRunsSearchAndPopulatesResults(t *testing.T) {
	fs, s := newTestFS(t)
	id, chunkID := seedFSBuffer(t, s, "doc", "the quick brown fox jumps over the lazy dog")

	engine := fs.engine
	_, err := engine.EmbedBufferChunks(context.Background(), id)
	require.NoError(t, err)

	require.NoError(t, fs.Write(context.Background(), InodeQueryTxt, []byte(" fox \n")))

	query, err := fs.Read(context.Background(), InodeQueryTxt)
	require.NoError(t, err)
	assert.Equal(t, "fox", string(query))

	data, err := fs.Read(context.Background(), InodeResultsJSON)
	require.NoError(t, err)

	var results []resultJSON
	require.NoError(t, json.Unmarshal(data, &results))
	require.NotEmpty(t, results)
	assert.Equal(t, chunkID, results[0].ChunkID)
}

func TestFileSystem_Truncate_ClearsQueryAndResults(t *testing.T) {
	fs, s := newTestFS(t)
	id, _ := seedFSBuffer(t, s, "doc", "the quick brown fox")
	_, err := fs.engine.EmbedBufferChunks(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, fs.Write(context.Background(), InodeQueryTxt, []byte("fox")))

	require.NoError(t, fs.Truncate(InodeQueryTxt))

	query, err := fs.Read(context.Background(), InodeQueryTxt)
	require.NoError(t, err)
	assert.Equal(t, "", string(query))

	results, err := fs.Read(context.Background(), InodeResultsJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(results))
}

func TestFileSystem_Truncate_NonQueryInodeIsPermission(t *testing.T) {
	fs, _ := newTestFS(t)
	assert.ErrorIs(t, fs.Truncate(InodeResultsJSON), ErrPermission)
}

func TestBufferExtension_PrefersSourcePathExtension(t *testing.T) {
	b := &corpus.Buffer{SourcePath: "/tmp/foo.rs", ContentType: "text/x-go"}
	assert.Equal(t, "rs", bufferExtension(b))
}

func TestBufferExtension_FallsBackToContentType(t *testing.T) {
	b := &corpus.Buffer{ContentType: "text/x-python"}
	assert.Equal(t, "py", bufferExtension(b))
}

func TestBufferExtension_DefaultsToTxt(t *testing.T) {
	b := &corpus.Buffer{}
	assert.Equal(t, "txt", bufferExtension(b))
}
