package vfs

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rlmfs/rlm/internal/embed"
	"github.com/rlmfs/rlm/internal/search"
	"github.com/rlmfs/rlm/internal/store"
)

// queryTopK and queryThreshold are the fixed search parameters the
// search/ interface always uses, independent of whatever Config a
// caller's own search.Engine was built with.
const (
	queryTopK        = 20
	queryThreshold   = 0.1
)

// OpenFlags mirrors the write-intent flags a host adapter's open call
// carries, without depending on the syscall package.
type OpenFlags int

const (
	OpenWronly OpenFlags = 1 << iota
	OpenRdwr
	OpenAppend
	OpenTrunc
)

func (f OpenFlags) wantsWrite() bool {
	return f&(OpenWronly|OpenRdwr|OpenAppend|OpenTrunc) != 0
}

// Node is the attribute record returned by Attr: enough for a host
// adapter to populate a stat/getattr reply.
type Node struct {
	Inode  uint64
	IsDir  bool
	Size   int64
	Mode   uint32 // 0755 for directories, 0644 for regular files
}

// DirEntry is one entry returned by ReadDir.
type DirEntry struct {
	Name  string
	Inode uint64
	IsDir bool
}

// FileSystem projects a corpus store as the POSIX surface described by
// the filesystem design: buffers/, chunks/, embeddings/, search/, and
// stats.json. It holds its own search.Engine, fixed to the interface's
// documented top_k=20/threshold=0.1/both-modes-enabled configuration,
// independent of any engine a caller uses elsewhere.
type FileSystem struct {
	store  *store.Store
	engine *search.Engine

	writeMu  sync.Mutex
	searchMu sync.RWMutex
	query    string
	results  []byte
}

// NewFileSystem builds a projection over s. hnsw may be nil (brute
// force cosine fallback); embedder may be nil (semantic rank then
// contributes nothing and lexical-only results are returned).
func NewFileSystem(s *store.Store, hnsw *store.HNSWIndex, embedder embed.Embedder, now search.Clock) *FileSystem {
	cfg := search.Config{
		TopK:                queryTopK,
		SimilarityThreshold: queryThreshold,
		RRFK:                search.DefaultRRFK,
		UseSemantic:         true,
		UseBM25:             true,
	}
	return &FileSystem{
		store:   s,
		engine:  search.New(s, hnsw, embedder, cfg, now),
		results: []byte("[]"),
	}
}

// CheckOpen enforces the write-flag policy: only query.txt accepts
// write intent; every other inode's open with a write flag is EPERM.
func (fs *FileSystem) CheckOpen(inode uint64, flags OpenFlags) error {
	if !flags.wantsWrite() {
		return nil
	}
	if inode == InodeQueryTxt {
		return nil
	}
	return ErrPermission
}

// Lookup resolves name within the directory at parent, by enumerating
// it live — directories are never materialized.
func (fs *FileSystem) Lookup(ctx context.Context, parent uint64, name string) (uint64, error) {
	entries, err := fs.ReadDir(ctx, parent)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e.Inode, nil
		}
	}
	return 0, ErrNotExist
}

// Attr reports the current size/kind of inode.
func (fs *FileSystem) Attr(ctx context.Context, inode uint64) (Node, error) {
	ref := Classify(inode)
	if ref.Kind == KindUnknown {
		return Node{}, ErrNotExist
	}
	if ref.Kind.IsDir() {
		return Node{Inode: inode, IsDir: true, Mode: 0o755}, nil
	}

	// Directory-scoped existence checks without a dedicated lookup.
	switch ref.Kind {
	case KindBufferFile, KindBufferChunksDir:
		if _, err := fs.store.GetBuffer(ctx, ref.ID); err != nil {
			return Node{}, ErrNotExist
		}
	case KindChunkFile:
		if _, err := fs.store.GetChunk(ctx, ref.ID); err != nil {
			return Node{}, ErrNotExist
		}
	case KindChunksMetaFile:
		if _, err := fs.store.GetBuffer(ctx, ref.ID); err != nil {
			return Node{}, ErrNotExist
		}
	case KindEmbeddingFile:
		emb, err := fs.store.GetEmbedding(ctx, ref.ID)
		if err != nil || emb == nil {
			return Node{}, ErrNotExist
		}
	}

	data, err := fs.Read(ctx, inode)
	if err != nil {
		return Node{}, err
	}
	return Node{Inode: inode, IsDir: false, Size: int64(len(data)), Mode: 0o644}, nil
}

// ReadDir enumerates the live contents of a directory inode.
func (fs *FileSystem) ReadDir(ctx context.Context, inode uint64) ([]DirEntry, error) {
	ref := Classify(inode)

	switch ref.Kind {
	case KindRoot:
		return []DirEntry{
			{Name: "buffers", Inode: InodeBuffersDir, IsDir: true},
			{Name: "chunks", Inode: InodeChunksDir, IsDir: true},
			{Name: "embeddings", Inode: InodeEmbeddingsDir, IsDir: true},
			{Name: "search", Inode: InodeSearchDir, IsDir: true},
			{Name: "stats.json", Inode: InodeStatsJSON},
		}, nil

	case KindSearchDir:
		return []DirEntry{
			{Name: "query.txt", Inode: InodeQueryTxt},
			{Name: "results.json", Inode: InodeResultsJSON},
		}, nil

	case KindBuffersDir:
		buffers, err := fs.store.ListBuffers(ctx)
		if err != nil {
			return nil, IOError(err)
		}
		entries := make([]DirEntry, 0, len(buffers))
		for _, b := range buffers {
			if b.ID == nil {
				continue
			}
			name := strconv.FormatInt(*b.ID, 10) + "." + bufferExtension(b)
			entries = append(entries, DirEntry{Name: name, Inode: bufferFileInode(*b.ID)})
		}
		return entries, nil

	case KindChunksDir:
		buffers, err := fs.store.ListBuffers(ctx)
		if err != nil {
			return nil, IOError(err)
		}
		entries := make([]DirEntry, 0, len(buffers))
		for _, b := range buffers {
			if b.ID == nil {
				continue
			}
			entries = append(entries, DirEntry{
				Name:  strconv.FormatInt(*b.ID, 10),
				Inode: bufferChunksDirInode(*b.ID),
				IsDir: true,
			})
		}
		return entries, nil

	case KindBufferChunksDir:
		chunks, err := fs.store.GetChunks(ctx, ref.ID)
		if err != nil {
			return nil, IOError(err)
		}
		entries := make([]DirEntry, 0, len(chunks)+1)
		for _, c := range chunks {
			if c.ID == nil {
				continue
			}
			name := strconv.Itoa(c.Index) + ".txt"
			entries = append(entries, DirEntry{Name: name, Inode: chunkFileInode(*c.ID)})
		}
		entries = append(entries, DirEntry{Name: "metadata.json", Inode: chunksMetaInode(ref.ID)})
		return entries, nil

	case KindEmbeddingsDir:
		embeddings, err := fs.store.GetAllEmbeddings(ctx)
		if err != nil {
			return nil, IOError(err)
		}
		entries := make([]DirEntry, 0, len(embeddings))
		for _, e := range embeddings {
			name := strconv.FormatInt(e.ChunkID, 10) + ".json"
			entries = append(entries, DirEntry{Name: name, Inode: embeddingFileInode(e.ChunkID)})
		}
		return entries, nil

	default:
		return nil, ErrNotDir
	}
}

// Read returns the current bytes of a regular file inode.
func (fs *FileSystem) Read(ctx context.Context, inode uint64) ([]byte, error) {
	ref := Classify(inode)

	switch ref.Kind {
	case KindStatsFile:
		stats, err := fs.store.Stats(ctx)
		if err != nil {
			return nil, IOError(err)
		}
		data, err := json.Marshal(toStatsJSON(stats))
		if err != nil {
			return nil, IOError(err)
		}
		return data, nil

	case KindQueryFile:
		fs.searchMu.RLock()
		defer fs.searchMu.RUnlock()
		return []byte(fs.query), nil

	case KindResultsFile:
		fs.searchMu.RLock()
		defer fs.searchMu.RUnlock()
		return fs.results, nil

	case KindBufferFile:
		b, err := fs.store.GetBuffer(ctx, ref.ID)
		if err != nil {
			return nil, ErrNotExist
		}
		return []byte(b.Content), nil

	case KindChunkFile:
		c, err := fs.store.GetChunk(ctx, ref.ID)
		if err != nil {
			return nil, ErrNotExist
		}
		return []byte(c.Content), nil

	case KindChunksMetaFile:
		chunks, err := fs.store.GetChunks(ctx, ref.ID)
		if err != nil {
			return nil, IOError(err)
		}
		metas := make([]chunkMetaJSON, len(chunks))
		for i, c := range chunks {
			metas[i] = toChunkMetaJSON(c)
		}
		data, err := json.Marshal(metas)
		if err != nil {
			return nil, IOError(err)
		}
		return data, nil

	case KindEmbeddingFile:
		emb, err := fs.store.GetEmbedding(ctx, ref.ID)
		if err != nil || emb == nil {
			return nil, ErrNotExist
		}
		data, err := json.Marshal(toEmbeddingJSON(emb))
		if err != nil {
			return nil, IOError(err)
		}
		return data, nil

	default:
		return nil, ErrNotExist
	}
}

// Write accepts exactly one target, search/query.txt: any other inode
// is EPERM. Writing decodes UTF-8, trims whitespace, and — unless the
// trimmed query is empty — runs a fixed hybrid search and then swaps in
// the new query and its serialized results. Truncating to zero bytes
// clears both the query and the cached results.
//
// Writes are serialized by writeMu, held for the whole call, so a
// second writer waits until the first has searched and swapped in its
// results. The search itself (embedding, HNSW/BM25 lookup, RRF fusion)
// runs without searchMu, against the store's own concurrency control;
// searchMu is only held to swap fs.query/fs.results, so a concurrent
// Read of query.txt/results.json never blocks for the duration of a
// search.
func (fs *FileSystem) Write(ctx context.Context, inode uint64, data []byte) error {
	if inode != InodeQueryTxt {
		return ErrPermission
	}
	if !utf8.Valid(data) {
		return ErrInvalid
	}

	fs.writeMu.Lock()
	defer fs.writeMu.Unlock()

	query := strings.TrimSpace(string(data))

	if query == "" {
		fs.searchMu.Lock()
		fs.query = ""
		fs.results = []byte("[]")
		fs.searchMu.Unlock()
		return nil
	}

	results, err := fs.engine.Search(ctx, query)
	if err != nil {
		return IOError(err)
	}

	encoded, err := json.Marshal(toResultsJSON(results))
	if err != nil {
		return IOError(err)
	}

	fs.searchMu.Lock()
	fs.query = query
	fs.results = encoded
	fs.searchMu.Unlock()
	return nil
}

// Truncate clears query.txt and results.json, matching the "truncate
// to zero" entry of the search/ state machine.
func (fs *FileSystem) Truncate(inode uint64) error {
	if inode != InodeQueryTxt {
		return ErrPermission
	}
	fs.searchMu.Lock()
	defer fs.searchMu.Unlock()
	fs.query = ""
	fs.results = []byte("[]")
	return nil
}
