// Package vfs projects the corpus store as a read-mostly POSIX
// surface: buffers/, chunks/, embeddings/, search/, and stats.json.
// It is expressed purely as a Go interface — lookup, attr, read,
// write, readdir — decoupled from any mount mechanism, since no
// library in the dependency corpus binds to the OS FUSE API. A host
// adapter (real kernel mount, or the in-process test server) drives
// it through these callbacks.
package vfs

// Fixed inodes for the root and its immediate, always-present children.
const (
	InodeRoot          uint64 = 1
	InodeBuffersDir    uint64 = 2
	InodeChunksDir     uint64 = 3
	InodeEmbeddingsDir uint64 = 4
	InodeSearchDir     uint64 = 5
	InodeStatsJSON     uint64 = 6
	InodeQueryTxt      uint64 = 7
	InodeResultsJSON   uint64 = 8
)

// Inode range bases. Each entity type gets a non-overlapping range
// sized so several million entities per type never collide.
const (
	bufferFileBase      uint64 = 1_000_000
	bufferChunksDirBase uint64 = 10_000_000
	chunkFileBase       uint64 = 100_000_000
	chunksMetaBase      uint64 = 150_000_000
	embeddingFileBase   uint64 = 200_000_000
)

// Kind classifies an inode for dispatch by the callbacks.
type Kind int

const (
	KindUnknown Kind = iota
	KindRoot
	KindBuffersDir
	KindChunksDir
	KindEmbeddingsDir
	KindSearchDir
	KindStatsFile
	KindQueryFile
	KindResultsFile
	KindBufferFile
	KindBufferChunksDir
	KindChunkFile
	KindChunksMetaFile
	KindEmbeddingFile
)

// Ref is the classified identity of one inode: its kind plus whatever
// entity id that kind carries (a buffer id, a chunk id; zero when the
// kind carries none).
type Ref struct {
	Kind Kind
	ID   int64
}

// Classify maps an inode number to its typed entity reference. Every
// lookup/attr/read/write/readdir callback starts here.
func Classify(inode uint64) Ref {
	switch inode {
	case InodeRoot:
		return Ref{Kind: KindRoot}
	case InodeBuffersDir:
		return Ref{Kind: KindBuffersDir}
	case InodeChunksDir:
		return Ref{Kind: KindChunksDir}
	case InodeEmbeddingsDir:
		return Ref{Kind: KindEmbeddingsDir}
	case InodeSearchDir:
		return Ref{Kind: KindSearchDir}
	case InodeStatsJSON:
		return Ref{Kind: KindStatsFile}
	case InodeQueryTxt:
		return Ref{Kind: KindQueryFile}
	case InodeResultsJSON:
		return Ref{Kind: KindResultsFile}
	}

	switch {
	case inode >= embeddingFileBase:
		return Ref{Kind: KindEmbeddingFile, ID: int64(inode - embeddingFileBase)}
	case inode >= chunksMetaBase:
		return Ref{Kind: KindChunksMetaFile, ID: int64(inode - chunksMetaBase)}
	case inode >= chunkFileBase:
		return Ref{Kind: KindChunkFile, ID: int64(inode - chunkFileBase)}
	case inode >= bufferChunksDirBase:
		return Ref{Kind: KindBufferChunksDir, ID: int64(inode - bufferChunksDirBase)}
	case inode >= bufferFileBase:
		return Ref{Kind: KindBufferFile, ID: int64(inode - bufferFileBase)}
	default:
		return Ref{Kind: KindUnknown}
	}
}

func bufferFileInode(id int64) uint64      { return bufferFileBase + uint64(id) }
func bufferChunksDirInode(id int64) uint64 { return bufferChunksDirBase + uint64(id) }
func chunkFileInode(id int64) uint64       { return chunkFileBase + uint64(id) }
func chunksMetaInode(bufferID int64) uint64 { return chunksMetaBase + uint64(bufferID) }
func embeddingFileInode(chunkID int64) uint64 { return embeddingFileBase + uint64(chunkID) }

// IsDir reports whether a Kind represents a directory entity.
func (k Kind) IsDir() bool {
	switch k {
	case KindRoot, KindBuffersDir, KindChunksDir, KindEmbeddingsDir, KindSearchDir, KindBufferChunksDir:
		return true
	default:
		return false
	}
}
