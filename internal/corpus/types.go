// Package corpus defines the domain types shared by the store, the
// chunking strategies, and the retrieval engine: Buffer, Chunk, Embedding,
// Context, and storage-wide statistics.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
)

// Buffer is an immutable-after-creation text container. ID is nil until
// the buffer has been persisted by the store; identity flows outward
// from the store, never the other way around.
type Buffer struct {
	ID          *int64
	Name        string
	SourcePath  string
	Content     string
	ContentType string
	ContentHash string
	Size        int64
	LineCount   *int
	ChunkCount  *int
	CreatedAt   int64
	UpdatedAt   int64
}

// Chunk is a contiguous UTF-8 slice of a buffer covering the byte range
// [ByteStart, ByteEnd) at dense position Index. ID is nil until the
// store persists it. CustomMeta holds an optional free-form payload as
// raw JSON; nothing in this package decodes it.
type Chunk struct {
	ID          *int64
	BufferID    int64
	Content     string
	ByteStart   int
	ByteEnd     int
	Index       int
	Strategy    string
	TokenCount  *int
	LineStart   *int
	LineEnd     *int
	HasOverlap  bool
	ContentHash string
	CustomMeta  string // raw JSON, optional
	CreatedAt   int64
}

// Size returns the byte length of the chunk's content.
func (c *Chunk) Size() int {
	return len(c.Content)
}

// RangeSize returns the width of the chunk's byte range.
func (c *Chunk) RangeSize() int {
	return c.ByteEnd - c.ByteStart
}

// IsEmpty reports whether the chunk carries no content.
func (c *Chunk) IsEmpty() bool {
	return len(c.Content) == 0
}

// OverlapsWith reports whether this chunk's byte range shares any bytes
// with other's.
func (c *Chunk) OverlapsWith(other *Chunk) bool {
	return c.ByteStart < other.ByteEnd && other.ByteStart < c.ByteEnd
}

// ContainsOffset reports whether the given buffer byte offset falls
// within this chunk's range.
func (c *Chunk) ContainsOffset(offset int) bool {
	return offset >= c.ByteStart && offset < c.ByteEnd
}

// Preview returns up to n bytes of content, snapped back to a UTF-8
// boundary if n would split a multi-byte rune.
func (c *Chunk) Preview(n int) string {
	if n >= len(c.Content) {
		return c.Content
	}
	end := n
	for end > 0 && !isUTF8Boundary(c.Content, end) {
		end--
	}
	return c.Content[:end]
}

// ComputeHash derives a stable 16-hex-character fingerprint of content,
// used for dedup and change detection (BM25 mirror consistency does not
// depend on this; it is purely a caller-facing convenience).
func ComputeHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func isUTF8Boundary(s string, i int) bool {
	if i <= 0 || i >= len(s) {
		return true
	}
	return s[i]&0xC0 != 0x80
}

// Embedding is the single vector associated with one chunk.
type Embedding struct {
	ChunkID   int64
	Vector    []float32
	ModelName string
	CreatedAt int64
}

// ValueKind tags the sum type carried by Context variables/globals.
type ValueKind string

const (
	ValueString ValueKind = "string"
	ValueI64    ValueKind = "i64"
	ValueF64    ValueKind = "f64"
	ValueBool   ValueKind = "bool"
	ValueList   ValueKind = "list"
	ValueMap    ValueKind = "map"
	ValueNull   ValueKind = "null"
)

// Value is a tagged union over the scalar/composite kinds a Context
// variable can hold. Exactly one of the typed fields is meaningful,
// selected by Kind.
type Value struct {
	Kind ValueKind
	Str  string
	I64  int64
	F64  float64
	Bool bool
	List []Value
	Map  map[string]Value
}

// Context is the singleton per-store session-state record.
type Context struct {
	Variables     map[string]Value
	Globals       map[string]Value
	ActiveBuffers []int64
	WorkingDir    string
	CreatedAt     int64
	UpdatedAt     int64
	SchemaVersion int
}

// NewContext returns an empty Context ready for first persistence.
func NewContext(schemaVersion int, now int64) *Context {
	return &Context{
		Variables:     make(map[string]Value),
		Globals:       make(map[string]Value),
		ActiveBuffers: nil,
		CreatedAt:     now,
		UpdatedAt:     now,
		SchemaVersion: schemaVersion,
	}
}

// Stats reports authoritative, derived counters about a store.
type Stats struct {
	BufferCount   int64
	ChunkCount    int64
	TotalBytes    int64
	HasContext    bool
	SchemaVersion int
	OnDiskBytes   int64
}
