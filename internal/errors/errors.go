// Package errors defines the structured error taxonomy shared by every
// subsystem of the corpus store and retrieval engine.
package errors

import "fmt"

// Kind groups errors into the families described by the error-handling
// design: Storage, Chunking, IO, Search, Command.
type Kind string

const (
	KindStorage Kind = "storage"
	KindChunk   Kind = "chunking"
	KindIO      Kind = "io"
	KindSearch  Kind = "search"
	KindCommand Kind = "command"
)

// Code is a stable, machine-matchable identifier within a Kind.
type Code string

const (
	// Storage
	CodeNotInitialized  Code = "not_initialized"
	CodeContextNotFound Code = "context_not_found"
	CodeBufferNotFound  Code = "buffer_not_found"
	CodeChunkNotFound   Code = "chunk_not_found"
	CodeDatabase        Code = "database"
	CodeMigration       Code = "migration"
	CodeTransaction     Code = "transaction"
	CodeSerialization   Code = "serialization"
	CodeVectorSearch    Code = "vector_search"
	CodeEmbeddingStore  Code = "embedding_store"

	// Chunking
	CodeInvalidUTF8     Code = "invalid_utf8"
	CodeChunkTooLarge   Code = "chunk_too_large"
	CodeInvalidConfig   Code = "invalid_config"
	CodeOverlapTooLarge Code = "overlap_too_large"
	CodeParallelFailed  Code = "parallel_failed"
	CodeSemanticFailed  Code = "semantic_failed"
	CodeRegex           Code = "regex"
	CodeUnknownStrategy Code = "unknown_strategy"

	// IO
	CodeFileNotFound   Code = "file_not_found"
	CodeReadFailed     Code = "read_failed"
	CodeWriteFailed    Code = "write_failed"
	CodeMmapFailed     Code = "mmap_failed"
	CodeDirectoryFail  Code = "directory_failed"
	CodePathTraversal  Code = "path_traversal"
	CodeGenericIO      Code = "io_generic"

	// Search
	CodeIndexError        Code = "index_error"
	CodeDimensionMismatch Code = "dimension_mismatch"
	CodeFeatureNotEnabled Code = "feature_not_enabled"

	// Command
	CodeUnknownCommand  Code = "unknown_command"
	CodeInvalidArgument Code = "invalid_argument"
	CodeMissingArgument Code = "missing_argument"
	CodeExecutionFailed Code = "execution_failed"
	CodeCancelled       Code = "cancelled"
	CodeOutputFormat    Code = "output_format"
)

// Error is the structured error type for the corpus store and retrieval
// engine. All library failures surface through it so callers can branch
// on Kind/Code rather than parsing messages.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Details map[string]string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chaining.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by Kind and Code, so sentinel-style comparisons work
// through errors.Is even though each Error instance is allocated fresh.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// WithDetail attaches a key-value detail and returns the error for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New builds a fresh Error of the given kind/code.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap builds an Error of the given kind/code around an existing cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Sentinel constructors mirroring the taxonomy in SPEC_FULL.md §7.

func NotInitialized() *Error {
	return New(KindStorage, CodeNotInitialized, "store has not been initialized")
}

func ContextNotFound() *Error {
	return New(KindStorage, CodeContextNotFound, "no context record in store")
}

func BufferNotFound(identifier string) *Error {
	return New(KindStorage, CodeBufferNotFound, fmt.Sprintf("buffer not found: %s", identifier)).
		WithDetail("identifier", identifier)
}

func ChunkNotFound(id int64) *Error {
	return New(KindStorage, CodeChunkNotFound, fmt.Sprintf("chunk not found: %d", id)).
		WithDetail("id", fmt.Sprintf("%d", id))
}

func Database(msg string, cause error) *Error {
	return Wrap(KindStorage, CodeDatabase, msg, cause)
}

func Migration(msg string, cause error) *Error {
	return Wrap(KindStorage, CodeMigration, msg, cause)
}

func Transaction(msg string, cause error) *Error {
	return Wrap(KindStorage, CodeTransaction, msg, cause)
}

func Serialization(msg string, cause error) *Error {
	return Wrap(KindStorage, CodeSerialization, msg, cause)
}

func InvalidUTF8(offset int) *Error {
	return New(KindChunk, CodeInvalidUTF8, fmt.Sprintf("invalid utf-8 at offset %d", offset)).
		WithDetail("offset", fmt.Sprintf("%d", offset))
}

func ChunkTooLarge(size, max int) *Error {
	return New(KindChunk, CodeChunkTooLarge, fmt.Sprintf("chunk_size %d exceeds maximum %d", size, max)).
		WithDetail("size", fmt.Sprintf("%d", size)).
		WithDetail("max", fmt.Sprintf("%d", max))
}

func InvalidConfig(reason string) *Error {
	return New(KindChunk, CodeInvalidConfig, reason)
}

func OverlapTooLarge(overlap, size int) *Error {
	return New(KindChunk, CodeOverlapTooLarge, fmt.Sprintf("overlap %d >= chunk_size %d", overlap, size)).
		WithDetail("overlap", fmt.Sprintf("%d", overlap)).
		WithDetail("size", fmt.Sprintf("%d", size))
}

func ParallelFailed(reason string, cause error) *Error {
	return Wrap(KindChunk, CodeParallelFailed, reason, cause)
}

func UnknownStrategy(name string) *Error {
	return New(KindChunk, CodeUnknownStrategy, fmt.Sprintf("unknown chunking strategy: %s", name)).
		WithDetail("name", name)
}

func DimensionMismatch(expected, got int) *Error {
	return New(KindSearch, CodeDimensionMismatch, fmt.Sprintf("embedding dimension mismatch: expected %d, got %d", expected, got)).
		WithDetail("expected", fmt.Sprintf("%d", expected)).
		WithDetail("got", fmt.Sprintf("%d", got))
}

func FeatureNotEnabled(feature string) *Error {
	return New(KindSearch, CodeFeatureNotEnabled, fmt.Sprintf("feature not enabled: %s", feature)).
		WithDetail("feature", feature)
}

func IndexError(msg string, cause error) *Error {
	return Wrap(KindSearch, CodeIndexError, msg, cause)
}

func InvalidArgument(msg string) *Error {
	return New(KindCommand, CodeInvalidArgument, msg)
}
