package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rlmfs/rlm/internal/corpus"
	rlmerr "github.com/rlmfs/rlm/internal/errors"
)

// Store is the persistent corpus store: buffers, chunks, embeddings,
// context state, and the BM25 mirror, all in one SQLite database.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	lock   *processLock
}

// Open creates or opens a SQLite-backed store at path ("" for an
// in-memory store, used by tests) and brings its schema up to date.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	var lock *processLock
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, rlmerr.Database("failed to create store directory", err)
			}
		}
		dsn = path + "?_pragma=busy_timeout(5000)"

		lock = newProcessLock(path)
		if err := lock.acquire(); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if lock != nil {
			_ = lock.release()
		}
		return nil, rlmerr.Database("failed to open database", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if lock != nil {
				_ = lock.release()
			}
			return nil, rlmerr.Database("failed to set pragma", err)
		}
	}

	s := &Store{db: db, path: path, lock: lock}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		if lock != nil {
			_ = lock.release()
		}
		return nil, err
	}
	return s, nil
}

// migrate brings a fresh or v1 database up to CurrentSchemaVersion.
func (s *Store) migrate() error {
	var tableCount int
	if err := s.db.QueryRow(checkSchemaSQL).Scan(&tableCount); err != nil {
		return rlmerr.Migration("failed to check schema state", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaSQL); err != nil {
			return rlmerr.Migration("failed to apply initial schema", err)
		}
		if _, err := s.db.Exec(setVersionSQL, fmt.Sprintf("%d", CurrentSchemaVersion)); err != nil {
			return rlmerr.Migration("failed to stamp schema version", err)
		}
		return nil
	}

	var versionStr string
	err := s.db.QueryRow(getVersionSQL).Scan(&versionStr)
	version := 1
	if err == nil {
		_, _ = fmt.Sscanf(versionStr, "%d", &version)
	}

	if version < CurrentSchemaVersion {
		tx, err := s.db.Begin()
		if err != nil {
			return rlmerr.Migration("failed to begin migration transaction", err)
		}
		if _, err := tx.Exec(schemaSQL); err != nil {
			_ = tx.Rollback()
			return rlmerr.Migration("failed to apply v2 schema objects", err)
		}
		if _, err := tx.Exec(migrationV1ToV2); err != nil {
			_ = tx.Rollback()
			return rlmerr.Migration("failed to backfill BM25 mirror", err)
		}
		if _, err := tx.Exec(setVersionSQL, fmt.Sprintf("%d", CurrentSchemaVersion)); err != nil {
			_ = tx.Rollback()
			return rlmerr.Migration("failed to stamp schema version", err)
		}
		if err := tx.Commit(); err != nil {
			return rlmerr.Migration("failed to commit migration", err)
		}
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.path != "" {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}
	err := s.db.Close()
	if s.lock != nil {
		if lockErr := s.lock.release(); lockErr != nil && err == nil {
			err = lockErr
		}
	}
	return err
}

// InsertBuffer persists a new buffer and returns its assigned id.
func (s *Store) InsertBuffer(ctx context.Context, b *corpus.Buffer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Name != "" {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buffers WHERE name = ?`, b.Name).Scan(&exists); err != nil {
			return 0, rlmerr.Database("failed to check buffer name uniqueness", err)
		}
		if exists > 0 {
			return 0, rlmerr.New(rlmerr.KindStorage, rlmerr.CodeDatabase, "buffer name already exists: "+b.Name)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO buffers (name, source_path, content, content_type, content_hash, size, line_count, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullString(b.Name), nullString(b.SourcePath), b.Content, nullString(b.ContentType), nullString(b.ContentHash),
		b.Size, nullIntPtr(b.LineCount), nullIntPtr(b.ChunkCount), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return 0, rlmerr.Database("failed to insert buffer", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, rlmerr.Database("failed to read inserted buffer id", err)
	}
	return id, nil
}

// GetBuffer fetches a buffer by id.
func (s *Store) GetBuffer(ctx context.Context, id int64) (*corpus.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_path, content, content_type, content_hash, size, line_count, chunk_count, created_at, updated_at
		FROM buffers WHERE id = ?`, id)
	b, err := scanBuffer(row)
	if err == sql.ErrNoRows {
		return nil, rlmerr.BufferNotFound(fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, rlmerr.Database("failed to read buffer", err)
	}
	return b, nil
}

// GetBufferByName fetches a buffer by its unique name.
func (s *Store) GetBufferByName(ctx context.Context, name string) (*corpus.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, source_path, content, content_type, content_hash, size, line_count, chunk_count, created_at, updated_at
		FROM buffers WHERE name = ?`, name)
	b, err := scanBuffer(row)
	if err == sql.ErrNoRows {
		return nil, rlmerr.BufferNotFound(name)
	}
	if err != nil {
		return nil, rlmerr.Database("failed to read buffer", err)
	}
	return b, nil
}

// ListBuffers returns every buffer, ordered by id, for directory
// enumeration by the filesystem projection.
func (s *Store) ListBuffers(ctx context.Context) ([]*corpus.Buffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, source_path, content, content_type, content_hash, size, line_count, chunk_count, created_at, updated_at
		FROM buffers ORDER BY id`)
	if err != nil {
		return nil, rlmerr.Database("failed to list buffers", err)
	}
	defer rows.Close()

	var buffers []*corpus.Buffer
	for rows.Next() {
		b, err := scanBuffer(rows)
		if err != nil {
			return nil, rlmerr.Database("failed to scan buffer", err)
		}
		buffers = append(buffers, b)
	}
	if err := rows.Err(); err != nil {
		return nil, rlmerr.Database("failed to list buffers", err)
	}
	return buffers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBuffer(row rowScanner) (*corpus.Buffer, error) {
	var b corpus.Buffer
	var id int64
	var name, sourcePath, contentType, contentHash sql.NullString
	var lineCount, chunkCount sql.NullInt64

	if err := row.Scan(&id, &name, &sourcePath, &b.Content, &contentType, &contentHash,
		&b.Size, &lineCount, &chunkCount, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}

	b.ID = &id
	b.Name = name.String
	b.SourcePath = sourcePath.String
	b.ContentType = contentType.String
	b.ContentHash = contentHash.String
	if lineCount.Valid {
		n := int(lineCount.Int64)
		b.LineCount = &n
	}
	if chunkCount.Valid {
		n := int(chunkCount.Int64)
		b.ChunkCount = &n
	}
	return &b, nil
}

// DeleteBuffer removes a buffer; chunks and embeddings cascade.
func (s *Store) DeleteBuffer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM buffers WHERE id = ?`, id)
	if err != nil {
		return rlmerr.Database("failed to delete buffer", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rlmerr.BufferNotFound(fmt.Sprintf("%d", id))
	}
	return nil
}

// InsertChunks stores every chunk for a buffer in one transaction,
// then separately updates the buffer's chunk_count. The two steps are
// intentionally not combined into a single transaction: the reference
// implementation commits the chunk insert first and updates the count
// as a follow-up statement, so a count read mid-ingest can briefly
// lag the actually-committed chunk rows.
func (s *Store) InsertChunks(ctx context.Context, bufferID int64, chunks []*corpus.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return rlmerr.Transaction("failed to begin chunk insert", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (buffer_id, content, byte_start, byte_end, chunk_index, strategy, token_count, line_start, line_end, has_overlap, content_hash, custom_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		s.mu.Unlock()
		return rlmerr.Transaction("failed to prepare chunk insert", err)
	}

	for _, c := range chunks {
		hasOverlap := 0
		if c.HasOverlap {
			hasOverlap = 1
		}
		if _, err := stmt.ExecContext(ctx, bufferID, c.Content, c.ByteStart, c.ByteEnd, c.Index, nullString(c.Strategy),
			nullIntPtr(c.TokenCount), nullIntPtr(c.LineStart), nullIntPtr(c.LineEnd), hasOverlap,
			nullString(c.ContentHash), nullString(c.CustomMeta), c.CreatedAt); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			s.mu.Unlock()
			return rlmerr.Transaction("failed to insert chunk", err)
		}
	}
	_ = stmt.Close()

	if err := tx.Commit(); err != nil {
		s.mu.Unlock()
		return rlmerr.Transaction("failed to commit chunk insert", err)
	}
	s.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `UPDATE buffers SET chunk_count = (SELECT COUNT(*) FROM chunks WHERE buffer_id = ?) WHERE id = ?`,
		bufferID, bufferID); err != nil {
		return rlmerr.Database("failed to update buffer chunk count", err)
	}
	return nil
}

// GetChunks returns every chunk of a buffer ordered by chunk_index.
func (s *Store) GetChunks(ctx context.Context, bufferID int64) ([]*corpus.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, buffer_id, content, byte_start, byte_end, chunk_index, strategy, token_count, line_start, line_end, has_overlap, content_hash, custom_metadata, created_at
		FROM chunks WHERE buffer_id = ? ORDER BY chunk_index`, bufferID)
	if err != nil {
		return nil, rlmerr.Database("failed to query chunks", err)
	}
	defer rows.Close()

	var chunks []*corpus.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, rlmerr.Database("failed to scan chunk", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// GetChunk fetches a single chunk by id.
func (s *Store) GetChunk(ctx context.Context, id int64) (*corpus.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, buffer_id, content, byte_start, byte_end, chunk_index, strategy, token_count, line_start, line_end, has_overlap, content_hash, custom_metadata, created_at
		FROM chunks WHERE id = ?`, id)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, rlmerr.ChunkNotFound(id)
	}
	if err != nil {
		return nil, rlmerr.Database("failed to read chunk", err)
	}
	return c, nil
}

func scanChunk(row rowScanner) (*corpus.Chunk, error) {
	var c corpus.Chunk
	var id int64
	var strategy, contentHash, customMeta sql.NullString
	var tokenCount, lineStart, lineEnd sql.NullInt64
	var hasOverlap int

	if err := row.Scan(&id, &c.BufferID, &c.Content, &c.ByteStart, &c.ByteEnd, &c.Index, &strategy,
		&tokenCount, &lineStart, &lineEnd, &hasOverlap, &contentHash, &customMeta, &c.CreatedAt); err != nil {
		return nil, err
	}

	c.ID = &id
	c.Strategy = strategy.String
	c.ContentHash = contentHash.String
	c.CustomMeta = customMeta.String
	c.HasOverlap = hasOverlap != 0
	if tokenCount.Valid {
		n := int(tokenCount.Int64)
		c.TokenCount = &n
	}
	if lineStart.Valid {
		n := int(lineStart.Int64)
		c.LineStart = &n
	}
	if lineEnd.Valid {
		n := int(lineEnd.Int64)
		c.LineEnd = &n
	}
	return &c, nil
}

// UpsertEmbedding stores a chunk's embedding, replacing any prior one.
func (s *Store) UpsertEmbedding(ctx context.Context, chunkID int64, vector []float32, modelName string, createdAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob := encodeVector(vector)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunk_embeddings (chunk_id, embedding, dimensions, model_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET embedding = excluded.embedding, dimensions = excluded.dimensions,
			model_name = excluded.model_name, created_at = excluded.created_at`,
		chunkID, blob, len(vector), modelName, createdAt)
	if err != nil {
		return rlmerr.Database("failed to upsert embedding", err)
	}
	return nil
}

// GetEmbedding fetches a single chunk's embedding, if present.
func (s *Store) GetEmbedding(ctx context.Context, chunkID int64) (*corpus.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob []byte
	var modelName sql.NullString
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT embedding, model_name, created_at FROM chunk_embeddings WHERE chunk_id = ?`, chunkID).
		Scan(&blob, &modelName, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, rlmerr.Database("failed to read embedding", err)
	}
	return &corpus.Embedding{ChunkID: chunkID, Vector: decodeVector(blob), ModelName: modelName.String, CreatedAt: createdAt}, nil
}

// GetAllEmbeddings returns every stored embedding, for brute-force
// cosine search when the HNSW accelerator is unavailable.
func (s *Store) GetAllEmbeddings(ctx context.Context) ([]*corpus.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, embedding, model_name, created_at FROM chunk_embeddings`)
	if err != nil {
		return nil, rlmerr.Database("failed to query embeddings", err)
	}
	defer rows.Close()

	var out []*corpus.Embedding
	for rows.Next() {
		var e corpus.Embedding
		var blob []byte
		var modelName sql.NullString
		if err := rows.Scan(&e.ChunkID, &blob, &modelName, &e.CreatedAt); err != nil {
			return nil, rlmerr.Database("failed to scan embedding", err)
		}
		e.Vector = decodeVector(blob)
		e.ModelName = modelName.String
		out = append(out, &e)
	}
	return out, rows.Err()
}

// BufferFullyEmbedded reports whether every chunk of a buffer has an
// embedding (vacuously true for a buffer with no chunks).
func (s *Store) BufferFullyEmbedded(ctx context.Context, bufferID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total, embedded int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE buffer_id = ?`, bufferID).Scan(&total); err != nil {
		return false, rlmerr.Database("failed to count chunks", err)
	}
	if total == 0 {
		return true, nil
	}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM chunks c JOIN chunk_embeddings e ON e.chunk_id = c.id WHERE c.buffer_id = ?`, bufferID).Scan(&embedded)
	if err != nil {
		return false, rlmerr.Database("failed to count embedded chunks", err)
	}
	return embedded == total, nil
}

// BM25Result is a single lexical search hit.
type BM25Result struct {
	ChunkID int64
	Score   float64
}

// SearchBM25 runs a BM25-ranked full-text search over chunk content.
func (s *Store) SearchBM25(ctx context.Context, query string, limit int) ([]BM25Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := TokenizeQuery(query)
	if len(tokens) == 0 {
		return nil, nil
	}
	matchExpr := buildMatchExpr(tokens)

	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, bm25(chunks_fts) AS score FROM chunks_fts WHERE chunks_fts MATCH ? ORDER BY score LIMIT ?`,
		matchExpr, limit)
	if err != nil {
		return nil, rlmerr.IndexError("bm25 search failed", err)
	}
	defer rows.Close()

	var results []BM25Result
	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, rlmerr.IndexError("bm25 scan failed", err)
		}
		// FTS5 bm25() returns negative values where lower is better.
		results = append(results, BM25Result{ChunkID: id, Score: -score})
	}
	return results, rows.Err()
}

// GetMetadata fetches a single metadata value.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, rlmerr.Database("failed to read metadata", err)
	}
	return value, true, nil
}

// SetMetadata upserts a metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string, now int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return rlmerr.Database("failed to write metadata", err)
	}
	return nil
}

// GetContext loads the singleton context record, if one exists.
func (s *Store) GetContext(ctx context.Context) (*corpus.Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT data, created_at, updated_at FROM context WHERE id = 1`).
		Scan(&data, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, rlmerr.ContextNotFound()
	}
	if err != nil {
		return nil, rlmerr.Database("failed to read context", err)
	}

	var c corpus.Context
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, rlmerr.Serialization("failed to decode context", err)
	}
	c.CreatedAt = createdAt
	c.UpdatedAt = updatedAt
	return &c, nil
}

// SaveContext upserts the singleton context record.
func (s *Store) SaveContext(ctx context.Context, c *corpus.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(c)
	if err != nil {
		return rlmerr.Serialization("failed to encode context", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context (id, data, created_at, updated_at) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return rlmerr.Database("failed to write context", err)
	}
	return nil
}

// Stats reports store-wide counters for the stats.json projection.
func (s *Store) Stats(ctx context.Context) (*corpus.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &corpus.Stats{SchemaVersion: CurrentSchemaVersion}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buffers`).Scan(&stats.BufferCount); err != nil {
		return nil, rlmerr.Database("failed to count buffers", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&stats.ChunkCount); err != nil {
		return nil, rlmerr.Database("failed to count chunks", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size), 0) FROM buffers`).Scan(&stats.TotalBytes); err != nil {
		return nil, rlmerr.Database("failed to sum buffer sizes", err)
	}

	var contextCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM context`).Scan(&contextCount); err != nil {
		return nil, rlmerr.Database("failed to count context rows", err)
	}
	stats.HasContext = contextCount > 0

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.OnDiskBytes = info.Size()
		}
	}

	return stats, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
