// Package store persists buffers, chunks, embeddings, and context state
// in SQLite, and layers a BM25 lexical index and an optional HNSW
// vector index on top.
package store

// CurrentSchemaVersion is the schema version this build expects.
const CurrentSchemaVersion = 2

// schemaSQL creates every table, index, and BM25 mirror trigger for a
// fresh database. Applying it to an existing v1 database is also safe:
// every statement is IF NOT EXISTS, so it only adds the missing v2
// objects. It does not index chunks that already exist; migrationV1ToV2
// fills the BM25 mirror for those.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_info (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS context (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS buffers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT,
	source_path TEXT,
	content TEXT NOT NULL,
	content_type TEXT,
	content_hash TEXT,
	size INTEGER NOT NULL,
	line_count INTEGER,
	chunk_count INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_buffers_name ON buffers(name);
CREATE INDEX IF NOT EXISTS idx_buffers_hash ON buffers(content_hash);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	buffer_id INTEGER NOT NULL,
	content TEXT NOT NULL,
	byte_start INTEGER NOT NULL,
	byte_end INTEGER NOT NULL,
	chunk_index INTEGER NOT NULL,
	strategy TEXT,
	token_count INTEGER,
	line_start INTEGER,
	line_end INTEGER,
	has_overlap INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT,
	custom_metadata TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (buffer_id) REFERENCES buffers(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_buffer ON chunks(buffer_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_chunks_order ON chunks(buffer_id, chunk_index);

CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS chunk_embeddings (
	chunk_id INTEGER PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimensions INTEGER NOT NULL,
	model_name TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (chunk_id) REFERENCES chunks(id) ON DELETE CASCADE
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
	content,
	content='chunks',
	content_rowid='id',
	tokenize='porter unicode61'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
	INSERT INTO chunks_fts(chunks_fts, rowid, content) VALUES('delete', old.id, old.content);
	INSERT INTO chunks_fts(rowid, content) VALUES (new.id, new.content);
END;
`

// migrationV1ToV2 backfills the BM25 mirror for a store that already
// has buffers/chunks from schema version 1 but predates the embedding
// table and FTS5 index.
const migrationV1ToV2 = `
INSERT INTO chunks_fts(chunks_fts) VALUES('rebuild');
`

// checkSchemaSQL reports whether schema_info exists, distinguishing a
// fresh database from one already initialized.
const checkSchemaSQL = `
SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_info';
`

const getVersionSQL = `SELECT value FROM schema_info WHERE key = 'version';`
const setVersionSQL = `INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?);`
