// Package memory persists the knowledge graph, fact store and episodic
// buffer in a single SQLite database owned by one process.
package memory

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/cocolabs/coco/pkg/extract"
	"github.com/cocolabs/coco/pkg/logger"
)

// sqliteTimeFormat is the timestamp format used for all SQLite datetime values.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// edgeWeightDelta is added to an edge's weight on every re-observation.
const edgeWeightDelta = 0.1

// fts5CreateTable is the DDL for the fact search index, shared between
// createSchema() and rebuildFTS() to keep them in sync.
const fts5CreateTable = `CREATE VIRTUAL TABLE IF NOT EXISTS facts_fts USING fts5(
	content, context, content='facts', content_rowid='id'
)`

// fts5TriggerDDL defines the triggers that keep the FTS index in sync.
var fts5TriggerDDL = []string{
	`CREATE TRIGGER IF NOT EXISTS facts_ai AFTER INSERT ON facts BEGIN
		INSERT INTO facts_fts(rowid, content, context)
		VALUES (new.id, new.content, new.context);
	END`,
	`CREATE TRIGGER IF NOT EXISTS facts_ad AFTER DELETE ON facts BEGIN
		INSERT INTO facts_fts(facts_fts, rowid, content, context)
		VALUES ('delete', old.id, old.content, old.context);
	END`,
}

// MemoryDB manages the SQLite-backed memory database.
type MemoryDB struct {
	db        *sql.DB
	workspace string
	dbPath    string
	log       zerolog.Logger
}

// Open creates or opens the memory database at workspace/memory/coco.db.
func Open(workspace string) (*MemoryDB, error) {
	memoryDir := filepath.Join(workspace, "memory")
	if err := os.MkdirAll(memoryDir, 0755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}

	dbPath := filepath.Join(memoryDir, "coco.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	// Foreign keys drive cascade deletes for edges, mentions and aliases.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	mdb := &MemoryDB{
		db:        db,
		workspace: workspace,
		dbPath:    dbPath,
		log:       logger.For("memory"),
	}

	if err := mdb.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return mdb, nil
}

// Close closes the database connection.
func (m *MemoryDB) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}

// DBPath returns the path to the database file.
func (m *MemoryDB) DBPath() string {
	return m.dbPath
}

// Workspace returns the workspace path.
func (m *MemoryDB) Workspace() string {
	return m.workspace
}

func (m *MemoryDB) createSchema() error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS nodes (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		name          TEXT NOT NULL,
		canonical     TEXT NOT NULL UNIQUE,
		type          TEXT NOT NULL CHECK (type IN (%s)),
		summary       TEXT NOT NULL DEFAULT '',
		properties    TEXT NOT NULL DEFAULT '{}',
		importance    REAL NOT NULL DEFAULT 0.5,
		confidence    REAL NOT NULL DEFAULT 1.0,
		mention_count INTEGER NOT NULL DEFAULT 1,
		first_seen    DATETIME NOT NULL DEFAULT (datetime('now')),
		last_seen     DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type, importance DESC);

	CREATE TABLE IF NOT EXISTS edges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		source_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		target_id   INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		type        TEXT NOT NULL CHECK (type IN (%s)),
		description TEXT NOT NULL DEFAULT '',
		weight      REAL NOT NULL DEFAULT 0.5,
		first_seen  DATETIME NOT NULL DEFAULT (datetime('now')),
		last_seen   DATETIME NOT NULL DEFAULT (datetime('now')),
		UNIQUE(source_id, target_id, type)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
	CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);

	CREATE TABLE IF NOT EXISTS mentions (
		id         TEXT PRIMARY KEY,
		node_id    INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		episode_id INTEGER,
		surface    TEXT NOT NULL,
		context    TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 1.0,
		created_at DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_mentions_node ON mentions(node_id);

	CREATE TABLE IF NOT EXISTS aliases (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		node_id         INTEGER NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
		alias           TEXT NOT NULL,
		canonical_alias TEXT NOT NULL UNIQUE,
		created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS facts (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		type         TEXT NOT NULL CHECK (type IN (%s)),
		content      TEXT NOT NULL,
		context      TEXT NOT NULL DEFAULT '',
		importance   REAL NOT NULL DEFAULT 0.5,
		confidence   REAL NOT NULL DEFAULT 1.0,
		access_count INTEGER NOT NULL DEFAULT 0,
		tags         TEXT NOT NULL DEFAULT '',
		created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
		UNIQUE(type, content)
	);

	CREATE TABLE IF NOT EXISTS episodes (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		user_text          TEXT NOT NULL,
		assistant_text     TEXT NOT NULL,
		token_estimate     INTEGER NOT NULL DEFAULT 0,
		summarized         INTEGER NOT NULL DEFAULT 0,
		compression_level  INTEGER NOT NULL DEFAULT 0,
		compressed_content TEXT NOT NULL DEFAULT '',
		created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_summarized ON episodes(summarized, id);

	CREATE TABLE IF NOT EXISTS summaries (
		id               TEXT PRIMARY KEY,
		content          TEXT NOT NULL,
		start_episode_id INTEGER NOT NULL,
		end_episode_id   INTEGER NOT NULL,
		episode_count    INTEGER NOT NULL,
		importance       REAL NOT NULL DEFAULT 0.5,
		is_gist          INTEGER NOT NULL DEFAULT 0,
		created_at       DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS context_builds (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		query              TEXT NOT NULL DEFAULT '',
		pressure           REAL NOT NULL,
		zone               TEXT NOT NULL,
		summaries_injected INTEGER NOT NULL DEFAULT 0,
		facts_injected     INTEGER NOT NULL DEFAULT 0,
		documents_injected INTEGER NOT NULL DEFAULT 0,
		token_estimate     INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`,
		quoteEnum(entityTypeNames()),
		quoteEnum(relationTypeNames()),
		quoteEnum(factTypeNames()),
	)

	if _, err := m.db.Exec(schema); err != nil {
		return err
	}
	if _, err := m.db.Exec(fts5CreateTable); err != nil {
		return err
	}
	for _, stmt := range fts5TriggerDDL {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func entityTypeNames() []string {
	names := make([]string, len(extract.AllEntityTypes))
	for i, t := range extract.AllEntityTypes {
		names[i] = string(t)
	}
	return names
}

func relationTypeNames() []string {
	names := make([]string, len(extract.AllRelationTypes))
	for i, t := range extract.AllRelationTypes {
		names[i] = string(t)
	}
	return names
}

func factTypeNames() []string {
	names := make([]string, len(extract.AllFactTypes))
	for i, t := range extract.AllFactTypes {
		names[i] = string(t)
	}
	return names
}

// quoteEnum renders names as a quoted, comma-separated list for CHECK (IN (...)).
func quoteEnum(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return strings.Join(quoted, ", ")
}

// parseTime parses a timestamp string, trying sqliteTimeFormat first then RFC3339.
func parseTime(s string) time.Time {
	if t, err := time.Parse(sqliteTimeFormat, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nowString() string {
	return time.Now().UTC().Format(sqliteTimeFormat)
}
