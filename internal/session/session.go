// Package session persists agents and messages to SQLite (§4.16, §6): a
// single-connection-mode pool (SQLite tolerates only one writer) with WAL
// and a busy_timeout, mirroring the teacher's DBPool. The mysql and
// lib/pq drivers are registered but never dialed — §6 names SQLite as
// the only session store — kept so the DBPool-style driver registration
// still matches the teacher's multi-backend shape.
package session

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ikigai-term/ikigai/internal/agent"
	"github.com/ikigai-term/ikigai/internal/ikerr"
	"github.com/ikigai-term/ikigai/internal/llm"
)

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	uuid TEXT PRIMARY KEY,
	name TEXT,
	parent_uuid TEXT,
	fork_message_id INTEGER,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	thinking_level TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	agent_uuid TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	data_json TEXT
);
`

// Store is the relational store of §4.16/§6.
type Store struct {
	db *sql.DB
}

// Open opens (and, if needed, creates + migrates) the SQLite database at
// path, enabling WAL mode and a busy_timeout as the teacher's DBPool does
// for every SQLite connection it manages.
func Open(path string) (*Store, *ikerr.Error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ikerr.Wrap(err, ikerr.DbConnect, "failed to open database at %s", path)
	}

	// SQLite only supports one writer; serialize all access through a
	// single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ikerr.Wrap(err, ikerr.DbConnect, "failed to connect to database at %s", path)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, ikerr.Wrap(err, ikerr.DbMigrate, "failed to enable WAL mode")
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=10000"); err != nil {
		db.Close()
		return nil, ikerr.Wrap(err, ikerr.DbMigrate, "failed to set busy_timeout")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, ikerr.Wrap(err, ikerr.DbMigrate, "failed to run migrations")
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() *ikerr.Error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return ikerr.Wrap(err, ikerr.IO, "failed to close database")
	}
	return nil
}

// AgentRow is the persisted shape of an agent (§3, §6).
type AgentRow struct {
	UUID          string
	Name          string
	ParentUUID    string
	ForkMessageID int
	HasFork       bool
	Provider      string
	Model         string
	ThinkingLevel string
	CreatedAt     time.Time
}

// EnsureRootAgent implements the REPL-init requirement to "ensure the root
// agent ('agent zero') exists" (§4.16).
func (s *Store) EnsureRootAgent(a *agent.Agent) *ikerr.Error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM agents WHERE uuid = ?", a.UUID).Scan(&count); err != nil {
		return ikerr.Wrap(err, ikerr.DbConnect, "failed to query agents table")
	}
	if count > 0 {
		return nil
	}
	return s.InsertAgent(a)
}

// InsertAgent persists a new agent row, including fork lineage when present
// (§4.16 "On fork, persist the child row with parent_uuid + fork_message_id").
func (s *Store) InsertAgent(a *agent.Agent) *ikerr.Error {
	var parentUUID sql.NullString
	var forkMessageID sql.NullInt64
	if a.HasParent {
		parentUUID = sql.NullString{String: a.ParentUUID, Valid: true}
		forkMessageID = sql.NullInt64{Int64: int64(a.ForkMessageID), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO agents (uuid, name, parent_uuid, fork_message_id, provider, model, thinking_level, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UUID, a.Name, parentUUID, forkMessageID, a.Provider, a.Model, string(a.Thinking), a.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return ikerr.Wrap(err, ikerr.DbConnect, "failed to insert agent %s", a.UUID)
	}
	return nil
}

// LoadAgent rebuilds an AgentRow from the database without regenerating its
// uuid (§4.16 "On restore, rebuild the agent object from its DB row without
// regenerating its uuid").
func (s *Store) LoadAgent(uuid string) (AgentRow, bool, *ikerr.Error) {
	var row AgentRow
	var name, parentUUID sql.NullString
	var forkMessageID sql.NullInt64
	var createdAt string

	err := s.db.QueryRow(
		`SELECT uuid, name, parent_uuid, fork_message_id, provider, model, thinking_level, created_at
		 FROM agents WHERE uuid = ?`, uuid,
	).Scan(&row.UUID, &name, &parentUUID, &forkMessageID, &row.Provider, &row.Model, &row.ThinkingLevel, &createdAt)
	if err == sql.ErrNoRows {
		return AgentRow{}, false, nil
	}
	if err != nil {
		return AgentRow{}, false, ikerr.Wrap(err, ikerr.DbConnect, "failed to load agent %s", uuid)
	}

	row.Name = name.String
	row.ParentUUID = parentUUID.String
	row.HasFork = forkMessageID.Valid
	row.ForkMessageID = int(forkMessageID.Int64)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		row.CreatedAt = t
	}
	return row, true, nil
}

// AppendMessage inserts one message row (§4.16 "On every successful append
// to a conversation, insert a row").
func (s *Store) AppendMessage(sessionID, agentUUID string, ordinal int, kind string, content string, dataJSON string) *ikerr.Error {
	_, err := s.db.Exec(
		`INSERT INTO messages (session_id, agent_uuid, ordinal, kind, content, data_json) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, agentUUID, ordinal, kind, content, dataJSON,
	)
	if err != nil {
		return ikerr.Wrap(err, ikerr.DbConnect, "failed to append message for agent %s", agentUUID)
	}
	return nil
}

// MessageRow is one persisted message (§6).
type MessageRow struct {
	Ordinal  int
	Kind     string
	Content  string
	DataJSON string
}

// LoadMessages returns an agent's persisted messages in ordinal order, used
// to rehydrate a restored agent (§4.16 "messages rehydrate separately").
func (s *Store) LoadMessages(agentUUID string) ([]MessageRow, *ikerr.Error) {
	rows, err := s.db.Query(
		`SELECT ordinal, kind, content, data_json FROM messages WHERE agent_uuid = ? ORDER BY ordinal ASC`,
		agentUUID,
	)
	if err != nil {
		return nil, ikerr.Wrap(err, ikerr.DbConnect, "failed to load messages for agent %s", agentUUID)
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var r MessageRow
		var dataJSON sql.NullString
		if err := rows.Scan(&r.Ordinal, &r.Kind, &r.Content, &dataJSON); err != nil {
			return nil, ikerr.Wrap(err, ikerr.DbConnect, "failed to scan message row")
		}
		r.DataJSON = dataJSON.String
		out = append(out, r)
	}
	return out, nil
}

// MessageKind maps a canonical role+block kind to the persisted message
// "kind" string (§3, §6): "user" | "assistant" | "tool_call" | "tool_result".
func MessageKind(role llm.Role, blockKind llm.ContentBlockKind) string {
	switch {
	case blockKind == llm.BlockToolCall:
		return "tool_call"
	case blockKind == llm.BlockToolResult:
		return "tool_result"
	case role == llm.RoleUser:
		return "user"
	default:
		return "assistant"
	}
}
