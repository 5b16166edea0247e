package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"relay/models"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed conversation and user store. The agentic loop
// treats it as an append-only history source; the caller persists the final
// assistant answer after the loop returns.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			role TEXT NOT NULL DEFAULT 'user',
			preferred_model TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			archived INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(user_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL,
			message_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			attachments TEXT NOT NULL DEFAULT '',
			tool_calls TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			tool_name TEXT NOT NULL DEFAULT '',
			tool_is_error INTEGER NOT NULL DEFAULT 0,
			model TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, archived, updated_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureUser returns the user, creating it on first sight.
func (s *Store) EnsureUser(id string) (*models.User, error) {
	u, err := s.GetUser(id)
	if err == nil {
		return u, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	_, err = s.db.Exec(
		"INSERT INTO users(id, role, preferred_model, created_at) VALUES(?, 'user', '', ?)",
		id, time.Now().Unix(),
	)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: id, Role: "user"}, nil
}

// GetUser fetches a user by id; sql.ErrNoRows when absent.
func (s *Store) GetUser(id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(
		"SELECT id, role, preferred_model FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Role, &u.PreferredModel)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetPreferredModel persists the user's preferred model alias.
func (s *Store) SetPreferredModel(userID, alias string) error {
	res, err := s.db.Exec("UPDATE users SET preferred_model = ? WHERE id = ?", alias, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// ActiveConversation returns the user's most recent non-archived
// conversation, creating one when none exists.
func (s *Store) ActiveConversation(userID string) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		"SELECT id FROM conversations WHERE user_id = ? AND archived = 0 ORDER BY updated_at DESC LIMIT 1",
		userID,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	now := time.Now().Unix()
	res, err := s.db.Exec(
		"INSERT INTO conversations(user_id, created_at, updated_at, archived) VALUES(?, ?, ?, 0)",
		userID, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ArchiveActive archives every non-archived conversation of the user and
// returns how many were archived.
func (s *Store) ArchiveActive(userID string) (int, error) {
	res, err := s.db.Exec(
		"UPDATE conversations SET archived = 1, updated_at = ? WHERE user_id = ? AND archived = 0",
		time.Now().Unix(), userID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ConversationOwner returns the user id owning a conversation.
func (s *Store) ConversationOwner(conversationID int64) (string, error) {
	var owner string
	err := s.db.QueryRow(
		"SELECT user_id FROM conversations WHERE id = ?", conversationID,
	).Scan(&owner)
	return owner, err
}

// Append stores one message at the end of a conversation.
func (s *Store) Append(conversationID int64, msg models.Message) error {
	attachments := ""
	if len(msg.Attachments) > 0 {
		b, err := json.Marshal(msg.Attachments)
		if err != nil {
			return err
		}
		attachments = string(b)
	}
	toolCalls := ""
	if len(msg.ToolCalls) > 0 {
		b, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return err
		}
		toolCalls = string(b)
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO messages(
			conversation_id, message_id, role, content, attachments, tool_calls,
			tool_call_id, tool_name, tool_is_error, model, input_tokens, output_tokens, latency_ms, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, msg.ID, msg.Role, msg.Content, attachments, toolCalls,
		msg.ToolCallID, msg.ToolName, boolToInt(msg.ToolIsError), msg.Model,
		msg.InputTokens, msg.OutputTokens, msg.LatencyMs, ts.Unix(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("UPDATE conversations SET updated_at = ? WHERE id = ?", ts.Unix(), conversationID)
	return err
}

// History returns a conversation's messages in insertion order.
func (s *Store) History(conversationID int64) ([]models.Message, error) {
	rows, err := s.db.Query(
		`SELECT message_id, role, content, attachments, tool_calls, tool_call_id,
			tool_name, tool_is_error, model, input_tokens, output_tokens, latency_ms, created_at
		FROM messages WHERE conversation_id = ? ORDER BY id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var m models.Message
		var attachments, toolCalls string
		var isErr int
		var createdAt int64
		if err := rows.Scan(
			&m.ID, &m.Role, &m.Content, &attachments, &toolCalls, &m.ToolCallID,
			&m.ToolName, &isErr, &m.Model, &m.InputTokens, &m.OutputTokens, &m.LatencyMs, &createdAt,
		); err != nil {
			return nil, err
		}
		if attachments != "" {
			if err := json.Unmarshal([]byte(attachments), &m.Attachments); err != nil {
				return nil, fmt.Errorf("decoding attachments: %w", err)
			}
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decoding tool calls: %w", err)
			}
		}
		m.ToolIsError = isErr != 0
		m.Timestamp = time.Unix(createdAt, 0)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
