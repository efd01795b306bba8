package diaglog

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteJournal persists diagnostics for post-mortem inspection via
// the CLI.
type SQLiteJournal struct {
	db *sql.DB
}

// OpenSQLiteJournal opens (and migrates) the journal database.
func OpenSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	j := &SQLiteJournal{db: db}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *SQLiteJournal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS diagnostics (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL DEFAULT '',
		stage           TEXT NOT NULL,
		message         TEXT NOT NULL,
		line            TEXT,
		timestamp       DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_diagnostics_conversation
		ON diagnostics(conversation_id, timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Record inserts one diagnostic. Insert failures are swallowed: the
// journal must never take the stream down with it.
func (j *SQLiteJournal) Record(d Diagnostic) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}
	_, _ = j.db.Exec(
		`INSERT INTO diagnostics (id, conversation_id, stage, message, line, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.ConversationID, d.Stage, d.Message, d.Line, d.Timestamp,
	)
}

// List returns diagnostics newest first, optionally filtered by
// conversation.
func (j *SQLiteJournal) List(conversationID string, limit int) ([]Diagnostic, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, conversation_id, stage, message, COALESCE(line, ''), timestamp
		FROM diagnostics`
	args := []any{}
	if conversationID != "" {
		query += ` WHERE conversation_id = ?`
		args = append(args, conversationID)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diagnostic
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.ID, &d.ConversationID, &d.Stage, &d.Message, &d.Line, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
