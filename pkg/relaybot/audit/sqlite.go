// sqlite.go stores audit records in a SQLite table. The table is insert-only;
// the read path exists for the operator CLI.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.

	"github.com/jholhewres/relaybot/pkg/relaybot/channels"
)

// schema is executed on every open (idempotent via IF NOT EXISTS).
const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    record_id         TEXT NOT NULL UNIQUE,
    created_at        TEXT NOT NULL,
    channel           TEXT DEFAULT '',
    conversation_id   TEXT NOT NULL,
    conversation_name TEXT DEFAULT '',
    conversation_kind TEXT NOT NULL,
    sender_id         TEXT NOT NULL,
    sender_name       TEXT DEFAULT '',
    input_text        TEXT NOT NULL,
    output_text       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_records_created ON audit_records(created_at);
`

// SQLiteSink appends records to the audit_records table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLiteSink opens (or creates) the audit database at path.
func OpenSQLiteSink(path string) (*SQLiteSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// Write implements Sink.
func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_records (record_id, created_at, channel, conversation_id, conversation_name,
			conversation_kind, sender_id, sender_name, input_text, output_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Channel, rec.ConversationID,
		rec.ConversationName, string(rec.ConversationKind), rec.SenderID, rec.SenderName,
		rec.Input, rec.Output,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Recent returns the last n records, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, created_at, channel, conversation_id, conversation_name,
			conversation_kind, sender_id, sender_name, input_text, output_text
		FROM audit_records
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec       Record
			createdAt string
			kind      string
		)
		if err := rows.Scan(&rec.ID, &createdAt, &rec.Channel, &rec.ConversationID, &rec.ConversationName,
			&kind, &rec.SenderID, &rec.SenderName, &rec.Input, &rec.Output); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.ConversationKind = channels.ConversationKind(kind)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.Timestamp = ts.Local()
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count)
	return count, err
}

// Close closes the database.
func (s *SQLiteSink) Close() error { return s.db.Close() }
