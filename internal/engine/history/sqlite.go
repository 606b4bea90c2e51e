package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS turns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	video_id   TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_video ON turns(video_id, id);

CREATE TABLE IF NOT EXISTS summaries (
	video_id       TEXT NOT NULL,
	summary_type   TEXT NOT NULL,
	summary_length TEXT NOT NULL,
	summary_text   TEXT NOT NULL,
	generated_at   TEXT NOT NULL,
	PRIMARY KEY (video_id, summary_type, summary_length)
);
`

// SQLiteStore is the default single-process history backend.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the history database at path. An empty
// path defaults to ~/.go_tube/history.db.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		dir := filepath.Join(os.Getenv("HOME"), ".go_tube")
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
		}
		path = filepath.Join(dir, "history.db")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) AppendTurn(ctx context.Context, videoID string, turn engine.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns (video_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		videoID, string(turn.Role), turn.Content, ts.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Turns(ctx context.Context, videoID string) ([]engine.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE video_id = ? ORDER BY id`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query turns: %w", err)
	}
	defer rows.Close()

	var turns []engine.Turn
	for rows.Next() {
		var role, content, createdAt string
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339, createdAt)
		turns = append(turns, engine.Turn{Role: engine.Role(role), Content: content, Timestamp: ts})
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, rec engine.SummaryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summaries (video_id, summary_type, summary_length, summary_text, generated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(video_id, summary_type, summary_length)
		 DO UPDATE SET summary_text = excluded.summary_text, generated_at = excluded.generated_at`,
		rec.VideoID, rec.SummaryType, rec.SummaryLength, rec.SummaryText, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("history: save summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Summary(ctx context.Context, videoID, summaryType, summaryLength string) (engine.SummaryRecord, bool, error) {
	rec := engine.SummaryRecord{VideoID: videoID, SummaryType: summaryType, SummaryLength: summaryLength}
	err := s.db.QueryRowContext(ctx,
		`SELECT summary_text, generated_at FROM summaries
		 WHERE video_id = ? AND summary_type = ? AND summary_length = ?`,
		videoID, summaryType, summaryLength,
	).Scan(&rec.SummaryText, &rec.GeneratedAt)
	if err == sql.ErrNoRows {
		return engine.SummaryRecord{}, false, nil
	}
	if err != nil {
		return engine.SummaryRecord{}, false, fmt.Errorf("history: query summary: %w", err)
	}
	return rec, true, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
