package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS turns (
	id         BIGSERIAL PRIMARY KEY,
	video_id   TEXT NOT NULL,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
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

// PostgresStore backs history with a pgx pool for multi-instance
// deployments.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres creates a pgx pool and ensures the schema exists.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("history: parse database URL: %w", err)
	}
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("history: create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, videoID string, turn engine.Turn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO turns (video_id, role, content, created_at) VALUES ($1, $2, $3, $4)`,
		videoID, string(turn.Role), turn.Content, ts,
	)
	if err != nil {
		return fmt.Errorf("history: append turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) Turns(ctx context.Context, videoID string) ([]engine.Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role, content, created_at FROM turns WHERE video_id = $1 ORDER BY id`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("history: query turns: %w", err)
	}
	defer rows.Close()

	var turns []engine.Turn
	for rows.Next() {
		var role, content string
		var createdAt time.Time
		if err := rows.Scan(&role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan turn: %w", err)
		}
		turns = append(turns, engine.Turn{Role: engine.Role(role), Content: content, Timestamp: createdAt})
	}
	return turns, rows.Err()
}

func (s *PostgresStore) SaveSummary(ctx context.Context, rec engine.SummaryRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO summaries (video_id, summary_type, summary_length, summary_text, generated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (video_id, summary_type, summary_length)
		 DO UPDATE SET summary_text = EXCLUDED.summary_text, generated_at = EXCLUDED.generated_at`,
		rec.VideoID, rec.SummaryType, rec.SummaryLength, rec.SummaryText, rec.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("history: save summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) Summary(ctx context.Context, videoID, summaryType, summaryLength string) (engine.SummaryRecord, bool, error) {
	rec := engine.SummaryRecord{VideoID: videoID, SummaryType: summaryType, SummaryLength: summaryLength}
	err := s.pool.QueryRow(ctx,
		`SELECT summary_text, generated_at FROM summaries
		 WHERE video_id = $1 AND summary_type = $2 AND summary_length = $3`,
		videoID, summaryType, summaryLength,
	).Scan(&rec.SummaryText, &rec.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return engine.SummaryRecord{}, false, nil
	}
	if err != nil {
		return engine.SummaryRecord{}, false, fmt.Errorf("history: query summary: %w", err)
	}
	return rec, true, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
