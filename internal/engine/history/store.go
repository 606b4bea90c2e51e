// Package history persists per-video conversation turns and generated
// summaries so follow-up questions survive process restarts.
package history

import (
	"context"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_tube/internal/engine"
)

// Store is the persistence surface for conversations and summaries.
type Store interface {
	// AppendTurn records one conversation turn for a video.
	AppendTurn(ctx context.Context, videoID string, turn engine.Turn) error
	// Turns returns all turns for a video, oldest first.
	Turns(ctx context.Context, videoID string) ([]engine.Turn, error)
	// SaveSummary upserts a generated summary.
	SaveSummary(ctx context.Context, rec engine.SummaryRecord) error
	// Summary looks up a stored summary for a type/length combination.
	Summary(ctx context.Context, videoID, summaryType, summaryLength string) (engine.SummaryRecord, bool, error)
	Close() error
}

// Open picks a backend from the connection string: postgres:// URLs get
// pgx, anything else is treated as a SQLite file path. Empty string
// opens the default SQLite location.
func Open(ctx context.Context, dsn string) (Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		st, err := ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		slog.Info("history: using postgres store")
		return st, nil
	}
	st, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}
	slog.Info("history: using sqlite store", slog.String("path", st.Path()))
	return st, nil
}
