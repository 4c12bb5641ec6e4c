// Package store persists completed correlation records to SQLite so timing
// samples survive the process and can be inspected offline.
//
// The engine never blocks on persistence: Record enqueues into a bounded
// buffer and evicts the oldest entry when full; a single Run goroutine
// drains the buffer into the database and prunes rows past retention.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fangwater/feedrace/internal/config"
	"github.com/fangwater/feedrace/internal/engine"
)

const (
	bufferSize    = 512
	pruneInterval = 10 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS completions (
	key          INTEGER NOT NULL,
	first_source TEXT    NOT NULL,
	first_ms     INTEGER NOT NULL,
	second_ms    INTEGER NOT NULL,
	diff_ms      REAL    NOT NULL,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS completions_created_at ON completions (created_at);
`

// Recorder is the asynchronous SQLite sink for completed pairs.
type Recorder struct {
	db        *sql.DB
	buf       chan engine.Record
	retention time.Duration
}

// Open creates (or opens) the database at cfg.Path and prepares the schema.
func Open(cfg config.StorageConfig) (*Recorder, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", cfg.Path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Recorder{
		db:        db,
		buf:       make(chan engine.Record, bufferSize),
		retention: cfg.Retention,
	}, nil
}

// Record enqueues one completed pair. It never blocks: when the buffer is
// full the oldest queued record is dropped in favor of the newest.
func (r *Recorder) Record(rec engine.Record) {
	select {
	case r.buf <- rec:
	default:
		select {
		case <-r.buf:
			slog.Warn("store: buffer full, dropped oldest record", "buffer_cap", cap(r.buf))
		default:
		}
		r.buf <- rec
	}
}

// Run drains the buffer into SQLite and prunes expired rows periodically.
// It blocks until ctx is cancelled, then flushes whatever is still queued.
func (r *Recorder) Run(ctx context.Context) {
	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return

		case rec := <-r.buf:
			if err := r.insert(rec); err != nil {
				slog.Error("store: insert failed", "key", rec.Key, "err", err)
			}

		case now := <-prune.C:
			if n, err := r.Prune(now.Add(-r.retention)); err != nil {
				slog.Error("store: prune failed", "err", err)
			} else if n > 0 {
				slog.Info("store: pruned expired records", "count", n)
			}
		}
	}
}

// Prune deletes completions created before cutoff and returns the row count.
func (r *Recorder) Prune(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM completions WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("store: delete expired: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying database. Call after Run has returned.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func (r *Recorder) insert(rec engine.Record) error {
	_, err := r.db.Exec(
		`INSERT INTO completions (key, first_source, first_ms, second_ms, diff_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Key,
		rec.FirstSource.String(),
		rec.FirstAt.UnixMilli(),
		rec.SecondAt.UnixMilli(),
		float64(rec.Diff)/float64(time.Millisecond),
		time.Now().UnixMilli(),
	)
	return err
}

// flush performs a best-effort drain of queued records during shutdown.
func (r *Recorder) flush() {
	for {
		select {
		case rec := <-r.buf:
			if err := r.insert(rec); err != nil {
				slog.Error("store: insert failed during flush", "key", rec.Key, "err", err)
			}
		default:
			return
		}
	}
}
