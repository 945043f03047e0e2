// Package history keeps the as-played log. Every item the channel
// finishes (or abandons) is appended so the outlet can audit what
// actually aired and when.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS played_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	title       TEXT NOT NULL,
	category    TEXT NOT NULL,
	end_reason  TEXT NOT NULL,
	played_secs REAL NOT NULL,
	played_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_played_items_played_at ON played_items (played_at DESC);
`

type Entry struct {
	Id         int64     `db:"id" json:"id"`
	ItemId     string    `db:"item_id" json:"item_id"`
	Kind       string    `db:"kind" json:"kind"`
	Title      string    `db:"title" json:"title"`
	Category   string    `db:"category" json:"category"`
	EndReason  string    `db:"end_reason" json:"end_reason"`
	PlayedSecs float64   `db:"played_secs" json:"played_secs"`
	PlayedAt   time.Time `db:"played_at" json:"played_at"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(dsn string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{db: db}, nil
}

type RecordParams struct {
	ItemId     string
	Kind       string
	Title      string
	Category   string
	EndReason  string
	PlayedSecs float64
}

func (s *Store) Record(ctx context.Context, params *RecordParams) error {
	_, err := s.db.ExecContext(ctx, `
	  INSERT INTO played_items
	  (item_id, kind, title, category, end_reason, played_secs, played_at)
	  VALUES (?, ?, ?, ?, ?, ?, ?)`,
		params.ItemId, params.Kind, params.Title, params.Category,
		params.EndReason, params.PlayedSecs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record played item: %w", err)
	}

	return nil
}

func (s *Store) GetRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("must request at least one historical item")
	}

	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
	  SELECT id, item_id, kind, title, category, end_reason, played_secs, played_at
	  FROM played_items
	  ORDER BY played_at DESC, id DESC
	  LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
