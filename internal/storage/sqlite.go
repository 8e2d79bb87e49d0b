package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "postar/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cycle_state (
	pool     TEXT    NOT NULL,
	position INTEGER NOT NULL,
	item     TEXT    NOT NULL,
	PRIMARY KEY (pool, position)
);
CREATE TABLE IF NOT EXISTS deliveries (
	id         TEXT PRIMARY KEY,
	at         TEXT    NOT NULL,
	slot       TEXT    NOT NULL,
	post_type  TEXT    NOT NULL,
	post_hash  TEXT    NOT NULL,
	media      TEXT,
	with_media INTEGER NOT NULL,
	chat_id    INTEGER NOT NULL,
	message_id INTEGER,
	ok         INTEGER NOT NULL,
	err        TEXT,
	took_ms    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS deliveries_at ON deliveries(at);
`

// tsLayout is fixed-width so lexical order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = FULL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Load(ctx context.Context) State {
	st := State{}
	rows, err := s.db.QueryContext(ctx, `SELECT pool, item FROM cycle_state ORDER BY pool, position`)
	if err != nil {
		s.log.Warn("state unreadable; starting fresh", logx.Err(err))
		return st
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var pool, item string
		if err := rows.Scan(&pool, &item); err != nil {
			s.log.Warn("state corrupt; starting fresh", logx.Err(err))
			return State{}
		}
		st[pool] = append(st[pool], item)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("state unreadable; starting fresh", logx.Err(err))
		return State{}
	}
	return st
}

// Save replaces every row in one transaction.
func (s *sqliteStore) Save(ctx context.Context, st State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStatePersist, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM cycle_state`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrStatePersist, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO cycle_state(pool, position, item) VALUES(?,?,?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrStatePersist, err)
	}
	defer func() { _ = stmt.Close() }()
	for pool, items := range st {
		for i, item := range items {
			if _, err = stmt.ExecContext(ctx, pool, i, item); err != nil {
				return fmt.Errorf("%w: insert: %v", ErrStatePersist, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStatePersist, err)
	}
	return nil
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, rec DeliveryRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(id, at, slot, post_type, post_hash, media, with_media, chat_id, message_id, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.At.UTC().Format(tsLayout), rec.Trigger, rec.PostType, rec.PostHash,
		nullStr(rec.Media), rec.WithMedia, rec.ChatID, rec.MessageID, rec.OK, nullStr(rec.Error), rec.TookMS,
	)
	return err
}

func (s *sqliteStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, slot, post_type, post_hash, media, with_media, chat_id, message_id, ok, err, took_ms
		 FROM deliveries ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []DeliveryRecord
	for rows.Next() {
		var (
			rec       DeliveryRecord
			at        string
			media, e  sql.NullString
			messageID sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &at, &rec.Trigger, &rec.PostType, &rec.PostHash, &media,
			&rec.WithMedia, &rec.ChatID, &messageID, &rec.OK, &e, &rec.TookMS); err != nil {
			return nil, err
		}
		rec.At, _ = time.Parse(tsLayout, at)
		rec.Media = media.String
		rec.Error = e.String
		rec.MessageID = int(messageID.Int64)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
