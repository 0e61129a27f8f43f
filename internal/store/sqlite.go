package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Create(ctx context.Context, link ShortLink) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links(short_id, original_url, total_clicks, unique_clicks, created_at, updated_at) VALUES(?, ?, 0, 0, ?, ?)`,
		link.ShortID, link.OriginalURL, link.CreatedAt.UTC(), link.UpdatedAt.UTC())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, shortID string) (ShortLink, error) {
	var out ShortLink
	row := s.db.QueryRowContext(ctx,
		`SELECT short_id, original_url, total_clicks, unique_clicks, created_at, updated_at FROM links WHERE short_id = ?`, shortID)
	if err := row.Scan(&out.ShortID, &out.OriginalURL, &out.TotalClicks, &out.UniqueClicks, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ShortLink{}, ErrNotFound
		}
		return ShortLink{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT visitor_id, city FROM visitors WHERE short_id = ? ORDER BY id`, shortID)
	if err != nil {
		return ShortLink{}, err
	}
	defer rows.Close()
	out.VisitorDetails = []Visitor{}
	for rows.Next() {
		var v Visitor
		if err := rows.Scan(&v.VisitorID, &v.City); err != nil {
			return ShortLink{}, err
		}
		out.VisitorDetails = append(out.VisitorDetails, v)
	}
	return out, rows.Err()
}

// List returns every link in creation order. Both reads share one
// transaction so counters and visitor lists agree.
func (s *SQLite) List(ctx context.Context) ([]ShortLink, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT short_id, original_url, total_clicks, unique_clicks, created_at, updated_at FROM links ORDER BY id`)
	if err != nil {
		return nil, err
	}
	res := []ShortLink{}
	index := make(map[string]int)
	for rows.Next() {
		l := ShortLink{VisitorDetails: []Visitor{}}
		if err := rows.Scan(&l.ShortID, &l.OriginalURL, &l.TotalClicks, &l.UniqueClicks, &l.CreatedAt, &l.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		index[l.ShortID] = len(res)
		res = append(res, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vrows, err := tx.QueryContext(ctx, `SELECT short_id, visitor_id, city FROM visitors ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var code string
		var v Visitor
		if err := vrows.Scan(&code, &v.VisitorID, &v.City); err != nil {
			return nil, err
		}
		if i, ok := index[code]; ok {
			res[i].VisitorDetails = append(res[i].VisitorDetails, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, err
	}
	return res, tx.Commit()
}

// RecordVisit bumps total_clicks and, when the (short_id, visitor_id) pair
// is new, appends the visitor and bumps unique_clicks. All in one
// transaction; the unique index decides novelty.
func (s *SQLite) RecordVisit(ctx context.Context, v Visit) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	ts := v.Ts.UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE links SET total_clicks = total_clicks + 1, updated_at = ? WHERE short_id = ?`, ts, v.ShortID)
	if err != nil {
		return false, fmt.Errorf("bump total clicks: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n == 0 {
		return false, ErrNotFound
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO visitors(short_id, visitor_id, city, created_at) VALUES(?, ?, ?, ?) ON CONFLICT(short_id, visitor_id) DO NOTHING`,
		v.ShortID, v.VisitorID, v.City, ts)
	if err != nil {
		return false, fmt.Errorf("insert visitor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	novel := n == 1
	if novel {
		if _, err := tx.ExecContext(ctx,
			`UPDATE links SET unique_clicks = unique_clicks + 1 WHERE short_id = ?`, v.ShortID); err != nil {
			return false, fmt.Errorf("bump unique clicks: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return novel, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// Migrate ensures schema exists
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			short_id TEXT UNIQUE NOT NULL,
			original_url TEXT NOT NULL,
			total_clicks INTEGER NOT NULL DEFAULT 0,
			unique_clicks INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			short_id TEXT NOT NULL REFERENCES links(short_id),
			visitor_id TEXT NOT NULL,
			city TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(short_id, visitor_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_short_id ON visitors(short_id, id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens dsn, tunes the pool the way SQLite likes and migrates.
func OpenSQLite(dsn string, maxConns int) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return NewSQLite(db), nil
}
