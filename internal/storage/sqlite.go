package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sjawhar/aura-calm/internal/calm"
)

var _ calm.Catalog = (*SQLiteStore)(nil)

// SQLiteStore holds the calm-corner reference content. It never stores
// anything from a monitoring session.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "aura-calm.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			position INTEGER NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create videos table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tips (
			position INTEGER PRIMARY KEY,
			text TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create tips table: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Seed replaces the catalog content in one transaction.
func (s *SQLiteStore) Seed(ctx context.Context, videos []calm.Video, tips []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM videos`); err != nil {
		return fmt.Errorf("clear videos: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tips`); err != nil {
		return fmt.Errorf("clear tips: %w", err)
	}

	for i, v := range videos {
		if strings.TrimSpace(v.ID) == "" {
			return errors.New("video id is required")
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO videos(id, description, position) VALUES(?, ?, ?)`,
			v.ID, strings.TrimSpace(v.Description), i,
		); err != nil {
			return fmt.Errorf("insert video %s: %w", v.ID, err)
		}
	}
	for i, tip := range tips {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO tips(position, text) VALUES(?, ?)`,
			i, strings.TrimSpace(tip),
		); err != nil {
			return fmt.Errorf("insert tip %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}
	return nil
}

// SeedIfEmpty seeds the defaults on first use and leaves edited content
// alone afterwards.
func (s *SQLiteStore) SeedIfEmpty(ctx context.Context, videos []calm.Video, tips []string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count); err != nil {
		return false, fmt.Errorf("count videos: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if err := s.Seed(ctx, videos, tips); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Videos(ctx context.Context) ([]calm.Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, description FROM videos ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	videos := make([]calm.Video, 0, 8)
	for rows.Next() {
		var v calm.Video
		if err := rows.Scan(&v.ID, &v.Description); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}

	return videos, nil
}

func (s *SQLiteStore) Video(ctx context.Context, id string) (calm.Video, bool, error) {
	var v calm.Video
	err := s.db.QueryRowContext(ctx, `SELECT id, description FROM videos WHERE id = ?`, id).Scan(&v.ID, &v.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return calm.Video{}, false, nil
	}
	if err != nil {
		return calm.Video{}, false, fmt.Errorf("query video %s: %w", id, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) Tips(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT text FROM tips ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query tips: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tips []string
	for rows.Next() {
		var tip string
		if err := rows.Scan(&tip); err != nil {
			return nil, fmt.Errorf("scan tip: %w", err)
		}
		tips = append(tips, tip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tip rows: %w", err)
	}

	return tips, nil
}
