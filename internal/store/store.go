package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pavelanni/icapexam/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		token TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS users_token ON users(token) WHERE token <> '';

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		questions_json TEXT NOT NULL DEFAULT '[]',
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS admin_session (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token TEXT NOT NULL,
		issued_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS imported_files (
		path TEXT PRIMARY KEY,
		hash TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertChapter creates a chapter or replaces its name and questions wholesale.
func (s *Store) UpsertChapter(c model.Chapter) error {
	return upsertChapter(s.db, c)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertChapter(db execer, c model.Chapter) error {
	questions := c.Questions
	if questions == nil {
		questions = []model.Question{}
	}
	qj, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO chapters (id, name, questions_json, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, questions_json = excluded.questions_json, updated_at = excluded.updated_at`,
		c.ID, c.Name, string(qj), time.Now(),
	)
	return err
}

// GetChapter returns a chapter by ID, or nil if it does not exist.
func (s *Store) GetChapter(id string) (*model.Chapter, error) {
	var c model.Chapter
	var qj string
	err := s.db.QueryRow(`SELECT id, name, questions_json FROM chapters WHERE id = ?`, id).Scan(&c.ID, &c.Name, &qj)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(qj), &c.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", id, err)
	}
	if c.Questions == nil {
		c.Questions = []model.Question{}
	}
	return &c, nil
}

// ListChapters returns all chapters ordered by ID.
func (s *Store) ListChapters() ([]model.Chapter, error) {
	rows, err := s.db.Query(`SELECT id, name, questions_json FROM chapters ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chapters []model.Chapter
	for rows.Next() {
		var c model.Chapter
		var qj string
		if err := rows.Scan(&c.ID, &c.Name, &qj); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(qj), &c.Questions); err != nil {
			return nil, fmt.Errorf("decode questions of %s: %w", c.ID, err)
		}
		if c.Questions == nil {
			c.Questions = []model.Question{}
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

// DeleteChapter removes a chapter. It reports whether the chapter existed.
func (s *Store) DeleteChapter(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM chapters WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ChapterCount returns the number of stored chapters.
func (s *Store) ChapterCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chapters`).Scan(&count)
	return count, err
}
