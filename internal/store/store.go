// Package store persists generated audio under the output directory and
// records each generation in SQLite.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
)

var ErrNotFound = errors.New("generated file not found")

// Generation is one row of synthesis history.
type Generation struct {
	ID         int64     `db:"id" json:"id"`
	Filename   string    `db:"filename" json:"filename"`
	Voice      string    `db:"voice" json:"voice"`
	Engine     string    `db:"engine" json:"engine"`
	Language   string    `db:"language" json:"language"`
	SampleRate int       `db:"sample_rate" json:"sample_rate"`
	ByteSize   int       `db:"byte_size" json:"byte_size"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Store owns the output directory and the generation history table.
type Store struct {
	db  *sqlx.DB
	dir string
}

// New opens the history database and ensures the output directory exists.
func New(databasePath, outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite3", databasePath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, dir: outputDir}
	if err := s.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables() error {
	generationsTable := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT UNIQUE NOT NULL,
		voice TEXT NOT NULL,
		engine TEXT NOT NULL,
		language TEXT NOT NULL,
		sample_rate INTEGER NOT NULL,
		byte_size INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_generations_filename ON generations(filename);`,
		`CREATE INDEX IF NOT EXISTS idx_generations_voice ON generations(voice);`,
	}

	if _, err := s.db.Exec(generationsTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	for _, index := range indexes {
		if _, err := s.db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// OutputFilename derives a collision-resistant file name: a content hash
// over text and reference audio for traceability, plus an xid so two
// requests with identical inputs never overwrite each other.
func OutputFilename(text, refAudio string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + refAudio))
	return fmt.Sprintf("generated_%s_%s.wav", hex.EncodeToString(sum[:8]), xid.New().String())
}

// SaveWAV writes the encoded audio under the output directory and records
// the generation.
func (s *Store) SaveWAV(data []byte, gen Generation) (Generation, error) {
	path := filepath.Join(s.dir, gen.Filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Generation{}, fmt.Errorf("failed to write %s: %w", path, err)
	}

	gen.ByteSize = len(data)
	gen.CreatedAt = time.Now().UTC()

	res, err := s.db.NamedExec(`
		INSERT INTO generations (filename, voice, engine, language, sample_rate, byte_size, created_at)
		VALUES (:filename, :voice, :engine, :language, :sample_rate, :byte_size, :created_at)`, gen)
	if err != nil {
		return Generation{}, fmt.Errorf("failed to record generation: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		gen.ID = id
	}
	return gen, nil
}

// Resolve maps a download file name back to its on-disk path. Only names
// the store handed out are served: the name must be a bare file name with a
// matching history row and an existing file.
func (s *Store) Resolve(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: invalid name %q", ErrNotFound, filename)
	}

	var count int
	if err := s.db.Get(&count, `SELECT COUNT(*) FROM generations WHERE filename = ?`, filename); err != nil {
		return "", fmt.Errorf("failed to query generations: %w", err)
	}
	if count == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}

	path := filepath.Join(s.dir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return path, nil
}

// Recent returns the newest generations, most recent first.
func (s *Store) Recent(limit int) ([]Generation, error) {
	if limit <= 0 {
		limit = 20
	}
	var gens []Generation
	err := s.db.Select(&gens, `
		SELECT id, filename, voice, engine, language, sample_rate, byte_size, created_at
		FROM generations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	return gens, nil
}

// Close closes the history database.
func (s *Store) Close() error {
	return s.db.Close()
}
