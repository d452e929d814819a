// Package sqlite stores index metadata in a SQLite file using the pure-Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"finsight/internal/domain"
	"finsight/internal/vectorstore"
)

const schema = `CREATE TABLE IF NOT EXISTS entries (
	chunk_id INTEGER PRIMARY KEY,
	page     INTEGER NOT NULL,
	text     TEXT    NOT NULL
)`

// Codec implements vectorstore.MetadataCodec.
type Codec struct{}

var _ vectorstore.MetadataCodec = Codec{}

func (Codec) FileName() string { return "index.meta.db" }

// Write builds a fresh database next to path and renames it into place.
func (Codec) Write(path string, entries []domain.IndexEntry) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	_ = os.Remove(tmp)
	defer os.Remove(tmp)
	if err := writeDB(tmp, entries); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writeDB(path string, entries []domain.IndexEntry) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (chunk_id, page, text) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ChunkID, e.Page, e.Text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", e.ChunkID, err)
		}
	}
	return tx.Commit()
}

// Read returns all entries ordered by chunk id.
func (Codec) Read(path string) ([]domain.IndexEntry, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.Query(`SELECT chunk_id, page, text FROM entries ORDER BY chunk_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", vectorstore.ErrBadFormat, err)
	}
	defer rows.Close()
	var entries []domain.IndexEntry
	for rows.Next() {
		var e domain.IndexEntry
		if err := rows.Scan(&e.ChunkID, &e.Page, &e.Text); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
