package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/tenderflow/internal/models"
	_ "modernc.org/sqlite"
)

// SQLite keeps chunks in a local database file for runs without a MongoDB deployment.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens path with WAL enabled and creates the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create chunk store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	tender_id TEXT NOT NULL,
	document_name TEXT NOT NULL,
	page INTEGER NOT NULL,
	position INTEGER NOT NULL,
	sub_position INTEGER NOT NULL,
	type TEXT NOT NULL,
	is_scanned INTEGER NOT NULL,
	text TEXT NOT NULL,
	embedding TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(tender_id, document_name);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create chunk schema: %w", err)
	}
	return nil
}

func (s *SQLite) Save(ctx context.Context, chunks []models.EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks
		(tender_id, document_name, page, position, sub_position, type, is_scanned, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		vec, err := json.Marshal(c.Embedding)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, c.TenderID, c.DocumentName, c.Page, c.Position, c.SubPosition,
			c.Type, c.IsScanned, c.Text, string(vec)); err != nil {
			return fmt.Errorf("failed to insert chunk %s p%d/%d: %w", c.DocumentName, c.Page, c.Position, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) DeleteResults(ctx context.Context, tenderID, document string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE tender_id = ? AND document_name = ?", tenderID, document); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", document, err)
	}
	return nil
}

func (s *SQLite) Count(ctx context.Context, tenderID, document string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks WHERE tender_id = ? AND document_name = ?", tenderID, document).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks of %s: %w", document, err)
	}
	return n, nil
}

// Chunks returns the document's chunks in page and position order.
func (s *SQLite) Chunks(ctx context.Context, tenderID, document string) ([]models.EmbeddedChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT page, position, sub_position, type, is_scanned, text, embedding
		FROM chunks WHERE tender_id = ? AND document_name = ?
		ORDER BY page, position, sub_position`, tenderID, document)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EmbeddedChunk
	for rows.Next() {
		c := models.EmbeddedChunk{Chunk: models.Chunk{TenderID: tenderID, DocumentName: document}}
		var vec string
		if err := rows.Scan(&c.Page, &c.Position, &c.SubPosition, &c.Type, &c.IsScanned, &c.Text, &vec); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vec), &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
