package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/doc-qa/internal/db"
)

// Store persists document records.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// Upsert inserts doc or refreshes the descriptive fields of an existing
// record. Status, chunk count and creation time of an existing record are
// kept.
func (s *Store) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if doc.Status == "" {
		doc.Status = StatusUnindexed
	}
	now := db.FormatTime(s.now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, url, filename, file_size, mime_type, status, chunk_count, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			filename = CASE WHEN excluded.filename != '' THEN excluded.filename ELSE documents.filename END,
			file_size = CASE WHEN excluded.file_size > 0 THEN excluded.file_size ELSE documents.file_size END,
			mime_type = CASE WHEN excluded.mime_type != '' THEN excluded.mime_type ELSE documents.mime_type END,
			updated_at = excluded.updated_at`,
		doc.ID, doc.URL, doc.Filename, doc.FileSize, doc.MIMEType,
		string(doc.Status), doc.ChunkCount, doc.Error, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", doc.ID, err)
	}
	return nil
}

// SetStatus moves a document to status. chunkCount is recorded for
// StatusIndexed; errMsg is recorded for StatusFailed and cleared otherwise.
func (s *Store) SetStatus(ctx context.Context, id string, status Status, chunkCount int, errMsg string) error {
	if status != StatusFailed {
		errMsg = ""
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, chunk_count = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), chunkCount, errMsg, db.FormatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("updating document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns one document.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, filename, file_size, mime_type, status, chunk_count, error, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// List returns documents, newest first. An empty status lists all.
func (s *Store) List(ctx context.Context, status Status) ([]Document, error) {
	query := `SELECT id, url, filename, file_size, mime_type, status, chunk_count, error, created_at, updated_at FROM documents`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

// Delete removes a document record.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes every record and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM documents")
	if err != nil {
		return 0, fmt.Errorf("clearing documents: %w", err)
	}
	return res.RowsAffected()
}

// CountByStatus returns the number of documents in each status. Every
// status is present in the result.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	counts := map[Status]int{
		StatusUnindexed: 0,
		StatusIndexing:  0,
		StatusIndexed:   0,
		StatusFailed:    0,
	}
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM documents GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (*Document, error) {
	var (
		d                Document
		status           string
		created, updated string
	)
	err := sc.Scan(&d.ID, &d.URL, &d.Filename, &d.FileSize, &d.MIMEType,
		&status, &d.ChunkCount, &d.Error, &created, &updated)
	if err != nil {
		return nil, err
	}
	d.Status = Status(status)
	d.CreatedAt = db.ParseTime(created)
	d.UpdatedAt = db.ParseTime(updated)
	return &d, nil
}
