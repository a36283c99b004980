package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/doc-qa/internal/db"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("query log entry not found")

// Store provides access to the query log.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts entry. Empty ID and zero Timestamp are filled in.
func (s *Store) Log(ctx context.Context, entry Entry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (id, timestamp, document_id, query, answer, confidence, match_count, processing_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		db.FormatTime(entry.Timestamp),
		entry.DocumentID,
		entry.Query,
		entry.Answer,
		entry.Confidence,
		entry.MatchCount,
		entry.ProcessingMS,
	)
	if err != nil {
		return "", fmt.Errorf("inserting query log entry: %w", err)
	}
	return entry.ID, nil
}

// GetByID retrieves a single entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, timestamp, document_id, query, answer, confidence, match_count, processing_ms
		FROM query_log WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// QueryFilter controls which entries Recent returns.
type QueryFilter struct {
	DocumentID string
	Since      *time.Time
	Limit      int
	Offset     int
}

// Recent returns entries matching filter, newest first.
func (s *Store) Recent(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.DocumentID != "" {
		clauses = append(clauses, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}

	query := "SELECT id, timestamp, document_id, query, answer, confidence, match_count, processing_ms FROM query_log"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying query log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// Count returns the number of logged queries.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM query_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting query log: %w", err)
	}
	return n, nil
}

// Clear removes every entry and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM query_log")
	if err != nil {
		return 0, fmt.Errorf("clearing query log: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e  Entry
		ts string
	)
	err := sc.Scan(&e.ID, &ts, &e.DocumentID, &e.Query, &e.Answer,
		&e.Confidence, &e.MatchCount, &e.ProcessingMS)
	if err != nil {
		return nil, err
	}
	e.Timestamp = db.ParseTime(ts)
	return &e, nil
}
