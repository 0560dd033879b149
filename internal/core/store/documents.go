package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/clauselens/clauselens/internal/core"
)

// SaveDocument inserts or replaces a document session.
func (s *Store) SaveDocument(ctx context.Context, doc *core.Document) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if doc == nil || doc.ID == "" {
		return errors.New("document id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	clauses := doc.Clauses
	if clauses == nil {
		clauses = []core.ClauseRecord{}
	}
	clausesJSON, err := json.Marshal(clauses)
	if err != nil {
		return fmt.Errorf("encode clauses: %w", err)
	}

	created := doc.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	updated := doc.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO documents (id, filename, doc_type, clauses_json, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id)
		 DO UPDATE SET filename = excluded.filename,
		               doc_type = excluded.doc_type,
		               clauses_json = excluded.clauses_json,
		               summary = excluded.summary,
		               updated_at = excluded.updated_at`,
		doc.ID, doc.Filename, doc.DocType, string(clausesJSON), doc.Summary, created.Unix(), updated.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save document %s: %w", doc.ID, err)
	}
	return nil
}

// GetDocument returns a stored document, or nil when the id is unknown.
func (s *Store) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT filename, doc_type, clauses_json, summary, created_at, updated_at
		 FROM documents WHERE id = ?`, id)

	var (
		doc         = core.Document{ID: id}
		clausesJSON string
		created     int64
		updated     int64
	)
	if err := row.Scan(&doc.Filename, &doc.DocType, &clausesJSON, &doc.Summary, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(clausesJSON), &doc.Clauses); err != nil {
		return nil, fmt.Errorf("decode clauses for %s: %w", id, err)
	}
	doc.CreatedAt = time.Unix(created, 0).UTC()
	doc.UpdatedAt = time.Unix(updated, 0).UTC()
	return &doc, nil
}

// DeleteDocument removes a document session. Cached clause annotations stay.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// CountDocuments returns the number of stored sessions.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// PruneDocuments deletes sessions not updated since before.
func (s *Store) PruneDocuments(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE updated_at < ?`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
