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

// GetClauseAnnotation returns the cached annotation for a clause, or nil when
// none is stored.
func (s *Store) GetClauseAnnotation(ctx context.Context, documentID, clauseID string) (*core.ClauseAnnotation, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT original, explanation_json, risk_json, model_used FROM clause_annotations
		 WHERE document_id = ? AND clause_id = ?`,
		documentID, clauseID,
	)

	var (
		a           = core.ClauseAnnotation{ID: clauseID}
		explanation string
		risk        string
	)
	if err := row.Scan(&a.Original, &explanation, &risk, &a.ModelUsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(explanation), &a.Explanation); err != nil {
		return nil, fmt.Errorf("decode explanation for %s/%s: %w", documentID, clauseID, err)
	}
	if err := json.Unmarshal([]byte(risk), &a.Risk); err != nil {
		return nil, fmt.Errorf("decode risk for %s/%s: %w", documentID, clauseID, err)
	}
	return &a, nil
}

// UpsertClauseAnnotation stores an annotation, replacing any previous one for
// the same document and clause.
func (s *Store) UpsertClauseAnnotation(ctx context.Context, documentID string, a *core.ClauseAnnotation) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if a == nil || a.ID == "" {
		return errors.New("clause id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	explanation, err := json.Marshal(a.Explanation)
	if err != nil {
		return fmt.Errorf("encode explanation: %w", err)
	}
	risk, err := json.Marshal(a.Risk)
	if err != nil {
		return fmt.Errorf("encode risk: %w", err)
	}

	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO clause_annotations (document_id, clause_id, original, explanation_json, risk_json, model_used, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(document_id, clause_id)
		 DO UPDATE SET original = excluded.original,
		               explanation_json = excluded.explanation_json,
		               risk_json = excluded.risk_json,
		               model_used = excluded.model_used,
		               updated_at = excluded.updated_at`,
		documentID, a.ID, a.Original, string(explanation), string(risk), a.ModelUsed, time.Now().UTC().Unix(),
	)
	return err
}

// ClearClauseAnnotations removes every cached annotation and reports how many
// were deleted.
func (s *Store) ClearClauseAnnotations(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	res, err := s.DB.ExecContext(ctx, `DELETE FROM clause_annotations`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountClauseAnnotations returns the number of cached annotations.
func (s *Store) CountClauseAnnotations(ctx context.Context) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM clause_annotations`).Scan(&n)
	return n, err
}
