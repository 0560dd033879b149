package store

import (
	"context"
	"errors"
	"fmt"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
// Append only.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			clauses_json TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_updated ON documents(updated_at)`,
	},
	{
		`CREATE TABLE IF NOT EXISTS clause_annotations (
			document_id TEXT NOT NULL,
			clause_id TEXT NOT NULL,
			original TEXT NOT NULL,
			explanation_json TEXT NOT NULL,
			risk_json TEXT NOT NULL,
			model_used TEXT NOT NULL DEFAULT '',
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (document_id, clause_id)
		)`,
	},
}

// Migrate brings the schema up to date. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this build (%d)", current, len(migrations))
	}

	for version := current + 1; version <= len(migrations); version++ {
		if err := s.applyMigration(ctx, version); err != nil {
			return err
		}
	}
	return nil
}

// SchemaVersion returns the number of applied migrations.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) applyMigration(ctx context.Context, version int) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, stmt := range migrations[version-1] {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("migration %d: record version: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", version, err)
	}
	return nil
}
