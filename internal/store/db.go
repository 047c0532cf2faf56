package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"

	"github.com/baxromumarov/job-aggregator/internal/listing"
)

//go:embed schema.sql
var schema string

// Store persists batches into the vacancies table and serves the read side of it.
type Store struct {
	db *sql.DB
}

func NewStore(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunMigrations applies the schema at schemaPath, or the bundled schema when it is empty.
// The schema only uses IF NOT EXISTS statements, so it is safe to run on every start.
func (s *Store) RunMigrations(ctx context.Context, schemaPath string) error {
	ddl := schema
	if schemaPath != "" {
		content, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("failed to read schema file: %w", err)
		}
		ddl = string(content)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to execute schema: %w", pqDetail(err))
	}
	return nil
}

// Append writes every row of batch in one transaction using COPY. Either the whole batch is
// visible afterwards or none of it is. Existing rows are never touched.
func (s *Store) Append(ctx context.Context, batch *listing.Batch) (err error) {
	if batch == nil || batch.Len() == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", pqDetail(err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("vacancies", "company", "vacancy", "apply_link", "scrape_date"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", pqDetail(err))
	}

	for _, row := range batch.Rows() {
		if _, err = stmt.ExecContext(ctx, row.Company, row.Vacancy, row.ApplyLink, row.ScrapeDate); err != nil {
			_ = stmt.Close()
			return fmt.Errorf("copy row: %w", pqDetail(err))
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return fmt.Errorf("flush copy: %w", pqDetail(err))
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", pqDetail(err))
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", pqDetail(err))
	}
	return nil
}

// PQError carries the SQLSTATE of a Postgres failure alongside the driver error.
type PQError struct {
	Code string
	Err  *pq.Error
}

func (e *PQError) Error() string {
	return fmt.Sprintf("pq %s (%s): %s", e.Code, e.Err.Code.Name(), e.Err.Message)
}

func (e *PQError) Unwrap() error {
	return e.Err
}

func pqDetail(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return &PQError{Code: string(pqErr.Code), Err: pqErr}
	}
	return err
}

func clampLimit(limit int, defaultLimit, maxLimit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
