package company

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// SQLiteStore persists company definitions in a SQLite database. The
// full definition is stored as a JSON document alongside the indexed
// id and name columns.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSQLiteStore opens (creating if necessary) the company database at
// dbPath
func NewSQLiteStore(dbPath string, logger zerolog.Logger) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS companies (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			definition TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
	`)
	return err
}

// SaveCompany upserts a company definition
func (s *SQLiteStore) SaveCompany(ctx context.Context, c Company) error {
	definition, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal company: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO companies (id, name, definition, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			definition = excluded.definition,
			updated_at = excluded.updated_at
	`, c.ID, c.Name, string(definition), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save company %s: %w", c.ID, err)
	}

	s.logger.Debug().Str("companyId", c.ID).Msg("Company persisted")

	return nil
}

// DeleteCompany removes a company definition. Unknown ids are a no-op.
func (s *SQLiteStore) DeleteCompany(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM companies WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete company %s: %w", id, err)
	}
	return nil
}

// LoadCompanies returns every stored company definition
func (s *SQLiteStore) LoadCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT definition FROM companies ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query companies: %w", err)
	}
	defer rows.Close()

	companies := []Company{}
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}

		var c Company
		if err := json.Unmarshal([]byte(definition), &c); err != nil {
			return nil, fmt.Errorf("failed to unmarshal company: %w", err)
		}
		companies = append(companies, c)
	}

	return companies, rows.Err()
}

// Close releases the underlying database handle
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
