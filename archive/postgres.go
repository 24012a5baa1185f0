package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Jxika/gemini-fullstack-langgraph-quickstart/errors"
)

// PostgresStore keeps reports in a research_reports table with the full
// report as JSONB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens dsn with lib/pq and creates the table if needed.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn", errors.ErrMissingConfig)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}
	store := NewPostgresStoreWithDB(db)
	if err := store.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

// NewPostgresStoreWithDB wraps an open database without touching the schema.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS research_reports (
		id VARCHAR(64) PRIMARY KEY,
		topic TEXT NOT NULL,
		body JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_research_reports_created_at ON research_reports(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save upserts the report.
func (s *PostgresStore) Save(ctx context.Context, report *Report) error {
	if err := validate(report); err != nil {
		return err
	}
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	query := `
	INSERT INTO research_reports (id, topic, body, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		topic = EXCLUDED.topic,
		body = EXCLUDED.body
	`
	if _, err := s.db.ExecContext(ctx, query, report.SessionID, report.Topic, string(body), report.CreatedAt); err != nil {
		return fmt.Errorf("failed to save report to PostgreSQL: %w", err)
	}
	return nil
}

// Load reads one report.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Report, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM research_reports WHERE id = $1`, id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	return decodeReport(body)
}

// List returns the newest reports.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM research_reports ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	out := make([]*Report, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		report, err := decodeReport(body)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func decodeReport(body []byte) (*Report, error) {
	var report Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}
