package precedent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"

	_ "github.com/lib/pq"
)

// PostgresStore persists precedents in PostgreSQL for multi-instance
// deployments sharing one precedent corpus.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle and ensures the schema.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS precedents (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        description TEXT,
        reasoning TEXT,
        category TEXT,
        severity TEXT,
        conditions JSONB,
        rule_ids JSONB,
        keywords JSONB,
        verdict_id TEXT,
        session_id TEXT,
        confidence DOUBLE PRECISION,
        created_at TIMESTAMPTZ NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_precedents_category ON precedents (category);
    CREATE INDEX IF NOT EXISTS idx_precedents_created_at ON precedents (created_at DESC);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *PostgresStore) Append(ctx context.Context, p *contracts.Precedent) error {
	query := `INSERT INTO precedents (
		id, title, description, reasoning, category, severity, conditions, rule_ids, keywords, verdict_id, session_id, confidence, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	conditions, _ := json.Marshal(p.Conditions)
	ruleIDs, _ := json.Marshal(p.RuleIDs)
	keywords, _ := json.Marshal(p.Keywords)

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Description, p.Reasoning, p.Category, string(p.Severity),
		string(conditions), string(ruleIDs), string(keywords),
		p.VerdictID, p.SessionID, p.Confidence, p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert precedent: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*contracts.Precedent, error) {
	query := `
        SELECT id, title, description, reasoning, category, severity, conditions, rule_ids, keywords, verdict_id, session_id, confidence, created_at
        FROM precedents
        ORDER BY created_at DESC
    `
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var precedents []*contracts.Precedent
	for rows.Next() {
		p, err := scanPostgresRow(rows)
		if err != nil {
			return nil, err
		}
		precedents = append(precedents, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return precedents, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM precedents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPostgresRow(rows *sql.Rows) (*contracts.Precedent, error) {
	var (
		p           contracts.Precedent
		description sql.NullString
		reasoning   sql.NullString
		category    sql.NullString
		severity    sql.NullString
		conditions  sql.NullString
		ruleIDs     sql.NullString
		keywords    sql.NullString
		verdictID   sql.NullString
		sessionID   sql.NullString
		confidence  sql.NullFloat64
	)
	if err := rows.Scan(&p.ID, &p.Title, &description, &reasoning, &category, &severity,
		&conditions, &ruleIDs, &keywords, &verdictID, &sessionID, &confidence, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Description = description.String
	p.Reasoning = reasoning.String
	p.Category = category.String
	p.Severity = contracts.Severity(severity.String)
	p.VerdictID = verdictID.String
	p.SessionID = sessionID.String
	p.Confidence = confidence.Float64
	unmarshalStrings(conditions, &p.Conditions)
	unmarshalStrings(ruleIDs, &p.RuleIDs)
	unmarshalStrings(keywords, &p.Keywords)
	return &p, nil
}
