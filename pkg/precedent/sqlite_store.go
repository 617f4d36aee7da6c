package precedent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists precedents in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an open database handle and ensures the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS precedents (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        description TEXT,
        reasoning TEXT,
        category TEXT,
        severity TEXT,
        conditions JSON,
        rule_ids JSON,
        keywords JSON,
        verdict_id TEXT,
        session_id TEXT,
        confidence REAL,
        created_at DATETIME NOT NULL
    );`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, p *contracts.Precedent) error {
	query := `INSERT INTO precedents (
		id, title, description, reasoning, category, severity, conditions, rule_ids, keywords, verdict_id, session_id, confidence, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	conditions, _ := json.Marshal(p.Conditions)
	ruleIDs, _ := json.Marshal(p.RuleIDs)
	keywords, _ := json.Marshal(p.Keywords)
	createdAt := p.CreatedAt.UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Title, p.Description, p.Reasoning, p.Category, string(p.Severity),
		string(conditions), string(ruleIDs), string(keywords),
		p.VerdictID, p.SessionID, p.Confidence, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert precedent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]*contracts.Precedent, error) {
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
		p, err := scanPrecedentRow(rows)
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

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM precedents`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanPrecedentRow(rows *sql.Rows) (*contracts.Precedent, error) {
	var (
		id          string
		title       string
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
		createdAt   string
	)
	if err := rows.Scan(&id, &title, &description, &reasoning, &category, &severity,
		&conditions, &ruleIDs, &keywords, &verdictID, &sessionID, &confidence, &createdAt); err != nil {
		return nil, err
	}

	p := &contracts.Precedent{
		ID:          id,
		Title:       title,
		Description: description.String,
		Reasoning:   reasoning.String,
		Category:    category.String,
		Severity:    contracts.Severity(severity.String),
		VerdictID:   verdictID.String,
		SessionID:   sessionID.String,
		Confidence:  confidence.Float64,
		CreatedAt:   parseTime(createdAt),
	}
	unmarshalStrings(conditions, &p.Conditions)
	unmarshalStrings(ruleIDs, &p.RuleIDs)
	unmarshalStrings(keywords, &p.Keywords)
	return p, nil
}

func unmarshalStrings(col sql.NullString, dst *[]string) {
	if col.Valid && col.String != "" {
		_ = json.Unmarshal([]byte(col.String), dst)
	}
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	return time.Time{}
}
