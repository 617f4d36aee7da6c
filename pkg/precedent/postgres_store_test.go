package precedent

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/tribune/pkg/contracts"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS precedents").
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := NewPostgresStore(db)
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStore_Append(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO precedents").
		WithArgs("p-1", "title", "desc", "reasoning", "resource", "high",
			`["escalate"]`, `["R1"]`, `["quota"]`,
			"VRD-1", "ARB-1", 0.91, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.Append(context.Background(), &contracts.Precedent{
		ID:          "p-1",
		Title:       "title",
		Description: "desc",
		Reasoning:   "reasoning",
		Category:    "resource",
		Severity:    contracts.SeverityHigh,
		Conditions:  []string{"escalate"},
		RuleIDs:     []string{"R1"},
		Keywords:    []string{"quota"},
		VerdictID:   "VRD-1",
		SessionID:   "ARB-1",
		Confidence:  0.91,
		CreatedAt:   time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_List(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	created := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "reasoning", "category", "severity",
		"conditions", "rule_ids", "keywords", "verdict_id", "session_id", "confidence", "created_at",
	}).AddRow("p-1", "title", "desc", "reasoning", "resource", "high",
		`["escalate"]`, `["R1"]`, `["quota"]`, "VRD-1", "ARB-1", 0.91, created)

	mock.ExpectQuery("SELECT (.+) FROM precedents").WillReturnRows(rows)

	got, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)
	assert.Equal(t, contracts.SeverityHigh, got[0].Severity)
	assert.Equal(t, []string{"R1"}, got[0].RuleIDs)
	assert.Equal(t, created, got[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Count(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
