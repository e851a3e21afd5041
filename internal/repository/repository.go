package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"iep-rehearsal/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// SimulationLogRepository stores finished session summaries.
type SimulationLogRepository interface {
	// Save appends one summary and returns the row id.
	Save(ctx context.Context, summary domain.SessionSummary) (int64, error)
	// List returns the newest logs first.
	List(ctx context.Context, filter LogFilter) ([]domain.SimulationLog, error)
	// Count returns the number of logs, optionally for one scenario.
	Count(ctx context.Context, scenarioID string) (int64, error)
}

// SuggestionRepository stores scenario ideas submitted by users.
type SuggestionRepository interface {
	Create(ctx context.Context, suggestion string) (*domain.ScenarioSuggestion, error)
	List(ctx context.Context, limit int) ([]domain.ScenarioSuggestion, error)
}

// LogFilter narrows SimulationLogRepository.List.
type LogFilter struct {
	ScenarioID string
	Limit      int
}

func (f LogFilter) limit() int {
	return clampLimit(f.Limit)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// logRow is the column form of a summary shared by both stores.
type logRow struct {
	parentChoices []byte
	outcomeScores []byte
	meta          []byte
}

func encodeSummary(s domain.SessionSummary) (logRow, error) {
	var row logRow

	row.parentChoices = []byte(s.Choices)
	if len(row.parentChoices) == 0 || !json.Valid(row.parentChoices) {
		if len(row.parentChoices) != 0 {
			return row, fmt.Errorf("%w: parent choices are not valid JSON", domain.ErrTelemetryWrite)
		}
		row.parentChoices = []byte("[]")
	}

	scores := s.OutcomeScores
	if scores == nil {
		scores = []domain.OutcomeScore{}
	}
	var err error
	if row.outcomeScores, err = json.Marshal(scores); err != nil {
		return row, fmt.Errorf("%w: marshal outcome scores: %w", domain.ErrTelemetryWrite, err)
	}

	meta := s.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	if row.meta, err = json.Marshal(meta); err != nil {
		return row, fmt.Errorf("%w: marshal meta: %w", domain.ErrTelemetryWrite, err)
	}
	return row, nil
}

var nowFunc = func() time.Time { return time.Now().UTC() }
