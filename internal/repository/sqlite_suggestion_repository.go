package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"iep-rehearsal/internal/domain"

	"github.com/georgysavva/scany/v2/sqlscan"
	"go.uber.org/zap"
)

const (
	sqliteInsertSuggestionQuery  = `INSERT INTO scenario_suggestions (suggestion, created_at) VALUES (?, ?)`
	sqliteSelectSuggestionsQuery = `SELECT id, suggestion, created_at FROM scenario_suggestions ORDER BY id DESC LIMIT ?`
)

type sqliteSuggestionRow struct {
	ID         int64  `db:"id"`
	Suggestion string `db:"suggestion"`
	CreatedAt  string `db:"created_at"`
}

var _ SuggestionRepository = (*sqliteSuggestionRepository)(nil)

type sqliteSuggestionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteSuggestionRepository(db *sql.DB, logger *zap.Logger) SuggestionRepository {
	return &sqliteSuggestionRepository{db: db, logger: logger.Named("SQLiteSuggestionRepo")}
}

func (r *sqliteSuggestionRepository) Create(ctx context.Context, suggestion string) (*domain.ScenarioSuggestion, error) {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		return nil, fmt.Errorf("%w: suggestion is empty", domain.ErrBadRequest)
	}
	now := nowFunc()
	res, err := r.db.ExecContext(ctx, sqliteInsertSuggestionQuery, suggestion, now.Format(sqliteTimeLayout))
	if err != nil {
		r.logger.Error("Failed to insert suggestion", zap.Error(err))
		return nil, fmt.Errorf("failed to insert suggestion: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read suggestion id: %w", err)
	}
	return &domain.ScenarioSuggestion{ID: id, Suggestion: suggestion, Timestamp: now}, nil
}

func (r *sqliteSuggestionRepository) List(ctx context.Context, limit int) ([]domain.ScenarioSuggestion, error) {
	var rows []sqliteSuggestionRow
	if err := sqlscan.Select(ctx, r.db, &rows, sqliteSelectSuggestionsQuery, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	out := make([]domain.ScenarioSuggestion, 0, len(rows))
	for _, row := range rows {
		ts, err := time.Parse(sqliteTimeLayout, row.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("suggestion %d: parse created_at: %w", row.ID, err)
		}
		out = append(out, domain.ScenarioSuggestion{ID: row.ID, Suggestion: row.Suggestion, Timestamp: ts})
	}
	return out, nil
}
