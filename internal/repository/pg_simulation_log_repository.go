package repository

import (
	"context"
	"fmt"
	"strings"

	"iep-rehearsal/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"
)

const (
	pgInsertLogQuery = `
		INSERT INTO simulation_logs (
			created_at, session_id, scenario_id, mode, parent_choices, outcome_scores,
			start_time, end_time, elapsed_seconds, user_agent, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`

	pgSelectLogsQuery = `
		SELECT id, created_at, session_id, scenario_id, mode, parent_choices, outcome_scores,
			start_time, end_time, elapsed_seconds, user_agent, meta
		FROM simulation_logs
		WHERE ($1 = '' OR scenario_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	pgCountLogsQuery = `SELECT COUNT(*) FROM simulation_logs WHERE ($1 = '' OR scenario_id = $1)`

	pgInsertSuggestionQuery  = `INSERT INTO scenario_suggestions (suggestion, created_at) VALUES ($1, $2) RETURNING id`
	pgSelectSuggestionsQuery = `SELECT id, suggestion, created_at FROM scenario_suggestions ORDER BY created_at DESC, id DESC LIMIT $1`
)

var (
	_ SimulationLogRepository = (*pgSimulationLogRepository)(nil)
	_ SuggestionRepository    = (*pgSuggestionRepository)(nil)
)

type pgSimulationLogRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgSimulationLogRepository(db DBTX, logger *zap.Logger) SimulationLogRepository {
	return &pgSimulationLogRepository{db: db, logger: logger.Named("PgSimulationLogRepo")}
}

func (r *pgSimulationLogRepository) Save(ctx context.Context, s domain.SessionSummary) (int64, error) {
	log := r.logger.With(zap.String("sessionID", s.SessionID), zap.String("scenarioID", s.ScenarioID))

	row, err := encodeSummary(s)
	if err != nil {
		return 0, err
	}
	var id int64
	err = r.db.QueryRow(ctx, pgInsertLogQuery,
		nowFunc(), s.SessionID, s.ScenarioID, string(s.Mode),
		row.parentChoices, row.outcomeScores,
		s.StartTime.UTC(), s.EndTime.UTC(), s.ElapsedSeconds, s.UserAgent, row.meta,
	).Scan(&id)
	if err != nil {
		log.Error("Failed to insert simulation log", zap.Error(err))
		return 0, fmt.Errorf("%w: insert simulation log: %w", domain.ErrTelemetryWrite, err)
	}
	log.Debug("Simulation log saved", zap.Int64("id", id))
	return id, nil
}

func (r *pgSimulationLogRepository) List(ctx context.Context, filter LogFilter) ([]domain.SimulationLog, error) {
	logs := make([]domain.SimulationLog, 0)
	if err := pgxscan.Select(ctx, r.db, &logs, pgSelectLogsQuery, filter.ScenarioID, filter.limit()); err != nil {
		r.logger.Error("Failed to list simulation logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list simulation logs: %w", err)
	}
	return logs, nil
}

func (r *pgSimulationLogRepository) Count(ctx context.Context, scenarioID string) (int64, error) {
	var n int64
	if err := pgxscan.Get(ctx, r.db, &n, pgCountLogsQuery, scenarioID); err != nil {
		return 0, fmt.Errorf("failed to count simulation logs: %w", err)
	}
	return n, nil
}

type pgSuggestionRepository struct {
	db     DBTX
	logger *zap.Logger
}

func NewPgSuggestionRepository(db DBTX, logger *zap.Logger) SuggestionRepository {
	return &pgSuggestionRepository{db: db, logger: logger.Named("PgSuggestionRepo")}
}

func (r *pgSuggestionRepository) Create(ctx context.Context, suggestion string) (*domain.ScenarioSuggestion, error) {
	suggestion = strings.TrimSpace(suggestion)
	if suggestion == "" {
		return nil, fmt.Errorf("%w: suggestion is empty", domain.ErrBadRequest)
	}
	out := &domain.ScenarioSuggestion{Suggestion: suggestion, Timestamp: nowFunc()}
	if err := r.db.QueryRow(ctx, pgInsertSuggestionQuery, out.Suggestion, out.Timestamp).Scan(&out.ID); err != nil {
		r.logger.Error("Failed to insert suggestion", zap.Error(err))
		return nil, fmt.Errorf("failed to insert suggestion: %w", err)
	}
	return out, nil
}

func (r *pgSuggestionRepository) List(ctx context.Context, limit int) ([]domain.ScenarioSuggestion, error) {
	out := make([]domain.ScenarioSuggestion, 0)
	if err := pgxscan.Select(ctx, r.db, &out, pgSelectSuggestionsQuery, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	return out, nil
}
