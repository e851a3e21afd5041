package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"iep-rehearsal/internal/domain"

	"github.com/georgysavva/scany/v2/sqlscan"
	"go.uber.org/zap"
)

const (
	sqliteInsertLogQuery = `
		INSERT INTO simulation_logs (
			created_at, session_id, scenario_id, mode, parent_choices, outcome_scores,
			start_time, end_time, elapsed_seconds, user_agent, meta
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	// JSON columns are cast to BLOB so they scan straight into json.RawMessage.
	sqliteSelectLogsQuery = `
		SELECT id, created_at, session_id, scenario_id, mode,
			CAST(parent_choices AS BLOB) AS parent_choices,
			CAST(outcome_scores AS BLOB) AS outcome_scores,
			start_time, end_time, elapsed_seconds, user_agent,
			CAST(meta AS BLOB) AS meta
		FROM simulation_logs
		WHERE (? = '' OR scenario_id = ?)
		ORDER BY id DESC
		LIMIT ?`

	sqliteCountLogsQuery = `SELECT COUNT(*) FROM simulation_logs WHERE (? = '' OR scenario_id = ?)`
)

// sqliteTimeLayout keeps stored timestamps lexically sortable.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteLogRow mirrors the table; timestamps are stored as text.
type sqliteLogRow struct {
	ID             int64           `db:"id"`
	CreatedAt      string          `db:"created_at"`
	SessionID      string          `db:"session_id"`
	ScenarioID     string          `db:"scenario_id"`
	Mode           string          `db:"mode"`
	ParentChoices  json.RawMessage `db:"parent_choices"`
	OutcomeScores  json.RawMessage `db:"outcome_scores"`
	StartTime      string          `db:"start_time"`
	EndTime        string          `db:"end_time"`
	ElapsedSeconds int64           `db:"elapsed_seconds"`
	UserAgent      string          `db:"user_agent"`
	Meta           json.RawMessage `db:"meta"`
}

var _ SimulationLogRepository = (*sqliteSimulationLogRepository)(nil)

type sqliteSimulationLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteSimulationLogRepository(db *sql.DB, logger *zap.Logger) SimulationLogRepository {
	return &sqliteSimulationLogRepository{db: db, logger: logger.Named("SQLiteSimulationLogRepo")}
}

func (r *sqliteSimulationLogRepository) Save(ctx context.Context, s domain.SessionSummary) (int64, error) {
	log := r.logger.With(zap.String("sessionID", s.SessionID), zap.String("scenarioID", s.ScenarioID))

	row, err := encodeSummary(s)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, sqliteInsertLogQuery,
		nowFunc().Format(sqliteTimeLayout),
		s.SessionID, s.ScenarioID, string(s.Mode),
		string(row.parentChoices), string(row.outcomeScores),
		s.StartTime.UTC().Format(sqliteTimeLayout), s.EndTime.UTC().Format(sqliteTimeLayout),
		s.ElapsedSeconds, s.UserAgent, string(row.meta),
	)
	if err != nil {
		log.Error("Failed to insert simulation log", zap.Error(err))
		return 0, fmt.Errorf("%w: insert simulation log: %w", domain.ErrTelemetryWrite, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: read inserted id: %w", domain.ErrTelemetryWrite, err)
	}
	log.Debug("Simulation log saved", zap.Int64("id", id))
	return id, nil
}

func (r *sqliteSimulationLogRepository) List(ctx context.Context, filter LogFilter) ([]domain.SimulationLog, error) {
	var rows []sqliteLogRow
	if err := sqlscan.Select(ctx, r.db, &rows, sqliteSelectLogsQuery, filter.ScenarioID, filter.ScenarioID, filter.limit()); err != nil {
		r.logger.Error("Failed to list simulation logs", zap.Error(err))
		return nil, fmt.Errorf("failed to list simulation logs: %w", err)
	}

	logs := make([]domain.SimulationLog, 0, len(rows))
	for _, row := range rows {
		l, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("simulation log %d: %w", row.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

func (r *sqliteSimulationLogRepository) Count(ctx context.Context, scenarioID string) (int64, error) {
	var n int64
	if err := sqlscan.Get(ctx, r.db, &n, sqliteCountLogsQuery, scenarioID, scenarioID); err != nil {
		return 0, fmt.Errorf("failed to count simulation logs: %w", err)
	}
	return n, nil
}

func (row sqliteLogRow) toDomain() (domain.SimulationLog, error) {
	created, err := time.Parse(sqliteTimeLayout, row.CreatedAt)
	if err != nil {
		return domain.SimulationLog{}, fmt.Errorf("parse created_at: %w", err)
	}
	start, err := time.Parse(sqliteTimeLayout, row.StartTime)
	if err != nil {
		return domain.SimulationLog{}, fmt.Errorf("parse start_time: %w", err)
	}
	end, err := time.Parse(sqliteTimeLayout, row.EndTime)
	if err != nil {
		return domain.SimulationLog{}, fmt.Errorf("parse end_time: %w", err)
	}
	return domain.SimulationLog{
		ID:             row.ID,
		Timestamp:      created,
		SessionID:      row.SessionID,
		ScenarioID:     row.ScenarioID,
		Mode:           row.Mode,
		ParentChoices:  row.ParentChoices,
		OutcomeScores:  row.OutcomeScores,
		StartTime:      start,
		EndTime:        end,
		ElapsedSeconds: row.ElapsedSeconds,
		UserAgent:      row.UserAgent,
		Meta:           row.Meta,
	}, nil
}
