package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"iep-rehearsal/internal/database"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) (repository.SimulationLogRepository, repository.SuggestionRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "telemetry", "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repository.NewSQLiteSimulationLogRepository(db, zap.NewNop()), repository.NewSQLiteSuggestionRepository(db, zap.NewNop())
}

func summary(sessionID, scenarioID string) domain.SessionSummary {
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.SessionSummary{
		SessionID:      sessionID,
		ScenarioID:     scenarioID,
		Mode:           domain.ModeFreeForm,
		Choices:        json.RawMessage(`[{"user":"u","school":"s","stance":"rights"}]`),
		OutcomeScores:  []domain.OutcomeScore{{Outcome: "A", Score: 70, Explanation: "close"}},
		StartTime:      start,
		EndTime:        start.Add(95 * time.Second),
		ElapsedSeconds: 95,
		UserAgent:      "test-agent",
		Meta:           map[string]any{"source": "test"},
	}
}

func TestSQLiteSimulationLogRepository(t *testing.T) {
	logs, _ := openTestDB(t)
	ctx := context.Background()

	id1, err := logs.Save(ctx, summary("s1", "custom-request-data"))
	require.NoError(t, err)
	id2, err := logs.Save(ctx, summary("s2", "custom-behavior"))
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	all, err := logs.List(ctx, repository.LogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "s2", all[0].SessionID)

	got, err := logs.List(ctx, repository.LogFilter{ScenarioID: "custom-request-data"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	l := got[0]
	assert.Equal(t, id1, l.ID)
	assert.Equal(t, "freeform", l.Mode)
	assert.JSONEq(t, `[{"user":"u","school":"s","stance":"rights"}]`, string(l.ParentChoices))
	assert.JSONEq(t, `[{"outcome":"A","score":70,"explanation":"close"}]`, string(l.OutcomeScores))
	assert.JSONEq(t, `{"source":"test"}`, string(l.Meta))
	assert.True(t, l.StartTime.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(95), l.ElapsedSeconds)
	assert.Equal(t, "test-agent", l.UserAgent)
	assert.False(t, l.Timestamp.IsZero())

	n, err := logs.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	n, err = logs.Count(ctx, "custom-behavior")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSQLiteSimulationLogDefaults(t *testing.T) {
	logs, _ := openTestDB(t)
	ctx := context.Background()

	s := summary("s1", "x")
	s.Choices, s.OutcomeScores, s.Meta = nil, nil, nil
	_, err := logs.Save(ctx, s)
	require.NoError(t, err)

	got, err := logs.List(ctx, repository.LogFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `[]`, string(got[0].ParentChoices))
	assert.JSONEq(t, `[]`, string(got[0].OutcomeScores))
	assert.JSONEq(t, `{}`, string(got[0].Meta))

	s.Choices = json.RawMessage(`{not json`)
	_, err = logs.Save(ctx, s)
	assert.True(t, errors.Is(err, domain.ErrTelemetryWrite))
}

func TestSQLiteSuggestionRepository(t *testing.T) {
	_, suggestions := openTestDB(t)
	ctx := context.Background()

	_, err := suggestions.Create(ctx, "   ")
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	first, err := suggestions.Create(ctx, " Transition to middle school ")
	require.NoError(t, err)
	assert.Equal(t, "Transition to middle school", first.Suggestion)
	_, err = suggestions.Create(ctx, "Extended school year")
	require.NoError(t, err)

	list, err := suggestions.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Extended school year", list[0].Suggestion)
	assert.Equal(t, first.ID, list[1].ID)
	assert.WithinDuration(t, first.Timestamp, list[1].Timestamp, time.Microsecond)
}

func TestOpenSQLiteIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		db, err := database.OpenSQLite(context.Background(), path, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, db.Close())
	}
	version, dirty, err := database.SchemaVersion(context.Background(), "sqlite", database.SQLiteDSN(path), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)
}
