//go:build integration

package repository_test

import (
	"context"
	"testing"
	"time"

	"iep-rehearsal/internal/database"
	"iep-rehearsal/internal/repository"
	pgdb "iep-rehearsal/pkg/database"
	"iep-rehearsal/pkg/migration"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

type PgRepositorySuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	db          *pgdb.Database
	logs        repository.SimulationLogRepository
	suggestions repository.SuggestionRepository
}

func (s *PgRepositorySuite) SetupSuite() {
	s.ctx = context.Background()
	logger := zap.NewNop()

	var err error
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("iep_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	dsn, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	require.NoError(s.T(), database.Migrate(s.ctx, migration.DriverPostgres, dsn, logger))

	s.db, err = pgdb.New(s.ctx, pgdb.Config{DSN: dsn, MaxConns: 4}, logger)
	require.NoError(s.T(), err)

	s.logs = repository.NewPgSimulationLogRepository(s.db.Pool, logger)
	s.suggestions = repository.NewPgSuggestionRepository(s.db.Pool, logger)
}

func (s *PgRepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

func (s *PgRepositorySuite) SetupTest() {
	_, err := s.db.Pool.Exec(s.ctx, "TRUNCATE simulation_logs, scenario_suggestions RESTART IDENTITY")
	s.Require().NoError(err)
}

func (s *PgRepositorySuite) TestSaveAndList() {
	id, err := s.logs.Save(s.ctx, summary("s1", "custom-request-data"))
	s.Require().NoError(err)
	_, err = s.logs.Save(s.ctx, summary("s2", "custom-behavior"))
	s.Require().NoError(err)

	got, err := s.logs.List(s.ctx, repository.LogFilter{ScenarioID: "custom-request-data"})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(id, got[0].ID)
	s.JSONEq(`[{"user":"u","school":"s","stance":"rights"}]`, string(got[0].ParentChoices))
	s.JSONEq(`{"source":"test"}`, string(got[0].Meta))
	s.True(got[0].StartTime.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)))

	n, err := s.logs.Count(s.ctx, "")
	s.Require().NoError(err)
	s.Equal(int64(2), n)
}

func (s *PgRepositorySuite) TestSuggestions() {
	created, err := s.suggestions.Create(s.ctx, "Extended school year")
	s.Require().NoError(err)
	s.NotZero(created.ID)

	list, err := s.suggestions.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("Extended school year", list[0].Suggestion)
}

func TestPgRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(PgRepositorySuite))
}
