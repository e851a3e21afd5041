package service

import (
	"context"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/freeform"
	"iep-rehearsal/internal/scoring"
	"iep-rehearsal/pkg/taskmanager"

	"github.com/google/uuid"
)

// Task kinds submitted to the task manager.
const (
	TaskTypeScoreTurn = "score_turn"
)

// Websocket message types and topics.
const (
	MessageScoresUpdated = "scores_updated"
	MessageLikelyOutcome = "likely_outcome"
	MessageScoringFailed = "scoring_failed"

	TopicScores = "scores"
)

// ScenarioCatalog resolves scenario ids for both modes.
type ScenarioCatalog interface {
	Fixed(id string) (*domain.ScenarioDefinition, error)
	FreeForm(id string) (*domain.CustomScenarioDefinition, error)
}

// TurnEngine runs one free-form exchange.
type TurnEngine interface {
	Turn(ctx context.Context, in freeform.TurnInput) (freeform.TurnResult, error)
}

// Scorer re-estimates outcome likelihoods after an exchange.
type Scorer interface {
	Score(ctx context.Context, in scoring.ScoreInput) ([]domain.OutcomeScore, error)
}

// JobRunner runs background work owned by a session.
type JobRunner interface {
	Submit(ctx context.Context, kind, ownerID string, fn taskmanager.TaskFunc) (uuid.UUID, error)
	CancelOwner(ownerID string) int
}

// SessionNotifier pushes messages to clients watching a session.
type SessionNotifier interface {
	SendToSession(sessionID, messageType, topic string, payload any)
}

var (
	_ ScenarioCatalog = (*catalog.Catalog)(nil)
	_ TurnEngine      = (*freeform.Engine)(nil)
	_ Scorer          = (*scoring.Engine)(nil)
	_ JobRunner       = (*taskmanager.TaskManager)(nil)
)
