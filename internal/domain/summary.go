package domain

import (
	"encoding/json"
	"time"
)

// SessionSummary is what the telemetry recorder persists when a session ends.
type SessionSummary struct {
	SessionID      string          `json:"sessionId"`
	ScenarioID     string          `json:"scenarioId"`
	Mode           Mode            `json:"mode"`
	Choices        json.RawMessage `json:"parentChoices"` // []ConversationTurn or []ChoiceHistoryEntry
	OutcomeScores  []OutcomeScore  `json:"outcomeScores"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	ElapsedSeconds int64           `json:"elapsedSeconds"`
	UserAgent      string          `json:"userAgent,omitempty"`
	Meta           map[string]any  `json:"meta,omitempty"`
}

// SimulationLog is a persisted SessionSummary.
type SimulationLog struct {
	ID             int64           `json:"id" db:"id"`
	Timestamp      time.Time       `json:"timestamp" db:"created_at"`
	SessionID      string          `json:"sessionId" db:"session_id"`
	ScenarioID     string          `json:"scenarioId" db:"scenario_id"`
	Mode           string          `json:"mode" db:"mode"`
	ParentChoices  json.RawMessage `json:"parentChoices" db:"parent_choices"`
	OutcomeScores  json.RawMessage `json:"outcomeScores" db:"outcome_scores"`
	StartTime      time.Time       `json:"startTime" db:"start_time"`
	EndTime        time.Time       `json:"endTime" db:"end_time"`
	ElapsedSeconds int64           `json:"elapsedSeconds" db:"elapsed_seconds"`
	UserAgent      string          `json:"userAgent" db:"user_agent"`
	Meta           json.RawMessage `json:"meta" db:"meta"`
}

// StanceStats counts the postures used during a session.
type StanceStats struct {
	Interests    int `json:"interests"`
	Rights       int `json:"rights"`
	Power        int `json:"power"`
	Total        int `json:"total"`
	InterestsPct int `json:"interestsPct"`
	RightsPct    int `json:"rightsPct"`
	PowerPct     int `json:"powerPct"`
}

// Debrief is returned to the caller when a session ends.
type Debrief struct {
	SessionID      string         `json:"sessionId"`
	ScenarioID     string         `json:"scenarioId"`
	Mode           Mode           `json:"mode"`
	ElapsedSeconds int64          `json:"elapsedSeconds"`
	Stats          StanceStats    `json:"stats"`
	Feedback       string         `json:"feedback"`
	NextSteps      []string       `json:"nextSteps"`
	OutcomeScores  []OutcomeScore `json:"outcomeScores,omitempty"`
	LikelyOutcome  *OutcomeScore  `json:"likelyOutcome,omitempty"`
	FinalOutcome   string         `json:"finalOutcome,omitempty"` // fixed mode: outcome of the last choice
}
