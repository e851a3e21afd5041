package domain

import (
	"time"

	"iep-rehearsal/internal/branch"
)

// Mode selects the rehearsal flow.
type Mode string

const (
	ModeFixed    Mode = "fixed"
	ModeFreeForm Mode = "freeform"
)

func (m Mode) Valid() bool {
	return m == ModeFixed || m == ModeFreeForm
}

// ChoiceHistoryEntry records one fixed-mode selection.
type ChoiceHistoryEntry = branch.Choice

// ConversationTurn is one free-form exchange.
type ConversationTurn struct {
	User   string    `json:"user"`
	School string    `json:"school"`
	Stance StanceTag `json:"stance"`
}

// OutcomeScore is a marginal likelihood estimate for one outcome.
// Scores across outcomes do not sum to anything in particular.
type OutcomeScore struct {
	Outcome     string `json:"outcome"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// InitialExplanation accompanies the all-zero score set.
const InitialExplanation = "No progress yet."

// InitialScores returns the zero set for the given outcomes.
func InitialScores(outcomes []string) []OutcomeScore {
	scores := make([]OutcomeScore, 0, len(outcomes))
	for _, o := range outcomes {
		scores = append(scores, OutcomeScore{Outcome: o, Score: 0, Explanation: InitialExplanation})
	}
	return scores
}

// TurnRecord keeps what a free-form turn produced so it can be undone.
type TurnRecord struct {
	Turn    ConversationTurn `json:"turn"`
	Options []ResponseOption `json:"options"` // options offered after this turn
	Scores  []OutcomeScore   `json:"scores"`  // last good scores at the time this turn was appended
}

// Session is the mutable state of one rehearsal. It is owned by a single
// session and serialized under a per-session lock.
type Session struct {
	ID         string    `json:"id"`
	Mode       Mode      `json:"mode"`
	ScenarioID string    `json:"scenarioId"`
	UserAgent  string    `json:"userAgent,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt,omitempty"`
	Ended      bool      `json:"ended"`

	// Revision grows on every mutation of the dialogue; background scoring
	// results are applied only if it has not moved since submission.
	Revision int64 `json:"revision"`

	// Fixed-choice state.
	CurrentStep int                  `json:"currentStep"`
	History     []ChoiceHistoryEntry `json:"history,omitempty"`
	Finished    bool                 `json:"finished"`

	// Free-form state.
	Turns          []TurnRecord     `json:"turns,omitempty"`
	Options        []ResponseOption `json:"options,omitempty"`
	Scores         []OutcomeScore   `json:"scores,omitempty"`
	ScoringPending bool             `json:"scoringPending"`
}

// ConversationTurns flattens the free-form records.
func (s *Session) ConversationTurns() []ConversationTurn {
	turns := make([]ConversationTurn, 0, len(s.Turns))
	for _, r := range s.Turns {
		turns = append(turns, r.Turn)
	}
	return turns
}

// LastSchoolLine is the school line the next parent turn answers.
func (s *Session) LastSchoolLine(opening string) string {
	if len(s.Turns) == 0 {
		return opening
	}
	return s.Turns[len(s.Turns)-1].Turn.School
}
