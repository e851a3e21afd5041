package scoring_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/mocks"
	"iep-rehearsal/internal/scoring"
	"iep-rehearsal/pkg/ai"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var outcomes = []string{"A", "B", "C"}

func exchange() domain.ConversationTurn {
	return domain.ConversationTurn{User: "Can we look at the data?", School: "Yes, here it is.", Stance: domain.StanceInterests}
}

func TestLikelyOutcomeThresholds(t *testing.T) {
	tests := []struct {
		name   string
		scores []int
		want   string
		ok     bool
	}{
		{"clear leader", []int{85, 20, 10}, "A", true},
		{"close runner-up", []int{65, 55, 0}, "", false},
		{"below floor", []int{59, 0, 0}, "", false},
		{"exactly at thresholds", []int{60, 40, 0}, "A", true},
		{"margin one short", []int{60, 41, 0}, "", false},
		{"single outcome", []int{70}, "A", true},
		{"leader not first", []int{10, 90, 30}, "B", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores := make([]domain.OutcomeScore, len(tt.scores))
			for i, s := range tt.scores {
				scores[i] = domain.OutcomeScore{Outcome: outcomes[i], Score: s}
			}
			got, ok := scoring.LikelyOutcome(scores)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got.Outcome)
		})
	}

	_, ok := scoring.LikelyOutcome(nil)
	assert.False(t, ok)
}

func TestScoreUpdatesFiresLikelyOutcome(t *testing.T) {
	previous := []domain.OutcomeScore{
		{Outcome: "A", Score: 40, Explanation: "some movement"},
		{Outcome: "B", Score: 10, Explanation: "little"},
	}
	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, "You are an expert IEP facilitator.",
		mock.MatchedBy(func(p string) bool {
			return strings.Contains(p, `"score": 40`) &&
				strings.Contains(p, "Parent: Can we look at the data?") &&
				strings.Contains(p, "- B\n")
		}),
		mock.MatchedBy(func(p ai.Params) bool { return *p.Temperature == 0.2 && *p.MaxTokens == 900 }),
	).Return(`Here are the updated scores:
[{"outcome": "a", "score": 85, "explanation": "Agreement is near."},
 {"outcome": "B ", "score": 20.4, "explanation": "Unlikely."}]`, ai.Usage{}, nil).Once()

	e := scoring.NewEngine(gen, zap.NewNop())
	got, err := e.Score(context.Background(), scoring.ScoreInput{Outcomes: []string{"A", "B"}, Previous: previous, Exchange: exchange()})
	require.NoError(t, err)

	want := []domain.OutcomeScore{
		{Outcome: "A", Score: 85, Explanation: "Agreement is near."},
		{Outcome: "B", Score: 20, Explanation: "Unlikely."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("scores mismatch (-want +got):\n%s", diff)
	}
	likely, ok := scoring.LikelyOutcome(got)
	require.True(t, ok)
	assert.Equal(t, "A", likely.Outcome)
	gen.AssertExpectations(t)
}

func TestScoreKeepsOrderClampsAndFillsMissing(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(
		`[{"outcome":"C","score":140,"explanation":"c"},{"outcome":"A","score":-5,"explanation":"a"},{"outcome":"Z","score":50,"explanation":"z"}]`,
		ai.Usage{}, nil).Once()

	previous := []domain.OutcomeScore{{Outcome: "B", Score: 33, Explanation: "kept"}}
	got, err := scoring.NewEngine(gen, zap.NewNop()).Score(context.Background(),
		scoring.ScoreInput{Outcomes: outcomes, Previous: previous, Exchange: exchange()})
	require.NoError(t, err)

	want := []domain.OutcomeScore{
		{Outcome: "A", Score: 0, Explanation: "a"},
		{Outcome: "B", Score: 33, Explanation: "kept"},
		{Outcome: "C", Score: 100, Explanation: "c"},
	}
	assert.Equal(t, want, got)
}

func TestScoreHandlesOutOfRangeAndProse(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(
		"Scores are on the scale [0, 100]:\n"+
			`[{"outcome":"A","score":1e30,"explanation":"a"},{"outcome":"B","score":-1e30,"explanation":"b"},{"outcome":"C","score":49.6,"explanation":"c"}]`,
		ai.Usage{}, nil).Once()

	got, err := scoring.NewEngine(gen, zap.NewNop()).Score(context.Background(),
		scoring.ScoreInput{Outcomes: outcomes, Exchange: exchange()})
	require.NoError(t, err)

	want := []domain.OutcomeScore{
		{Outcome: "A", Score: 100, Explanation: "a"},
		{Outcome: "B", Score: 0, Explanation: "b"},
		{Outcome: "C", Score: 50, Explanation: "c"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Score mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		err  error
	}{
		{"upstream", "", ai.ErrGenerationFailed},
		{"no array", "I cannot score this.", nil},
		{"no match", `[{"outcome":"Z","score":50,"explanation":"z"}]`, nil},
		{"wrong element type", `["A", "B"]`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := mocks.NewMockGenerator(t)
			gen.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(tt.raw, ai.Usage{}, tt.err).Once()

			got, err := scoring.NewEngine(gen, zap.NewNop()).Score(context.Background(),
				scoring.ScoreInput{Outcomes: outcomes, Exchange: exchange()})
			assert.True(t, errors.Is(err, domain.ErrScoringUnavailable))
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestScoreWithoutOutcomes(t *testing.T) {
	gen := mocks.NewMockGenerator(t)
	_, err := scoring.NewEngine(gen, zap.NewNop()).Score(context.Background(), scoring.ScoreInput{Exchange: exchange()})
	assert.True(t, errors.Is(err, domain.ErrScoringUnavailable))
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
