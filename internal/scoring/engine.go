// Package scoring estimates how close a free-form conversation is to each of
// the scenario's potential outcomes.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/pkg/ai"

	"go.uber.org/zap"
)

const (
	systemPrompt = "You are an expert IEP facilitator."
	temperature  = 0.2
	maxTokens    = 900

	// LikelyMinScore and LikelyMinMargin gate LikelyOutcome.
	LikelyMinScore  = 60
	LikelyMinMargin = 20
)

// ScoreInput is the state one scoring call sees.
type ScoreInput struct {
	Outcomes []string
	Previous []domain.OutcomeScore // empty means the all-zero initial set
	Exchange domain.ConversationTurn
}

type Engine struct {
	gen    ai.Generator
	logger *zap.Logger
}

func NewEngine(gen ai.Generator, logger *zap.Logger) *Engine {
	return &Engine{gen: gen, logger: logger.Named("ScoringEngine")}
}

// Score asks the model for updated scores and merges them into the previous
// set. The result follows the declared outcome order. On any failure it
// returns an empty slice and domain.ErrScoringUnavailable.
func (e *Engine) Score(ctx context.Context, in ScoreInput) ([]domain.OutcomeScore, error) {
	if len(in.Outcomes) == 0 {
		return []domain.OutcomeScore{}, fmt.Errorf("%w: scenario has no potential outcomes", domain.ErrScoringUnavailable)
	}
	previous := in.Previous
	if len(previous) == 0 {
		previous = domain.InitialScores(in.Outcomes)
	}

	prompt, err := buildPrompt(in.Outcomes, previous, in.Exchange)
	if err != nil {
		return []domain.OutcomeScore{}, fmt.Errorf("%w: %w", domain.ErrScoringUnavailable, err)
	}

	raw, _, err := e.gen.Generate(ctx, systemPrompt, prompt, ai.Params{
		Temperature: ai.Float(temperature),
		MaxTokens:   ai.Int(maxTokens),
	})
	if err != nil {
		e.logger.Warn("Scoring generation failed", zap.Error(err))
		return []domain.OutcomeScore{}, fmt.Errorf("%w: %w", domain.ErrScoringUnavailable, err)
	}

	var parsed []replyScore
	if err := ai.ExtractArray(raw, &parsed); err != nil {
		e.logger.Warn("Scoring reply is not a JSON array", zap.Error(err), zap.Int("rawLength", len(raw)))
		return []domain.OutcomeScore{}, fmt.Errorf("%w: %w", domain.ErrScoringUnavailable, domain.NewGenerationParseError(raw, err))
	}

	merged, matched := Merge(in.Outcomes, previous, toScores(parsed))
	if matched == 0 {
		e.logger.Warn("Scoring reply matched no declared outcome", zap.Int("entries", len(parsed)))
		return []domain.OutcomeScore{}, fmt.Errorf("%w: reply matched no declared outcome", domain.ErrScoringUnavailable)
	}
	if matched < len(in.Outcomes) {
		e.logger.Debug("Scoring reply skipped outcomes", zap.Int("matched", matched), zap.Int("declared", len(in.Outcomes)))
	}
	return merged, nil
}

// replyScore accepts fractional scores; models do not always return integers.
type replyScore struct {
	Outcome     string  `json:"outcome"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

func toScores(in []replyScore) []domain.OutcomeScore {
	out := make([]domain.OutcomeScore, 0, len(in))
	for _, r := range in {
		// Bound before converting; converting a huge float to int is implementation-defined.
		score := math.Round(math.Min(100, math.Max(0, r.Score)))
		out = append(out, domain.OutcomeScore{Outcome: r.Outcome, Score: int(score), Explanation: r.Explanation})
	}
	return out
}

// Merge lines the reply up with the declared outcomes by normalized text.
// Scores are clamped to 0-100; outcomes the reply omits keep their previous
// entry. It reports how many declared outcomes the reply covered.
func Merge(outcomes []string, previous, reply []domain.OutcomeScore) ([]domain.OutcomeScore, int) {
	byKey := make(map[string]domain.OutcomeScore, len(reply))
	for _, r := range reply {
		key := normalize(r.Outcome)
		if _, seen := byKey[key]; !seen {
			byKey[key] = r
		}
	}
	prevByKey := make(map[string]domain.OutcomeScore, len(previous))
	for _, p := range previous {
		prevByKey[normalize(p.Outcome)] = p
	}

	out := make([]domain.OutcomeScore, 0, len(outcomes))
	matched := 0
	for _, o := range outcomes {
		key := normalize(o)
		if r, ok := byKey[key]; ok {
			matched++
			out = append(out, domain.OutcomeScore{Outcome: o, Score: clamp(r.Score), Explanation: strings.TrimSpace(r.Explanation)})
			continue
		}
		if p, ok := prevByKey[key]; ok {
			p.Outcome = o
			out = append(out, p)
			continue
		}
		out = append(out, domain.OutcomeScore{Outcome: o, Explanation: domain.InitialExplanation})
	}
	return out, matched
}

// LikelyOutcome returns the top-scoring outcome when it is at least
// LikelyMinScore and leads the runner-up by at least LikelyMinMargin.
func LikelyOutcome(scores []domain.OutcomeScore) (domain.OutcomeScore, bool) {
	if len(scores) == 0 {
		return domain.OutcomeScore{}, false
	}
	sorted := make([]domain.OutcomeScore, len(scores))
	copy(sorted, scores)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	top := sorted[0]
	if top.Score < LikelyMinScore {
		return domain.OutcomeScore{}, false
	}
	if len(sorted) > 1 && top.Score-sorted[1].Score < LikelyMinMargin {
		return domain.OutcomeScore{}, false
	}
	return top, true
}

func buildPrompt(outcomes []string, previous []domain.OutcomeScore, exchange domain.ConversationTurn) (string, error) {
	prev, err := json.MarshalIndent(previous, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal previous scores: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("Given the previous scores for each possible IEP meeting outcome, and the most recent parent and school exchange, ")
	sb.WriteString("update the scores to reflect how close the conversation is to each outcome. ")
	sb.WriteString("For each outcome, give a score from 0 (not close at all) to 100 (very close), and a one-sentence explanation. ")
	sb.WriteString("Make sure that you don't overestimate how close an outcome really is. Only score highly if that outcome is truly highly likely. ")
	sb.WriteString("Use the outcome text exactly as listed. Return valid JSON in this format:\n\n")
	sb.WriteString("[\n  { \"outcome\": \"<outcome text>\", \"score\": <0-100>, \"explanation\": \"<one sentence>\" },\n  ...\n]\n\n")
	fmt.Fprintf(&sb, "Previous scores:\n%s\n\n", prev)
	fmt.Fprintf(&sb, "Most recent exchange:\nParent: %s\nSchool: %s\n\n", exchange.User, exchange.School)
	sb.WriteString("Possible outcomes:\n")
	for _, o := range outcomes {
		fmt.Fprintf(&sb, "- %s\n", o)
	}
	return sb.String(), nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!")
	return strings.Join(strings.Fields(s), " ")
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
