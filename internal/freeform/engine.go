// Package freeform drives the LLM-backed dialogue: one generation call per
// parent turn yields the school's reply and three new stance options.
package freeform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/pkg/ai"

	"go.uber.org/zap"
)

const (
	temperature = 0.6
	maxTokens   = 1500
)

// TurnInput is everything one turn needs. History holds prior turns only;
// ParentLine is the line being answered now.
type TurnInput struct {
	Scenario   *domain.CustomScenarioDefinition
	SchoolLine string
	History    []domain.ConversationTurn
	ParentLine string
	Stance     domain.StanceTag
}

// TurnResult is a fully validated reply.
type TurnResult struct {
	Turn    domain.ConversationTurn `json:"turn"`
	Options []domain.ResponseOption `json:"options"` // interests, rights, power
	Usage   ai.Usage                `json:"-"`
}

type reply struct {
	SchoolResponse string                  `json:"schoolResponse"`
	Options        []domain.ResponseOption `json:"options"`
}

type Engine struct {
	gen    ai.Generator
	logger *zap.Logger
}

func NewEngine(gen ai.Generator, logger *zap.Logger) *Engine {
	return &Engine{gen: gen, logger: logger.Named("FreeFormEngine")}
}

// Turn runs one generation round trip. It never mutates in.History.
//
// Errors: domain.ErrInvalidStance and domain.ErrBadRequest for bad input,
// domain.ErrServiceUnavailable when the call fails or times out, and a
// *domain.GenerationParseError when the reply is not the expected shape.
func (e *Engine) Turn(ctx context.Context, in TurnInput) (TurnResult, error) {
	if in.Scenario == nil {
		return TurnResult{}, fmt.Errorf("%w: scenario is required", domain.ErrBadRequest)
	}
	if !in.Stance.Valid() {
		return TurnResult{}, fmt.Errorf("%w: %q", domain.ErrInvalidStance, in.Stance)
	}
	parentLine := strings.TrimSpace(in.ParentLine)
	if parentLine == "" {
		return TurnResult{}, fmt.Errorf("%w: parent line is empty", domain.ErrBadRequest)
	}
	in.ParentLine = parentLine
	if in.SchoolLine == "" {
		in.SchoolLine = in.Scenario.InitialSchoolLine
	}

	log := e.logger.With(zap.String("scenarioID", in.Scenario.ID), zap.String("stance", string(in.Stance)), zap.Int("turn", len(in.History)+1))

	raw, usage, err := e.gen.Generate(ctx, systemPrompt, buildUserPrompt(in), ai.Params{
		Temperature: ai.Float(temperature),
		MaxTokens:   ai.Int(maxTokens),
	})
	if err != nil {
		log.Warn("Generation failed", zap.Error(err))
		return TurnResult{}, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}

	var r reply
	if err := ai.ExtractObject(raw, &r); err != nil {
		log.Warn("Reply is not a JSON object", zap.Error(err), zap.Int("rawLength", len(raw)))
		return TurnResult{}, domain.NewGenerationParseError(raw, err)
	}
	options, err := normalizeOptions(r)
	if err != nil {
		log.Warn("Reply has the wrong shape", zap.Error(err))
		return TurnResult{}, domain.NewGenerationParseError(raw, err)
	}

	log.Debug("Turn generated", zap.Int("promptTokens", usage.PromptTokens), zap.Int("completionTokens", usage.CompletionTokens))
	return TurnResult{
		Turn: domain.ConversationTurn{
			User:   parentLine,
			School: strings.TrimSpace(r.SchoolResponse),
			Stance: in.Stance,
		},
		Options: options,
		Usage:   usage,
	}, nil
}

var (
	errEmptySchoolResponse = errors.New("schoolResponse is empty")
	errOptionCount         = errors.New("expected exactly 3 options")
)

// normalizeOptions checks one non-empty option per stance and returns them
// in presentation order.
func normalizeOptions(r reply) ([]domain.ResponseOption, error) {
	if strings.TrimSpace(r.SchoolResponse) == "" {
		return nil, errEmptySchoolResponse
	}
	if len(r.Options) != len(domain.Stances) {
		return nil, fmt.Errorf("%w, got %d", errOptionCount, len(r.Options))
	}
	byStance := make(map[domain.StanceTag]domain.ResponseOption, len(domain.Stances))
	for i, opt := range r.Options {
		opt.Type = domain.StanceTag(strings.ToLower(strings.TrimSpace(string(opt.Type))))
		opt.Text = strings.TrimSpace(opt.Text)
		if !opt.Type.Valid() {
			return nil, fmt.Errorf("option %d: unknown type %q", i, opt.Type)
		}
		if opt.Text == "" {
			return nil, fmt.Errorf("option %d: text is empty", i)
		}
		if _, dup := byStance[opt.Type]; dup {
			return nil, fmt.Errorf("option %d: duplicate type %q", i, opt.Type)
		}
		byStance[opt.Type] = opt
	}
	return OrderOptions(byStance), nil
}

// OrderOptions returns options in interests, rights, power order.
func OrderOptions(byStance map[domain.StanceTag]domain.ResponseOption) []domain.ResponseOption {
	out := make([]domain.ResponseOption, 0, len(domain.Stances))
	for _, s := range domain.Stances {
		if opt, ok := byStance[s]; ok {
			out = append(out, opt)
		}
	}
	return out
}

// InitialOptions returns the scenario's opening options in presentation order.
func InitialOptions(def *domain.CustomScenarioDefinition) []domain.ResponseOption {
	byStance := make(map[domain.StanceTag]domain.ResponseOption, len(def.InitialOptions))
	for _, opt := range def.InitialOptions {
		byStance[opt.Type] = opt
	}
	return OrderOptions(byStance)
}
