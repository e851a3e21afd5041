package domain

import (
	"iep-rehearsal/internal/branch"
)

// Difficulty of a scenario.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "Easy"
	DifficultyModerate Difficulty = "Moderate"
	DifficultyAdvanced Difficulty = "Advanced"
)

// DifficultyDescriptions are shown next to the scenario list.
var DifficultyDescriptions = map[Difficulty]string{
	DifficultyEasy:     "A cooperative team and a single, clear concern. Good for a first rehearsal.",
	DifficultyModerate: "The team pushes back on your position. You need to balance collaboration and firmness.",
	DifficultyAdvanced: "High stakes and a defensive team. Expect disagreement and competing priorities.",
}

// StanceTag is one of the three negotiation postures.
type StanceTag string

const (
	StanceInterests StanceTag = "interests"
	StanceRights    StanceTag = "rights"
	StancePower     StanceTag = "power"
)

// Stances in the order options are presented.
var Stances = []StanceTag{StanceInterests, StanceRights, StancePower}

func (s StanceTag) Valid() bool {
	switch s {
	case StanceInterests, StanceRights, StancePower:
		return true
	}
	return false
}

// ResponseType tags fixed-mode options.
type ResponseType string

const (
	ResponseCooperative ResponseType = "cooperative"
	ResponseNeutral     ResponseType = "neutral"
	ResponseCompetitive ResponseType = "competitive"
)

// Stance maps the fixed-mode tag onto the free-form posture it stands for.
func (r ResponseType) Stance() StanceTag {
	switch r {
	case ResponseCooperative:
		return StanceInterests
	case ResponseCompetitive:
		return StancePower
	default:
		return StanceRights
	}
}

// ScenarioDefinition is a pre-authored branching scenario (fixed-choice mode).
type ScenarioDefinition struct {
	ID          string     `json:"id" yaml:"id" validate:"required"`
	Title       string     `json:"title" yaml:"title" validate:"required"`
	Description string     `json:"description" yaml:"description"`
	Category    string     `json:"category,omitempty" yaml:"category"`
	Difficulty  Difficulty `json:"difficulty" yaml:"difficulty" validate:"required,oneof=Easy Moderate Advanced"`
	Background  string     `json:"background" yaml:"background" validate:"required"`
	Steps       []Step     `json:"steps" yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one school line with the parent's options.
type Step struct {
	School    string       `json:"school" yaml:"school" validate:"required"`
	Condition *branch.Rule `json:"condition,omitempty" yaml:"condition,omitempty"` // reachability when no explicit nextStep leads here
	Options   []Option     `json:"options" yaml:"options" validate:"required,min=1,dive"`
}

// Option is a parent line inside a Step.
type Option struct {
	User           string       `json:"user" yaml:"user" validate:"required"`
	SchoolResponse string       `json:"schoolResponse,omitempty" yaml:"schoolResponse"`
	Feedback       string       `json:"feedback,omitempty" yaml:"feedback"`
	Caution        string       `json:"caution,omitempty" yaml:"caution"` // what to consider about this choice
	Outcome        string       `json:"outcome,omitempty" yaml:"outcome"`
	Recommended    bool         `json:"isRecommended" yaml:"recommended"`
	ResponseType   ResponseType `json:"responseType" yaml:"responseType" validate:"required,oneof=cooperative neutral competitive"`
	NextStep       *int         `json:"nextStep,omitempty" yaml:"nextStep,omitempty" validate:"omitempty,min=0"`
}

// CustomScenarioDefinition is a scenario for the LLM-driven free-form mode.
type CustomScenarioDefinition struct {
	ID                string           `json:"id" yaml:"id" validate:"required"`
	Title             string           `json:"title" yaml:"title" validate:"required"`
	Description       string           `json:"description" yaml:"description"`
	Category          string           `json:"category,omitempty" yaml:"category"`
	Difficulty        Difficulty       `json:"difficulty" yaml:"difficulty" validate:"required,oneof=Easy Moderate Advanced"`
	Background        string           `json:"background" yaml:"background" validate:"required"`
	InitialSchoolLine string           `json:"initialSchoolLine" yaml:"initialSchoolLine" validate:"required"`
	InitialOptions    []ResponseOption `json:"initialOptions" yaml:"initialOptions" validate:"len=3,dive"`
	PotentialOutcomes []string         `json:"potentialOutcomes,omitempty" yaml:"potentialOutcomes" validate:"dive,required"`
}

// ResponseOption is one candidate parent line for the next free-form turn.
type ResponseOption struct {
	Type                 StanceTag `json:"type" yaml:"type" validate:"required,oneof=interests rights power"`
	Text                 string    `json:"text" yaml:"text" validate:"required"`
	LikelySchoolResponse string    `json:"likelySchoolResponse,omitempty" yaml:"likelySchoolResponse,omitempty"`
	TextExplanation      string    `json:"textExplanation,omitempty" yaml:"textExplanation"`
}

// ScenarioSummary is the list view shared by both modes.
type ScenarioSummary struct {
	ID          string     `json:"id"`
	Mode        Mode       `json:"mode"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category,omitempty"`
	Difficulty  Difficulty `json:"difficulty"`
}
