package domain

import "time"

// GlossaryTerm is one entry of the IEP glossary.
type GlossaryTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Letter     string `json:"letter"`
}

// Accommodation is a support that addresses one presentation of a disability.
type Accommodation struct {
	Name                  string `json:"name" validate:"required"`
	HowItHelps            string `json:"how_it_helps"`
	AddressesPresentation string `json:"addresses_presentation" validate:"required"`
	Example               string `json:"example"`
}

// Disability groups presentations and accommodations for lookup.
type Disability struct {
	Name                        string          `json:"disability_name" validate:"required"`
	WorkingDefinition           string          `json:"working_definition"`
	CommonPresentations         []string        `json:"common_presentations"`
	AccommodationsModifications []Accommodation `json:"accommodations_modifications" validate:"dive"`
}

// ScenarioSuggestion is a user idea for a new scenario.
type ScenarioSuggestion struct {
	ID         int64     `json:"id,omitempty" db:"id"`
	Suggestion string    `json:"suggestion" db:"suggestion"`
	Timestamp  time.Time `json:"timestamp" db:"created_at"`
}
