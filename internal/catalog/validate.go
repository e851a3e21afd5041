package catalog

import (
	"fmt"
	"strings"

	"iep-rehearsal/internal/domain"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateFixed checks a fixed-choice scenario and compiles its conditions.
func ValidateFixed(def *domain.ScenarioDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	for i := range def.Steps {
		step := &def.Steps[i]
		if step.Condition != nil {
			if err := step.Condition.Compile(); err != nil {
				return fmt.Errorf("step %d condition: %w", i, err)
			}
		}
		for j, opt := range step.Options {
			if opt.NextStep != nil && *opt.NextStep >= len(def.Steps) {
				return fmt.Errorf("step %d option %d: nextStep %d out of range (%d steps)", i, j, *opt.NextStep, len(def.Steps))
			}
		}
	}
	return nil
}

// ValidateFreeForm checks a free-form scenario: exactly one initial option
// per stance and no duplicate outcomes.
func ValidateFreeForm(def *domain.CustomScenarioDefinition) error {
	if err := validate.Struct(def); err != nil {
		return fmt.Errorf("invalid scenario: %w", err)
	}
	seen := make(map[domain.StanceTag]bool, len(domain.Stances))
	for _, opt := range def.InitialOptions {
		if seen[opt.Type] {
			return fmt.Errorf("duplicate initial option for stance %q", opt.Type)
		}
		seen[opt.Type] = true
	}
	outcomes := make(map[string]bool, len(def.PotentialOutcomes))
	for _, o := range def.PotentialOutcomes {
		key := strings.ToLower(strings.TrimSpace(o))
		if outcomes[key] {
			return fmt.Errorf("duplicate potential outcome %q", o)
		}
		outcomes[key] = true
	}
	return nil
}
