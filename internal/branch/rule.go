package branch

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr/vm"
)

// ErrInvalidRule is returned by Compile for malformed rules.
var ErrInvalidRule = errors.New("invalid branch rule")

// Choice is one recorded selection: the step it was made at and the option picked there.
type Choice struct {
	StepIndex   int `json:"stepIndex" yaml:"stepIndex"`
	OptionIndex int `json:"optionIndex" yaml:"optionIndex"`
}

// Rule is a condition over the choice history. Exactly one field is set.
//
// Positions index the history (0 is the first choice ever made); negative
// positions count from the end, so -1 is the most recent choice. Any
// reference to a position the history does not have yet makes the
// referencing rule false.
type Rule struct {
	Choice     *ChoiceMatch `json:"choice,omitempty" yaml:"choice,omitempty"`         // history[position] picked option (optionally at step)
	StepChoice *StepMatch   `json:"stepChoice,omitempty" yaml:"stepChoice,omitempty"` // some entry at step picked option
	Absent     *Position    `json:"absent,omitempty" yaml:"absent,omitempty"`         // history has no entry at position
	MinLength  *int         `json:"minLength,omitempty" yaml:"minLength,omitempty"`   // len(history) >= n
	All        []Rule       `json:"all,omitempty" yaml:"all,omitempty"`
	Any        []Rule       `json:"any,omitempty" yaml:"any,omitempty"`
	Not        *Rule        `json:"not,omitempty" yaml:"not,omitempty"`
	Expr       string       `json:"expr,omitempty" yaml:"expr,omitempty"` // expr-lang boolean expression

	program *vm.Program
}

type ChoiceMatch struct {
	Position int  `json:"position" yaml:"position"`
	Step     *int `json:"step,omitempty" yaml:"step,omitempty"`
	Option   int  `json:"option" yaml:"option"`
}

type StepMatch struct {
	Step   int `json:"step" yaml:"step"`
	Option int `json:"option" yaml:"option"`
}

type Position struct {
	Position int `json:"position" yaml:"position"`
}

// Kind names the variant that is set, or "" when none or several are.
func (r *Rule) Kind() string {
	if r == nil {
		return ""
	}
	kinds := make([]string, 0, 1)
	if r.Choice != nil {
		kinds = append(kinds, "choice")
	}
	if r.StepChoice != nil {
		kinds = append(kinds, "stepChoice")
	}
	if r.Absent != nil {
		kinds = append(kinds, "absent")
	}
	if r.MinLength != nil {
		kinds = append(kinds, "minLength")
	}
	if r.All != nil {
		kinds = append(kinds, "all")
	}
	if r.Any != nil {
		kinds = append(kinds, "any")
	}
	if r.Not != nil {
		kinds = append(kinds, "not")
	}
	if r.Expr != "" {
		kinds = append(kinds, "expr")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Compile checks the rule tree and prepares expr programs. It must run
// before the rule is shared between goroutines.
func (r *Rule) Compile() error {
	switch r.Kind() {
	case "":
		return fmt.Errorf("%w: exactly one of choice, stepChoice, absent, minLength, all, any, not, expr must be set", ErrInvalidRule)
	case "choice":
		if r.Choice.Option < 0 {
			return fmt.Errorf("%w: choice.option must be >= 0", ErrInvalidRule)
		}
	case "stepChoice":
		if r.StepChoice.Step < 0 || r.StepChoice.Option < 0 {
			return fmt.Errorf("%w: stepChoice step/option must be >= 0", ErrInvalidRule)
		}
	case "minLength":
		if *r.MinLength < 0 {
			return fmt.Errorf("%w: minLength must be >= 0", ErrInvalidRule)
		}
	case "all":
		for i := range r.All {
			if err := r.All[i].Compile(); err != nil {
				return fmt.Errorf("all[%d]: %w", i, err)
			}
		}
	case "any":
		for i := range r.Any {
			if err := r.Any[i].Compile(); err != nil {
				return fmt.Errorf("any[%d]: %w", i, err)
			}
		}
	case "not":
		if err := r.Not.Compile(); err != nil {
			return fmt.Errorf("not: %w", err)
		}
	case "expr":
		program, err := compileExpr(r.Expr)
		if err != nil {
			return fmt.Errorf("%w: expr %q: %v", ErrInvalidRule, r.Expr, err)
		}
		r.program = program
	}
	return nil
}

// Eval reports whether the history satisfies the rule. A nil rule is false.
func (r *Rule) Eval(history []Choice) bool {
	if r == nil {
		return false
	}
	switch r.Kind() {
	case "choice":
		idx, ok := resolve(r.Choice.Position, len(history))
		if !ok {
			return false
		}
		entry := history[idx]
		if r.Choice.Step != nil && entry.StepIndex != *r.Choice.Step {
			return false
		}
		return entry.OptionIndex == r.Choice.Option
	case "stepChoice":
		for _, entry := range history {
			if entry.StepIndex == r.StepChoice.Step && entry.OptionIndex == r.StepChoice.Option {
				return true
			}
		}
		return false
	case "absent":
		_, ok := resolve(r.Absent.Position, len(history))
		return !ok
	case "minLength":
		return len(history) >= *r.MinLength
	case "all":
		for i := range r.All {
			if !r.All[i].Eval(history) {
				return false
			}
		}
		return true
	case "any":
		for i := range r.Any {
			if r.Any[i].Eval(history) {
				return true
			}
		}
		return false
	case "not":
		return !r.Not.Eval(history)
	case "expr":
		return evalExpr(r.program, r.Expr, history)
	default:
		return false
	}
}

// resolve maps a possibly negative position onto a history index.
func resolve(position, length int) (int, bool) {
	if position < 0 {
		position += length
	}
	if position < 0 || position >= length {
		return 0, false
	}
	return position, true
}
