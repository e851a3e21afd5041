// Package fixedchoice walks pre-authored branching scenarios. It performs no
// I/O: callers hold the State and persist it between requests.
package fixedchoice

import (
	"fmt"

	"iep-rehearsal/internal/domain"
)

// State is the mutable part of a fixed-choice session.
type State struct {
	CurrentStep int                         `json:"currentStep"`
	History     []domain.ChoiceHistoryEntry `json:"history"`
	Finished    bool                        `json:"finished"`
}

// Start returns the initial state: step 0, empty history.
func Start() State {
	return State{}
}

// Transition describes the effect of one selection.
type Transition struct {
	Choice   domain.ChoiceHistoryEntry `json:"choice"`
	Selected domain.Option             `json:"selected"`
	NextStep int                       `json:"nextStep"` // -1 when terminal
	Explicit bool                      `json:"explicit"` // next step came from the option's nextStep
	Terminal bool                      `json:"terminal"`
}

// StepView is what the caller renders for the current step.
type StepView struct {
	Index   int             `json:"index"`
	School  string          `json:"school"`
	Options []domain.Option `json:"options"`
}

// Current returns the step the session is waiting on.
func Current(def *domain.ScenarioDefinition, st State) (StepView, error) {
	if st.Finished {
		return StepView{}, domain.ErrSessionFinished
	}
	if st.CurrentStep < 0 || st.CurrentStep >= len(def.Steps) {
		return StepView{}, fmt.Errorf("%w: step %d out of range", domain.ErrBadRequest, st.CurrentStep)
	}
	step := def.Steps[st.CurrentStep]
	return StepView{Index: st.CurrentStep, School: step.School, Options: step.Options}, nil
}

// Select records optionIndex at the current step and moves to the next state.
// The returned State never shares its history slice with st.
func Select(def *domain.ScenarioDefinition, st State, optionIndex int) (State, Transition, error) {
	view, err := Current(def, st)
	if err != nil {
		return st, Transition{}, err
	}
	if optionIndex < 0 || optionIndex >= len(view.Options) {
		return st, Transition{}, fmt.Errorf("%w: %d (step %d has %d options)", domain.ErrInvalidOption, optionIndex, view.Index, len(view.Options))
	}

	choice := domain.ChoiceHistoryEntry{StepIndex: view.Index, OptionIndex: optionIndex}
	history := make([]domain.ChoiceHistoryEntry, len(st.History), len(st.History)+1)
	copy(history, st.History)
	history = append(history, choice)

	selected := view.Options[optionIndex]
	next, explicit, ok := NextStep(def, history, selected)

	tr := Transition{Choice: choice, Selected: selected, NextStep: next, Explicit: explicit, Terminal: !ok}
	out := State{CurrentStep: next, History: history}
	if !ok {
		out.CurrentStep = view.Index
		out.Finished = true
		tr.NextStep = -1
	}
	return out, tr, nil
}

// NextStep resolves where a selection leads: the option's explicit nextStep,
// otherwise the first step in declared order whose condition holds for the
// history. Steps without a condition are never picked by the scan.
func NextStep(def *domain.ScenarioDefinition, history []domain.ChoiceHistoryEntry, selected domain.Option) (next int, explicit bool, ok bool) {
	if selected.NextStep != nil {
		return *selected.NextStep, true, true
	}
	for i := range def.Steps {
		if cond := def.Steps[i].Condition; cond != nil && cond.Eval(history) {
			return i, false, true
		}
	}
	return -1, false, false
}

// Undo drops the last choice and returns to the step it was made at.
func Undo(st State) (State, error) {
	if len(st.History) == 0 {
		return st, domain.ErrNothingToUndo
	}
	last := st.History[len(st.History)-1]
	history := make([]domain.ChoiceHistoryEntry, len(st.History)-1)
	copy(history, st.History)
	return State{CurrentStep: last.StepIndex, History: history}, nil
}

// LastOption returns the option picked by the most recent choice.
func LastOption(def *domain.ScenarioDefinition, st State) (domain.Option, bool) {
	if len(st.History) == 0 {
		return domain.Option{}, false
	}
	last := st.History[len(st.History)-1]
	if last.StepIndex >= len(def.Steps) || last.OptionIndex >= len(def.Steps[last.StepIndex].Options) {
		return domain.Option{}, false
	}
	return def.Steps[last.StepIndex].Options[last.OptionIndex], true
}

// Stances maps the recorded choices onto stance tags.
func Stances(def *domain.ScenarioDefinition, history []domain.ChoiceHistoryEntry) []domain.StanceTag {
	out := make([]domain.StanceTag, 0, len(history))
	for _, h := range history {
		if h.StepIndex >= len(def.Steps) || h.OptionIndex >= len(def.Steps[h.StepIndex].Options) {
			continue
		}
		out = append(out, def.Steps[h.StepIndex].Options[h.OptionIndex].ResponseType.Stance())
	}
	return out
}

// Session bundles a definition with its state for in-process callers such as the CLI.
type Session struct {
	def   *domain.ScenarioDefinition
	state State
}

func NewSession(def *domain.ScenarioDefinition) *Session {
	return &Session{def: def, state: Start()}
}

func (s *Session) Current() (StepView, bool) {
	view, err := Current(s.def, s.state)
	return view, err == nil
}

func (s *Session) Select(optionIndex int) (Transition, error) {
	next, tr, err := Select(s.def, s.state, optionIndex)
	if err != nil {
		return Transition{}, err
	}
	s.state = next
	return tr, nil
}

func (s *Session) Undo() error {
	next, err := Undo(s.state)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

func (s *Session) State() State { return s.state }

func (s *Session) Terminal() bool { return s.state.Finished }
