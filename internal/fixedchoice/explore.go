package fixedchoice

import (
	"fmt"
	"strings"

	"iep-rehearsal/internal/domain"
)

// Report summarizes an exhaustive walk over every choice path.
type Report struct {
	ScenarioID     string   `json:"scenarioId"`
	TerminalPaths  int      `json:"terminalPaths"`
	ExplicitCycles int      `json:"explicitCycles"` // revisits through an option's nextStep
	ImplicitCycles []string `json:"implicitCycles"` // revisits through the condition scan
	Truncated      int      `json:"truncated"`      // paths cut at maxDepth
	Unreachable    []int    `json:"unreachable"`
}

// OK reports whether every path ends or loops only through explicit edges.
func (r Report) OK() bool {
	return len(r.ImplicitCycles) == 0 && r.Truncated == 0
}

// Explore walks every path from step 0. A path stops when it reaches a
// terminal selection, revisits a step, or grows past maxDepth choices.
func Explore(def *domain.ScenarioDefinition, maxDepth int) Report {
	r := Report{ScenarioID: def.ID}
	reached := make([]bool, len(def.Steps))
	reached[0] = true

	var walk func(st State, onPath map[int]bool)
	walk = func(st State, onPath map[int]bool) {
		step := def.Steps[st.CurrentStep]
		for i := range step.Options {
			next, tr, err := Select(def, st, i)
			if err != nil {
				continue
			}
			if tr.Terminal {
				r.TerminalPaths++
				continue
			}
			reached[tr.NextStep] = true
			if onPath[tr.NextStep] {
				if tr.Explicit {
					r.ExplicitCycles++
				} else {
					r.ImplicitCycles = append(r.ImplicitCycles, formatPath(next.History, tr.NextStep))
				}
				continue
			}
			if len(next.History) >= maxDepth {
				r.Truncated++
				continue
			}
			onPath[tr.NextStep] = true
			walk(next, onPath)
			delete(onPath, tr.NextStep)
		}
	}
	walk(Start(), map[int]bool{0: true})

	for i, ok := range reached {
		if !ok {
			r.Unreachable = append(r.Unreachable, i)
		}
	}
	return r
}

func formatPath(history []domain.ChoiceHistoryEntry, next int) string {
	var b strings.Builder
	for _, h := range history {
		fmt.Fprintf(&b, "%d:%d -> ", h.StepIndex, h.OptionIndex)
	}
	fmt.Fprintf(&b, "%d", next)
	return b.String()
}
