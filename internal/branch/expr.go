package branch

import (
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEnv exposes the history to expressions:
//
//	count       number of choices made so far
//	option(p)   option picked at position p, -1 when absent
//	step(p)     step index of position p, -1 when absent
func exprEnv(history []Choice) map[string]any {
	return map[string]any{
		"count": len(history),
		"option": func(position int) int {
			idx, ok := resolve(position, len(history))
			if !ok {
				return -1
			}
			return history[idx].OptionIndex
		},
		"step": func(position int) int {
			idx, ok := resolve(position, len(history))
			if !ok {
				return -1
			}
			return history[idx].StepIndex
		},
	}
}

func compileExpr(expression string) (*vm.Program, error) {
	return expr.Compile(expression, expr.Env(exprEnv(nil)), expr.AsBool())
}

// evalExpr runs a compiled program. Rules that were never compiled are
// compiled on the spot without caching so Eval stays read-only.
func evalExpr(program *vm.Program, expression string, history []Choice) bool {
	if program == nil {
		var err error
		program, err = compileExpr(expression)
		if err != nil {
			return false
		}
	}
	out, err := expr.Run(program, exprEnv(history))
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}
