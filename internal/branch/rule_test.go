package branch_test

import (
	"errors"
	"testing"

	"iep-rehearsal/internal/branch"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func intPtr(v int) *int { return &v }

func hist(pairs ...int) []branch.Choice {
	h := make([]branch.Choice, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		h = append(h, branch.Choice{StepIndex: pairs[i], OptionIndex: pairs[i+1]})
	}
	return h
}

func TestRuleEval(t *testing.T) {
	tests := []struct {
		name    string
		rule    branch.Rule
		history []branch.Choice
		want    bool
	}{
		{
			name:    "choice at first position",
			rule:    branch.Rule{Choice: &branch.ChoiceMatch{Position: 0, Option: 0}},
			history: hist(0, 0, 1, 2),
			want:    true,
		},
		{
			name:    "choice at first position mismatch",
			rule:    branch.Rule{Choice: &branch.ChoiceMatch{Position: 0, Option: 1}},
			history: hist(0, 0),
			want:    false,
		},
		{
			name:    "last choice with step",
			rule:    branch.Rule{Choice: &branch.ChoiceMatch{Position: -1, Step: intPtr(1), Option: 2}},
			history: hist(0, 0, 1, 2),
			want:    true,
		},
		{
			name:    "last choice wrong step",
			rule:    branch.Rule{Choice: &branch.ChoiceMatch{Position: -1, Step: intPtr(3), Option: 2}},
			history: hist(0, 0, 1, 2),
			want:    false,
		},
		{
			name:    "step choice anywhere",
			rule:    branch.Rule{StepChoice: &branch.StepMatch{Step: 0, Option: 0}},
			history: hist(0, 0, 1, 2),
			want:    true,
		},
		{
			name:    "absent beyond history",
			rule:    branch.Rule{Absent: &branch.Position{Position: 1}},
			history: hist(0, 0),
			want:    true,
		},
		{
			name:    "absent but present",
			rule:    branch.Rule{Absent: &branch.Position{Position: 0}},
			history: hist(0, 0),
			want:    false,
		},
		{
			name:    "min length",
			rule:    branch.Rule{MinLength: intPtr(2)},
			history: hist(0, 0, 1, 1),
			want:    true,
		},
		{
			name: "any with all",
			rule: branch.Rule{Any: []branch.Rule{
				{Choice: &branch.ChoiceMatch{Position: 1, Option: 0}},
				{All: []branch.Rule{
					{Absent: &branch.Position{Position: 1}},
					{Choice: &branch.ChoiceMatch{Position: 0, Option: 0}},
				}},
			}},
			history: hist(0, 0),
			want:    true,
		},
		{
			name:    "not",
			rule:    branch.Rule{Not: &branch.Rule{MinLength: intPtr(1)}},
			history: nil,
			want:    true,
		},
		{
			name:    "expr over last choice",
			rule:    branch.Rule{Expr: "step(-1) == 4 && option(-1) == 2"},
			history: hist(1, 2, 4, 2),
			want:    true,
		},
		{
			name:    "expr with count",
			rule:    branch.Rule{Expr: "count > 2 && option(2) == 2"},
			history: hist(0, 0, 1, 2),
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := tt.rule
			require.NoError(t, rule.Compile())
			assert.Equal(t, tt.want, rule.Eval(tt.history))
		})
	}
}

func TestRuleEvalShortHistoryIsFalse(t *testing.T) {
	rules := []branch.Rule{
		{Choice: &branch.ChoiceMatch{Position: 0, Option: 0}},
		{Choice: &branch.ChoiceMatch{Position: 4, Option: 1}},
		{Choice: &branch.ChoiceMatch{Position: -3, Option: 0}},
		{Expr: "option(3) == 0"},
		{Expr: "step(-2) == 1"},
	}
	for _, rule := range rules {
		rule := rule
		require.NoError(t, rule.Compile())
		assert.NotPanics(t, func() {
			assert.False(t, rule.Eval(nil))
			assert.False(t, rule.Eval(hist(0, 0)))
		})
	}
}

func TestRuleCompileRejectsMalformed(t *testing.T) {
	cases := map[string]branch.Rule{
		"empty":        {},
		"two variants": {MinLength: intPtr(1), Expr: "true"},
		"bad expr":     {Expr: "option(("},
		"non bool":     {Expr: "count + 1"},
		"nested":       {All: []branch.Rule{{}}},
		"negative opt": {Choice: &branch.ChoiceMatch{Option: -1}},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			err := rule.Compile()
			require.Error(t, err)
			assert.True(t, errors.Is(err, branch.ErrInvalidRule))
		})
	}
}

func TestRuleFromYAML(t *testing.T) {
	src := `
any:
  - choice: {position: -1, step: 2, option: 0}
  - expr: "step(-1) == 7 && option(-1) == 0"
`
	var rule branch.Rule
	require.NoError(t, yaml.Unmarshal([]byte(src), &rule))
	require.NoError(t, rule.Compile())

	assert.Equal(t, "any", rule.Kind())
	assert.True(t, rule.Eval(hist(1, 0, 2, 0)))
	assert.True(t, rule.Eval(hist(1, 0, 7, 0)))
	assert.False(t, rule.Eval(hist(1, 0, 7, 1)))
}

func TestUncompiledExprStillEvaluates(t *testing.T) {
	rule := branch.Rule{Expr: "option(0) == 1"}
	assert.True(t, rule.Eval(hist(0, 1)))
	assert.False(t, (*branch.Rule)(nil).Eval(hist(0, 1)))
}
