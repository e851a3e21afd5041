package service

import (
	"sync"
	"testing"

	"iep-rehearsal/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestStanceStatistics(t *testing.T) {
	st := StanceStatistics([]domain.StanceTag{
		domain.StanceInterests, domain.StanceInterests, domain.StanceRights, "unknown",
	})
	assert.Equal(t, domain.StanceStats{
		Interests: 2, Rights: 1, Total: 3,
		InterestsPct: 67, RightsPct: 33, PowerPct: 0,
	}, st)

	assert.Equal(t, domain.StanceStats{}, StanceStatistics(nil))
}

func TestFeedback(t *testing.T) {
	tests := []struct {
		name  string
		stats domain.StanceStats
		want  []string
	}{
		{"collaborative", domain.StanceStats{InterestsPct: 50, RightsPct: 25, PowerPct: 25}, []string{feedbackInterests}},
		{"rights and power", domain.StanceStats{InterestsPct: 34, RightsPct: 33, PowerPct: 33}, []string{feedbackRights, feedbackPower}},
		{"all three", domain.StanceStats{InterestsPct: 50, RightsPct: 30, PowerPct: 30}, []string{feedbackInterests, feedbackRights, feedbackPower}},
		{"none", domain.StanceStats{InterestsPct: 49, RightsPct: 29, PowerPct: 22}, []string{feedbackMixed}},
		{"empty session", domain.StanceStats{}, []string{feedbackMixed}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Feedback(tt.stats)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
		})
	}
	assert.NotContains(t, Feedback(domain.StanceStats{InterestsPct: 100}), feedbackMixed)
}

func TestNextSteps(t *testing.T) {
	assert.Len(t, NextSteps(domain.ModeFreeForm, "custom-disagreement"), 4)
	assert.Equal(t, nextStepsByScenario["custom-request-data"], NextSteps(domain.ModeFixed, "custom-request-data"))
	assert.Equal(t, defaultNextSteps, NextSteps(domain.ModeFreeForm, "custom-bullying"))
	assert.Equal(t, fixedNextSteps, NextSteps(domain.ModeFixed, "disagreeing-politely"))

	steps := NextSteps(domain.ModeFreeForm, "custom-bullying")
	steps[0] = "changed"
	assert.NotEqual(t, "changed", defaultNextSteps[0])
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("s")
			counter++
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Zero(t, k.size())
}
