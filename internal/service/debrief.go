package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/fixedchoice"
	"iep-rehearsal/internal/scoring"

	"go.uber.org/zap"
)

const (
	feedbackInterests = "You often used collaborative responses, focusing on working together and finding common ground with the school team."
	feedbackRights    = "You made sure to reference your rights and request documentation or clarification when needed, which helps ensure your child's needs are protected."
	feedbackPower     = "You used assertive responses to clearly state your position and push for specific outcomes. This can be effective, but may also increase tension in some situations."
	feedbackMixed     = "Try to use a mix of approaches: collaboration, asking for your rights, and assertiveness, depending on the situation."
)

var (
	nextStepsByScenario = map[string][]string{
		"custom-disagreement": {
			"Review your child's progress data and documentation.",
			"Request a follow-up meeting if you still have concerns.",
			"Consider bringing an advocate or support person to future meetings.",
			"Document all communications and decisions.",
		},
		"custom-request-data": {
			"Request copies of all relevant data and assessments.",
			"Schedule a meeting to review the data together.",
			"Clarify how data will be used to make decisions about services.",
		},
	}
	defaultNextSteps = []string{
		"Reflect on what strategies worked best.",
		"Prepare questions or requests for your next meeting.",
		"Reach out to a local parent support group or advocate if needed.",
	}
	fixedNextSteps = []string{
		"Review your child's IEP and make note of any questions or concerns.",
		"Prepare documentation or examples to support your requests.",
		"Consider bringing a trusted advocate or support person to meetings.",
		"Follow up with the school team after meetings to confirm next steps.",
	}
)

// End closes the session, hands its summary to the telemetry recorder and
// returns the debrief. A session can be ended once. A scoring job still
// running for the last exchange gets up to the AI timeout to land first.
func (s *RehearsalService) End(ctx context.Context, id string, meta map[string]any) (*domain.Debrief, error) {
	if !s.awaitScoring(ctx, id) {
		s.logger.Debug("Ending session before scoring settled", zap.String("sessionID", id))
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Ended {
		return nil, domain.ErrSessionFinished
	}

	var (
		stances      []domain.StanceTag
		finalOutcome string
	)
	switch sess.Mode {
	case domain.ModeFixed:
		def, err := s.catalog.Fixed(sess.ScenarioID)
		if err != nil {
			return nil, err
		}
		stances = fixedchoice.Stances(def, sess.History)
		if opt, ok := fixedchoice.LastOption(def, fixedState(sess)); ok && sess.Finished {
			finalOutcome = opt.Outcome
		}
	case domain.ModeFreeForm:
		for _, t := range sess.ConversationTurns() {
			stances = append(stances, t.Stance)
		}
		if n := s.jobs.CancelOwner(id); n > 0 {
			s.logger.Debug("Cancelled scoring at session end", zap.String("sessionID", id), zap.Int("tasks", n))
		}
	}

	sess.Ended = true
	sess.EndedAt = s.now().UTC()
	sess.ScoringPending = false
	sess.Revision++
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	elapsed := int64(sess.EndedAt.Sub(sess.StartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	stats := StanceStatistics(stances)
	debrief := &domain.Debrief{
		SessionID:      sess.ID,
		ScenarioID:     sess.ScenarioID,
		Mode:           sess.Mode,
		ElapsedSeconds: elapsed,
		Stats:          stats,
		Feedback:       Feedback(stats),
		NextSteps:      NextSteps(sess.Mode, sess.ScenarioID),
		OutcomeScores:  sess.Scores,
		FinalOutcome:   finalOutcome,
	}
	if likely, ok := scoring.LikelyOutcome(sess.Scores); ok {
		debrief.LikelyOutcome = &likely
	}

	choices, err := encodeChoices(sess)
	if err != nil {
		s.logger.Error("Failed to encode session choices", zap.String("sessionID", id), zap.Error(err))
	}
	recorded := s.recorder.Record(domain.SessionSummary{
		SessionID:      sess.ID,
		ScenarioID:     sess.ScenarioID,
		Mode:           sess.Mode,
		Choices:        choices,
		OutcomeScores:  sess.Scores,
		StartTime:      sess.StartedAt,
		EndTime:        sess.EndedAt,
		ElapsedSeconds: elapsed,
		UserAgent:      sess.UserAgent,
		Meta:           meta,
	})

	s.logger.Info("Session ended",
		zap.String("sessionID", id),
		zap.Int64("elapsedSeconds", elapsed),
		zap.Int("stances", stats.Total),
		zap.Bool("recorded", recorded),
	)
	return debrief, nil
}

// StanceStatistics counts stances and rounds the shares to whole percents.
func StanceStatistics(stances []domain.StanceTag) domain.StanceStats {
	var st domain.StanceStats
	for _, tag := range stances {
		switch tag {
		case domain.StanceInterests:
			st.Interests++
		case domain.StanceRights:
			st.Rights++
		case domain.StancePower:
			st.Power++
		}
	}
	st.Total = st.Interests + st.Rights + st.Power
	st.InterestsPct = percent(st.Interests, st.Total)
	st.RightsPct = percent(st.Rights, st.Total)
	st.PowerPct = percent(st.Power, st.Total)
	return st
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(total)))
}

// Feedback describes the approach the parent leaned on. Several sentences
// can apply at once.
func Feedback(st domain.StanceStats) string {
	var parts []string
	if st.InterestsPct >= 50 {
		parts = append(parts, feedbackInterests)
	}
	if st.RightsPct >= 30 {
		parts = append(parts, feedbackRights)
	}
	if st.PowerPct >= 30 {
		parts = append(parts, feedbackPower)
	}
	if len(parts) == 0 {
		return feedbackMixed
	}
	return strings.Join(parts, " ")
}

// NextSteps returns the suggestions shown after a session.
func NextSteps(mode domain.Mode, scenarioID string) []string {
	steps, ok := nextStepsByScenario[scenarioID]
	switch {
	case ok:
	case mode == domain.ModeFixed:
		steps = fixedNextSteps
	default:
		steps = defaultNextSteps
	}
	return append([]string(nil), steps...)
}
