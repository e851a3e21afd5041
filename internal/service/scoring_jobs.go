package service

import (
	"context"
	"errors"
	"time"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/scoring"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var scoringResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "iep_scoring_results_total",
	Help: "Background scoring results by disposition (applied, stale, failed, rejected).",
}, []string{"result"})

// ScoreUpdate is pushed to websocket clients when scores change.
type ScoreUpdate struct {
	SessionID     string                `json:"sessionId"`
	Revision      int64                 `json:"revision"`
	Scores        []domain.OutcomeScore `json:"scores"`
	LikelyOutcome *domain.OutcomeScore  `json:"likelyOutcome,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// submitScoring schedules a scoring job tagged with revision. A submission
// the job runner refuses leaves the previous scores in place.
func (s *RehearsalService) submitScoring(ctx context.Context, sessionID string, revision int64, in scoring.ScoreInput) {
	_, err := s.jobs.Submit(ctx, TaskTypeScoreTurn, sessionID, func(jobCtx context.Context) (any, error) {
		scoreCtx, cancel := context.WithTimeout(jobCtx, s.aiTimeout)
		defer cancel()
		scores, scoreErr := s.scorer.Score(scoreCtx, in)
		if jobCtx.Err() != nil {
			scoringResults.WithLabelValues("stale").Inc()
			return nil, jobCtx.Err()
		}
		return s.applyScores(jobCtx, sessionID, revision, scores, scoreErr)
	})
	if err != nil {
		scoringResults.WithLabelValues("rejected").Inc()
		s.logger.Warn("Scoring job not submitted", zap.String("sessionID", sessionID), zap.Error(err))
		s.finishPending(ctx, sessionID, revision)
	}
}

// applyScores stores scores if the session has not moved past revision.
func (s *RehearsalService) applyScores(ctx context.Context, sessionID string, revision int64, scores []domain.OutcomeScore, scoreErr error) (any, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	log := s.logger.With(zap.String("sessionID", sessionID), zap.Int64("revision", revision))

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Revision != revision || sess.Ended {
		scoringResults.WithLabelValues("stale").Inc()
		log.Debug("Discarding stale scores", zap.Int64("currentRevision", sess.Revision))
		return nil, nil
	}

	sess.ScoringPending = false
	if scoreErr != nil {
		scoringResults.WithLabelValues("failed").Inc()
		log.Warn("Scoring failed, keeping previous scores", zap.Error(scoreErr))
		if err := s.store.Save(ctx, sess); err != nil {
			return nil, err
		}
		s.notify(sessionID, MessageScoringFailed, ScoreUpdate{
			SessionID: sessionID,
			Revision:  revision,
			Scores:    sess.Scores,
			Error:     scoreErr.Error(),
		})
		return nil, scoreErr
	}

	sess.Scores = scores
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	scoringResults.WithLabelValues("applied").Inc()

	update := ScoreUpdate{SessionID: sessionID, Revision: revision, Scores: scores}
	if likely, ok := scoring.LikelyOutcome(scores); ok {
		update.LikelyOutcome = &likely
	}
	s.notify(sessionID, MessageScoresUpdated, update)
	if update.LikelyOutcome != nil {
		s.notify(sessionID, MessageLikelyOutcome, update)
	}
	log.Debug("Scores applied", zap.Int("outcomes", len(scores)))
	return update, nil
}

// scoringPollInterval is how often awaitScoring re-reads the session.
const scoringPollInterval = 25 * time.Millisecond

// awaitScoring blocks until the session has no scoring job pending, the AI
// timeout passes or ctx ends. It reports false only when it gave up waiting. Callers
// must not hold the session lock; applyScores needs it.
func (s *RehearsalService) awaitScoring(ctx context.Context, sessionID string) bool {
	deadline := time.NewTimer(s.aiTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(scoringPollInterval)
	defer ticker.Stop()

	for {
		sess, err := s.store.Get(ctx, sessionID)
		if err != nil || !sess.ScoringPending || sess.Ended {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}

// finishPending clears the pending flag without new scores. It runs
// asynchronously because callers hold the session lock.
func (s *RehearsalService) finishPending(ctx context.Context, sessionID string, revision int64) {
	go func() {
		_, err := s.applyScores(context.WithoutCancel(ctx), sessionID, revision, nil, errors.New("scoring job rejected"))
		if err != nil {
			s.logger.Debug("Pending flag cleared after rejected job", zap.String("sessionID", sessionID), zap.Error(err))
		}
	}()
}

func (s *RehearsalService) notify(sessionID, messageType string, payload ScoreUpdate) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendToSession(sessionID, messageType, TopicScores, payload)
}
