package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/fixedchoice"
	"iep-rehearsal/internal/freeform"
	"iep-rehearsal/internal/scoring"
	"iep-rehearsal/internal/session"
	"iep-rehearsal/internal/telemetry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionView is the caller-facing state of a session.
type SessionView struct {
	ID         string      `json:"id"`
	Mode       domain.Mode `json:"mode"`
	ScenarioID string      `json:"scenarioId"`
	Title      string      `json:"title"`
	Background string      `json:"background"`
	Revision   int64       `json:"revision"`
	Ended      bool        `json:"ended"`
	StartedAt  time.Time   `json:"startedAt"`

	// Fixed mode.
	Step     *fixedchoice.StepView       `json:"step,omitempty"`
	History  []domain.ChoiceHistoryEntry `json:"history,omitempty"`
	Finished bool                        `json:"finished,omitempty"`

	// Free-form mode.
	SchoolLine     string                    `json:"schoolLine,omitempty"`
	Options        []domain.ResponseOption   `json:"options,omitempty"`
	Turns          []domain.ConversationTurn `json:"turns,omitempty"`
	Scores         []domain.OutcomeScore     `json:"scores,omitempty"`
	LikelyOutcome  *domain.OutcomeScore      `json:"likelyOutcome,omitempty"`
	ScoringPending bool                      `json:"scoringPending,omitempty"`
}

// ChoiceResult is returned by Choose.
type ChoiceResult struct {
	Transition fixedchoice.Transition `json:"transition"`
	Session    *SessionView           `json:"session"`
}

// TurnView is returned by Turn.
type TurnView struct {
	Turn    domain.ConversationTurn `json:"turn"`
	Options []domain.ResponseOption `json:"options"`
	Session *SessionView            `json:"session"`
}

// ScoresView is the latest applied scores of a free-form session.
type ScoresView struct {
	SessionID     string                `json:"sessionId"`
	Revision      int64                 `json:"revision"`
	Scores        []domain.OutcomeScore `json:"scores"`
	LikelyOutcome *domain.OutcomeScore  `json:"likelyOutcome,omitempty"`
	Pending       bool                  `json:"pending"`
}

// RehearsalService drives both rehearsal modes on top of a session store.
type RehearsalService struct {
	catalog   ScenarioCatalog
	store     session.Store
	turns     TurnEngine
	scorer    Scorer
	jobs      JobRunner
	recorder  telemetry.Sink
	notifier  SessionNotifier
	locks     *keyedMutex
	aiTimeout time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// Config carries the optional knobs of the service.
type Config struct {
	AITimeout time.Duration
}

// NewRehearsalService wires the service. notifier may be nil.
func NewRehearsalService(
	cat ScenarioCatalog,
	store session.Store,
	turns TurnEngine,
	scorer Scorer,
	jobs JobRunner,
	recorder telemetry.Sink,
	notifier SessionNotifier,
	cfg Config,
	logger *zap.Logger,
) *RehearsalService {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = 30 * time.Second
	}
	return &RehearsalService{
		catalog:   cat,
		store:     store,
		turns:     turns,
		scorer:    scorer,
		jobs:      jobs,
		recorder:  recorder,
		notifier:  notifier,
		locks:     newKeyedMutex(),
		aiTimeout: cfg.AITimeout,
		now:       time.Now,
		logger:    logger.Named("RehearsalService"),
	}
}

// CreateSession starts a session for scenarioID in mode.
func (s *RehearsalService) CreateSession(ctx context.Context, mode domain.Mode, scenarioID, userAgent string) (*SessionView, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrBadRequest, mode)
	}
	sess := &domain.Session{
		ID:         uuid.NewString(),
		Mode:       mode,
		ScenarioID: scenarioID,
		UserAgent:  userAgent,
		StartedAt:  s.now().UTC(),
	}

	switch mode {
	case domain.ModeFixed:
		if _, err := s.catalog.Fixed(scenarioID); err != nil {
			return nil, err
		}
	case domain.ModeFreeForm:
		def, err := s.catalog.FreeForm(scenarioID)
		if err != nil {
			return nil, err
		}
		sess.Options = freeform.InitialOptions(def)
		sess.Scores = domain.InitialScores(def.PotentialOutcomes)
	}

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("Session created",
		zap.String("sessionID", sess.ID),
		zap.String("mode", string(mode)),
		zap.String("scenarioID", scenarioID),
	)
	return s.view(sess)
}

// GetSession returns the current view of a session.
func (s *RehearsalService) GetSession(ctx context.Context, id string) (*SessionView, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(sess)
}

// Choose selects an option of the current fixed-mode step.
func (s *RehearsalService) Choose(ctx context.Context, id string, optionIndex int) (*ChoiceResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, domain.ModeFixed)
	if err != nil {
		return nil, err
	}
	def, err := s.catalog.Fixed(sess.ScenarioID)
	if err != nil {
		return nil, err
	}

	next, tr, err := fixedchoice.Select(def, fixedState(sess), optionIndex)
	if err != nil {
		return nil, err
	}
	applyFixedState(sess, next)
	sess.Revision++
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("Choice recorded",
		zap.String("sessionID", id),
		zap.Int("step", tr.Choice.StepIndex),
		zap.Int("option", tr.Choice.OptionIndex),
		zap.Int("nextStep", tr.NextStep),
	)
	view, err := s.view(sess)
	if err != nil {
		return nil, err
	}
	return &ChoiceResult{Transition: tr, Session: view}, nil
}

// Turn runs one free-form exchange and schedules scoring for it. The
// session is unchanged when generation fails.
func (s *RehearsalService) Turn(ctx context.Context, id, text string, stance domain.StanceTag) (*TurnView, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.load(ctx, id, domain.ModeFreeForm)
	if err != nil {
		return nil, err
	}
	def, err := s.catalog.FreeForm(sess.ScenarioID)
	if err != nil {
		return nil, err
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()
	res, err := s.turns.Turn(turnCtx, freeform.TurnInput{
		Scenario:   def,
		SchoolLine: sess.LastSchoolLine(def.InitialSchoolLine),
		History:    sess.ConversationTurns(),
		ParentLine: strings.TrimSpace(text),
		Stance:     stance,
	})
	if err != nil {
		s.logger.Warn("Turn failed", zap.String("sessionID", id), zap.Error(err))
		return nil, err
	}

	previous := sess.Scores
	sess.Turns = append(sess.Turns, domain.TurnRecord{
		Turn:    res.Turn,
		Options: res.Options,
		Scores:  previous,
	})
	sess.Options = res.Options
	sess.Revision++
	sess.ScoringPending = len(def.PotentialOutcomes) > 0
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	if sess.ScoringPending {
		s.submitScoring(ctx, sess.ID, sess.Revision, scoring.ScoreInput{
			Outcomes: def.PotentialOutcomes,
			Previous: previous,
			Exchange: res.Turn,
		})
	}

	view, err := s.view(sess)
	if err != nil {
		return nil, err
	}
	return &TurnView{Turn: res.Turn, Options: res.Options, Session: view}, nil
}

// Undo reverts the last choice or turn. In free-form mode the options and
// scores that preceded the turn come back and in-flight scoring is
// discarded.
func (s *RehearsalService) Undo(ctx context.Context, id string) (*SessionView, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Ended {
		return nil, domain.ErrSessionFinished
	}

	switch sess.Mode {
	case domain.ModeFixed:
		next, err := fixedchoice.Undo(fixedState(sess))
		if err != nil {
			return nil, err
		}
		applyFixedState(sess, next)
	case domain.ModeFreeForm:
		if len(sess.Turns) == 0 {
			return nil, domain.ErrNothingToUndo
		}
		def, err := s.catalog.FreeForm(sess.ScenarioID)
		if err != nil {
			return nil, err
		}
		last := sess.Turns[len(sess.Turns)-1]
		sess.Turns = sess.Turns[:len(sess.Turns)-1]
		if len(sess.Turns) > 0 {
			sess.Options = sess.Turns[len(sess.Turns)-1].Options
		} else {
			sess.Options = freeform.InitialOptions(def)
		}
		sess.Scores = last.Scores
		sess.ScoringPending = false
		if n := s.jobs.CancelOwner(id); n > 0 {
			s.logger.Debug("Cancelled in-flight scoring", zap.String("sessionID", id), zap.Int("jobs", n))
		}
	}

	sess.Revision++
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s.view(sess)
}

// Scores returns the last applied scores of a free-form session.
func (s *RehearsalService) Scores(ctx context.Context, id string) (*ScoresView, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Mode != domain.ModeFreeForm {
		return nil, fmt.Errorf("%w: scores exist only in free-form sessions", domain.ErrWrongMode)
	}
	return scoresView(sess), nil
}

func (s *RehearsalService) load(ctx context.Context, id string, mode domain.Mode) (*domain.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Mode != mode {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrWrongMode, id, sess.Mode)
	}
	if sess.Ended {
		return nil, domain.ErrSessionFinished
	}
	return sess, nil
}

func (s *RehearsalService) view(sess *domain.Session) (*SessionView, error) {
	v := &SessionView{
		ID:         sess.ID,
		Mode:       sess.Mode,
		ScenarioID: sess.ScenarioID,
		Revision:   sess.Revision,
		Ended:      sess.Ended,
		StartedAt:  sess.StartedAt,
	}

	switch sess.Mode {
	case domain.ModeFixed:
		def, err := s.catalog.Fixed(sess.ScenarioID)
		if err != nil {
			return nil, err
		}
		v.Title, v.Background = def.Title, def.Background
		v.History = sess.History
		v.Finished = sess.Finished
		if step, err := fixedchoice.Current(def, fixedState(sess)); err == nil {
			v.Step = &step
		} else if !errors.Is(err, domain.ErrSessionFinished) {
			return nil, err
		}
	case domain.ModeFreeForm:
		def, err := s.catalog.FreeForm(sess.ScenarioID)
		if err != nil {
			return nil, err
		}
		v.Title, v.Background = def.Title, def.Background
		v.SchoolLine = sess.LastSchoolLine(def.InitialSchoolLine)
		v.Options = sess.Options
		v.Turns = sess.ConversationTurns()
		sv := scoresView(sess)
		v.Scores, v.LikelyOutcome, v.ScoringPending = sv.Scores, sv.LikelyOutcome, sv.Pending
	}
	return v, nil
}

func scoresView(sess *domain.Session) *ScoresView {
	v := &ScoresView{
		SessionID: sess.ID,
		Revision:  sess.Revision,
		Scores:    sess.Scores,
		Pending:   sess.ScoringPending,
	}
	if likely, ok := scoring.LikelyOutcome(sess.Scores); ok {
		v.LikelyOutcome = &likely
	}
	return v
}

func fixedState(sess *domain.Session) fixedchoice.State {
	return fixedchoice.State{CurrentStep: sess.CurrentStep, History: sess.History, Finished: sess.Finished}
}

func applyFixedState(sess *domain.Session, st fixedchoice.State) {
	sess.CurrentStep, sess.History, sess.Finished = st.CurrentStep, st.History, st.Finished
}

func encodeChoices(sess *domain.Session) (json.RawMessage, error) {
	if sess.Mode == domain.ModeFixed {
		history := sess.History
		if history == nil {
			history = []domain.ChoiceHistoryEntry{}
		}
		return json.Marshal(history)
	}
	return json.Marshal(sess.ConversationTurns())
}
