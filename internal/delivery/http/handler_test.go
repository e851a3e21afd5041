package http_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"iep-rehearsal/internal/catalog"
	delivery "iep-rehearsal/internal/delivery/http"
	"iep-rehearsal/internal/delivery/http/middleware"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/mocks"
	"iep-rehearsal/internal/reference"
	"iep-rehearsal/internal/repository"
	"iep-rehearsal/internal/service"
	"iep-rehearsal/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	router      *gin.Engine
	rehearsals  *mocks.MockRehearsalService
	logs        *mocks.MockSimulationLogRepository
	suggestions *mocks.MockSuggestionRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Load()
	require.NoError(t, err)
	lib, err := reference.Load()
	require.NoError(t, err)

	f := &fixture{
		rehearsals:  mocks.NewMockRehearsalService(t),
		logs:        mocks.NewMockSimulationLogRepository(t),
		suggestions: mocks.NewMockSuggestionRepository(t),
	}
	t.Cleanup(func() {
		f.rehearsals.AssertExpectations(t)
		f.logs.AssertExpectations(t)
		f.suggestions.AssertExpectations(t)
	})

	f.router = gin.New()
	f.router.Use(middleware.ZapLogger(zap.NewNop()))
	h := delivery.NewHandler(f.rehearsals, cat, lib, f.logs, f.suggestions, nil, zap.NewNop())
	h.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "handler-test")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = f.do(t, http.MethodHead, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestListScenarios(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/scenarios?mode=fixed&pageSize=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		catalog.Page
		Difficulties map[string]string `json:"difficulties"`
	}](t, w)
	assert.Len(t, resp.Items, 4)
	assert.Equal(t, 4, resp.PageSize)
	assert.Greater(t, resp.Total, 4)
	for _, s := range resp.Items {
		assert.Equal(t, domain.ModeFixed, s.Mode)
	}
	assert.Len(t, resp.Difficulties, 3)

	w = f.do(t, http.MethodGet, "/api/v1/scenarios?mode=chat", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetScenario(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/scenarios/fixed/disagreeing-politely", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"disagreeing-politely"`)

	w = f.do(t, http.MethodGet, "/api/v1/scenarios/freeform/custom-request-data", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/scenarios/fixed/no-such-scenario", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Scenario not found", decode[delivery.APIError](t, w).Message)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)
	view := &service.SessionView{ID: "s-1", Mode: domain.ModeFreeForm, ScenarioID: "custom-request-data", StartedAt: time.Now()}
	f.rehearsals.On("CreateSession", mock.Anything, domain.ModeFreeForm, "custom-request-data", "handler-test").Return(view, nil).Once()

	w := f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"mode": "freeform", "scenarioId": "custom-request-data"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "s-1", decode[service.SessionView](t, w).ID)

	w = f.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{"mode": "improv", "scenarioId": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChooseRequiresOptionIndex(t *testing.T) {
	f := newFixture(t)
	f.rehearsals.On("Choose", mock.Anything, "s-1", 0).Return(&service.ChoiceResult{}, nil).Once()

	w := f.do(t, http.MethodPost, "/api/v1/sessions/s-1/choices", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/s-1/choices", map[string]any{"optionIndex": 0})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTurnAndEnd(t *testing.T) {
	f := newFixture(t)
	f.rehearsals.On("Turn", mock.Anything, "s-1", "Can I see the data?", domain.StanceRights).
		Return(&service.TurnView{Turn: domain.ConversationTurn{Stance: domain.StanceRights}}, nil).Once()
	f.rehearsals.On("End", mock.Anything, "s-1", map[string]any(nil)).
		Return(&domain.Debrief{SessionID: "s-1", Feedback: "ok"}, nil).Once()
	f.rehearsals.On("End", mock.Anything, "s-2", map[string]any{"source": "web"}).
		Return(&domain.Debrief{SessionID: "s-2"}, nil).Once()

	w := f.do(t, http.MethodPost, "/api/v1/sessions/s-1/turns", map[string]string{"text": "Can I see the data?", "stance": "rights"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/s-1/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[domain.Debrief](t, w).Feedback)

	w = f.do(t, http.MethodPost, "/api/v1/sessions/s-2/end", map[string]any{"meta": map[string]any{"source": "web"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		details string
	}{
		{"session not found", domain.ErrSessionNotFound, http.StatusNotFound, ""},
		{"wrapped wrong mode", fmt.Errorf("scores: %w", domain.ErrWrongMode), http.StatusConflict, ""},
		{"finished", domain.ErrSessionFinished, http.StatusConflict, ""},
		{"nothing to undo", domain.ErrNothingToUndo, http.StatusBadRequest, ""},
		{"invalid stance", domain.ErrInvalidStance, http.StatusBadRequest, ""},
		{"parse failure", domain.NewGenerationParseError("not json", errors.New("no object")), http.StatusBadGateway, "not json"},
		{"unavailable", fmt.Errorf("%w: timeout", domain.ErrServiceUnavailable), http.StatusServiceUnavailable, ""},
		{"too many jobs", taskmanager.ErrTooManyTasks, http.StatusServiceUnavailable, ""},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.rehearsals.On("Scores", mock.Anything, "s-1").Return(nil, tt.err).Once()

			w := f.do(t, http.MethodGet, "/api/v1/sessions/s-1/scores", nil)
			assert.Equal(t, tt.status, w.Code)
			body := decode[delivery.APIError](t, w)
			assert.NotEmpty(t, body.Message)
			assert.Equal(t, tt.details, body.Details)
		})
	}
}

func TestWatchSessionDisabled(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/v1/sessions/s-1/ws", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListLogs(t *testing.T) {
	f := newFixture(t)
	f.logs.On("List", mock.Anything, repository.LogFilter{ScenarioID: "custom-request-data", Limit: 5}).
		Return([]domain.SimulationLog{{ID: 1, ScenarioID: "custom-request-data"}}, nil).Once()
	f.logs.On("Count", mock.Anything, "custom-request-data").Return(int64(12), nil).Once()

	w := f.do(t, http.MethodGet, "/api/v1/logs?scenarioId=custom-request-data&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Logs  []domain.SimulationLog `json:"logs"`
		Total int64                  `json:"total"`
	}](t, w)
	assert.Len(t, resp.Logs, 1)
	assert.EqualValues(t, 12, resp.Total)

	w = f.do(t, http.MethodGet, "/api/v1/logs?limit=100000", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSuggestion(t *testing.T) {
	f := newFixture(t)
	f.suggestions.On("Create", mock.Anything, "A meeting about assistive tech").
		Return(&domain.ScenarioSuggestion{ID: 3, Suggestion: "A meeting about assistive tech"}, nil).Once()

	w := f.do(t, http.MethodPost, "/api/v1/suggestions", map[string]string{"suggestion": "  A meeting about assistive tech "})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.EqualValues(t, 3, decode[domain.ScenarioSuggestion](t, w).ID)

	w = f.do(t, http.MethodPost, "/api/v1/suggestions", map[string]string{"suggestion": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferenceRoutes(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/glossary?q=non-disabled", nil)
	require.Equal(t, http.StatusOK, w.Code)
	glossary := decode[struct {
		Count   int                              `json:"count"`
		Terms   []domain.GlossaryTerm            `json:"terms"`
		Letters map[string][]domain.GlossaryTerm `json:"letters"`
	}](t, w)
	assert.Equal(t, 1, glossary.Count)
	assert.Len(t, glossary.Letters, 1)

	w = f.do(t, http.MethodGet, "/api/v1/accommodations?disability=dyslexia&presentation=effortful", nil)
	require.Equal(t, http.StatusOK, w.Code)
	acc := decode[struct {
		Disabilities []domain.Disability `json:"disabilities"`
		Available    []string            `json:"available"`
	}](t, w)
	require.Len(t, acc.Disabilities, 1)
	assert.Len(t, acc.Disabilities[0].AccommodationsModifications, 2)
	assert.Len(t, acc.Available, 3)
}
