// Package http exposes the rehearsal service, the scenario catalog and the
// reference library over a JSON API.
package http

import (
	"context"
	"net/http"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/reference"
	"iep-rehearsal/internal/repository"
	"iep-rehearsal/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RehearsalService is the part of service.RehearsalService the API calls.
type RehearsalService interface {
	CreateSession(ctx context.Context, mode domain.Mode, scenarioID, userAgent string) (*service.SessionView, error)
	GetSession(ctx context.Context, id string) (*service.SessionView, error)
	Choose(ctx context.Context, id string, optionIndex int) (*service.ChoiceResult, error)
	Turn(ctx context.Context, id, text string, stance domain.StanceTag) (*service.TurnView, error)
	Undo(ctx context.Context, id string) (*service.SessionView, error)
	Scores(ctx context.Context, id string) (*service.ScoresView, error)
	End(ctx context.Context, id string, meta map[string]any) (*domain.Debrief, error)
}

// SessionStream upgrades a request to a live event stream of one session.
type SessionStream interface {
	Serve(w http.ResponseWriter, r *http.Request, sessionID string, topics ...string)
}

var _ RehearsalService = (*service.RehearsalService)(nil)

// Handler serves the /api/v1 routes.
type Handler struct {
	rehearsals  RehearsalService
	catalog     *catalog.Catalog
	library     *reference.Library
	logs        repository.SimulationLogRepository
	suggestions repository.SuggestionRepository
	stream      SessionStream
	logger      *zap.Logger
}

// NewHandler builds the handler. stream may be nil, in which case the
// websocket route answers 404.
func NewHandler(
	rehearsals RehearsalService,
	cat *catalog.Catalog,
	library *reference.Library,
	logs repository.SimulationLogRepository,
	suggestions repository.SuggestionRepository,
	stream SessionStream,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		rehearsals:  rehearsals,
		catalog:     cat,
		library:     library,
		logs:        logs,
		suggestions: suggestions,
		stream:      stream,
		logger:      logger.Named("HTTPHandler"),
	}
}

// RegisterRoutes mounts the health probe and the versioned API on router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.health)
	router.HEAD("/health", h.health)

	api := router.Group("/api/v1")
	{
		scenarios := api.Group("/scenarios")
		{
			scenarios.GET("", h.listScenarios)
			scenarios.GET("/fixed/:id", h.getFixedScenario)
			scenarios.GET("/freeform/:id", h.getFreeFormScenario)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("", h.createSession)
			sessions.GET("/:id", h.getSession)
			sessions.POST("/:id/choices", h.choose)
			sessions.POST("/:id/turns", h.turn)
			sessions.POST("/:id/undo", h.undo)
			sessions.GET("/:id/scores", h.scores)
			sessions.POST("/:id/end", h.end)
			sessions.GET("/:id/ws", h.watchSession)
		}

		api.GET("/logs", h.listLogs)
		api.POST("/suggestions", h.createSuggestion)
		api.GET("/glossary", h.glossary)
		api.GET("/accommodations", h.accommodations)
	}
}

func (h *Handler) health(c *gin.Context) {
	if c.Request.Method == http.MethodHead {
		c.Status(http.StatusOK)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
