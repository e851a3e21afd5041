package http

import (
	"net/http"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createSessionRequest struct {
	Mode       string `json:"mode" binding:"required,oneof=fixed freeform"`
	ScenarioID string `json:"scenarioId" binding:"required"`
}

type choiceRequest struct {
	OptionIndex *int `json:"optionIndex" binding:"required,min=0"`
}

type turnRequest struct {
	Text   string `json:"text" binding:"required,max=2000"`
	Stance string `json:"stance" binding:"required"`
}

type endRequest struct {
	Meta map[string]any `json:"meta"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := h.rehearsals.CreateSession(c.Request.Context(), domain.Mode(req.Mode), req.ScenarioID, c.Request.UserAgent())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *Handler) getSession(c *gin.Context) {
	view, err := h.rehearsals.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) choose(c *gin.Context) {
	var req choiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.rehearsals.Choose(c.Request.Context(), c.Param("id"), *req.OptionIndex)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) turn(c *gin.Context) {
	var req turnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.rehearsals.Turn(c.Request.Context(), c.Param("id"), req.Text, domain.StanceTag(req.Stance))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) undo(c *gin.Context) {
	view, err := h.rehearsals.Undo(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) scores(c *gin.Context) {
	res, err := h.rehearsals.Scores(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) end(c *gin.Context) {
	var req endRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	debrief, err := h.rehearsals.End(c.Request.Context(), c.Param("id"), req.Meta)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, debrief)
}

// watchSession streams score updates of a session over a websocket.
func (h *Handler) watchSession(c *gin.Context) {
	if h.stream == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, APIError{Message: "Live updates are disabled"})
		return
	}
	id := c.Param("id")
	if _, err := h.rehearsals.GetSession(c.Request.Context(), id); err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Debug("Opening session stream", zap.String("sessionID", id))
	h.stream.Serve(c.Writer, c.Request, id, service.TopicScores)
}
