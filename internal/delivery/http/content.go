package http

import (
	"net/http"
	"strings"

	"iep-rehearsal/internal/catalog"
	"iep-rehearsal/internal/domain"
	"iep-rehearsal/internal/reference"
	"iep-rehearsal/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type listScenariosQuery struct {
	Mode       string `form:"mode" binding:"omitempty,oneof=fixed freeform"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=Easy Moderate Advanced"`
	Category   string `form:"category"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"pageSize" binding:"omitempty,min=1,max=50"`
}

type scenarioListResponse struct {
	catalog.Page
	Difficulties map[domain.Difficulty]string `json:"difficulties"`
}

type listLogsQuery struct {
	ScenarioID string `form:"scenarioId"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

type suggestionRequest struct {
	Suggestion string `json:"suggestion" binding:"required,max=2000"`
}

func (h *Handler) listScenarios(c *gin.Context) {
	var q listScenariosQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	page := h.catalog.List(catalog.Filter{
		Mode:       domain.Mode(q.Mode),
		Difficulty: domain.Difficulty(q.Difficulty),
		Category:   q.Category,
		Page:       q.Page,
		PageSize:   q.PageSize,
	})
	c.JSON(http.StatusOK, scenarioListResponse{Page: page, Difficulties: domain.DifficultyDescriptions})
}

func (h *Handler) getFixedScenario(c *gin.Context) {
	def, err := h.catalog.Fixed(c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *Handler) getFreeFormScenario(c *gin.Context) {
	def, err := h.catalog.FreeForm(c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

func (h *Handler) listLogs(c *gin.Context) {
	var q listLogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	logs, err := h.logs.List(ctx, repository.LogFilter{ScenarioID: q.ScenarioID, Limit: q.Limit})
	if err != nil {
		h.logger.Error("Failed to list simulation logs", zap.String("scenarioID", q.ScenarioID), zap.Error(err))
		handleServiceError(c, err)
		return
	}
	total, err := h.logs.Count(ctx, q.ScenarioID)
	if err != nil {
		h.logger.Error("Failed to count simulation logs", zap.String("scenarioID", q.ScenarioID), zap.Error(err))
		handleServiceError(c, err)
		return
	}
	if logs == nil {
		logs = []domain.SimulationLog{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
}

func (h *Handler) createSuggestion(c *gin.Context) {
	var req suggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	text := strings.TrimSpace(req.Suggestion)
	if text == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Suggestion must not be empty"})
		return
	}
	s, err := h.suggestions.Create(c.Request.Context(), text)
	if err != nil {
		h.logger.Error("Failed to store suggestion", zap.Error(err))
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *Handler) glossary(c *gin.Context) {
	q := c.Query("q")
	terms := h.library.Glossary(q)
	c.JSON(http.StatusOK, gin.H{"query": q, "count": len(terms), "terms": terms, "letters": reference.Letters(terms)})
}

func (h *Handler) accommodations(c *gin.Context) {
	found := h.library.Accommodations(c.Query("disability"), c.Query("presentation"))
	c.JSON(http.StatusOK, gin.H{"disabilities": found, "available": h.library.Disabilities()})
}
