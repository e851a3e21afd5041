package http

import (
	"errors"
	"net/http"

	"iep-rehearsal/internal/domain"
	"iep-rehearsal/pkg/taskmanager"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func handleServiceError(c *gin.Context, err error) {
	var (
		statusCode int
		resp       APIError
		parseErr   *domain.GenerationParseError
	)

	switch {
	case errors.Is(err, domain.ErrScenarioNotFound):
		statusCode = http.StatusNotFound
		resp = APIError{Message: "Scenario not found"}
	case errors.Is(err, domain.ErrSessionNotFound):
		statusCode = http.StatusNotFound
		resp = APIError{Message: "Session not found"}
	case errors.Is(err, domain.ErrNotFound):
		statusCode = http.StatusNotFound
		resp = APIError{Message: "Resource not found"}
	case errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrInvalidStance),
		errors.Is(err, domain.ErrNothingToUndo),
		errors.Is(err, domain.ErrBadRequest):
		statusCode = http.StatusBadRequest
		resp = APIError{Message: err.Error()}
	case errors.Is(err, domain.ErrSessionFinished), errors.Is(err, domain.ErrWrongMode):
		statusCode = http.StatusConflict
		resp = APIError{Message: err.Error()}
	case errors.As(err, &parseErr):
		zap.L().Warn("Generation reply could not be parsed", zap.Error(err))
		statusCode = http.StatusBadGateway
		resp = APIError{Message: "The model returned a malformed reply", Details: parseErr.Raw}
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrScoringUnavailable),
		errors.Is(err, taskmanager.ErrTooManyTasks):
		zap.L().Warn("Upstream unavailable", zap.Error(err))
		statusCode = http.StatusServiceUnavailable
		resp = APIError{Message: "Generation service is unavailable, try again later"}
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		resp = APIError{Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, resp)
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, APIError{Message: "Invalid request", Details: err.Error()})
}
