package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vellum/internal/ai"
	"vellum/internal/sched"
	"vellum/internal/storage"
)

// renderError maps sentinel errors to status codes. Anything unmapped is a
// 500 with a generic body; details go to the log, not the client.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, sched.ErrNoPreferences):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": "configure your available hours first"})
	case errors.Is(err, sched.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": sched.ErrRunInProgress.Error()})
	case errors.Is(err, ai.ErrDailyLimit):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily ai limit reached; try again tomorrow"})
	case errors.Is(err, ai.ErrDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ai.ErrDisabled.Error()})
	case errors.Is(err, ai.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": ai.ErrUnavailable.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
