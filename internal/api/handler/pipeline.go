package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Adembenali2/cccomputer-sub001/internal/service"
	"github.com/gin-gonic/gin"
)

// PipelineHandler exposes the run trigger and monitoring endpoints.
type PipelineHandler struct {
	runner *service.Runner
}

// NewPipelineHandler creates a new pipeline handler.
func NewPipelineHandler(runner *service.Runner) *PipelineHandler {
	return &PipelineHandler{runner: runner}
}

// Run handles POST /api/v1/pipeline/:source/run. The call is synchronous:
// it returns once the run concluded, or immediately when the source is
// not due or locked.
func (h *PipelineHandler) Run(c *gin.Context) {
	sourceName := c.Param("source")

	opts := service.RunOptions{
		Force: c.Query("force") == "true",
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		opts.Limit = limit
	}

	result, err := h.runner.RunIfDue(c.Request.Context(), sourceName, opts)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown source: " + sourceName,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Run failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Status handles GET /api/v1/pipeline/:source/status.
func (h *PipelineHandler) Status(c *gin.Context) {
	sourceName := c.Param("source")

	status, err := h.runner.Status(c.Request.Context(), sourceName)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown source: " + sourceName,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read status: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, status)
}

// History handles GET /api/v1/pipeline/:source/history.
func (h *PipelineHandler) History(c *gin.Context) {
	sourceName := c.Param("source")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 200 {
		limit = 20
	}

	records, err := h.runner.History(c.Request.Context(), sourceName, limit)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown source: " + sourceName,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read history: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source": sourceName,
		"runs":   records,
	})
}

// Sources handles GET /api/v1/pipeline/sources.
func (h *PipelineHandler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sources": h.runner.Sources(),
	})
}
