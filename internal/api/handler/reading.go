package handler

import (
	"net/http"
	"strconv"

	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/repository"
	"github.com/gin-gonic/gin"
)

// ReadingHandler exposes read-only access to stored readings.
type ReadingHandler struct {
	readings *repository.ReadingRepository
}

// NewReadingHandler creates a new reading handler.
func NewReadingHandler(readings *repository.ReadingRepository) *ReadingHandler {
	return &ReadingHandler{readings: readings}
}

// ListRecent handles GET /api/v1/readings.
func (h *ReadingHandler) ListRecent(c *gin.Context) {
	source := c.Query("source")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	readings, err := h.readings.ListRecent(c.Request.Context(), source, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list readings: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"readings": readings,
		"count":    len(readings),
	})
}

// ListByDevice handles GET /api/v1/readings/:device.
func (h *ReadingHandler) ListByDevice(c *gin.Context) {
	key, err := normalize.DeviceKey(c.Param("device"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid device key",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	readings, err := h.readings.ListByDevice(c.Request.Context(), key, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list readings: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device_key": key,
		"readings":   readings,
		"count":      len(readings),
	})
}
