package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Adembenali2/cccomputer-sub001/internal/normalize"
	"github.com/Adembenali2/cccomputer-sub001/internal/repository"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DeviceHandler exposes the fleet directory mirror.
type DeviceHandler struct {
	devices *repository.DeviceRepository
}

// NewDeviceHandler creates a new device handler.
func NewDeviceHandler(devices *repository.DeviceRepository) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// List handles GET /api/v1/devices.
func (h *DeviceHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	devices, err := h.devices.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list devices: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// Get handles GET /api/v1/devices/:device.
func (h *DeviceHandler) Get(c *gin.Context) {
	key, err := normalize.DeviceKey(c.Param("device"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid device key",
		})
		return
	}

	device, err := h.devices.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Device not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to read device: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, device)
}
