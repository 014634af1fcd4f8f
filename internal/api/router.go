package api

import (
	"github.com/Adembenali2/cccomputer-sub001/internal/api/handler"
	"github.com/Adembenali2/cccomputer-sub001/internal/api/middleware"
	"github.com/Adembenali2/cccomputer-sub001/internal/config"
	"github.com/Adembenali2/cccomputer-sub001/internal/logger"
	"github.com/Adembenali2/cccomputer-sub001/internal/repository"
	"github.com/Adembenali2/cccomputer-sub001/internal/service"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	db *gorm.DB,
	runner *service.Runner,
	readings *repository.ReadingRepository,
	devices *repository.DeviceRepository,
	cfg config.ServerConfig,
	log *logger.Logger,
) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.CORS.AllowAllOrigins,
	}))

	healthHandler := handler.NewHealthHandler(db)
	pipelineHandler := handler.NewPipelineHandler(runner)
	readingHandler := handler.NewReadingHandler(readings)
	deviceHandler := handler.NewDeviceHandler(devices)

	// Health check
	r.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Pipeline triggers and monitoring
		v1.GET("/pipeline/sources", pipelineHandler.Sources)
		v1.POST("/pipeline/:source/run", pipelineHandler.Run)
		v1.GET("/pipeline/:source/status", pipelineHandler.Status)
		v1.GET("/pipeline/:source/history", pipelineHandler.History)

		// Readings
		v1.GET("/readings", readingHandler.ListRecent)
		v1.GET("/readings/:device", readingHandler.ListByDevice)

		// Fleet directory
		v1.GET("/devices", deviceHandler.List)
		v1.GET("/devices/:device", deviceHandler.Get)
	}

	return r
}
