// Package v1 provides HTTP API version 1 of the numbering authority.
package v1

import (
	"github.com/gin-gonic/gin"

	"fieldledger/internal/core/numerator"
	"fieldledger/internal/domain/auth"
	"fieldledger/internal/infrastructure/http/v1/handlers"
	"fieldledger/internal/infrastructure/http/v1/middleware"
	"fieldledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for device token validation
	JWTValidator middleware.JWTValidator

	// Reserver grants number blocks
	Reserver numerator.Reserver

	// DB is checked by the readiness probe
	DB handlers.Pinger

	// Version reported by /health/info
	Version string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!). Recovery sits inside ErrorHandler
	// so a recovered panic is still rendered as JSON.
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerNumberingRoutes(protected, cfg)
	}

	return router
}

// registerNumberingRoutes registers block reservation endpoints.
func registerNumberingRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	reservationHandler := handlers.NewReservationHandler(baseHandler, cfg.Reserver)

	numbering := rg.Group("/numbering", middleware.RequireRole(auth.RoleDevice, auth.RoleAdmin))
	numbering.POST("/reservations", reservationHandler.Reserve)
}
