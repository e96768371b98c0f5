package v1

import (
	"context"
	"net/http"
	"time"

	"confd/internal/server/api/response"
	"confd/internal/server/service"
	"confd/internal/validator"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// API represents the API
type API struct {
	service  *service.Service
	validate *validator.Validator
	logger   *zap.Logger
}

// NewAPI creates new API
func NewAPI(svc *service.Service, logger *zap.Logger) *API {
	return &API{
		service:  svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers API routes
func (api *API) RegisterRoutes(r *gin.RouterGroup) {
	// Config endpoints
	cfg := r.Group("/config")
	{
		cfg.GET("", api.getAllConfig)
		cfg.GET("/:key", api.getConfig)
		cfg.PUT("/:key", api.updateConfig)
		cfg.DELETE("/:key", api.deleteConfig)
	}

	// Version endpoints
	versions := r.Group("/versions")
	{
		versions.POST("", api.createVersion)
		versions.GET("", api.listVersions)
		versions.GET("/compare", api.compareVersions)
		versions.GET("/:id", api.getVersion)
		versions.POST("/:id/rollback", api.rollbackVersion)
	}

	// Audit endpoints
	audit := r.Group("/audit")
	{
		audit.GET("", api.queryAudit)
		audit.GET("/statistics", api.auditStatistics)
		audit.GET("/export", api.exportAudit)
	}

	// Reload trigger
	r.POST("/reload", api.forceReload)

	// Health check
	r.GET("/health", api.healthCheck)
}

// requestContext derives a bounded context for a handler
func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// healthCheck handles the health endpoint
func (api *API) healthCheck(c *gin.Context) {
	resp := response.New(c, api.logger)

	ctx, cancel := requestContext(c)
	defer cancel()

	status := api.service.HealthCheck(ctx)
	if !status.Healthy {
		resp.Custom(http.StatusServiceUnavailable, status)
		return
	}
	resp.Success(status)
}
