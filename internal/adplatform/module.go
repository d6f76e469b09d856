package adplatform

import (
	"net/http"

	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/config"
	"leadbroker_backend/platform/httpkit"
	"leadbroker_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

var errSyncInProgress = apperr.Conflict("a sync is already running")

// Module is the ad-platform import bounded context implementing http.Module.
type Module struct {
	service *Service
	enabled bool
}

// NewModule creates and initializes the ad-platform module.
func NewModule(cfg config.AdPlatformConfig, leads LeadStore, log *logger.Logger) *Module {
	client := NewClient(cfg.GetGraphAPIBaseURL(), cfg.GetGraphAPIAccessToken(), cfg.GetGraphAPIPageSize(), log)
	svc := NewService(client, leads, log)
	return &Module{service: svc, enabled: cfg.IsAdPlatformEnabled()}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "adplatform"
}

// Service returns the sync service for the scheduler.
func (m *Module) Service() *Service {
	return m.service
}

// Enabled reports whether a graph API token is configured.
func (m *Module) Enabled() bool {
	return m.enabled
}

// RegisterRoutes mounts the operator-facing sync trigger and status routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Admin.Group("/adplatform")
	group.POST("/sync", m.handleSync)
	group.GET("/sync", m.handleStatus)
}

func (m *Module) handleSync(c *gin.Context) {
	if !m.enabled {
		httpkit.Error(c, http.StatusConflict, "ad-platform sync is not configured", nil)
		return
	}

	result, err := m.service.Sync(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, result)
}

func (m *Module) handleStatus(c *gin.Context) {
	running, lastRun, lastErr := m.service.Status()
	httpkit.OK(c, gin.H{
		"enabled":   m.enabled,
		"running":   running,
		"lastRun":   lastRun,
		"lastError": lastErr,
	})
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
