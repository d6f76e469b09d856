package webhook

import (
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the lead ingestion bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	service *Service
}

// NewModule creates and initializes the webhook module with all its dependencies.
func NewModule(pool *pgxpool.Pool, leads LeadCreator, log *logger.Logger, val *validator.Validator) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, leads, log)
	h := NewHandler(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts ingestion and source administration routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public token-protected ingress, rate limited per client IP.
	ingest := ctx.V1.Group("/webhook/:token")
	ingest.Use(ctx.WebhookRateLimiter.RateLimit())
	ingest.Use(m.service.TokenAuth())
	ingest.POST("", m.handler.HandleIngest)
	// Alias surface for generic automation tools posting flat JSON.
	ingest.POST("/json", m.handler.HandleIngest)

	sources := ctx.Admin.Group("/lead-sources")
	sources.GET("", m.handler.HandleListSources)
	sources.POST("", m.handler.HandleCreateSource)
	sources.PATCH("/:id/active", m.handler.HandleSetSourceActive)
	sources.DELETE("/:id", m.handler.HandleDeleteSource)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
