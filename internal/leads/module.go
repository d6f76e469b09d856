// Package leads provides the lead store bounded context module.
package leads

import (
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/internal/leads/handler"
	"leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/internal/leads/service"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the lead store bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the leads module with all its dependencies.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, log *logger.Logger, val *validator.Validator) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, eventBus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// Service returns the service layer for the ingestion and assignment modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts lead store routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	leadsGroup := ctx.Admin.Group("/leads")
	m.handler.RegisterRoutes(leadsGroup)

	categoriesGroup := ctx.Admin.Group("/categories")
	m.handler.RegisterCategoryRoutes(categoriesGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
