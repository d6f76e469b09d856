// Package contracts provides the contract resolver bounded context module.
package contracts

import (
	"leadbroker_backend/internal/contracts/handler"
	"leadbroker_backend/internal/contracts/repository"
	"leadbroker_backend/internal/contracts/service"
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the contracts bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the contracts module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	brokers service.BrokerDirectory,
	categories service.CategoryDirectory,
	eventBus events.Bus,
	baseURL string,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, brokers, categories, eventBus, baseURL, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "contracts"
}

// Service returns the service layer for the assignment engine.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts contract routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	contractsGroup := ctx.Admin.Group("/contracts")
	m.handler.RegisterRoutes(contractsGroup)

	// Broker-facing confirmation links, token protected.
	publicGroup := ctx.V1.Group("/contracts")
	m.handler.RegisterPublicRoutes(publicGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
