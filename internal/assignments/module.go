// Package assignments provides the assignment engine bounded context module.
package assignments

import (
	"leadbroker_backend/internal/assignments/handler"
	"leadbroker_backend/internal/assignments/repository"
	"leadbroker_backend/internal/assignments/service"
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the assignments bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the assignments module. The invoice
// issuer is not a constructor argument: billing depends on this module for
// delivery, so it is injected afterwards via Service().SetInvoiceIssuer.
func NewModule(
	pool *pgxpool.Pool,
	leads service.LeadDirectory,
	brokers service.BrokerDirectory,
	contracts service.ContractResolver,
	eventBus events.Bus,
	baseURL string,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, brokers, contracts, eventBus, baseURL, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "assignments"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts assignment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)

	// Broker-facing follow-up pages, token protected.
	publicGroup := ctx.V1.Group("/assignments")
	m.handler.RegisterPublicRoutes(publicGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
