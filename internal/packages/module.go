// Package packages provides the package distributor bounded context module.
package packages

import (
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/internal/packages/handler"
	"leadbroker_backend/internal/packages/repository"
	"leadbroker_backend/internal/packages/service"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the packages bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the packages module.
func NewModule(
	pool *pgxpool.Pool,
	leads service.LeadStore,
	brokers service.BrokerDirectory,
	assignments service.AssignmentWriter,
	invoicer service.InvoiceIssuer,
	eventBus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, leads, brokers, assignments, invoicer, eventBus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "packages"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts package routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	packagesGroup := ctx.Admin.Group("/packages")
	m.handler.RegisterRoutes(packagesGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
