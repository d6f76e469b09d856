// Package billing provides the invoicing and payment bounded context module.
package billing

import (
	"leadbroker_backend/internal/billing/handler"
	"leadbroker_backend/internal/billing/repository"
	"leadbroker_backend/internal/billing/service"
	"leadbroker_backend/internal/events"
	apphttp "leadbroker_backend/internal/http"
	"leadbroker_backend/platform/config"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the billing module. The package
// activator is wired afterwards via Service().SetPackageActivator because
// packages depend on billing for their invoices.
func NewModule(
	pool *pgxpool.Pool,
	cfg config.StripeConfig,
	brokers service.BrokerDirectory,
	deliverer service.AssignmentDeliverer,
	commissions service.CommissionSource,
	eventBus events.Bus,
	log *logger.Logger,
	val *validator.Validator,
) *Module {
	repo := repository.New(pool)

	var links service.LinkCreator = service.NoopLinks{}
	if cfg.IsStripeEnabled() {
		links = service.NewStripeLinks(cfg)
	}

	svc := service.New(repo, links, brokers, deliverer, commissions, eventBus, cfg.GetStripeWebhookSecret(), log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "billing"
}

// Service returns the service layer for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts billing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Admin)

	paymentsGroup := ctx.V1.Group("/payments")
	m.handler.RegisterPublicRoutes(paymentsGroup)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
