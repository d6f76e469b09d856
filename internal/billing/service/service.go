package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	assignsrepo "leadbroker_backend/internal/assignments/repository"
	assignsvc "leadbroker_backend/internal/assignments/service"
	"leadbroker_backend/internal/billing/repository"
	"leadbroker_backend/internal/billing/transport"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/internal/events"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Invoices fall due 30 days after creation.
const dueDays = 30

const webhookTolerance = 5 * time.Minute

// Store is the persistence surface the billing service needs.
type Store interface {
	Create(ctx context.Context, inv repository.Invoice, items []repository.InvoiceItem) (repository.Invoice, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Invoice, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (repository.Invoice, error)
	GetByPaymentLinkID(ctx context.Context, linkID string) (repository.Invoice, error)
	List(ctx context.Context, brokerID *uuid.UUID) ([]repository.Invoice, error)
	Items(ctx context.Context, invoiceID uuid.UUID) ([]repository.InvoiceItem, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (repository.Invoice, bool, error)
	SetPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

// BrokerDirectory resolves broker contact data.
type BrokerDirectory interface {
	GetContact(ctx context.Context, id uuid.UUID) (brokersrepo.Broker, error)
}

// AssignmentDeliverer completes a payment-gated assignment.
type AssignmentDeliverer interface {
	DeliverPaid(ctx context.Context, assignmentID uuid.UUID) error
}

// PackageActivator reacts to a paid package invoice.
type PackageActivator interface {
	HandleInvoicePaid(ctx context.Context, packageID uuid.UUID) error
}

// CommissionSource lists closed revenue-share commissions for the
// monthly invoice run.
type CommissionSource interface {
	ClosedCommissions(ctx context.Context, from, to time.Time) ([]assignsrepo.CommissionRow, error)
}

// Service implements invoicing and payment confirmation.
type Service struct {
	store         Store
	links         LinkCreator
	brokers       BrokerDirectory
	deliverer     AssignmentDeliverer
	packages      PackageActivator
	commissions   CommissionSource
	eventBus      events.Bus
	webhookSecret string
	log           *logger.Logger
}

// New creates a new billing service. The package activator is wired
// afterwards because packages and billing reference each other.
func New(
	store Store,
	links LinkCreator,
	brokers BrokerDirectory,
	deliverer AssignmentDeliverer,
	commissions CommissionSource,
	eventBus events.Bus,
	webhookSecret string,
	log *logger.Logger,
) *Service {
	return &Service{
		store:         store,
		links:         links,
		brokers:       brokers,
		deliverer:     deliverer,
		commissions:   commissions,
		eventBus:      eventBus,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// SetPackageActivator wires the packages module in.
func (s *Service) SetPackageActivator(activator PackageActivator) {
	s.packages = activator
}

// IssueAssignmentInvoice creates the invoice and payment link for one
// payment-gated assignment. Implements the assignment engine's issuer
// contract.
func (s *Service) IssueAssignmentInvoice(ctx context.Context, in assignsvc.AssignmentInvoice) (assignsvc.IssuedInvoice, error) {
	inv, err := s.issue(ctx, repository.Invoice{
		ID:           uuid.New(),
		BrokerID:     in.BrokerID,
		Type:         in.Type,
		AmountCents:  in.AmountCents,
		Description:  in.Description,
		AssignmentID: &in.AssignmentID,
	}, []repository.InvoiceItem{{
		ID:             uuid.New(),
		Description:    in.Description,
		Quantity:       1,
		UnitPriceCents: in.AmountCents,
		TotalCents:     in.AmountCents,
	}})
	if err != nil {
		return assignsvc.IssuedInvoice{}, err
	}

	issued := assignsvc.IssuedInvoice{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AmountCents:   inv.AmountCents,
		DueDate:       inv.DueDate,
	}
	if inv.PaymentLinkURL != nil {
		issued.PaymentURL = *inv.PaymentLinkURL
	}
	return issued, nil
}

// PackageInvoice is the order for a lead-package invoice. Description may
// carry the reserved-leads JSON for explicit-selection packages.
type PackageInvoice struct {
	PackageID   uuid.UUID
	BrokerID    uuid.UUID
	AmountCents int64
	Description string
	Items       []PackageInvoiceItem
}

// PackageInvoiceItem is one line of a package invoice order.
type PackageInvoiceItem struct {
	Description    string
	Quantity       int
	UnitPriceCents int64
	TotalCents     int64
}

// IssuedPackageInvoice is the persisted invoice handed back to packages.
type IssuedPackageInvoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	AmountCents   int64
	DueDate       time.Time
	PaymentURL    string
}

// IssuePackageInvoice creates the invoice and payment link for a lead
// package.
func (s *Service) IssuePackageInvoice(ctx context.Context, in PackageInvoice) (IssuedPackageInvoice, error) {
	items := make([]repository.InvoiceItem, 0, len(in.Items))
	for _, item := range in.Items {
		items = append(items, repository.InvoiceItem{
			ID:             uuid.New(),
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}

	inv, err := s.issue(ctx, repository.Invoice{
		ID:          uuid.New(),
		BrokerID:    in.BrokerID,
		Type:        repository.TypePackage,
		AmountCents: in.AmountCents,
		Description: in.Description,
		PackageID:   &in.PackageID,
	}, items)
	if err != nil {
		return IssuedPackageInvoice{}, err
	}

	issued := IssuedPackageInvoice{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AmountCents:   inv.AmountCents,
		DueDate:       inv.DueDate,
	}
	if inv.PaymentLinkURL != nil {
		issued.PaymentURL = *inv.PaymentLinkURL
	}
	return issued, nil
}

// issue persists the invoice, then attaches a payment link. A failed link
// cancels the invoice so a broker never receives a bill they cannot pay.
func (s *Service) issue(ctx context.Context, inv repository.Invoice, items []repository.InvoiceItem) (repository.Invoice, error) {
	inv.DueDate = time.Now().AddDate(0, 0, dueDays)

	created, err := s.store.Create(ctx, inv, items)
	if err != nil {
		return repository.Invoice{}, err
	}

	if s.links.Enabled() {
		link, err := s.links.CreatePaymentLink(ctx, created.ID, created.InvoiceNumber, created.AmountCents, created.Description)
		if err != nil {
			if cancelErr := s.store.Cancel(ctx, created.ID); cancelErr != nil {
				s.log.Error("invoice cancel failed", "error", cancelErr, "invoiceId", created.ID)
			}
			s.log.PaymentEvent("payment_link_failed", created.InvoiceNumber, false, err.Error())
			return repository.Invoice{}, apperr.Wrap(apperr.KindInternal, "payment link creation failed", err)
		}
		if err := s.store.SetPaymentLink(ctx, created.ID, link.ID, link.URL); err != nil {
			return repository.Invoice{}, err
		}
		created.PaymentLinkID = &link.ID
		created.PaymentLinkURL = &link.URL
	}

	s.log.PaymentEvent("invoice_created", created.InvoiceNumber, true, created.Type)
	return created, nil
}

// HandleWebhook verifies and processes a payment provider event. Only
// completed checkout sessions are acted on, everything else is
// acknowledged and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (transport.PaymentResult, error) {
	event, err := webhook.ConstructEventWithTolerance(payload, signature, s.webhookSecret, webhookTolerance)
	if err != nil {
		return transport.PaymentResult{}, apperr.Unauthorized("invalid webhook signature")
	}

	if event.Type != "checkout.session.completed" {
		s.log.Info("webhook event ignored", "type", event.Type)
		return transport.PaymentResult{Success: true}, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return transport.PaymentResult{}, apperr.BadRequest("malformed webhook event")
	}

	inv, err := s.resolveWebhookInvoice(ctx, session)
	if err != nil {
		return transport.PaymentResult{}, err
	}

	return s.confirmPayment(ctx, inv.ID)
}

// resolveWebhookInvoice finds the invoice for a completed checkout
// session: metadata first, stored payment-link id as fallback.
func (s *Service) resolveWebhookInvoice(ctx context.Context, session stripe.CheckoutSession) (repository.Invoice, error) {
	if raw, ok := session.Metadata["invoice_id"]; ok && raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return repository.Invoice{}, apperr.BadRequest("invalid invoice id in event metadata")
		}
		return s.store.GetByID(ctx, id)
	}
	if session.PaymentLink != nil && session.PaymentLink.ID != "" {
		return s.store.GetByPaymentLinkID(ctx, session.PaymentLink.ID)
	}
	return repository.Invoice{}, apperr.BadRequest("event carries no invoice reference")
}

// VerifyManual confirms a payment by invoice number. Fallback for when
// the provider webhook did not fire, driven by the buyer's post-payment
// redirect.
func (s *Service) VerifyManual(ctx context.Context, invoiceNumber string) (transport.PaymentResult, error) {
	inv, err := s.store.GetByNumber(ctx, invoiceNumber)
	if err != nil {
		return transport.PaymentResult{}, err
	}
	return s.confirmPayment(ctx, inv.ID)
}

// confirmPayment marks the invoice paid and dispatches delivery by
// invoice type. A repeat confirmation reports already_paid and performs
// no further mutation.
func (s *Service) confirmPayment(ctx context.Context, invoiceID uuid.UUID) (transport.PaymentResult, error) {
	inv, alreadyPaid, err := s.store.MarkPaid(ctx, invoiceID, time.Now())
	if err != nil {
		return transport.PaymentResult{}, err
	}

	result := transport.PaymentResult{
		Success:       true,
		AlreadyPaid:   alreadyPaid,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
	}
	if alreadyPaid {
		s.log.PaymentEvent("payment_repeated", inv.InvoiceNumber, true, "already paid")
		return result, nil
	}

	if err := s.dispatchDelivery(ctx, inv); err != nil {
		// The invoice stays paid; delivery is retried through the
		// operator resend tooling, not by failing the confirmation.
		s.log.PaymentEvent("delivery_dispatch_failed", inv.InvoiceNumber, false, err.Error())
	} else {
		result.Delivered = inv.AssignmentID != nil || inv.PackageID != nil
	}

	s.publishPaid(ctx, inv)
	s.log.PaymentEvent("payment_confirmed", inv.InvoiceNumber, true, inv.Type)
	return result, nil
}

func (s *Service) dispatchDelivery(ctx context.Context, inv repository.Invoice) error {
	switch inv.Type {
	case repository.TypeSingle, repository.TypeFixed:
		if inv.AssignmentID == nil {
			return apperr.Internal("invoice has no linked assignment")
		}
		return s.deliverer.DeliverPaid(ctx, *inv.AssignmentID)
	case repository.TypePackage:
		if inv.PackageID == nil {
			return apperr.Internal("invoice has no linked package")
		}
		if s.packages == nil {
			return apperr.Internal("packages are not configured")
		}
		return s.packages.HandleInvoicePaid(ctx, *inv.PackageID)
	default:
		// Subscription and commission invoices deliver nothing.
		return nil
	}
}

func (s *Service) publishPaid(ctx context.Context, inv repository.Invoice) {
	broker, err := s.brokers.GetContact(ctx, inv.BrokerID)
	if err != nil {
		s.log.Error("broker lookup for paid invoice failed", "error", err, "invoiceId", inv.ID)
		return
	}
	s.eventBus.Publish(ctx, events.InvoicePaid{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		BrokerID:      broker.ID,
		BrokerName:    broker.ContactName,
		BrokerEmail:   broker.Email,
	})
}

// CommissionRunResult summarizes one monthly commission invoice run.
type CommissionRunResult struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Brokers  int       `json:"brokers"`
	Invoices int       `json:"invoices"`
	Failed   int       `json:"failed"`
}

// RunCommissionInvoicing aggregates closed revenue-share commissions of
// the window into one commission invoice per broker. Safe to re-run for
// a window that produced no new closings.
func (s *Service) RunCommissionInvoicing(ctx context.Context, from, to time.Time) (CommissionRunResult, error) {
	rows, err := s.commissions.ClosedCommissions(ctx, from, to)
	if err != nil {
		return CommissionRunResult{}, err
	}

	byBroker := make(map[uuid.UUID][]assignsrepo.CommissionRow)
	var order []uuid.UUID
	for _, row := range rows {
		if _, seen := byBroker[row.BrokerID]; !seen {
			order = append(order, row.BrokerID)
		}
		byBroker[row.BrokerID] = append(byBroker[row.BrokerID], row)
	}

	result := CommissionRunResult{From: from, To: to, Brokers: len(order)}
	for _, brokerID := range order {
		if err := s.issueCommissionInvoice(ctx, brokerID, from, to, byBroker[brokerID]); err != nil {
			s.log.Error("commission invoice failed", "error", err, "brokerId", brokerID)
			result.Failed++
			continue
		}
		result.Invoices++
	}

	s.log.SweepRun("commission_invoicing", result.Invoices, result.Failed)
	return result, nil
}

func (s *Service) issueCommissionInvoice(ctx context.Context, brokerID uuid.UUID, from, to time.Time, rows []assignsrepo.CommissionRow) error {
	var total int64
	items := make([]repository.InvoiceItem, 0, len(rows))
	for _, row := range rows {
		total += row.CommissionCents
		items = append(items, repository.InvoiceItem{
			ID:             uuid.New(),
			Description:    fmt.Sprintf("Provision Vermittlung %s", row.AssignmentID),
			Quantity:       1,
			UnitPriceCents: row.CommissionCents,
			TotalCents:     row.CommissionCents,
		})
	}

	inv, err := s.issue(ctx, repository.Invoice{
		ID:          uuid.New(),
		BrokerID:    brokerID,
		Type:        repository.TypeCommission,
		AmountCents: total,
		Description: fmt.Sprintf("Provisionsabrechnung %s", from.Format("01/2006")),
	}, items)
	if err != nil {
		return err
	}

	broker, err := s.brokers.GetContact(ctx, brokerID)
	if err != nil {
		return err
	}
	paymentURL := ""
	if inv.PaymentLinkURL != nil {
		paymentURL = *inv.PaymentLinkURL
	}
	s.eventBus.Publish(ctx, events.PaymentRequired{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		BrokerID:      broker.ID,
		BrokerName:    broker.ContactName,
		BrokerEmail:   broker.Email,
		AmountCents:   inv.AmountCents,
		PaymentURL:    paymentURL,
		DueDate:       inv.DueDate.Format("02.01.2006"),
	})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.InvoiceResponse, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.InvoiceResponse{}, err
	}
	return mapInvoiceResponse(inv), nil
}

func (s *Service) List(ctx context.Context, brokerID *uuid.UUID) ([]transport.InvoiceResponse, error) {
	invoices, err := s.store.List(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, mapInvoiceResponse(inv))
	}
	return out, nil
}

// Document renders the printable document model for one invoice.
func (s *Service) Document(ctx context.Context, id uuid.UUID) (transport.InvoiceDocument, error) {
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.InvoiceDocument{}, err
	}
	items, err := s.store.Items(ctx, id)
	if err != nil {
		return transport.InvoiceDocument{}, err
	}
	broker, err := s.brokers.GetContact(ctx, inv.BrokerID)
	if err != nil {
		return transport.InvoiceDocument{}, err
	}

	doc := transport.InvoiceDocument{
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		IssuedAt:      inv.CreatedAt,
		DueDate:       inv.DueDate,
		PaidAt:        inv.PaidAt,
		Recipient: transport.DocumentRecipient{
			CompanyName: broker.CompanyName,
			ContactName: broker.ContactName,
			AddressLine: deref(broker.AddressLine),
			PostalCode:  deref(broker.PostalCode),
			City:        deref(broker.City),
			Email:       broker.Email,
		},
		TotalCents: inv.AmountCents,
		PaymentURL: deref(inv.PaymentLinkURL),
	}
	for _, item := range items {
		doc.Items = append(doc.Items, transport.InvoiceItemResponse{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	return doc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func mapInvoiceResponse(inv repository.Invoice) transport.InvoiceResponse {
	return transport.InvoiceResponse{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		BrokerID:       inv.BrokerID,
		Type:           inv.Type,
		Status:         inv.Status,
		AmountCents:    inv.AmountCents,
		Description:    inv.Description,
		DueDate:        inv.DueDate,
		AssignmentID:   inv.AssignmentID,
		PackageID:      inv.PackageID,
		PaymentLinkURL: inv.PaymentLinkURL,
		PaidAt:         inv.PaidAt,
		CreatedAt:      inv.CreatedAt,
	}
}

var _ assignsvc.InvoiceIssuer = (*Service)(nil)
