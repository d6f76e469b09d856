package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"leadbroker_backend/internal/assignments/domain"
	"leadbroker_backend/internal/assignments/repository"
	"leadbroker_backend/internal/assignments/transport"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	contractsrepo "leadbroker_backend/internal/contracts/repository"
	"leadbroker_backend/internal/events"
	leaddomain "leadbroker_backend/internal/leads/domain"
	leadsrepo "leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/workdays"

	"github.com/google/uuid"
)

// Store is the persistence surface the assignment engine needs.
type Store interface {
	CreateWithLeadTransition(ctx context.Context, a repository.Assignment, leadNext leaddomain.Status) (repository.Assignment, error)
	CreateBatchWithLeadTransitions(ctx context.Context, batch []repository.Assignment, leadNext leaddomain.Status) ([]repository.Assignment, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Assignment, error)
	List(ctx context.Context, brokerID *uuid.UUID) ([]repository.Assignment, error)
	Deliver(ctx context.Context, id uuid.UUID) (repository.Assignment, error)
	CancelPendingWithLeadRelease(ctx context.Context, id uuid.UUID) error
	ApplyFollowup(ctx context.Context, id uuid.UUID, response string, commissionCents *int64, notes *string, now time.Time) (repository.Assignment, error)
	DueFollowups(ctx context.Context, now time.Time, limit int) ([]repository.Assignment, error)
	MarkFollowupSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error)
}

// LeadDirectory is the fragment of the lead store the engine needs.
type LeadDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
	Contact(ctx context.Context, lead leadsrepo.Lead) events.LeadContact
}

// BrokerDirectory resolves broker contact data.
type BrokerDirectory interface {
	GetContact(ctx context.Context, id uuid.UUID) (brokersrepo.Broker, error)
}

// ContractResolver finds the applicable pricing contract, nil meaning
// ad-hoc single pricing.
type ContractResolver interface {
	Resolve(ctx context.Context, brokerID, categoryID uuid.UUID) (*contractsrepo.Contract, error)
}

// AssignmentInvoice is the order for a payment-gated assignment invoice.
type AssignmentInvoice struct {
	AssignmentID uuid.UUID
	BrokerID     uuid.UUID
	Type         string
	AmountCents  int64
	Description  string
}

// IssuedInvoice is what the billing module hands back: the persisted
// invoice with its external payment link.
type IssuedInvoice struct {
	ID            uuid.UUID
	InvoiceNumber string
	AmountCents   int64
	DueDate       time.Time
	PaymentURL    string
}

// InvoiceIssuer creates invoices with payment links. A failed payment link
// aborts the assignment, a broker must never be billed without a way to pay.
type InvoiceIssuer interface {
	IssueAssignmentInvoice(ctx context.Context, in AssignmentInvoice) (IssuedInvoice, error)
}

// Service is the assignment engine.
type Service struct {
	repo      Store
	leads     LeadDirectory
	brokers   BrokerDirectory
	contracts ContractResolver
	invoicer  InvoiceIssuer
	eventBus  events.Bus
	baseURL   string
	log       *logger.Logger
}

// New creates a new assignment engine. The invoice issuer is wired after
// construction because billing and assignments reference each other.
func New(
	repo Store,
	leads LeadDirectory,
	brokers BrokerDirectory,
	contracts ContractResolver,
	eventBus events.Bus,
	baseURL string,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:      repo,
		leads:     leads,
		brokers:   brokers,
		contracts: contracts,
		eventBus:  eventBus,
		baseURL:   baseURL,
		log:       log,
	}
}

// SetInvoiceIssuer wires the billing module in.
func (s *Service) SetInvoiceIssuer(issuer InvoiceIssuer) {
	s.invoicer = issuer
}

// pricingTerms is the resolved pricing for one assignment.
type pricingTerms struct {
	model        string
	priceCents   *int64
	sharePercent *float64
	followupDays int
}

// Assign hands one lead to a broker. Fixed and single pricing gate
// delivery on payment: the assignment stays pending, an invoice with a
// payment link goes out and the contact data remains locked. All other
// models deliver immediately.
func (s *Service) Assign(ctx context.Context, req transport.AssignRequest) (transport.AssignResponse, error) {
	lead, err := s.leads.Get(ctx, req.LeadID)
	if err != nil {
		return transport.AssignResponse{}, err
	}
	if !lead.Status.Assignable() {
		return transport.AssignResponse{}, apperr.Conflict(fmt.Sprintf("lead in status %s cannot be assigned", lead.Status))
	}

	broker, err := s.brokers.GetContact(ctx, req.BrokerID)
	if err != nil {
		return transport.AssignResponse{}, err
	}

	terms, err := s.resolveTerms(ctx, req, lead)
	if err != nil {
		return transport.AssignResponse{}, err
	}

	if domain.PaymentGated(terms.model) {
		return s.assignGated(ctx, lead, broker, terms)
	}
	return s.assignImmediate(ctx, lead, broker, terms)
}

// AssignBulk hands several leads to one broker in a single batch with one
// consolidated notification. Only immediate-delivery models are allowed,
// payment-gated purchases go through Assign one by one.
func (s *Service) AssignBulk(ctx context.Context, req transport.AssignBulkRequest) (transport.AssignBulkResponse, error) {
	broker, err := s.brokers.GetContact(ctx, req.BrokerID)
	if err != nil {
		return transport.AssignBulkResponse{}, err
	}

	type prepared struct {
		lead  leadsrepo.Lead
		terms pricingTerms
	}
	preparedLeads := make([]prepared, 0, len(req.LeadIDs))
	for _, leadID := range req.LeadIDs {
		lead, err := s.leads.Get(ctx, leadID)
		if err != nil {
			return transport.AssignBulkResponse{}, err
		}
		if !lead.Status.Assignable() {
			return transport.AssignBulkResponse{}, apperr.Conflict(fmt.Sprintf("lead %d in status %s cannot be assigned", lead.LeadNumber, lead.Status))
		}

		terms, err := s.resolveTerms(ctx, transport.AssignRequest{
			LeadID:              leadID,
			BrokerID:            req.BrokerID,
			PricingModel:        req.PricingModel,
			RevenueSharePercent: req.RevenueSharePercent,
		}, lead)
		if err != nil {
			return transport.AssignBulkResponse{}, err
		}
		if domain.PaymentGated(terms.model) {
			return transport.AssignBulkResponse{}, apperr.Validation("bulk assignment requires an immediate-delivery pricing model")
		}
		preparedLeads = append(preparedLeads, prepared{lead: lead, terms: terms})
	}

	now := time.Now()
	batch := make([]repository.Assignment, 0, len(preparedLeads))
	for _, p := range preparedLeads {
		a, err := s.buildImmediate(p.lead, broker, p.terms, now)
		if err != nil {
			return transport.AssignBulkResponse{}, err
		}
		batch = append(batch, a)
	}

	created, err := s.repo.CreateBatchWithLeadTransitions(ctx, batch, leaddomain.StatusAssigned)
	if err != nil {
		return transport.AssignBulkResponse{}, err
	}

	contacts := make([]events.LeadContact, 0, len(preparedLeads))
	for _, p := range preparedLeads {
		contacts = append(contacts, s.leads.Contact(ctx, p.lead))
	}
	emailErr := s.eventBus.PublishSync(ctx, events.LeadsDeliveredBulk{
		BaseEvent:   events.NewBaseEvent(),
		BrokerID:    broker.ID,
		BrokerName:  broker.ContactName,
		BrokerEmail: broker.Email,
		Leads:       contacts,
	})

	resp := transport.AssignBulkResponse{Success: true, EmailSent: emailErr == nil}
	if emailErr != nil {
		resp.EmailError = emailErr.Error()
	}
	for _, a := range created {
		resp.Assignments = append(resp.Assignments, mapAssignmentResponse(a))
	}

	s.log.Info("bulk assignment created",
		"brokerId", broker.ID,
		"leads", len(created),
		"emailSent", resp.EmailSent,
	)

	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.AssignmentResponse, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.AssignmentResponse{}, err
	}
	return mapAssignmentResponse(a), nil
}

func (s *Service) List(ctx context.Context, brokerID *uuid.UUID) ([]transport.AssignmentResponse, error) {
	assignments, err := s.repo.List(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.AssignmentResponse, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, mapAssignmentResponse(a))
	}
	return out, nil
}

// DeliverPaid completes a payment-gated assignment after its invoice was
// paid: sent+unlocked, lead assigned, full contact data mailed out.
// Safe to call twice, an already delivered assignment is returned as is.
func (s *Service) DeliverPaid(ctx context.Context, assignmentID uuid.UUID) error {
	delivered, err := s.repo.Deliver(ctx, assignmentID)
	if err != nil {
		return err
	}

	broker, err := s.brokers.GetContact(ctx, delivered.BrokerID)
	if err != nil {
		return err
	}
	lead, err := s.leads.Get(ctx, delivered.LeadID)
	if err != nil {
		return err
	}

	if emailErr := s.eventBus.PublishSync(ctx, events.LeadDelivered{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: delivered.ID,
		BrokerID:     broker.ID,
		BrokerName:   broker.ContactName,
		BrokerEmail:  broker.Email,
		Lead:         s.leads.Contact(ctx, lead),
	}); emailErr != nil {
		s.log.Error("delivery email failed", "error", emailErr, "assignmentId", delivered.ID)
	}

	return nil
}

func (s *Service) resolveTerms(ctx context.Context, req transport.AssignRequest, lead leadsrepo.Lead) (pricingTerms, error) {
	if req.PricingModel != "" {
		return s.explicitTerms(req)
	}

	contract, err := s.contracts.Resolve(ctx, req.BrokerID, lead.CategoryID)
	if err != nil {
		return pricingTerms{}, err
	}
	if contract == nil {
		// No contract means ad-hoc single purchase with an explicit price.
		if req.PriceChargedCents == nil {
			return pricingTerms{}, apperr.Validation("no active contract, priceChargedCents is required for a single purchase")
		}
		return pricingTerms{model: domain.PricingSingle, priceCents: req.PriceChargedCents}, nil
	}

	terms := pricingTerms{followupDays: contract.FollowupDays}
	switch contract.PricingModel {
	case contractsrepo.PricingFixed:
		terms.model = domain.PricingFixed
		terms.priceCents = contract.PricePerLeadCents
	case contractsrepo.PricingSubscription:
		terms.model = domain.PricingSubscription
		terms.priceCents = contract.MonthlyFeeCents
	case contractsrepo.PricingRevenueShare:
		terms.model = domain.PricingRevenueShare
		terms.sharePercent = contract.RevenueSharePercent
	default:
		return pricingTerms{}, apperr.Internal(fmt.Sprintf("contract %s has unknown pricing model", contract.ID))
	}
	return terms, nil
}

func (s *Service) explicitTerms(req transport.AssignRequest) (pricingTerms, error) {
	terms := pricingTerms{model: req.PricingModel, followupDays: domain.FollowupInterval}
	switch req.PricingModel {
	case domain.PricingFixed, domain.PricingSingle:
		if req.PriceChargedCents == nil || *req.PriceChargedCents <= 0 {
			return pricingTerms{}, apperr.Validation("priceChargedCents is required for this pricing model")
		}
		terms.priceCents = req.PriceChargedCents
	case domain.PricingSubscription:
		terms.priceCents = req.PriceChargedCents
	case domain.PricingRevenueShare:
		if req.RevenueSharePercent == nil {
			return pricingTerms{}, apperr.Validation("revenueSharePercent is required for revenue share")
		}
		terms.sharePercent = req.RevenueSharePercent
	default:
		return pricingTerms{}, apperr.Validation("unknown pricing model")
	}
	return terms, nil
}

func (s *Service) assignGated(ctx context.Context, lead leadsrepo.Lead, broker brokersrepo.Broker, terms pricingTerms) (transport.AssignResponse, error) {
	if s.invoicer == nil {
		return transport.AssignResponse{}, apperr.Internal("billing is not configured")
	}
	if terms.priceCents == nil {
		return transport.AssignResponse{}, apperr.Validation("payment-gated assignment needs a price")
	}

	assignment := repository.Assignment{
		ID:                uuid.New(),
		LeadID:            lead.ID,
		BrokerID:          broker.ID,
		PricingModel:      terms.model,
		PriceChargedCents: terms.priceCents,
		Status:            domain.StatusPending,
		Unlocked:          false,
	}

	created, err := s.repo.CreateWithLeadTransition(ctx, assignment, leaddomain.StatusReserved)
	if err != nil {
		return transport.AssignResponse{}, err
	}

	invoice, err := s.invoicer.IssueAssignmentInvoice(ctx, AssignmentInvoice{
		AssignmentID: created.ID,
		BrokerID:     broker.ID,
		Type:         terms.model,
		AmountCents:  *terms.priceCents,
		Description:  fmt.Sprintf("Lead %d (%s)", lead.LeadNumber, terms.model),
	})
	if err != nil {
		// A broker must never end up billed without a payment link, so the
		// assignment is rolled back and the lead released.
		if rollbackErr := s.repo.CancelPendingWithLeadRelease(ctx, created.ID); rollbackErr != nil {
			s.log.Error("assignment rollback failed", "error", rollbackErr, "assignmentId", created.ID)
		}
		return transport.AssignResponse{}, err
	}

	emailErr := s.eventBus.PublishSync(ctx, events.PaymentRequired{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		BrokerID:      broker.ID,
		BrokerName:    broker.ContactName,
		BrokerEmail:   broker.Email,
		AmountCents:   invoice.AmountCents,
		PaymentURL:    invoice.PaymentURL,
		DueDate:       invoice.DueDate.Format("02.01.2006"),
	})

	resp := transport.AssignResponse{
		Success:        true,
		Assignment:     mapAssignmentResponse(created),
		InvoiceCreated: true,
		Invoice: &transport.InvoiceSummary{
			ID:            invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			AmountCents:   invoice.AmountCents,
			DueDate:       invoice.DueDate,
			PaymentURL:    invoice.PaymentURL,
		},
		EmailSent: emailErr == nil,
	}
	if emailErr != nil {
		resp.EmailError = emailErr.Error()
	}

	s.log.Info("payment-gated assignment created",
		"assignmentId", created.ID,
		"invoiceNumber", invoice.InvoiceNumber,
		"emailSent", resp.EmailSent,
	)

	return resp, nil
}

func (s *Service) assignImmediate(ctx context.Context, lead leadsrepo.Lead, broker brokersrepo.Broker, terms pricingTerms) (transport.AssignResponse, error) {
	assignment, err := s.buildImmediate(lead, broker, terms, time.Now())
	if err != nil {
		return transport.AssignResponse{}, err
	}

	created, err := s.repo.CreateWithLeadTransition(ctx, assignment, leaddomain.StatusAssigned)
	if err != nil {
		return transport.AssignResponse{}, err
	}

	emailErr := s.eventBus.PublishSync(ctx, events.LeadDelivered{
		BaseEvent:    events.NewBaseEvent(),
		AssignmentID: created.ID,
		BrokerID:     broker.ID,
		BrokerName:   broker.ContactName,
		BrokerEmail:  broker.Email,
		Lead:         s.leads.Contact(ctx, lead),
	})

	resp := transport.AssignResponse{
		Success:    true,
		Assignment: mapAssignmentResponse(created),
		EmailSent:  emailErr == nil,
	}
	if emailErr != nil {
		resp.EmailError = emailErr.Error()
	}

	s.log.Info("assignment delivered",
		"assignmentId", created.ID,
		"pricingModel", created.PricingModel,
		"emailSent", resp.EmailSent,
	)

	return resp, nil
}

// buildImmediate assembles a sent+unlocked assignment. Revenue-share
// assignments get a feedback token and their first follow-up date.
func (s *Service) buildImmediate(lead leadsrepo.Lead, broker brokersrepo.Broker, terms pricingTerms, now time.Time) (repository.Assignment, error) {
	a := repository.Assignment{
		ID:                  uuid.New(),
		LeadID:              lead.ID,
		BrokerID:            broker.ID,
		PricingModel:        terms.model,
		PriceChargedCents:   terms.priceCents,
		RevenueSharePercent: terms.sharePercent,
		Status:              domain.StatusSent,
		Unlocked:            true,
	}
	if terms.model == domain.PricingRevenueShare {
		token, err := generateFeedbackToken()
		if err != nil {
			return repository.Assignment{}, fmt.Errorf("generate feedback token: %w", err)
		}
		a.FeedbackToken = &token

		days := terms.followupDays
		if days <= 0 {
			days = domain.FollowupInterval
		}
		due := workdays.AddBusinessDays(now, days)
		a.FollowupDate = &due
	}
	return a, nil
}

func generateFeedbackToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "fbk_" + hex.EncodeToString(bytes), nil
}

func feedbackTokenMatches(stored *string, token string) bool {
	if stored == nil || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(token)) == 1
}

func mapAssignmentResponse(a repository.Assignment) transport.AssignmentResponse {
	return transport.AssignmentResponse{
		ID:                  a.ID,
		LeadID:              a.LeadID,
		BrokerID:            a.BrokerID,
		PricingModel:        a.PricingModel,
		PriceChargedCents:   a.PriceChargedCents,
		RevenueSharePercent: a.RevenueSharePercent,
		Status:              a.Status,
		Unlocked:            a.Unlocked,
		FollowupResponse:    a.FollowupResponse,
		FollowupDate:        a.FollowupDate,
		FollowupSentAt:      a.FollowupSentAt,
		FollowupRespondedAt: a.FollowupRespondedAt,
		FollowupCount:       a.FollowupCount,
		CommissionCents:     a.CommissionCents,
		Notes:               a.Notes,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}
