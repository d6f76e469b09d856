package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	assignsdomain "leadbroker_backend/internal/assignments/domain"
	assignsrepo "leadbroker_backend/internal/assignments/repository"
	billingsvc "leadbroker_backend/internal/billing/service"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/internal/events"
	leaddomain "leadbroker_backend/internal/leads/domain"
	leadsrepo "leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/internal/packages/repository"
	"leadbroker_backend/internal/packages/transport"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/workdays"

	"github.com/google/uuid"
)

// Store is the persistence surface the package distributor needs.
type Store interface {
	Create(ctx context.Context, p repository.Package) (repository.Package, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Package, error)
	List(ctx context.Context, brokerID *uuid.UUID) ([]repository.Package, error)
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) (repository.Package, error)
	RecordDelivery(ctx context.Context, id uuid.UUID, delivered int, nextDelivery *time.Time) (repository.Package, error)
	DueDistributed(ctx context.Context, today time.Time) ([]repository.Package, error)
}

// LeadStore is the fragment of the lead store the distributor needs.
type LeadStore interface {
	Get(ctx context.Context, id uuid.UUID) (leadsrepo.Lead, error)
	ListAssignable(ctx context.Context, categoryID *uuid.UUID, limit int) ([]leadsrepo.Lead, error)
	Reserve(ctx context.Context, ids []uuid.UUID) error
	Release(ctx context.Context, ids []uuid.UUID) error
	Contact(ctx context.Context, lead leadsrepo.Lead) events.LeadContact
}

// BrokerDirectory resolves broker contact data.
type BrokerDirectory interface {
	GetContact(ctx context.Context, id uuid.UUID) (brokersrepo.Broker, error)
}

// AssignmentWriter creates the per-lead assignment rows of a delivery batch.
type AssignmentWriter interface {
	CreateBatchWithLeadTransitions(ctx context.Context, batch []assignsrepo.Assignment, leadNext leaddomain.Status) ([]assignsrepo.Assignment, error)
}

// InvoiceIssuer creates the package invoice with its payment link.
type InvoiceIssuer interface {
	IssuePackageInvoice(ctx context.Context, in billingsvc.PackageInvoice) (billingsvc.IssuedPackageInvoice, error)
}

// invoiceDescription is the structured JSON stored in the invoice
// description for packages created ahead of payment.
type invoiceDescription struct {
	PackageName     string      `json:"packageName"`
	ReservedLeadIDs []uuid.UUID `json:"reservedLeadIds,omitempty"`
}

// Service is the package distributor.
type Service struct {
	store       Store
	leads       LeadStore
	brokers     BrokerDirectory
	assignments AssignmentWriter
	invoicer    InvoiceIssuer
	eventBus    events.Bus
	log         *logger.Logger
}

// New creates a new package distributor service.
func New(
	store Store,
	leads LeadStore,
	brokers BrokerDirectory,
	assignments AssignmentWriter,
	invoicer InvoiceIssuer,
	eventBus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		store:       store,
		leads:       leads,
		brokers:     brokers,
		assignments: assignments,
		invoicer:    invoicer,
		eventBus:    eventBus,
		log:         log,
	}
}

// CreateOpen creates a package without pre-selected leads. Delivery picks
// any eligible leads once the invoice is paid.
func (s *Service) CreateOpen(ctx context.Context, req transport.CreatePackageRequest) (transport.CreatePackageResponse, error) {
	if req.DistributionType == repository.DistributionDistributed && req.LeadsPerDay < 1 {
		return transport.CreatePackageResponse{}, apperr.Validation("leadsPerDay is required for distributed packages")
	}

	broker, err := s.brokers.GetContact(ctx, req.BrokerID)
	if err != nil {
		return transport.CreatePackageResponse{}, err
	}

	pkg, err := s.store.Create(ctx, repository.Package{
		ID:               uuid.New(),
		BrokerID:         broker.ID,
		Name:             req.Name,
		CategoryID:       req.CategoryID,
		TotalLeads:       req.TotalLeads,
		PriceCents:       req.PriceCents,
		DistributionType: req.DistributionType,
		LeadsPerDay:      req.LeadsPerDay,
	})
	if err != nil {
		return transport.CreatePackageResponse{}, err
	}

	return s.invoiceAndNotify(ctx, pkg, broker, nil)
}

// CreateFromSelection creates a package from hand-picked leads. The leads
// are reserved until the invoice is paid; the reserved ids travel in both
// the package row and the invoice description.
func (s *Service) CreateFromSelection(ctx context.Context, req transport.CreateSelectionPackageRequest) (transport.CreatePackageResponse, error) {
	broker, err := s.brokers.GetContact(ctx, req.BrokerID)
	if err != nil {
		return transport.CreatePackageResponse{}, err
	}

	for _, leadID := range req.LeadIDs {
		lead, err := s.leads.Get(ctx, leadID)
		if err != nil {
			return transport.CreatePackageResponse{}, err
		}
		if !lead.Status.Assignable() {
			return transport.CreatePackageResponse{}, apperr.Conflict(fmt.Sprintf("lead %d is not available", lead.LeadNumber))
		}
	}

	if err := s.leads.Reserve(ctx, req.LeadIDs); err != nil {
		return transport.CreatePackageResponse{}, err
	}

	pkg, err := s.store.Create(ctx, repository.Package{
		ID:               uuid.New(),
		BrokerID:         broker.ID,
		Name:             req.Name,
		TotalLeads:       len(req.LeadIDs),
		PriceCents:       req.PriceCents,
		DistributionType: repository.DistributionInstant,
		ReservedLeadIDs:  req.LeadIDs,
	})
	if err != nil {
		s.releaseLeads(ctx, req.LeadIDs)
		return transport.CreatePackageResponse{}, err
	}

	return s.invoiceAndNotify(ctx, pkg, broker, req.LeadIDs)
}

// invoiceAndNotify issues the package invoice and mails the payment link.
// An invoice failure cancels the package and releases any reserved leads,
// a broker must never owe money for an unpayable package.
func (s *Service) invoiceAndNotify(ctx context.Context, pkg repository.Package, broker brokersrepo.Broker, reserved []uuid.UUID) (transport.CreatePackageResponse, error) {
	description, err := json.Marshal(invoiceDescription{PackageName: pkg.Name, ReservedLeadIDs: reserved})
	if err != nil {
		return transport.CreatePackageResponse{}, fmt.Errorf("encode invoice description: %w", err)
	}

	invoice, err := s.invoicer.IssuePackageInvoice(ctx, billingsvc.PackageInvoice{
		PackageID:   pkg.ID,
		BrokerID:    broker.ID,
		AmountCents: pkg.PriceCents,
		Description: string(description),
		Items:       packageInvoiceItems(pkg),
	})
	if err != nil {
		if _, cancelErr := s.store.SetStatus(ctx, pkg.ID, repository.StatusPending, repository.StatusCancelled); cancelErr != nil {
			s.log.Error("package cancel failed", "error", cancelErr, "packageId", pkg.ID)
		}
		s.releaseLeads(ctx, reserved)
		return transport.CreatePackageResponse{}, err
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

	resp := transport.CreatePackageResponse{
		Success: true,
		Package: mapPackageResponse(pkg),
		Invoice: transport.InvoiceSummary{
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

	s.log.Info("package created",
		"packageId", pkg.ID,
		"invoiceNumber", invoice.InvoiceNumber,
		"totalLeads", pkg.TotalLeads,
		"emailSent", resp.EmailSent,
	)

	return resp, nil
}

func packageInvoiceItems(pkg repository.Package) []billingsvc.PackageInvoiceItem {
	return []billingsvc.PackageInvoiceItem{{
		Description:    fmt.Sprintf("Leadpaket %s (%d Leads)", pkg.Name, pkg.TotalLeads),
		Quantity:       pkg.TotalLeads,
		UnitPriceCents: perLeadPrice(pkg),
		TotalCents:     pkg.PriceCents,
	}}
}

func (s *Service) releaseLeads(ctx context.Context, ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	if err := s.leads.Release(ctx, ids); err != nil {
		s.log.Error("lead release failed", "error", err, "leads", len(ids))
	}
}

// HandleInvoicePaid reacts to the package invoice being paid: reserved
// leads are delivered outright, open packages activate and, if instant,
// deliver immediately. Implements the billing activator contract.
func (s *Service) HandleInvoicePaid(ctx context.Context, packageID uuid.UUID) error {
	pkg, err := s.store.GetByID(ctx, packageID)
	if err != nil {
		return err
	}
	if pkg.Status != repository.StatusPending {
		s.log.Info("paid package already processed", "packageId", pkg.ID, "status", pkg.Status)
		return nil
	}

	pkg, err = s.store.SetStatus(ctx, pkg.ID, repository.StatusPending, repository.StatusPaid)
	if err != nil {
		return err
	}

	if len(pkg.ReservedLeadIDs) > 0 {
		return s.deliverReserved(ctx, pkg)
	}

	pkg, err = s.store.SetStatus(ctx, pkg.ID, repository.StatusPaid, repository.StatusActive)
	if err != nil {
		return err
	}

	if pkg.DistributionType == repository.DistributionInstant {
		_, err = s.Deliver(ctx, pkg.ID, nil)
		return err
	}

	// Distributed packages start their schedule on the next business day.
	next := workdays.NextBusinessDay(time.Now())
	if _, err := s.store.RecordDelivery(ctx, pkg.ID, 0, &next); err != nil {
		return err
	}
	return nil
}

// deliverReserved hands every reserved lead to the broker and completes
// the package in one delivery.
func (s *Service) deliverReserved(ctx context.Context, pkg repository.Package) error {
	price := perLeadPrice(pkg)
	batch := make([]assignsrepo.Assignment, 0, len(pkg.ReservedLeadIDs))
	for _, leadID := range pkg.ReservedLeadIDs {
		batch = append(batch, newPackageAssignment(pkg, leadID, price))
	}

	if _, err := s.assignments.CreateBatchWithLeadTransitions(ctx, batch, leaddomain.StatusAssigned); err != nil {
		return err
	}
	if _, err := s.store.RecordDelivery(ctx, pkg.ID, len(pkg.ReservedLeadIDs), nil); err != nil {
		return err
	}

	s.notifyDelivered(ctx, pkg, pkg.ReservedLeadIDs, true)
	return nil
}

// Deliver runs one delivery round for an active package, countOverride
// replacing the per-day batch size when set.
func (s *Service) Deliver(ctx context.Context, packageID uuid.UUID, countOverride *int) (transport.DeliveryResult, error) {
	pkg, err := s.store.GetByID(ctx, packageID)
	if err != nil {
		return transport.DeliveryResult{}, err
	}
	if pkg.Status != repository.StatusActive {
		return transport.DeliveryResult{}, apperr.Conflict(fmt.Sprintf("package is %s, not active", pkg.Status))
	}

	remaining := pkg.TotalLeads - pkg.DeliveredLeads
	if remaining <= 0 {
		return transport.DeliveryResult{PackageID: pkg.ID, Completed: true}, nil
	}

	toDeliver := remaining
	switch {
	case countOverride != nil && *countOverride > 0:
		toDeliver = min(*countOverride, remaining)
	case pkg.DistributionType == repository.DistributionDistributed:
		toDeliver = min(pkg.LeadsPerDay, remaining)
	}

	leads, err := s.leads.ListAssignable(ctx, pkg.CategoryID, toDeliver)
	if err != nil {
		return transport.DeliveryResult{}, err
	}
	if len(leads) == 0 {
		return transport.DeliveryResult{PackageID: pkg.ID, Remaining: remaining, NoLeads: true}, nil
	}

	price := perLeadPrice(pkg)
	batch := make([]assignsrepo.Assignment, 0, len(leads))
	leadIDs := make([]uuid.UUID, 0, len(leads))
	for _, lead := range leads {
		batch = append(batch, newPackageAssignment(pkg, lead.ID, price))
		leadIDs = append(leadIDs, lead.ID)
	}

	if _, err := s.assignments.CreateBatchWithLeadTransitions(ctx, batch, leaddomain.StatusAssigned); err != nil {
		return transport.DeliveryResult{}, err
	}

	var nextDelivery *time.Time
	if pkg.DistributionType == repository.DistributionDistributed && pkg.DeliveredLeads+len(leads) < pkg.TotalLeads {
		next := workdays.NextBusinessDay(time.Now())
		nextDelivery = &next
	}

	updated, err := s.store.RecordDelivery(ctx, pkg.ID, len(leads), nextDelivery)
	if err != nil {
		return transport.DeliveryResult{}, err
	}

	s.notifyDelivered(ctx, updated, leadIDs, updated.Status == repository.StatusCompleted)

	return transport.DeliveryResult{
		PackageID: updated.ID,
		Delivered: len(leads),
		Remaining: updated.TotalLeads - updated.DeliveredLeads,
		Completed: updated.Status == repository.StatusCompleted,
	}, nil
}

// notifyDelivered sends one consolidated notification for the whole batch.
func (s *Service) notifyDelivered(ctx context.Context, pkg repository.Package, leadIDs []uuid.UUID, completed bool) {
	broker, err := s.brokers.GetContact(ctx, pkg.BrokerID)
	if err != nil {
		s.log.Error("broker lookup for package delivery failed", "error", err, "packageId", pkg.ID)
		return
	}

	contacts := make([]events.LeadContact, 0, len(leadIDs))
	for _, leadID := range leadIDs {
		lead, err := s.leads.Get(ctx, leadID)
		if err != nil {
			s.log.Error("lead lookup for package delivery failed", "error", err, "leadId", leadID)
			continue
		}
		contacts = append(contacts, s.leads.Contact(ctx, lead))
	}

	if err := s.eventBus.PublishSync(ctx, events.PackageLeadsDelivered{
		BaseEvent:   events.NewBaseEvent(),
		PackageID:   pkg.ID,
		PackageName: pkg.Name,
		BrokerID:    broker.ID,
		BrokerName:  broker.ContactName,
		BrokerEmail: broker.Email,
		Leads:       contacts,
		Completed:   completed,
	}); err != nil {
		s.log.Error("package delivery email failed", "error", err, "packageId", pkg.ID)
	}
}

// RunDistributionSweep delivers every due distributed package. Weekends
// are skipped entirely, a package with no eligible leads is reported but
// does not stop the sweep.
func (s *Service) RunDistributionSweep(ctx context.Context) (transport.SweepResult, error) {
	now := time.Now()
	if !workdays.IsBusinessDay(now) {
		return transport.SweepResult{Skipped: true}, nil
	}

	due, err := s.store.DueDistributed(ctx, now)
	if err != nil {
		return transport.SweepResult{}, err
	}

	result := transport.SweepResult{Due: len(due)}
	for _, pkg := range due {
		res, err := s.Deliver(ctx, pkg.ID, nil)
		if err != nil {
			s.log.Error("package delivery failed", "error", err, "packageId", pkg.ID)
			result.Failed++
			continue
		}
		if res.NoLeads {
			s.log.Info("no leads available for package", "packageId", pkg.ID)
			result.NoLeads++
			continue
		}
		result.Delivered += res.Delivered
	}

	s.log.SweepRun("package_distribution", result.Delivered, result.Failed)
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.PackageResponse, error) {
	pkg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return transport.PackageResponse{}, err
	}
	return mapPackageResponse(pkg), nil
}

func (s *Service) List(ctx context.Context, brokerID *uuid.UUID) ([]transport.PackageResponse, error) {
	packages, err := s.store.List(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.PackageResponse, 0, len(packages))
	for _, pkg := range packages {
		out = append(out, mapPackageResponse(pkg))
	}
	return out, nil
}

func perLeadPrice(pkg repository.Package) int64 {
	if pkg.TotalLeads == 0 {
		return 0
	}
	return pkg.PriceCents / int64(pkg.TotalLeads)
}

// newPackageAssignment builds one sent+unlocked assignment of a package
// delivery batch.
func newPackageAssignment(pkg repository.Package, leadID uuid.UUID, priceCents int64) assignsrepo.Assignment {
	price := priceCents
	return assignsrepo.Assignment{
		ID:                uuid.New(),
		LeadID:            leadID,
		BrokerID:          pkg.BrokerID,
		PricingModel:      assignsdomain.PricingPackage,
		PriceChargedCents: &price,
		Status:            assignsdomain.StatusSent,
		Unlocked:          true,
	}
}

func mapPackageResponse(pkg repository.Package) transport.PackageResponse {
	return transport.PackageResponse{
		ID:               pkg.ID,
		BrokerID:         pkg.BrokerID,
		Name:             pkg.Name,
		CategoryID:       pkg.CategoryID,
		TotalLeads:       pkg.TotalLeads,
		DeliveredLeads:   pkg.DeliveredLeads,
		PriceCents:       pkg.PriceCents,
		DistributionType: pkg.DistributionType,
		LeadsPerDay:      pkg.LeadsPerDay,
		Status:           pkg.Status,
		ReservedLeadIDs:  pkg.ReservedLeadIDs,
		NextDeliveryDate: pkg.NextDeliveryDate,
		CreatedAt:        pkg.CreatedAt,
		UpdatedAt:        pkg.UpdatedAt,
	}
}

var _ billingsvc.PackageActivator = (*Service)(nil)
