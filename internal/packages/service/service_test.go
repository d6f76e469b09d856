package service

import (
	"context"
	"errors"
	"testing"
	"time"

	assignsdomain "leadbroker_backend/internal/assignments/domain"
	assignsrepo "leadbroker_backend/internal/assignments/repository"
	billingsvc "leadbroker_backend/internal/billing/service"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	domainevents "leadbroker_backend/internal/events"
	leaddomain "leadbroker_backend/internal/leads/domain"
	leadsrepo "leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/internal/packages/repository"
	"leadbroker_backend/internal/packages/transport"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/events"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

// The assignment repository is what the binaries wire in as the writer.
var _ AssignmentWriter = (*assignsrepo.Repository)(nil)

type fakeStore struct {
	packages    map[uuid.UUID]*repository.Package
	transitions []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{packages: make(map[uuid.UUID]*repository.Package)}
}

func (f *fakeStore) Create(_ context.Context, p repository.Package) (repository.Package, error) {
	p.Status = repository.StatusPending
	stored := p
	f.packages[p.ID] = &stored
	return p, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Package, error) {
	p, ok := f.packages[id]
	if !ok {
		return repository.Package{}, apperr.NotFound("package not found")
	}
	return *p, nil
}

func (f *fakeStore) List(_ context.Context, _ *uuid.UUID) ([]repository.Package, error) {
	var out []repository.Package
	for _, p := range f.packages {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) SetStatus(_ context.Context, id uuid.UUID, from, to string) (repository.Package, error) {
	p, ok := f.packages[id]
	if !ok {
		return repository.Package{}, apperr.NotFound("package not found")
	}
	if p.Status != from {
		return repository.Package{}, apperr.Conflict("unexpected package status")
	}
	p.Status = to
	f.transitions = append(f.transitions, from+">"+to)
	return *p, nil
}

func (f *fakeStore) RecordDelivery(_ context.Context, id uuid.UUID, delivered int, nextDelivery *time.Time) (repository.Package, error) {
	p, ok := f.packages[id]
	if !ok {
		return repository.Package{}, apperr.NotFound("package not found")
	}
	total := p.DeliveredLeads + delivered
	if total > p.TotalLeads {
		return repository.Package{}, apperr.Conflict("delivery exceeds remaining package leads")
	}
	p.DeliveredLeads = total
	if total == p.TotalLeads {
		p.Status = repository.StatusCompleted
		p.NextDeliveryDate = nil
	} else {
		p.NextDeliveryDate = nextDelivery
	}
	return *p, nil
}

func (f *fakeStore) DueDistributed(_ context.Context, _ time.Time) ([]repository.Package, error) {
	return nil, nil
}

type fakeLeadStore struct {
	leads    map[uuid.UUID]*leadsrepo.Lead
	pool     []uuid.UUID
	reserved []uuid.UUID
	released []uuid.UUID
}

func newFakeLeadStore(n int) *fakeLeadStore {
	f := &fakeLeadStore{leads: make(map[uuid.UUID]*leadsrepo.Lead)}
	for i := 0; i < n; i++ {
		id := uuid.New()
		f.leads[id] = &leadsrepo.Lead{
			ID:         id,
			LeadNumber: int64(i + 1),
			FirstName:  "Anna",
			LastName:   "Beispiel",
			Status:     leaddomain.StatusAvailable,
		}
		f.pool = append(f.pool, id)
	}
	return f
}

func (f *fakeLeadStore) Get(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return *lead, nil
}

func (f *fakeLeadStore) ListAssignable(_ context.Context, _ *uuid.UUID, limit int) ([]leadsrepo.Lead, error) {
	var out []leadsrepo.Lead
	for _, id := range f.pool {
		lead := f.leads[id]
		if !lead.Status.Assignable() {
			continue
		}
		out = append(out, *lead)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeLeadStore) Reserve(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		f.leads[id].Status = leaddomain.StatusReserved
	}
	f.reserved = append(f.reserved, ids...)
	return nil
}

func (f *fakeLeadStore) Release(_ context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		f.leads[id].Status = leaddomain.StatusAvailable
	}
	f.released = append(f.released, ids...)
	return nil
}

func (f *fakeLeadStore) Contact(_ context.Context, lead leadsrepo.Lead) domainevents.LeadContact {
	return domainevents.LeadContact{LeadID: lead.ID, LeadNumber: lead.LeadNumber, FirstName: lead.FirstName, LastName: lead.LastName}
}

type fakeBrokers struct{}

func (fakeBrokers) GetContact(_ context.Context, id uuid.UUID) (brokersrepo.Broker, error) {
	return brokersrepo.Broker{ID: id, CompanyName: "Immo GmbH", ContactName: "Max Muster", Email: "max@example.com"}, nil
}

type fakeAssignments struct {
	leadStore *fakeLeadStore
	created   []assignsrepo.Assignment
}

func (f *fakeAssignments) CreateBatchWithLeadTransitions(_ context.Context, batch []assignsrepo.Assignment, leadNext leaddomain.Status) ([]assignsrepo.Assignment, error) {
	for _, a := range batch {
		f.leadStore.leads[a.LeadID].Status = leadNext
	}
	f.created = append(f.created, batch...)
	return batch, nil
}

type fakeInvoicer struct {
	fail   bool
	issued []billingsvc.PackageInvoice
}

func (f *fakeInvoicer) IssuePackageInvoice(_ context.Context, in billingsvc.PackageInvoice) (billingsvc.IssuedPackageInvoice, error) {
	if f.fail {
		return billingsvc.IssuedPackageInvoice{}, errors.New("provider unavailable")
	}
	f.issued = append(f.issued, in)
	return billingsvc.IssuedPackageInvoice{
		ID:            uuid.New(),
		InvoiceNumber: "2026-0001",
		AmountCents:   in.AmountCents,
		DueDate:       time.Now().AddDate(0, 0, 30),
		PaymentURL:    "https://pay.example/p1",
	}, nil
}

type harness struct {
	svc         *Service
	store       *fakeStore
	leadStore   *fakeLeadStore
	assignments *fakeAssignments
	invoicer    *fakeInvoicer
}

func newHarness(leadCount int) *harness {
	log := logger.New("development")
	store := newFakeStore()
	leadStore := newFakeLeadStore(leadCount)
	assignments := &fakeAssignments{leadStore: leadStore}
	invoicer := &fakeInvoicer{}
	svc := New(store, leadStore, fakeBrokers{}, assignments, invoicer, events.NewInMemoryBus(log), log)
	return &harness{svc: svc, store: store, leadStore: leadStore, assignments: assignments, invoicer: invoicer}
}

func TestCreateOpenRequiresLeadsPerDay(t *testing.T) {
	h := newHarness(0)
	_, err := h.svc.CreateOpen(context.Background(), transport.CreatePackageRequest{
		BrokerID:         uuid.New(),
		Name:             "Monatspaket",
		TotalLeads:       10,
		PriceCents:       250000,
		DistributionType: repository.DistributionDistributed,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateFromSelectionReservesLeads(t *testing.T) {
	h := newHarness(3)
	resp, err := h.svc.CreateFromSelection(context.Background(), transport.CreateSelectionPackageRequest{
		BrokerID:   uuid.New(),
		Name:       "Auswahlpaket",
		LeadIDs:    h.leadStore.pool,
		PriceCents: 90000,
	})
	if err != nil {
		t.Fatalf("CreateFromSelection: %v", err)
	}
	if len(h.leadStore.reserved) != 3 {
		t.Fatalf("expected 3 reserved leads, got %d", len(h.leadStore.reserved))
	}
	if resp.Package.Status != repository.StatusPending {
		t.Fatalf("expected pending package, got %s", resp.Package.Status)
	}
	if resp.Invoice.PaymentURL == "" {
		t.Fatal("expected a payment link")
	}
}

func TestCreateFromSelectionReleasesOnInvoiceFailure(t *testing.T) {
	h := newHarness(2)
	h.invoicer.fail = true

	_, err := h.svc.CreateFromSelection(context.Background(), transport.CreateSelectionPackageRequest{
		BrokerID:   uuid.New(),
		Name:       "Auswahlpaket",
		LeadIDs:    h.leadStore.pool,
		PriceCents: 60000,
	})
	if err == nil {
		t.Fatal("expected error when invoice creation fails")
	}
	if len(h.leadStore.released) != 2 {
		t.Fatalf("expected the reserved leads released, got %d", len(h.leadStore.released))
	}
	for _, p := range h.store.packages {
		if p.Status != repository.StatusCancelled {
			t.Fatalf("expected cancelled package, got %s", p.Status)
		}
	}
}

func TestHandleInvoicePaidDeliversReservedAndCompletes(t *testing.T) {
	h := newHarness(2)
	resp, err := h.svc.CreateFromSelection(context.Background(), transport.CreateSelectionPackageRequest{
		BrokerID:   uuid.New(),
		Name:       "Auswahlpaket",
		LeadIDs:    h.leadStore.pool,
		PriceCents: 60000,
	})
	if err != nil {
		t.Fatalf("CreateFromSelection: %v", err)
	}

	if err := h.svc.HandleInvoicePaid(context.Background(), resp.Package.ID); err != nil {
		t.Fatalf("HandleInvoicePaid: %v", err)
	}

	if len(h.assignments.created) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(h.assignments.created))
	}
	for _, a := range h.assignments.created {
		if a.Status != assignsdomain.StatusSent || !a.Unlocked {
			t.Fatalf("expected sent+unlocked package assignment, got %s unlocked=%v", a.Status, a.Unlocked)
		}
		if a.PriceChargedCents == nil || *a.PriceChargedCents != 30000 {
			t.Fatalf("expected per-lead price 30000, got %v", a.PriceChargedCents)
		}
	}

	pkg := h.store.packages[resp.Package.ID]
	if pkg.Status != repository.StatusCompleted || pkg.DeliveredLeads != 2 {
		t.Fatalf("expected completed package with 2 delivered, got %s/%d", pkg.Status, pkg.DeliveredLeads)
	}

	// A second confirmation finds the package already processed.
	if err := h.svc.HandleInvoicePaid(context.Background(), resp.Package.ID); err != nil {
		t.Fatalf("repeat HandleInvoicePaid: %v", err)
	}
	if len(h.assignments.created) != 2 {
		t.Fatalf("repeat confirmation must not deliver again, got %d assignments", len(h.assignments.created))
	}
}

func TestHandleInvoicePaidInstantDeliversAll(t *testing.T) {
	h := newHarness(5)
	resp, err := h.svc.CreateOpen(context.Background(), transport.CreatePackageRequest{
		BrokerID:         uuid.New(),
		Name:             "Sofortpaket",
		TotalLeads:       5,
		PriceCents:       150000,
		DistributionType: repository.DistributionInstant,
	})
	if err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}

	if err := h.svc.HandleInvoicePaid(context.Background(), resp.Package.ID); err != nil {
		t.Fatalf("HandleInvoicePaid: %v", err)
	}

	pkg := h.store.packages[resp.Package.ID]
	if pkg.Status != repository.StatusCompleted || pkg.DeliveredLeads != 5 {
		t.Fatalf("expected instant package completed with 5 delivered, got %s/%d", pkg.Status, pkg.DeliveredLeads)
	}
}

func TestHandleInvoicePaidDistributedActivates(t *testing.T) {
	h := newHarness(5)
	resp, err := h.svc.CreateOpen(context.Background(), transport.CreatePackageRequest{
		BrokerID:         uuid.New(),
		Name:             "Ratenpaket",
		TotalLeads:       5,
		PriceCents:       150000,
		DistributionType: repository.DistributionDistributed,
		LeadsPerDay:      2,
	})
	if err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}

	if err := h.svc.HandleInvoicePaid(context.Background(), resp.Package.ID); err != nil {
		t.Fatalf("HandleInvoicePaid: %v", err)
	}

	pkg := h.store.packages[resp.Package.ID]
	if pkg.Status != repository.StatusActive {
		t.Fatalf("expected active package, got %s", pkg.Status)
	}
	if pkg.NextDeliveryDate == nil {
		t.Fatal("expected a scheduled first delivery date")
	}
	want := []string{"pending>paid", "paid>active"}
	if len(h.store.transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, h.store.transitions)
	}
	for i, tr := range want {
		if h.store.transitions[i] != tr {
			t.Fatalf("expected transitions %v, got %v", want, h.store.transitions)
		}
	}
}

func TestDeliverDistributedBatches(t *testing.T) {
	h := newHarness(5)
	resp, err := h.svc.CreateOpen(context.Background(), transport.CreatePackageRequest{
		BrokerID:         uuid.New(),
		Name:             "Wochenpaket",
		TotalLeads:       5,
		PriceCents:       150000,
		DistributionType: repository.DistributionDistributed,
		LeadsPerDay:      2,
	})
	if err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}
	if _, err := h.store.SetStatus(context.Background(), resp.Package.ID, repository.StatusPending, repository.StatusActive); err != nil {
		t.Fatalf("activate: %v", err)
	}

	first, err := h.svc.Deliver(context.Background(), resp.Package.ID, nil)
	if err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	if first.Delivered != 2 || first.Remaining != 3 || first.Completed {
		t.Fatalf("unexpected first delivery: %+v", first)
	}
	pkg := h.store.packages[resp.Package.ID]
	if pkg.NextDeliveryDate == nil {
		t.Fatal("expected a next delivery date")
	}
	if wd := pkg.NextDeliveryDate.Weekday(); wd == time.Saturday || wd == time.Sunday {
		t.Fatalf("next delivery must be a weekday, got %s", wd)
	}

	second, err := h.svc.Deliver(context.Background(), resp.Package.ID, nil)
	if err != nil {
		t.Fatalf("second Deliver: %v", err)
	}
	if second.Delivered != 2 || second.Remaining != 1 {
		t.Fatalf("unexpected second delivery: %+v", second)
	}

	third, err := h.svc.Deliver(context.Background(), resp.Package.ID, nil)
	if err != nil {
		t.Fatalf("third Deliver: %v", err)
	}
	if third.Delivered != 1 || !third.Completed {
		t.Fatalf("expected completion on third delivery: %+v", third)
	}
	pkg = h.store.packages[resp.Package.ID]
	if pkg.Status != repository.StatusCompleted || pkg.NextDeliveryDate != nil {
		t.Fatalf("expected completed package without schedule, got %s", pkg.Status)
	}
}

func TestDeliverReportsNoLeads(t *testing.T) {
	h := newHarness(0)
	resp, err := h.svc.CreateOpen(context.Background(), transport.CreatePackageRequest{
		BrokerID:         uuid.New(),
		Name:             "Leerpaket",
		TotalLeads:       3,
		PriceCents:       90000,
		DistributionType: repository.DistributionDistributed,
		LeadsPerDay:      1,
	})
	if err != nil {
		t.Fatalf("CreateOpen: %v", err)
	}
	if _, err := h.store.SetStatus(context.Background(), resp.Package.ID, repository.StatusPending, repository.StatusActive); err != nil {
		t.Fatalf("activate: %v", err)
	}

	result, err := h.svc.Deliver(context.Background(), resp.Package.ID, nil)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !result.NoLeads || result.Delivered != 0 {
		t.Fatalf("expected no-leads result, got %+v", result)
	}
}
