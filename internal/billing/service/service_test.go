package service

import (
	"context"
	"errors"
	"testing"
	"time"

	assignsvc "leadbroker_backend/internal/assignments/service"
	"leadbroker_backend/internal/billing/repository"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/events"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	invoices  map[uuid.UUID]*repository.Invoice
	nextSeq   int
	cancelled []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{invoices: make(map[uuid.UUID]*repository.Invoice)}
}

func (f *fakeStore) Create(_ context.Context, inv repository.Invoice, _ []repository.InvoiceItem) (repository.Invoice, error) {
	f.nextSeq++
	inv.InvoiceNumber = repository.FormatInvoiceNumber(time.Now().Year(), f.nextSeq)
	inv.Status = repository.StatusPending
	inv.CreatedAt = time.Now()
	stored := inv
	f.invoices[inv.ID] = &stored
	return inv, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, apperr.NotFound("invoice not found")
	}
	return *inv, nil
}

func (f *fakeStore) GetByNumber(_ context.Context, number string) (repository.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.InvoiceNumber == number {
			return *inv, nil
		}
	}
	return repository.Invoice{}, apperr.NotFound("invoice not found")
}

func (f *fakeStore) GetByPaymentLinkID(_ context.Context, linkID string) (repository.Invoice, error) {
	for _, inv := range f.invoices {
		if inv.PaymentLinkID != nil && *inv.PaymentLinkID == linkID {
			return *inv, nil
		}
	}
	return repository.Invoice{}, apperr.NotFound("invoice not found")
}

func (f *fakeStore) List(_ context.Context, _ *uuid.UUID) ([]repository.Invoice, error) {
	var out []repository.Invoice
	for _, inv := range f.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

func (f *fakeStore) Items(_ context.Context, _ uuid.UUID) ([]repository.InvoiceItem, error) {
	return nil, nil
}

func (f *fakeStore) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) (repository.Invoice, bool, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return repository.Invoice{}, false, apperr.NotFound("invoice not found")
	}
	if inv.Status == repository.StatusPaid {
		return *inv, true, nil
	}
	inv.Status = repository.StatusPaid
	inv.PaidAt = &paidAt
	return *inv, false, nil
}

func (f *fakeStore) SetPaymentLink(_ context.Context, id uuid.UUID, linkID, linkURL string) error {
	inv, ok := f.invoices[id]
	if !ok {
		return apperr.NotFound("invoice not found")
	}
	inv.PaymentLinkID = &linkID
	inv.PaymentLinkURL = &linkURL
	return nil
}

func (f *fakeStore) Cancel(_ context.Context, id uuid.UUID) error {
	f.cancelled = append(f.cancelled, id)
	f.invoices[id].Status = repository.StatusCancelled
	return nil
}

type fakeLinks struct {
	fail  bool
	calls int
}

func (f *fakeLinks) Enabled() bool { return true }

func (f *fakeLinks) CreatePaymentLink(_ context.Context, invoiceID uuid.UUID, _ string, _ int64, _ string) (PaymentLink, error) {
	f.calls++
	if f.fail {
		return PaymentLink{}, errors.New("provider unavailable")
	}
	return PaymentLink{ID: "plink_" + invoiceID.String()[:8], URL: "https://pay.example/" + invoiceID.String()[:8]}, nil
}

type fakeBrokers struct{}

func (fakeBrokers) GetContact(_ context.Context, id uuid.UUID) (brokersrepo.Broker, error) {
	return brokersrepo.Broker{ID: id, CompanyName: "Immo GmbH", ContactName: "Max Muster", Email: "max@example.com"}, nil
}

type fakeDeliverer struct {
	delivered []uuid.UUID
}

func (f *fakeDeliverer) DeliverPaid(_ context.Context, id uuid.UUID) error {
	f.delivered = append(f.delivered, id)
	return nil
}

type fakeActivator struct {
	activated []uuid.UUID
}

func (f *fakeActivator) HandleInvoicePaid(_ context.Context, id uuid.UUID) error {
	f.activated = append(f.activated, id)
	return nil
}

func newTestService(store Store, links LinkCreator, deliverer *fakeDeliverer, activator *fakeActivator) *Service {
	log := logger.New("development")
	svc := New(store, links, fakeBrokers{}, deliverer, nil, events.NewInMemoryBus(log), "whsec_test", log)
	if activator != nil {
		svc.SetPackageActivator(activator)
	}
	return svc
}

func TestFormatInvoiceNumber(t *testing.T) {
	if got := repository.FormatInvoiceNumber(2026, 7); got != "2026-0007" {
		t.Fatalf("expected 2026-0007, got %s", got)
	}
	if got := repository.FormatInvoiceNumber(2026, 12345); got != "2026-12345" {
		t.Fatalf("expected 2026-12345, got %s", got)
	}
}

func TestIssueAssignmentInvoice(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLinks{}, &fakeDeliverer{}, nil)

	assignmentID := uuid.New()
	issued, err := svc.IssueAssignmentInvoice(context.Background(), assignsvc.AssignmentInvoice{
		AssignmentID: assignmentID,
		BrokerID:     uuid.New(),
		Type:         repository.TypeSingle,
		AmountCents:  30000,
		Description:  "Lead 42 (single)",
	})
	if err != nil {
		t.Fatalf("IssueAssignmentInvoice: %v", err)
	}
	if issued.PaymentURL == "" {
		t.Fatal("expected a payment link")
	}
	if issued.AmountCents != 30000 {
		t.Fatalf("expected amount 30000, got %d", issued.AmountCents)
	}

	stored := store.invoices[issued.ID]
	if stored.Status != repository.StatusPending {
		t.Fatalf("expected status pending, got %q", stored.Status)
	}
	if stored.AssignmentID == nil || *stored.AssignmentID != assignmentID {
		t.Fatal("invoice not linked to assignment")
	}
	if due := time.Until(stored.DueDate); due < 29*24*time.Hour || due > 31*24*time.Hour {
		t.Fatalf("expected a 30-day due date, got %v", due)
	}
}

func TestIssueCancelsInvoiceOnLinkFailure(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLinks{fail: true}, &fakeDeliverer{}, nil)

	_, err := svc.IssueAssignmentInvoice(context.Background(), assignsvc.AssignmentInvoice{
		AssignmentID: uuid.New(),
		BrokerID:     uuid.New(),
		Type:         repository.TypeFixed,
		AmountCents:  50000,
	})
	if err == nil {
		t.Fatal("expected error when payment link fails")
	}
	if len(store.cancelled) != 1 {
		t.Fatalf("expected the invoice to be cancelled, got %d cancellations", len(store.cancelled))
	}
}

func TestVerifyManualDeliversAndIsIdempotent(t *testing.T) {
	store := newFakeStore()
	deliverer := &fakeDeliverer{}
	svc := newTestService(store, &fakeLinks{}, deliverer, nil)

	assignmentID := uuid.New()
	issued, err := svc.IssueAssignmentInvoice(context.Background(), assignsvc.AssignmentInvoice{
		AssignmentID: assignmentID,
		BrokerID:     uuid.New(),
		Type:         repository.TypeSingle,
		AmountCents:  30000,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	result, err := svc.VerifyManual(context.Background(), issued.InvoiceNumber)
	if err != nil {
		t.Fatalf("VerifyManual: %v", err)
	}
	if !result.Success || result.AlreadyPaid {
		t.Fatalf("expected fresh payment success, got %+v", result)
	}
	if len(deliverer.delivered) != 1 || deliverer.delivered[0] != assignmentID {
		t.Fatalf("expected one delivery of %s, got %v", assignmentID, deliverer.delivered)
	}

	repeat, err := svc.VerifyManual(context.Background(), issued.InvoiceNumber)
	if err != nil {
		t.Fatalf("repeat VerifyManual: %v", err)
	}
	if !repeat.Success || !repeat.AlreadyPaid {
		t.Fatalf("expected already_paid on repeat, got %+v", repeat)
	}
	if len(deliverer.delivered) != 1 {
		t.Fatalf("repeat confirmation must not deliver again, got %d deliveries", len(deliverer.delivered))
	}
}

func TestConfirmPaymentDispatchesPackage(t *testing.T) {
	store := newFakeStore()
	activator := &fakeActivator{}
	svc := newTestService(store, &fakeLinks{}, &fakeDeliverer{}, activator)

	packageID := uuid.New()
	issued, err := svc.IssuePackageInvoice(context.Background(), PackageInvoice{
		PackageID:   packageID,
		BrokerID:    uuid.New(),
		AmountCents: 250000,
		Description: "Paket Bestandskunden",
	})
	if err != nil {
		t.Fatalf("IssuePackageInvoice: %v", err)
	}

	result, err := svc.VerifyManual(context.Background(), issued.InvoiceNumber)
	if err != nil {
		t.Fatalf("VerifyManual: %v", err)
	}
	if !result.Delivered {
		t.Fatalf("expected delivered result, got %+v", result)
	}
	if len(activator.activated) != 1 || activator.activated[0] != packageID {
		t.Fatalf("expected package %s activated, got %v", packageID, activator.activated)
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeLinks{}, &fakeDeliverer{}, nil)

	_, err := svc.HandleWebhook(context.Background(), []byte(`{}`), "t=1,v1=bogus")
	if !apperr.Is(err, apperr.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
