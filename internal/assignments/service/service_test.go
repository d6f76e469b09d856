package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadbroker_backend/internal/assignments/domain"
	"leadbroker_backend/internal/assignments/repository"
	"leadbroker_backend/internal/assignments/transport"
	brokersrepo "leadbroker_backend/internal/brokers/repository"
	contractsrepo "leadbroker_backend/internal/contracts/repository"
	domainevents "leadbroker_backend/internal/events"
	leaddomain "leadbroker_backend/internal/leads/domain"
	leadsrepo "leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/events"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeContracts struct {
	contract *contractsrepo.Contract
}

func (f *fakeContracts) Resolve(_ context.Context, _, _ uuid.UUID) (*contractsrepo.Contract, error) {
	return f.contract, nil
}

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestResolveTermsNoContractRequiresPrice(t *testing.T) {
	s := &Service{contracts: &fakeContracts{}}
	lead := leadsrepo.Lead{ID: uuid.New(), CategoryID: uuid.New()}

	_, err := s.resolveTerms(context.Background(), transport.AssignRequest{
		LeadID:   lead.ID,
		BrokerID: uuid.New(),
	}, lead)
	if err == nil {
		t.Fatal("expected error without contract and without price")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	terms, err := s.resolveTerms(context.Background(), transport.AssignRequest{
		LeadID:            lead.ID,
		BrokerID:          uuid.New(),
		PriceChargedCents: int64Ptr(5000),
	}, lead)
	if err != nil {
		t.Fatalf("resolveTerms: %v", err)
	}
	if terms.model != domain.PricingSingle {
		t.Fatalf("expected single pricing, got %s", terms.model)
	}
	if *terms.priceCents != 5000 {
		t.Fatalf("expected price 5000, got %d", *terms.priceCents)
	}
}

func TestResolveTermsFromContract(t *testing.T) {
	cases := []struct {
		name     string
		contract contractsrepo.Contract
		model    string
		gated    bool
	}{
		{
			name: "fixed",
			contract: contractsrepo.Contract{
				PricingModel:      contractsrepo.PricingFixed,
				PricePerLeadCents: int64Ptr(30000),
				FollowupDays:      3,
			},
			model: domain.PricingFixed,
			gated: true,
		},
		{
			name: "subscription",
			contract: contractsrepo.Contract{
				PricingModel:    contractsrepo.PricingSubscription,
				MonthlyFeeCents: int64Ptr(150000),
				FollowupDays:    3,
			},
			model: domain.PricingSubscription,
			gated: false,
		},
		{
			name: "revenue share",
			contract: contractsrepo.Contract{
				PricingModel:        contractsrepo.PricingRevenueShare,
				RevenueSharePercent: floatPtr(50),
				FollowupDays:        5,
			},
			model: domain.PricingRevenueShare,
			gated: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.contract.ID = uuid.New()
			s := &Service{contracts: &fakeContracts{contract: &tc.contract}}
			lead := leadsrepo.Lead{ID: uuid.New(), CategoryID: uuid.New()}

			terms, err := s.resolveTerms(context.Background(), transport.AssignRequest{
				LeadID:   lead.ID,
				BrokerID: uuid.New(),
			}, lead)
			if err != nil {
				t.Fatalf("resolveTerms: %v", err)
			}
			if terms.model != tc.model {
				t.Fatalf("expected model %s, got %s", tc.model, terms.model)
			}
			if domain.PaymentGated(terms.model) != tc.gated {
				t.Fatalf("expected gated=%v for %s", tc.gated, terms.model)
			}
			if terms.followupDays != tc.contract.FollowupDays {
				t.Fatalf("expected followupDays %d, got %d", tc.contract.FollowupDays, terms.followupDays)
			}
		})
	}
}

func TestExplicitTermsValidation(t *testing.T) {
	s := &Service{}

	if _, err := s.explicitTerms(transport.AssignRequest{PricingModel: domain.PricingFixed}); err == nil {
		t.Fatal("fixed without price should fail")
	}
	if _, err := s.explicitTerms(transport.AssignRequest{PricingModel: domain.PricingRevenueShare}); err == nil {
		t.Fatal("revenue share without percent should fail")
	}
	if _, err := s.explicitTerms(transport.AssignRequest{PricingModel: "barter"}); err == nil {
		t.Fatal("unknown model should fail")
	}

	terms, err := s.explicitTerms(transport.AssignRequest{
		PricingModel:        domain.PricingRevenueShare,
		RevenueSharePercent: floatPtr(40),
	})
	if err != nil {
		t.Fatalf("explicitTerms: %v", err)
	}
	if *terms.sharePercent != 40 {
		t.Fatalf("expected 40 percent, got %v", *terms.sharePercent)
	}
}

func TestBuildImmediateRevenueShare(t *testing.T) {
	s := &Service{}
	lead := leadsrepo.Lead{ID: uuid.New(), LeadNumber: 42}
	broker := brokersrepo.Broker{ID: uuid.New()}
	// Monday
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)

	a, err := s.buildImmediate(lead, broker, pricingTerms{
		model:        domain.PricingRevenueShare,
		sharePercent: floatPtr(50),
		followupDays: 3,
	}, now)
	if err != nil {
		t.Fatalf("buildImmediate: %v", err)
	}

	if a.Status != domain.StatusSent || !a.Unlocked {
		t.Fatalf("expected sent+unlocked, got %s unlocked=%v", a.Status, a.Unlocked)
	}
	if a.FeedbackToken == nil || !strings.HasPrefix(*a.FeedbackToken, "fbk_") {
		t.Fatal("expected feedback token with fbk_ prefix")
	}
	if a.FollowupDate == nil {
		t.Fatal("expected followup date")
	}
	// Three business days after Monday is Thursday.
	if got := a.FollowupDate.Weekday(); got != time.Thursday {
		t.Fatalf("expected Thursday, got %s", got)
	}
}

func TestBuildImmediateSubscriptionHasNoToken(t *testing.T) {
	s := &Service{}
	a, err := s.buildImmediate(leadsrepo.Lead{ID: uuid.New()}, brokersrepo.Broker{ID: uuid.New()}, pricingTerms{
		model:      domain.PricingSubscription,
		priceCents: int64Ptr(150000),
	}, time.Now())
	if err != nil {
		t.Fatalf("buildImmediate: %v", err)
	}
	if a.FeedbackToken != nil || a.FollowupDate != nil {
		t.Fatal("subscription assignment must not carry follow-up state")
	}
}

func TestFeedbackTokenMatches(t *testing.T) {
	token, err := generateFeedbackToken()
	if err != nil {
		t.Fatalf("generateFeedbackToken: %v", err)
	}
	if len(token) != 4+64 {
		t.Fatalf("unexpected token length %d", len(token))
	}

	if !feedbackTokenMatches(&token, token) {
		t.Fatal("token should match itself")
	}
	other := "fbk_" + strings.Repeat("0", 64)
	if feedbackTokenMatches(&token, other) {
		t.Fatal("different token should not match")
	}
	if feedbackTokenMatches(nil, token) {
		t.Fatal("nil stored token should not match")
	}
	if feedbackTokenMatches(&token, "") {
		t.Fatal("empty token should not match")
	}
}

// The binaries wire the repository in as the store.
var _ Store = (*repository.Repository)(nil)

type fakeLeadDirectory struct {
	leads map[uuid.UUID]*leadsrepo.Lead
}

func (f *fakeLeadDirectory) Get(_ context.Context, id uuid.UUID) (leadsrepo.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return leadsrepo.Lead{}, apperr.NotFound("lead not found")
	}
	return *lead, nil
}

func (f *fakeLeadDirectory) Contact(_ context.Context, lead leadsrepo.Lead) domainevents.LeadContact {
	return domainevents.LeadContact{LeadID: lead.ID, LeadNumber: lead.LeadNumber}
}

type fakeEngineStore struct {
	leads       *fakeLeadDirectory
	assignments map[uuid.UUID]*repository.Assignment
	cancelled   []uuid.UUID
}

func newFakeEngineStore(leads *fakeLeadDirectory) *fakeEngineStore {
	return &fakeEngineStore{leads: leads, assignments: make(map[uuid.UUID]*repository.Assignment)}
}

func (f *fakeEngineStore) CreateWithLeadTransition(_ context.Context, a repository.Assignment, leadNext leaddomain.Status) (repository.Assignment, error) {
	lead, ok := f.leads.leads[a.LeadID]
	if !ok {
		return repository.Assignment{}, apperr.NotFound("lead not found")
	}
	if !lead.Status.CanTransition(leadNext) {
		return repository.Assignment{}, apperr.Conflict("invalid lead transition")
	}
	lead.Status = leadNext
	a.CreatedAt = time.Now()
	stored := a
	f.assignments[a.ID] = &stored
	return a, nil
}

func (f *fakeEngineStore) CreateBatchWithLeadTransitions(ctx context.Context, batch []repository.Assignment, leadNext leaddomain.Status) ([]repository.Assignment, error) {
	out := make([]repository.Assignment, 0, len(batch))
	for _, a := range batch {
		created, err := f.CreateWithLeadTransition(ctx, a, leadNext)
		if err != nil {
			return nil, err
		}
		out = append(out, created)
	}
	return out, nil
}

func (f *fakeEngineStore) GetByID(_ context.Context, id uuid.UUID) (repository.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return repository.Assignment{}, apperr.NotFound("assignment not found")
	}
	return *a, nil
}

func (f *fakeEngineStore) List(_ context.Context, _ *uuid.UUID) ([]repository.Assignment, error) {
	out := make([]repository.Assignment, 0, len(f.assignments))
	for _, a := range f.assignments {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeEngineStore) Deliver(_ context.Context, id uuid.UUID) (repository.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return repository.Assignment{}, apperr.NotFound("assignment not found")
	}
	if a.Status == domain.StatusPending {
		a.Status = domain.StatusSent
		a.Unlocked = true
		if lead, ok := f.leads.leads[a.LeadID]; ok {
			lead.Status = leaddomain.StatusAssigned
		}
	}
	return *a, nil
}

func (f *fakeEngineStore) CancelPendingWithLeadRelease(_ context.Context, id uuid.UUID) error {
	a, ok := f.assignments[id]
	if !ok || a.Status != domain.StatusPending {
		return apperr.Conflict("only pending assignments can be cancelled")
	}
	delete(f.assignments, id)
	if lead, ok := f.leads.leads[a.LeadID]; ok && lead.Status == leaddomain.StatusReserved {
		lead.Status = leaddomain.StatusAvailable
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeEngineStore) ApplyFollowup(_ context.Context, id uuid.UUID, response string, commissionCents *int64, notes *string, now time.Time) (repository.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return repository.Assignment{}, apperr.NotFound("assignment not found")
	}
	a.FollowupResponse = &response
	a.FollowupRespondedAt = &now
	a.CommissionCents = commissionCents
	a.Notes = notes
	return *a, nil
}

func (f *fakeEngineStore) DueFollowups(_ context.Context, _ time.Time, _ int) ([]repository.Assignment, error) {
	return nil, nil
}

func (f *fakeEngineStore) MarkFollowupSent(_ context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	a, ok := f.assignments[id]
	if !ok {
		return false, nil
	}
	a.FollowupSentAt = &sentAt
	return true, nil
}

type fakeBrokerDirectory struct{}

func (fakeBrokerDirectory) GetContact(_ context.Context, id uuid.UUID) (brokersrepo.Broker, error) {
	return brokersrepo.Broker{ID: id, CompanyName: "Makler GmbH", ContactName: "Max Makler", Email: "max@makler.test"}, nil
}

type fakeInvoicer struct {
	fail   bool
	issued []AssignmentInvoice
}

func (f *fakeInvoicer) IssueAssignmentInvoice(_ context.Context, in AssignmentInvoice) (IssuedInvoice, error) {
	if f.fail {
		return IssuedInvoice{}, errors.New("payment link creation failed")
	}
	f.issued = append(f.issued, in)
	return IssuedInvoice{
		ID:            uuid.New(),
		InvoiceNumber: "2026-0007",
		AmountCents:   in.AmountCents,
		DueDate:       time.Now().Add(30 * 24 * time.Hour),
		PaymentURL:    "https://pay.test/link",
	}, nil
}

type engineHarness struct {
	svc      *Service
	store    *fakeEngineStore
	leads    *fakeLeadDirectory
	invoicer *fakeInvoicer
	leadID   uuid.UUID
}

func newEngineHarness() *engineHarness {
	log := logger.New("development")
	leadID := uuid.New()
	leads := &fakeLeadDirectory{leads: map[uuid.UUID]*leadsrepo.Lead{
		leadID: {ID: leadID, LeadNumber: 42, CategoryID: uuid.New(), Status: leaddomain.StatusAvailable},
	}}
	store := newFakeEngineStore(leads)
	invoicer := &fakeInvoicer{}
	svc := New(store, leads, fakeBrokerDirectory{}, &fakeContracts{}, events.NewInMemoryBus(log), "https://portal.test", log)
	svc.SetInvoiceIssuer(invoicer)
	return &engineHarness{svc: svc, store: store, leads: leads, invoicer: invoicer, leadID: leadID}
}

func TestAssignGatedKeepsLeadReservedUntilPayment(t *testing.T) {
	h := newEngineHarness()

	resp, err := h.svc.Assign(context.Background(), transport.AssignRequest{
		LeadID:            h.leadID,
		BrokerID:          uuid.New(),
		PricingModel:      domain.PricingFixed,
		PriceChargedCents: int64Ptr(30000),
	})
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if !resp.InvoiceCreated || resp.Invoice == nil {
		t.Fatal("expected an invoice with payment link")
	}

	stored := h.store.assignments[resp.Assignment.ID]
	if stored.Status != domain.StatusPending || stored.Unlocked {
		t.Fatalf("expected locked pending assignment, got %s unlocked=%v", stored.Status, stored.Unlocked)
	}
	if got := h.leads.leads[h.leadID].Status; got != leaddomain.StatusReserved {
		t.Fatalf("expected reserved lead, got %s", got)
	}
}

func TestAssignGatedRollsBackOnInvoiceFailure(t *testing.T) {
	h := newEngineHarness()
	h.invoicer.fail = true

	_, err := h.svc.Assign(context.Background(), transport.AssignRequest{
		LeadID:            h.leadID,
		BrokerID:          uuid.New(),
		PricingModel:      domain.PricingFixed,
		PriceChargedCents: int64Ptr(30000),
	})
	if err == nil {
		t.Fatal("expected invoice failure to surface")
	}

	if len(h.store.assignments) != 0 {
		t.Fatalf("expected pending assignment cancelled, %d left", len(h.store.assignments))
	}
	if len(h.store.cancelled) != 1 {
		t.Fatalf("expected one compensating cancellation, got %d", len(h.store.cancelled))
	}
	if got := h.leads.leads[h.leadID].Status; got != leaddomain.StatusAvailable {
		t.Fatalf("expected lead released to available, got %s", got)
	}
}
