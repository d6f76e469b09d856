package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	brokersrepo "leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/internal/contracts/repository"
	"leadbroker_backend/internal/contracts/transport"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/events"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

type fakeStore struct {
	contracts map[uuid.UUID]*repository.Contract
}

func newFakeStore() *fakeStore {
	return &fakeStore{contracts: make(map[uuid.UUID]*repository.Contract)}
}

func (f *fakeStore) Create(_ context.Context, c repository.Contract) (repository.Contract, error) {
	c.Status = repository.StatusPending
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	stored := c
	f.contracts[c.ID] = &stored
	return c, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return repository.Contract{}, apperr.NotFound("contract not found")
	}
	return *c, nil
}

func (f *fakeStore) ListByBroker(_ context.Context, brokerID uuid.UUID) ([]repository.Contract, error) {
	var out []repository.Contract
	for _, c := range f.contracts {
		if c.BrokerID == brokerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) List(_ context.Context) ([]repository.Contract, error) {
	out := make([]repository.Contract, 0, len(f.contracts))
	for _, c := range f.contracts {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeStore) FindActive(_ context.Context, brokerID, categoryID uuid.UUID) (*repository.Contract, error) {
	var fallback *repository.Contract
	for _, c := range f.contracts {
		if c.BrokerID != brokerID || c.Status != repository.StatusActive {
			continue
		}
		if c.CategoryID != nil && *c.CategoryID == categoryID {
			match := *c
			return &match, nil
		}
		if c.CategoryID == nil {
			match := *c
			fallback = &match
		}
	}
	return fallback, nil
}

func (f *fakeStore) Activate(_ context.Context, id uuid.UUID) (repository.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return repository.Contract{}, apperr.NotFound("contract not found")
	}
	if c.Status == repository.StatusActive {
		return repository.Contract{}, apperr.Conflict("contract is already active")
	}
	if c.Status == repository.StatusInactive {
		return repository.Contract{}, apperr.Conflict("contract has been deactivated")
	}

	for _, other := range f.contracts {
		if other.ID == c.ID || other.BrokerID != c.BrokerID || other.Status != repository.StatusActive {
			continue
		}
		sameScope := (c.CategoryID == nil && other.CategoryID == nil) ||
			(c.CategoryID != nil && other.CategoryID != nil && *c.CategoryID == *other.CategoryID)
		if sameScope {
			other.Status = repository.StatusInactive
		}
	}

	now := time.Now()
	c.Status = repository.StatusActive
	c.ConfirmedAt = &now
	c.UpdatedAt = now
	return *c, nil
}

func (f *fakeStore) Deactivate(_ context.Context, id uuid.UUID) (repository.Contract, error) {
	c, ok := f.contracts[id]
	if !ok {
		return repository.Contract{}, apperr.NotFound("contract not found")
	}
	c.Status = repository.StatusInactive
	return *c, nil
}

type fakeBrokers struct{}

func (fakeBrokers) GetContact(_ context.Context, id uuid.UUID) (brokersrepo.Broker, error) {
	return brokersrepo.Broker{ID: id, CompanyName: "Makler GmbH", ContactName: "Max Makler", Email: "max@makler.test"}, nil
}

type fakeCategories struct{}

func (fakeCategories) CategoryName(_ context.Context, _ uuid.UUID) (string, error) {
	return "PV-Anlagen", nil
}

func newTestService(store *fakeStore) *Service {
	log := logger.New("development")
	return New(store, fakeBrokers{}, fakeCategories{}, events.NewInMemoryBus(log), "https://portal.test", log)
}

const testToken = "ctr_feedcafe"

func hashOf(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

func seedContract(store *fakeStore, brokerID uuid.UUID, categoryID *uuid.UUID, status string) uuid.UUID {
	id := uuid.New()
	store.contracts[id] = &repository.Contract{
		ID:                id,
		BrokerID:          brokerID,
		CategoryID:        categoryID,
		PricingModel:      repository.PricingFixed,
		PricePerLeadCents: int64Ptr(25000),
		FollowupDays:      3,
		Status:            status,
		TokenHash:         hashOf(testToken),
	}
	return id
}

func TestConfirmRejectsActiveContractWithoutMutation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	brokerID := uuid.New()
	id := seedContract(store, brokerID, nil, repository.StatusActive)
	confirmedAt := time.Now().Add(-24 * time.Hour)
	store.contracts[id].ConfirmedAt = &confirmedAt

	_, err := svc.Confirm(context.Background(), id, testToken)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	after := store.contracts[id]
	if after.Status != repository.StatusActive {
		t.Fatalf("status mutated to %q", after.Status)
	}
	if after.ConfirmedAt == nil || !after.ConfirmedAt.Equal(confirmedAt) {
		t.Fatalf("confirmed_at mutated: %v", after.ConfirmedAt)
	}
}

func TestConfirmDeactivatesPriorActiveForSameScope(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	brokerID := uuid.New()
	categoryID := uuid.New()
	otherCategory := uuid.New()

	prior := seedContract(store, brokerID, &categoryID, repository.StatusActive)
	unrelated := seedContract(store, brokerID, &otherCategory, repository.StatusActive)
	pending := seedContract(store, brokerID, &categoryID, repository.StatusPending)

	resp, err := svc.Confirm(context.Background(), pending, testToken)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if resp.Status != repository.StatusActive {
		t.Fatalf("expected active contract, got %q", resp.Status)
	}

	if store.contracts[prior].Status != repository.StatusInactive {
		t.Fatalf("prior contract for the same scope still %q", store.contracts[prior].Status)
	}
	if store.contracts[unrelated].Status != repository.StatusActive {
		t.Fatalf("contract for another category deactivated: %q", store.contracts[unrelated].Status)
	}

	active, err := svc.Resolve(context.Background(), brokerID, categoryID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if active == nil || active.ID != pending {
		t.Fatal("resolver does not return the newly confirmed contract")
	}
}

func TestConfirmRejectsWrongToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store)

	id := seedContract(store, uuid.New(), nil, repository.StatusPending)

	_, err := svc.Confirm(context.Background(), id, "ctr_deadbeef")
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if store.contracts[id].Status != repository.StatusPending {
		t.Fatalf("status mutated to %q", store.contracts[id].Status)
	}
}

func TestValidatePricingTerms(t *testing.T) {
	cases := []struct {
		name    string
		req     transport.CreateContractRequest
		wantErr bool
	}{
		{"fixed with price", transport.CreateContractRequest{PricingModel: repository.PricingFixed, PricePerLeadCents: int64Ptr(4000)}, false},
		{"fixed without price", transport.CreateContractRequest{PricingModel: repository.PricingFixed}, true},
		{"fixed with zero price", transport.CreateContractRequest{PricingModel: repository.PricingFixed, PricePerLeadCents: int64Ptr(0)}, true},
		{"subscription with fee", transport.CreateContractRequest{PricingModel: repository.PricingSubscription, MonthlyFeeCents: int64Ptr(9900)}, false},
		{"subscription without fee", transport.CreateContractRequest{PricingModel: repository.PricingSubscription}, true},
		{"revenue share with percent", transport.CreateContractRequest{PricingModel: repository.PricingRevenueShare, RevenueSharePercent: floatPtr(50)}, false},
		{"revenue share without percent", transport.CreateContractRequest{PricingModel: repository.PricingRevenueShare}, true},
		{"unknown model", transport.CreateContractRequest{PricingModel: "barter"}, true},
	}

	for _, tc := range cases {
		err := validatePricingTerms(tc.req)
		if tc.wantErr && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestConfirmTokenRoundtrip(t *testing.T) {
	plaintext, hash, err := generateConfirmToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plaintext) != 4+64 {
		t.Fatalf("token length: got %d", len(plaintext))
	}
	if !tokenMatches(hash, plaintext) {
		t.Fatal("generated token must match its own hash")
	}
	if tokenMatches(hash, plaintext+"x") {
		t.Fatal("tampered token must not match")
	}
	if tokenMatches(hash, "") {
		t.Fatal("empty token must not match")
	}
}

func TestConfirmTokensAreUnique(t *testing.T) {
	a, _, err := generateConfirmToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, _, err := generateConfirmToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatal("two generated tokens must differ")
	}
}
