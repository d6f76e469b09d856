package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	brokersrepo "leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/internal/contracts/repository"
	"leadbroker_backend/internal/contracts/transport"
	"leadbroker_backend/internal/events"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

const defaultFollowupDays = 3

// Store is the persistence surface the contracts service needs.
type Store interface {
	Create(ctx context.Context, c repository.Contract) (repository.Contract, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Contract, error)
	ListByBroker(ctx context.Context, brokerID uuid.UUID) ([]repository.Contract, error)
	List(ctx context.Context) ([]repository.Contract, error)
	FindActive(ctx context.Context, brokerID, categoryID uuid.UUID) (*repository.Contract, error)
	Activate(ctx context.Context, id uuid.UUID) (repository.Contract, error)
	Deactivate(ctx context.Context, id uuid.UUID) (repository.Contract, error)
}

// BrokerDirectory is the fragment of the brokers module the contracts
// context needs.
type BrokerDirectory interface {
	GetContact(ctx context.Context, id uuid.UUID) (brokersrepo.Broker, error)
}

// CategoryDirectory resolves category display names.
type CategoryDirectory interface {
	CategoryName(ctx context.Context, id uuid.UUID) (string, error)
}

// Service provides business logic for contracts.
type Service struct {
	repo       Store
	brokers    BrokerDirectory
	categories CategoryDirectory
	eventBus   events.Bus
	baseURL    string
	log        *logger.Logger
}

// New creates a new contracts service.
func New(repo Store, brokers BrokerDirectory, categories CategoryDirectory, eventBus events.Bus, baseURL string, log *logger.Logger) *Service {
	return &Service{
		repo:       repo,
		brokers:    brokers,
		categories: categories,
		eventBus:   eventBus,
		baseURL:    baseURL,
		log:        log,
	}
}

// Create stores a new pending contract and notifies the broker with the
// one-time confirmation link. The notification outcome is reported back
// without failing the creation.
func (s *Service) Create(ctx context.Context, req transport.CreateContractRequest) (transport.ContractResponse, string, error) {
	if err := validatePricingTerms(req); err != nil {
		return transport.ContractResponse{}, "", err
	}

	broker, err := s.brokers.GetContact(ctx, req.BrokerID)
	if err != nil {
		return transport.ContractResponse{}, "", err
	}
	if req.CategoryID != nil {
		if _, err := s.categories.CategoryName(ctx, *req.CategoryID); err != nil {
			return transport.ContractResponse{}, "", err
		}
	}

	plaintext, hash, err := generateConfirmToken()
	if err != nil {
		return transport.ContractResponse{}, "", fmt.Errorf("generate confirmation token: %w", err)
	}

	followupDays := req.FollowupDays
	if followupDays == 0 {
		followupDays = defaultFollowupDays
	}

	contract := repository.Contract{
		ID:                  uuid.New(),
		BrokerID:            req.BrokerID,
		CategoryID:          req.CategoryID,
		PricingModel:        req.PricingModel,
		PricePerLeadCents:   req.PricePerLeadCents,
		MonthlyFeeCents:     req.MonthlyFeeCents,
		RevenueSharePercent: req.RevenueSharePercent,
		FollowupDays:        followupDays,
		TokenHash:           hash,
	}

	created, err := s.repo.Create(ctx, contract)
	if err != nil {
		return transport.ContractResponse{}, "", err
	}

	confirmURL := fmt.Sprintf("%s/api/v1/contracts/%s/confirm/%s", s.baseURL, created.ID, plaintext)
	emailErr := s.eventBus.PublishSync(ctx, events.ContractCreated{
		BaseEvent:    events.NewBaseEvent(),
		ContractID:   created.ID,
		BrokerID:     broker.ID,
		BrokerName:   broker.ContactName,
		BrokerEmail:  broker.Email,
		PricingModel: created.PricingModel,
		ConfirmURL:   confirmURL,
	})
	emailError := ""
	if emailErr != nil {
		emailError = emailErr.Error()
		s.log.Error("contract confirmation email failed", "error", emailErr, "contractId", created.ID)
	}

	return mapContractResponse(created), emailError, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ContractResponse, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ContractResponse{}, err
	}
	return mapContractResponse(contract), nil
}

func (s *Service) List(ctx context.Context, brokerID *uuid.UUID) ([]transport.ContractResponse, error) {
	var (
		contracts []repository.Contract
		err       error
	)
	if brokerID != nil {
		contracts, err = s.repo.ListByBroker(ctx, *brokerID)
	} else {
		contracts, err = s.repo.List(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := make([]transport.ContractResponse, 0, len(contracts))
	for _, c := range contracts {
		out = append(out, mapContractResponse(c))
	}
	return out, nil
}

// Resolve finds the contract applicable to assigning a lead of the given
// category to the broker. A nil result means ad-hoc single pricing.
func (s *Service) Resolve(ctx context.Context, brokerID, categoryID uuid.UUID) (*repository.Contract, error) {
	return s.repo.FindActive(ctx, brokerID, categoryID)
}

// GetPublicView returns the sanitized confirmation page payload after
// verifying the confirmation token.
func (s *Service) GetPublicView(ctx context.Context, id uuid.UUID, token string) (transport.ContractPublicView, error) {
	contract, err := s.authorize(ctx, id, token)
	if err != nil {
		return transport.ContractPublicView{}, err
	}

	view := transport.ContractPublicView{
		ID:                  contract.ID,
		PricingModel:        contract.PricingModel,
		PricePerLeadCents:   contract.PricePerLeadCents,
		MonthlyFeeCents:     contract.MonthlyFeeCents,
		RevenueSharePercent: contract.RevenueSharePercent,
		FollowupDays:        contract.FollowupDays,
		Status:              contract.Status,
	}
	if broker, err := s.brokers.GetContact(ctx, contract.BrokerID); err == nil {
		view.BrokerName = broker.CompanyName
	}
	if contract.CategoryID != nil {
		if name, err := s.categories.CategoryName(ctx, *contract.CategoryID); err == nil {
			view.CategoryName = name
		}
	}
	return view, nil
}

// Confirm activates a pending contract through its token-protected link.
// Re-confirming an active contract is rejected without mutation.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, token string) (transport.ContractResponse, error) {
	if _, err := s.authorize(ctx, id, token); err != nil {
		return transport.ContractResponse{}, err
	}

	activated, err := s.repo.Activate(ctx, id)
	if err != nil {
		return transport.ContractResponse{}, err
	}

	s.log.Info("contract confirmed", "contractId", activated.ID, "brokerId", activated.BrokerID)

	return mapContractResponse(activated), nil
}

// Deactivate retires a contract by operator action.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (transport.ContractResponse, error) {
	contract, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return transport.ContractResponse{}, err
	}
	return mapContractResponse(contract), nil
}

func (s *Service) authorize(ctx context.Context, id uuid.UUID, token string) (repository.Contract, error) {
	contract, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Contract{}, err
	}
	if !tokenMatches(contract.TokenHash, token) {
		return repository.Contract{}, apperr.Forbidden("invalid confirmation token")
	}
	return contract, nil
}

func validatePricingTerms(req transport.CreateContractRequest) error {
	switch req.PricingModel {
	case repository.PricingFixed:
		if req.PricePerLeadCents == nil || *req.PricePerLeadCents <= 0 {
			return apperr.Validation("fixed contracts require pricePerLeadCents")
		}
	case repository.PricingSubscription:
		if req.MonthlyFeeCents == nil || *req.MonthlyFeeCents <= 0 {
			return apperr.Validation("subscription contracts require monthlyFeeCents")
		}
	case repository.PricingRevenueShare:
		if req.RevenueSharePercent == nil {
			return apperr.Validation("revenue share contracts require revenueSharePercent")
		}
	default:
		return apperr.Validation("unknown pricing model")
	}
	return nil
}

func generateConfirmToken() (plaintext string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	plaintext = "ctr_" + hex.EncodeToString(bytes)
	h := sha256.Sum256([]byte(plaintext))
	return plaintext, hex.EncodeToString(h[:]), nil
}

func tokenMatches(storedHash, token string) bool {
	h := sha256.Sum256([]byte(token))
	candidate := hex.EncodeToString(h[:])
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(candidate)) == 1
}

func mapContractResponse(c repository.Contract) transport.ContractResponse {
	return transport.ContractResponse{
		ID:                  c.ID,
		BrokerID:            c.BrokerID,
		CategoryID:          c.CategoryID,
		PricingModel:        c.PricingModel,
		PricePerLeadCents:   c.PricePerLeadCents,
		MonthlyFeeCents:     c.MonthlyFeeCents,
		RevenueSharePercent: c.RevenueSharePercent,
		FollowupDays:        c.FollowupDays,
		Status:              c.Status,
		ConfirmedAt:         c.ConfirmedAt,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
	}
}
