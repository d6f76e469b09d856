package service

import (
	"context"
	"strings"
	"time"

	"leadbroker_backend/internal/brokers/repository"
	"leadbroker_backend/internal/brokers/transport"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/phone"
	"leadbroker_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Service provides business logic for brokers.
type Service struct {
	repo *repository.Repository
}

// New creates a new brokers service.
func New(repo *repository.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, req transport.CreateBrokerRequest) (transport.BrokerResponse, error) {
	broker := repository.Broker{
		ID:          uuid.New(),
		CompanyName: sanitize.Text(req.CompanyName),
		ContactName: sanitize.Text(req.ContactName),
		Email:       normalizeEmail(req.Email),
		Phone:       normalizeOptionalPhone(req.Phone),
		AddressLine: sanitize.TextPtr(req.AddressLine),
		PostalCode:  trimPtr(req.PostalCode),
		City:        sanitize.TextPtr(req.City),
		Notes:       sanitize.TextPtr(req.Notes),
		Active:      true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	created, err := s.repo.Create(ctx, broker)
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	return mapBrokerResponse(created), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.BrokerResponse, error) {
	broker, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.BrokerResponse{}, err
	}
	return mapBrokerResponse(broker), nil
}

func (s *Service) List(ctx context.Context, req transport.ListBrokersRequest) ([]transport.BrokerResponse, error) {
	brokers, err := s.repo.List(ctx, req.ActiveOnly)
	if err != nil {
		return nil, err
	}

	out := make([]transport.BrokerResponse, 0, len(brokers))
	for _, b := range brokers {
		out = append(out, mapBrokerResponse(b))
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateBrokerRequest) (transport.BrokerResponse, error) {
	broker, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	if req.CompanyName != nil {
		broker.CompanyName = sanitize.Text(*req.CompanyName)
	}
	if req.ContactName != nil {
		broker.ContactName = sanitize.Text(*req.ContactName)
	}
	if req.Email != nil {
		broker.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		broker.Phone = normalizeOptionalPhone(req.Phone)
	}
	if req.AddressLine != nil {
		broker.AddressLine = sanitize.TextPtr(req.AddressLine)
	}
	if req.PostalCode != nil {
		broker.PostalCode = trimPtr(req.PostalCode)
	}
	if req.City != nil {
		broker.City = sanitize.TextPtr(req.City)
	}
	if req.Notes != nil {
		broker.Notes = sanitize.TextPtr(req.Notes)
	}
	if req.Active != nil {
		broker.Active = *req.Active
	}

	updated, err := s.repo.Update(ctx, broker)
	if err != nil {
		return transport.BrokerResponse{}, err
	}

	return mapBrokerResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// GetContact resolves the notification address for a broker. Inactive
// brokers are not assignable, so callers get a conflict back.
func (s *Service) GetContact(ctx context.Context, id uuid.UUID) (repository.Broker, error) {
	broker, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Broker{}, err
	}
	if !broker.Active {
		return repository.Broker{}, apperr.Conflict("broker is inactive")
	}
	return broker, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	return &trimmed
}

func normalizeOptionalPhone(raw *string) *string {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil
	}
	normalized := phone.NormalizeE164(*raw)
	return &normalized
}

func mapBrokerResponse(b repository.Broker) transport.BrokerResponse {
	return transport.BrokerResponse{
		ID:          b.ID,
		CompanyName: b.CompanyName,
		ContactName: b.ContactName,
		Email:       b.Email,
		Phone:       b.Phone,
		AddressLine: b.AddressLine,
		PostalCode:  b.PostalCode,
		City:        b.City,
		Notes:       b.Notes,
		Active:      b.Active,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}
