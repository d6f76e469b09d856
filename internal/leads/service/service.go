package service

import (
	"context"
	"strings"

	"leadbroker_backend/internal/events"
	"leadbroker_backend/internal/leads/domain"
	"leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/internal/leads/transport"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"
	"leadbroker_backend/platform/phone"
	"leadbroker_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Service provides business logic for the lead store.
type Service struct {
	repo     *repository.Repository
	eventBus events.Bus
	log      *logger.Logger
}

// New creates a new leads service.
func New(repo *repository.Repository, eventBus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, eventBus: eventBus, log: log}
}

// Submission is the normalized form every ingestion path (webhook,
// ad-platform import, manual entry) converges on before a lead is stored.
type Submission struct {
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	PostalCode     string
	City           string
	ExtraData      map[string]string
	CategoryHint   string
	SourceID       *uuid.UUID
	ExternalLeadID string
	Ownership      domain.Ownership
	Channel        string
}

// CreateFromSubmission stores a normalized submission as a new lead.
// The category is resolved from the hint by substring match, falling back
// to the first configured category.
func (s *Service) CreateFromSubmission(ctx context.Context, sub Submission) (repository.Lead, error) {
	if strings.TrimSpace(sub.FirstName) == "" && strings.TrimSpace(sub.LastName) == "" {
		return repository.Lead{}, apperr.Validation("submission has no name")
	}
	if strings.TrimSpace(sub.Email) == "" && strings.TrimSpace(sub.Phone) == "" {
		return repository.Lead{}, apperr.Validation("submission has no contact method")
	}

	category, err := s.resolveCategory(ctx, sub.CategoryHint)
	if err != nil {
		return repository.Lead{}, err
	}

	ownership := sub.Ownership
	if ownership == "" {
		ownership = domain.OwnershipSold
	}

	lead := repository.Lead{
		ID:         uuid.New(),
		CategoryID: category.ID,
		SourceID:   sub.SourceID,
		FirstName:  sanitize.Text(sub.FirstName),
		LastName:   sanitize.Text(sub.LastName),
		Email:      optionalString(strings.ToLower(strings.TrimSpace(sub.Email))),
		Phone:      optionalString(phone.NormalizeE164(sub.Phone)),
		PostalCode: optionalString(strings.TrimSpace(sub.PostalCode)),
		City:       optionalString(sanitize.Text(sub.City)),
		ExtraData:  sanitizeExtraData(sub.ExtraData),
		Ownership:  ownership,
		Status:     domain.StatusNew,
	}
	if sub.ExternalLeadID != "" {
		externalID := sub.ExternalLeadID
		lead.ExternalLeadID = &externalID
	}

	created, err := s.repo.Create(ctx, lead)
	if err != nil {
		return repository.Lead{}, err
	}

	var sourceID uuid.UUID
	if created.SourceID != nil {
		sourceID = *created.SourceID
	}
	s.eventBus.Publish(ctx, events.LeadCaptured{
		BaseEvent:  events.NewBaseEvent(),
		LeadID:     created.ID,
		LeadNumber: created.LeadNumber,
		CategoryID: created.CategoryID,
		SourceID:   sourceID,
		Channel:    sub.Channel,
	})

	s.log.Info("lead captured",
		"leadNumber", created.LeadNumber,
		"category", category.Slug,
		"channel", sub.Channel,
	)

	return created, nil
}

// Get returns the raw lead record for other modules.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	return s.repo.GetByID(ctx, id)
}

// CategoryName resolves a category id to its display name.
func (s *Service) CategoryName(ctx context.Context, id uuid.UUID) (string, error) {
	category, err := s.repo.GetCategoryByID(ctx, id)
	if err != nil {
		return "", err
	}
	return category.Name, nil
}

// ExistsByExternalID exposes the import dedupe check.
func (s *Service) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	return s.repo.ExistsByExternalID(ctx, externalID)
}

// ListAssignable returns leads still on the market, oldest first.
func (s *Service) ListAssignable(ctx context.Context, categoryID *uuid.UUID, limit int) ([]repository.Lead, error) {
	return s.repo.ListAssignable(ctx, categoryID, limit)
}

// Reserve takes the given leads off the market ahead of payment.
func (s *Service) Reserve(ctx context.Context, ids []uuid.UUID) error {
	return s.repo.TransitionBatch(ctx, ids, domain.StatusReserved)
}

// Release puts reserved leads back on the market.
func (s *Service) Release(ctx context.Context, ids []uuid.UUID) error {
	return s.repo.TransitionBatch(ctx, ids, domain.StatusAvailable)
}

// CreateManual handles operator-entered leads.
func (s *Service) CreateManual(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	category, err := s.repo.GetCategoryByID(ctx, req.CategoryID)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	lead, err := s.CreateFromSubmission(ctx, Submission{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		PostalCode:   req.PostalCode,
		City:         req.City,
		ExtraData:    req.ExtraData,
		CategoryHint: category.Name,
		Ownership:    domain.Ownership(req.Ownership),
		Channel:      "manual",
	})
	if err != nil {
		return transport.LeadResponse{}, err
	}

	return s.mapLeadResponse(ctx, lead), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return s.mapLeadResponse(ctx, lead), nil
}

func (s *Service) List(ctx context.Context, req transport.ListLeadsRequest) ([]transport.LeadResponse, error) {
	filter := repository.ListFilter{Limit: req.Limit, Offset: req.Offset}
	if req.Status != "" {
		status := domain.Status(req.Status)
		if !status.Valid() {
			return nil, apperr.Validation("unknown lead status")
		}
		filter.Status = &status
	}
	if req.CategoryID != nil {
		filter.CategoryID = req.CategoryID
	}

	leads, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, s.mapLeadResponse(ctx, lead))
	}
	return out, nil
}

// UpdateStatus applies an operator status override through the state machine.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (transport.LeadResponse, error) {
	lead, err := s.repo.UpdateStatus(ctx, id, domain.Status(status))
	if err != nil {
		return transport.LeadResponse{}, err
	}
	return s.mapLeadResponse(ctx, lead), nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// resolveCategory matches a submitted form or category name against the
// configured categories by case-insensitive substring, defaulting to the
// first configured category when nothing matches.
func (s *Service) resolveCategory(ctx context.Context, hint string) (repository.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return repository.Category{}, err
	}
	if len(categories) == 0 {
		return repository.Category{}, apperr.Internal("no lead categories configured")
	}

	needle := strings.ToLower(strings.TrimSpace(hint))
	if needle != "" {
		for _, c := range categories {
			name := strings.ToLower(c.Name)
			slug := strings.ToLower(c.Slug)
			if strings.Contains(needle, name) || strings.Contains(name, needle) ||
				strings.Contains(needle, slug) || strings.Contains(slug, needle) {
				return c, nil
			}
		}
	}

	return categories[0], nil
}

func (s *Service) mapLeadResponse(ctx context.Context, lead repository.Lead) transport.LeadResponse {
	resp := transport.LeadResponse{
		ID:              lead.ID,
		LeadNumber:      lead.LeadNumber,
		CategoryID:      lead.CategoryID,
		SourceID:        lead.SourceID,
		FirstName:       lead.FirstName,
		LastName:        lead.LastName,
		Email:           lead.Email,
		Phone:           lead.Phone,
		PostalCode:      lead.PostalCode,
		City:            lead.City,
		ExtraData:       lead.ExtraData,
		Ownership:       string(lead.Ownership),
		Status:          string(lead.Status),
		AssignmentCount: lead.AssignmentCount,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
	}
	if category, err := s.repo.GetCategoryByID(ctx, lead.CategoryID); err == nil {
		resp.CategoryName = category.Name
	}
	return resp
}

// Contact assembles the event payload for a delivery notification.
func (s *Service) Contact(ctx context.Context, lead repository.Lead) events.LeadContact {
	contact := events.LeadContact{
		LeadID:     lead.ID,
		LeadNumber: lead.LeadNumber,
		FirstName:  lead.FirstName,
		LastName:   lead.LastName,
		ExtraData:  lead.ExtraData,
	}
	if lead.Email != nil {
		contact.Email = *lead.Email
	}
	if lead.Phone != nil {
		contact.Phone = *lead.Phone
	}
	if lead.PostalCode != nil {
		contact.PostalCode = *lead.PostalCode
	}
	if lead.City != nil {
		contact.City = *lead.City
	}
	if category, err := s.repo.GetCategoryByID(ctx, lead.CategoryID); err == nil {
		contact.Category = category.Name
	}
	return contact
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sanitizeExtraData(extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(extra))
	for k, v := range extra {
		out[sanitize.Text(k)] = sanitize.Text(v)
	}
	return out
}
