package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	leadsrepo "leadbroker_backend/internal/leads/repository"
	leadsvc "leadbroker_backend/internal/leads/service"
	"leadbroker_backend/platform/apperr"
	"leadbroker_backend/platform/logger"

	"github.com/google/uuid"
)

// LeadCreator is the fragment of the lead store the ingestion path needs.
type LeadCreator interface {
	CreateFromSubmission(ctx context.Context, sub leadsvc.Submission) (leadsrepo.Lead, error)
}

// Service normalizes inbound submissions into lead store records.
type Service struct {
	repo  *Repository
	leads LeadCreator
	log   *logger.Logger
}

// NewService creates a new webhook service.
func NewService(repo *Repository, leads LeadCreator, log *logger.Logger) *Service {
	return &Service{repo: repo, leads: leads, log: log}
}

// ResolveSource authenticates an ingestion token against the stored hashes.
func (s *Service) ResolveSource(ctx context.Context, token string) (LeadSource, error) {
	if strings.TrimSpace(token) == "" {
		return LeadSource{}, apperr.Unauthorized("missing ingestion token")
	}
	return s.repo.GetByTokenHash(ctx, HashToken(token))
}

// ProcessSubmission flattens an arbitrary JSON payload, maps its fields and
// stores the result as a new lead for the given source.
func (s *Service) ProcessSubmission(ctx context.Context, source LeadSource, payload map[string]interface{}) (uuid.UUID, error) {
	flat := flattenPayload(payload)
	if len(flat) == 0 {
		return uuid.Nil, apperr.Validation("empty submission")
	}

	mapped := MapFields(flat)
	if mapped.IsIncomplete() {
		return uuid.Nil, apperr.Validation("submission is missing a name or a contact method")
	}

	sourceID := source.ID
	created, err := s.leads.CreateFromSubmission(ctx, leadsvc.Submission{
		FirstName:    mapped.FirstName,
		LastName:     mapped.LastName,
		Email:        mapped.Email,
		Phone:        mapped.Phone,
		PostalCode:   mapped.PostalCode,
		City:         mapped.City,
		ExtraData:    mapped.Extra,
		CategoryHint: mapped.Category,
		SourceID:     &sourceID,
		Channel:      "webhook",
	})
	if err != nil {
		return uuid.Nil, err
	}

	s.log.Info("webhook submission captured",
		"source", source.Name,
		"leadNumber", created.LeadNumber,
	)

	return created.ID, nil
}

// CreateSource registers a new lead source and returns the one-time
// plaintext token alongside the stored record.
func (s *Service) CreateSource(ctx context.Context, name string) (LeadSource, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return LeadSource{}, "", apperr.Validation("source name is required")
	}

	plaintext, hash, prefix, err := GenerateSourceToken()
	if err != nil {
		return LeadSource{}, "", fmt.Errorf("generate source token: %w", err)
	}

	src, err := s.repo.Create(ctx, name, hash, prefix)
	if err != nil {
		return LeadSource{}, "", err
	}

	return src, plaintext, nil
}

func (s *Service) ListSources(ctx context.Context) ([]LeadSource, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetSourceActive(ctx context.Context, id uuid.UUID, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

func (s *Service) DeleteSource(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// flattenPayload reduces an arbitrary JSON object to a flat string map.
// Nested objects are flattened with a dotted prefix, arrays joined with
// commas, everything else rendered with its JSON literal.
func flattenPayload(payload map[string]interface{}) map[string]string {
	flat := map[string]string{}
	flattenInto(flat, "", payload)
	return flat
}

func flattenInto(flat map[string]string, prefix string, value interface{}) {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, child := range v {
			childKey := key
			if prefix != "" {
				childKey = prefix + "." + key
			}
			flattenInto(flat, childKey, child)
		}
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringifyScalar(item))
		}
		if prefix != "" {
			flat[prefix] = strings.Join(parts, ", ")
		}
	default:
		if prefix != "" {
			flat[prefix] = stringifyScalar(v)
		}
	}
}

func stringifyScalar(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
