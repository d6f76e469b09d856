package service

import (
	"context"
	"regexp"
	"strings"

	"leadbroker_backend/internal/leads/repository"
	"leadbroker_backend/internal/leads/transport"
	"leadbroker_backend/platform/sanitize"

	"github.com/google/uuid"
)

var slugCleanRegex = regexp.MustCompile(`[^a-z0-9]+`)

func (s *Service) CreateCategory(ctx context.Context, req transport.CreateCategoryRequest) (transport.CategoryResponse, error) {
	name := sanitize.Text(req.Name)
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = slugify(name)
	}

	created, err := s.repo.CreateCategory(ctx, repository.Category{
		ID:   uuid.New(),
		Name: name,
		Slug: slug,
	})
	if err != nil {
		return transport.CategoryResponse{}, err
	}

	return mapCategoryResponse(created), nil
}

func (s *Service) ListCategories(ctx context.Context) ([]transport.CategoryResponse, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]transport.CategoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, mapCategoryResponse(c))
	}
	return out, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteCategory(ctx, id)
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugCleanRegex.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

func mapCategoryResponse(c repository.Category) transport.CategoryResponse {
	return transport.CategoryResponse{
		ID:        c.ID,
		Name:      c.Name,
		Slug:      c.Slug,
		Position:  c.Position,
		CreatedAt: c.CreatedAt,
	}
}
