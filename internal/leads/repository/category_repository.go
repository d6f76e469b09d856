package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Category classifies leads and scopes contracts.
type Category struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Position  int
	CreatedAt time.Time
}

// CreateCategory inserts a new category at the end of the ordering.
func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	query := `
		INSERT INTO lead_categories (id, name, slug, position)
		VALUES ($1, $2, $3, (SELECT COALESCE(MAX(position), 0) + 1 FROM lead_categories))
		RETURNING position, created_at`

	err := r.pool.QueryRow(ctx, query, c.ID, c.Name, c.Slug).Scan(&c.Position, &c.CreatedAt)
	if err != nil {
		return Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

// GetCategoryByID retrieves a category.
func (r *Repository) GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, position, created_at FROM lead_categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Position, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, apperr.NotFound("category not found")
	}
	if err != nil {
		return Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories in configured order. The first
// category in this ordering is the ingestion default.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, position, created_at FROM lead_categories ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Position, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory removes a category that no lead references.
func (r *Repository) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	var leadCount int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads WHERE category_id = $1`, id).Scan(&leadCount)
	if err != nil {
		return fmt.Errorf("count category leads: %w", err)
	}
	if leadCount > 0 {
		return apperr.Conflict("category has leads and cannot be deleted")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM lead_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("category not found")
	}
	return nil
}
