package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadbroker_backend/internal/leads/domain"
	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lead is a persisted sales inquiry.
type Lead struct {
	ID              uuid.UUID
	LeadNumber      int64
	CategoryID      uuid.UUID
	SourceID        *uuid.UUID
	FirstName       string
	LastName        string
	Email           *string
	Phone           *string
	PostalCode      *string
	City            *string
	ExtraData       map[string]string
	ExternalLeadID  *string
	Ownership       domain.Ownership
	Status          domain.Status
	AssignmentCount int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ListFilter narrows List queries.
type ListFilter struct {
	Status     *domain.Status
	CategoryID *uuid.UUID
	Limit      int
	Offset     int
}

const leadNotFoundMsg = "lead not found"

// Repository provides database access for leads.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new leads repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const leadColumns = `id, lead_number, category_id, source_id, first_name, last_name,
	email, phone, postal_code, city, extra_data, external_lead_id,
	ownership, status, assignment_count, created_at, updated_at`

// Create inserts a new lead. lead_number is allocated by the database sequence.
func (r *Repository) Create(ctx context.Context, lead Lead) (Lead, error) {
	extra, err := marshalExtraData(lead.ExtraData)
	if err != nil {
		return Lead{}, err
	}

	query := `
		INSERT INTO leads (id, category_id, source_id, first_name, last_name,
			email, phone, postal_code, city, extra_data, external_lead_id, ownership, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING lead_number, assignment_count, created_at, updated_at`

	err = r.pool.QueryRow(ctx, query,
		lead.ID, lead.CategoryID, lead.SourceID, lead.FirstName, lead.LastName,
		lead.Email, lead.Phone, lead.PostalCode, lead.City, extra,
		lead.ExternalLeadID, lead.Ownership, lead.Status,
	).Scan(&lead.LeadNumber, &lead.AssignmentCount, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return Lead{}, fmt.Errorf("create lead: %w", err)
	}

	return lead, nil
}

// GetByID retrieves a lead by its id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound(leadNotFoundMsg)
	}
	if err != nil {
		return Lead{}, fmt.Errorf("get lead: %w", err)
	}

	return lead, nil
}

// ExistsByExternalID reports whether a lead already carries the given
// ad-platform lead identifier. Used by the import path for deduplication.
func (r *Repository) ExistsByExternalID(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM leads WHERE external_lead_id = $1)`, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check external lead id: %w", err)
	}
	return exists, nil
}

// List returns leads matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListAssignable returns leads still on the market (new or available),
// oldest first, optionally scoped to one category. Used by the package
// distributor to pick delivery candidates.
func (r *Repository) ListAssignable(ctx context.Context, categoryID *uuid.UUID, limit int) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE status IN ($1, $2)`
	args := []interface{}{domain.StatusNew, domain.StatusAvailable}

	if categoryID != nil {
		args = append(args, *categoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignable leads: %w", err)
	}
	defer rows.Close()

	return collectLeads(rows)
}

// TransitionBatch moves every given lead to next in one transaction, each
// row locked and its edge validated. Used to reserve leads for a package
// ahead of payment and to release them again.
func (r *Repository) TransitionBatch(ctx context.Context, ids []uuid.UUID, next domain.Status) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch transition: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range ids {
		var current domain.Status
		err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound(leadNotFoundMsg)
		}
		if err != nil {
			return fmt.Errorf("lock lead: %w", err)
		}

		validated, err := current.Transition(next)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, id, validated); err != nil {
			return fmt.Errorf("transition lead: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch transition: %w", err)
	}
	return nil
}

// UpdateStatus moves a lead to the given status after validating the edge
// against the current stored status, inside a row lock so concurrent
// transitions serialize.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.Status) (Lead, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Lead{}, fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, apperr.NotFound(leadNotFoundMsg)
	}
	if err != nil {
		return Lead{}, fmt.Errorf("lock lead: %w", err)
	}

	validated, err := current.Transition(next)
	if err != nil {
		return Lead{}, err
	}

	row := tx.QueryRow(ctx,
		`UPDATE leads SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+leadColumns,
		id, validated,
	)
	lead, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("update lead status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Lead{}, fmt.Errorf("commit status update: %w", err)
	}

	return lead, nil
}

// Delete removes a lead by explicit operator action.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(leadNotFoundMsg)
	}
	return nil
}

func marshalExtraData(extra map[string]string) ([]byte, error) {
	if extra == nil {
		extra = map[string]string{}
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal extra data: %w", err)
	}
	return data, nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var extra []byte
	err := row.Scan(
		&lead.ID, &lead.LeadNumber, &lead.CategoryID, &lead.SourceID,
		&lead.FirstName, &lead.LastName, &lead.Email, &lead.Phone,
		&lead.PostalCode, &lead.City, &extra, &lead.ExternalLeadID,
		&lead.Ownership, &lead.Status, &lead.AssignmentCount,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return Lead{}, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &lead.ExtraData); err != nil {
			return Lead{}, fmt.Errorf("unmarshal extra data: %w", err)
		}
	}
	return lead, nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}
