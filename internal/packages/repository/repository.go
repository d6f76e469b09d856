package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Package status values.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Distribution types.
const (
	DistributionInstant     = "instant"
	DistributionDistributed = "distributed"
)

// Package is a batch lead purchase, delivered instantly or spread across
// business days.
type Package struct {
	ID               uuid.UUID
	BrokerID         uuid.UUID
	Name             string
	CategoryID       *uuid.UUID
	TotalLeads       int
	DeliveredLeads   int
	PriceCents       int64
	DistributionType string
	LeadsPerDay      int
	Status           string
	ReservedLeadIDs  []uuid.UUID
	NextDeliveryDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const packageNotFoundMsg = "package not found"

const packageColumns = `id, broker_id, name, category_id, total_leads, delivered_leads,
	price_cents, distribution_type, leads_per_day, status, reserved_lead_ids,
	next_delivery_date, created_at, updated_at`

// Repository provides database access for lead packages.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new packages repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new package in pending state.
func (r *Repository) Create(ctx context.Context, p Package) (Package, error) {
	p.Status = StatusPending
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_packages (id, broker_id, name, category_id, total_leads,
			price_cents, distribution_type, leads_per_day, status, reserved_lead_ids)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING delivered_leads, created_at, updated_at`,
		p.ID, p.BrokerID, p.Name, p.CategoryID, p.TotalLeads,
		p.PriceCents, p.DistributionType, p.LeadsPerDay, p.Status, p.ReservedLeadIDs,
	).Scan(&p.DeliveredLeads, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Package{}, fmt.Errorf("create package: %w", err)
	}
	return p, nil
}

// GetByID retrieves a package.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Package, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+packageColumns+` FROM lead_packages WHERE id = $1`, id)
	p, err := scanPackage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, apperr.NotFound(packageNotFoundMsg)
	}
	if err != nil {
		return Package{}, fmt.Errorf("get package: %w", err)
	}
	return p, nil
}

// List returns packages, optionally scoped to one broker, newest first.
func (r *Repository) List(ctx context.Context, brokerID *uuid.UUID) ([]Package, error) {
	query := `SELECT ` + packageColumns + ` FROM lead_packages`
	args := []interface{}{}
	if brokerID != nil {
		query += ` WHERE broker_id = $1`
		args = append(args, *brokerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

// SetStatus moves a package between lifecycle states under a row lock,
// restricted to the expected current status.
func (r *Repository) SetStatus(ctx context.Context, id uuid.UUID, from, to string) (Package, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Package{}, fmt.Errorf("begin package status: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+packageColumns+` FROM lead_packages WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPackage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, apperr.NotFound(packageNotFoundMsg)
	}
	if err != nil {
		return Package{}, fmt.Errorf("lock package: %w", err)
	}

	if p.Status != from {
		return Package{}, apperr.Conflict(fmt.Sprintf("package is %s, expected %s", p.Status, from))
	}

	err = tx.QueryRow(ctx, `
		UPDATE lead_packages SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING status, updated_at`, id, to,
	).Scan(&p.Status, &p.UpdatedAt)
	if err != nil {
		return Package{}, fmt.Errorf("update package status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Package{}, fmt.Errorf("commit package status: %w", err)
	}
	return p, nil
}

// RecordDelivery adds delivered to the counter under a row lock. Reaching
// total_leads forces completed and clears the delivery schedule; otherwise
// the next delivery date is stored for distributed packages.
func (r *Repository) RecordDelivery(ctx context.Context, id uuid.UUID, delivered int, nextDelivery *time.Time) (Package, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Package{}, fmt.Errorf("begin record delivery: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+packageColumns+` FROM lead_packages WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPackage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Package{}, apperr.NotFound(packageNotFoundMsg)
	}
	if err != nil {
		return Package{}, fmt.Errorf("lock package: %w", err)
	}

	total := p.DeliveredLeads + delivered
	if total > p.TotalLeads {
		return Package{}, apperr.Conflict("delivery exceeds remaining package leads")
	}

	status := p.Status
	if total == p.TotalLeads {
		status = StatusCompleted
		nextDelivery = nil
	}

	err = tx.QueryRow(ctx, `
		UPDATE lead_packages
		SET delivered_leads = $2, status = $3, next_delivery_date = $4, updated_at = now()
		WHERE id = $1
		RETURNING delivered_leads, status, next_delivery_date, updated_at`,
		id, total, status, nextDelivery,
	).Scan(&p.DeliveredLeads, &p.Status, &p.NextDeliveryDate, &p.UpdatedAt)
	if err != nil {
		return Package{}, fmt.Errorf("record delivery: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Package{}, fmt.Errorf("commit record delivery: %w", err)
	}
	return p, nil
}

// DueDistributed returns active distributed packages whose next delivery
// date has arrived.
func (r *Repository) DueDistributed(ctx context.Context, today time.Time) ([]Package, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+packageColumns+`
		FROM lead_packages
		WHERE status = $1 AND distribution_type = $2
		  AND next_delivery_date IS NOT NULL AND next_delivery_date <= $3
		ORDER BY next_delivery_date ASC`,
		StatusActive, DistributionDistributed, today)
	if err != nil {
		return nil, fmt.Errorf("list due packages: %w", err)
	}
	defer rows.Close()

	var packages []Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due package: %w", err)
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

func scanPackage(row pgx.Row) (Package, error) {
	var p Package
	err := row.Scan(
		&p.ID, &p.BrokerID, &p.Name, &p.CategoryID, &p.TotalLeads, &p.DeliveredLeads,
		&p.PriceCents, &p.DistributionType, &p.LeadsPerDay, &p.Status, &p.ReservedLeadIDs,
		&p.NextDeliveryDate, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
