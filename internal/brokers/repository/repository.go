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

// Broker is an external partner who purchases or receives leads.
type Broker struct {
	ID           uuid.UUID
	CompanyName  string
	ContactName  string
	Email        string
	Phone        *string
	AddressLine  *string
	PostalCode   *string
	City         *string
	Notes        *string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const brokerNotFoundMsg = "broker not found"

// Repository provides database access for brokers.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new brokers repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new broker.
func (r *Repository) Create(ctx context.Context, b Broker) (Broker, error) {
	query := `
		INSERT INTO brokers (id, company_name, contact_name, email, phone, address_line, postal_code, city, notes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.ID, b.CompanyName, b.ContactName, b.Email, b.Phone,
		b.AddressLine, b.PostalCode, b.City, b.Notes, b.Active,
	).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Broker{}, fmt.Errorf("create broker: %w", err)
	}

	return b, nil
}

// GetByID retrieves a broker by its id.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Broker, error) {
	query := `
		SELECT id, company_name, contact_name, email, phone, address_line, postal_code, city, notes, active, created_at, updated_at
		FROM brokers
		WHERE id = $1`

	var b Broker
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.CompanyName, &b.ContactName, &b.Email, &b.Phone,
		&b.AddressLine, &b.PostalCode, &b.City, &b.Notes, &b.Active,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Broker{}, apperr.NotFound(brokerNotFoundMsg)
	}
	if err != nil {
		return Broker{}, fmt.Errorf("get broker: %w", err)
	}

	return b, nil
}

// List returns all brokers, newest first. When activeOnly is set,
// inactive brokers are filtered out.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]Broker, error) {
	query := `
		SELECT id, company_name, contact_name, email, phone, address_line, postal_code, city, notes, active, created_at, updated_at
		FROM brokers`
	if activeOnly {
		query += ` WHERE active = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list brokers: %w", err)
	}
	defer rows.Close()

	var brokers []Broker
	for rows.Next() {
		var b Broker
		if err := rows.Scan(
			&b.ID, &b.CompanyName, &b.ContactName, &b.Email, &b.Phone,
			&b.AddressLine, &b.PostalCode, &b.City, &b.Notes, &b.Active,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan broker: %w", err)
		}
		brokers = append(brokers, b)
	}

	return brokers, rows.Err()
}

// Update persists all mutable broker fields.
func (r *Repository) Update(ctx context.Context, b Broker) (Broker, error) {
	query := `
		UPDATE brokers
		SET company_name = $2, contact_name = $3, email = $4, phone = $5,
		    address_line = $6, postal_code = $7, city = $8, notes = $9,
		    active = $10, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		b.ID, b.CompanyName, b.ContactName, b.Email, b.Phone,
		b.AddressLine, b.PostalCode, b.City, b.Notes, b.Active,
	).Scan(&b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Broker{}, apperr.NotFound(brokerNotFoundMsg)
	}
	if err != nil {
		return Broker{}, fmt.Errorf("update broker: %w", err)
	}

	return b, nil
}

// Delete removes a broker that has no assignments yet.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	var assignmentCount int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lead_assignments WHERE broker_id = $1`, id,
	).Scan(&assignmentCount)
	if err != nil {
		return fmt.Errorf("count broker assignments: %w", err)
	}
	if assignmentCount > 0 {
		return apperr.Conflict("broker has assignments and cannot be deleted")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM brokers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete broker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(brokerNotFoundMsg)
	}

	return nil
}
