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

// Pricing models a contract can carry.
const (
	PricingFixed        = "fixed"
	PricingSubscription = "subscription"
	PricingRevenueShare = "revenue_share"
)

// Contract statuses.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Contract is a broker's standing pricing agreement. CategoryID nil means
// the contract applies to every category.
type Contract struct {
	ID                  uuid.UUID
	BrokerID            uuid.UUID
	CategoryID          *uuid.UUID
	PricingModel        string
	PricePerLeadCents   *int64
	MonthlyFeeCents     *int64
	RevenueSharePercent *float64
	FollowupDays        int
	Status              string
	TokenHash           string
	ConfirmedAt         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const contractNotFoundMsg = "contract not found"

const contractColumns = `id, broker_id, category_id, pricing_model, price_per_lead_cents,
	monthly_fee_cents, revenue_share_percent, followup_days, status, token_hash,
	confirmed_at, created_at, updated_at`

// Repository provides database access for contracts.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new contracts repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new contract in pending state.
func (r *Repository) Create(ctx context.Context, c Contract) (Contract, error) {
	query := `
		INSERT INTO contracts (id, broker_id, category_id, pricing_model, price_per_lead_cents,
			monthly_fee_cents, revenue_share_percent, followup_days, status, token_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		c.ID, c.BrokerID, c.CategoryID, c.PricingModel, c.PricePerLeadCents,
		c.MonthlyFeeCents, c.RevenueSharePercent, c.FollowupDays, StatusPending, c.TokenHash,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Contract{}, fmt.Errorf("create contract: %w", err)
	}
	c.Status = StatusPending

	return c, nil
}

// GetByID retrieves a contract.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Contract, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, apperr.NotFound(contractNotFoundMsg)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("get contract: %w", err)
	}
	return c, nil
}

// ListByBroker returns a broker's contracts, newest first.
func (r *Repository) ListByBroker(ctx context.Context, brokerID uuid.UUID) ([]Contract, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE broker_id = $1 ORDER BY created_at DESC`, brokerID)
	if err != nil {
		return nil, fmt.Errorf("list broker contracts: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// List returns all contracts, newest first.
func (r *Repository) List(ctx context.Context) ([]Contract, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contractColumns+` FROM contracts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list contracts: %w", err)
	}
	defer rows.Close()
	return collectContracts(rows)
}

// FindActive resolves the applicable contract for a broker and category:
// a category-scoped active contract wins over an active general contract.
// No active contract is not an error, it returns nil.
func (r *Repository) FindActive(ctx context.Context, brokerID uuid.UUID, categoryID uuid.UUID) (*Contract, error) {
	query := `
		SELECT ` + contractColumns + `
		FROM contracts
		WHERE broker_id = $1 AND status = 'active' AND (category_id = $2 OR category_id IS NULL)
		ORDER BY category_id IS NULL, created_at DESC
		LIMIT 1`

	row := r.pool.QueryRow(ctx, query, brokerID, categoryID)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active contract: %w", err)
	}
	return &c, nil
}

// Activate confirms a pending contract inside one transaction: the row is
// locked, prior active contracts for the same broker+category scope are
// deactivated, then the contract flips to active. A partial unique index
// on (broker_id, category_id) WHERE status = 'active' backs the invariant.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) (Contract, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Contract{}, fmt.Errorf("begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, apperr.NotFound(contractNotFoundMsg)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("lock contract: %w", err)
	}

	if c.Status == StatusActive {
		return Contract{}, apperr.Conflict("contract is already active")
	}
	if c.Status == StatusInactive {
		return Contract{}, apperr.Conflict("contract has been deactivated")
	}

	if c.CategoryID != nil {
		_, err = tx.Exec(ctx, `
			UPDATE contracts SET status = 'inactive', updated_at = now()
			WHERE broker_id = $1 AND category_id = $2 AND status = 'active' AND id <> $3`,
			c.BrokerID, *c.CategoryID, c.ID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE contracts SET status = 'inactive', updated_at = now()
			WHERE broker_id = $1 AND category_id IS NULL AND status = 'active' AND id <> $2`,
			c.BrokerID, c.ID)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("deactivate prior contracts: %w", err)
	}

	err = tx.QueryRow(ctx, `
		UPDATE contracts SET status = 'active', confirmed_at = now(), updated_at = now()
		WHERE id = $1
		RETURNING status, confirmed_at, updated_at`, c.ID,
	).Scan(&c.Status, &c.ConfirmedAt, &c.UpdatedAt)
	if err != nil {
		return Contract{}, fmt.Errorf("activate contract: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Contract{}, fmt.Errorf("commit activation: %w", err)
	}

	return c, nil
}

// Deactivate retires a contract by operator action.
func (r *Repository) Deactivate(ctx context.Context, id uuid.UUID) (Contract, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE contracts SET status = 'inactive', updated_at = now()
		WHERE id = $1
		RETURNING `+contractColumns, id)
	c, err := scanContract(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contract{}, apperr.NotFound(contractNotFoundMsg)
	}
	if err != nil {
		return Contract{}, fmt.Errorf("deactivate contract: %w", err)
	}
	return c, nil
}

func scanContract(row pgx.Row) (Contract, error) {
	var c Contract
	err := row.Scan(
		&c.ID, &c.BrokerID, &c.CategoryID, &c.PricingModel, &c.PricePerLeadCents,
		&c.MonthlyFeeCents, &c.RevenueSharePercent, &c.FollowupDays, &c.Status,
		&c.TokenHash, &c.ConfirmedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func collectContracts(rows pgx.Rows) ([]Contract, error) {
	var contracts []Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
