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

// Invoice status values.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

// Invoice types. The type decides what gets delivered once the invoice
// is paid.
const (
	TypeSingle       = "single"
	TypeFixed        = "fixed"
	TypePackage      = "package"
	TypeSubscription = "subscription"
	TypeCommission   = "commission"
)

// Invoice is one billing record for a broker.
type Invoice struct {
	ID             uuid.UUID
	InvoiceNumber  string
	BrokerID       uuid.UUID
	Type           string
	Status         string
	AmountCents    int64
	Description    string
	DueDate        time.Time
	AssignmentID   *uuid.UUID
	PackageID      *uuid.UUID
	PaymentLinkID  *string
	PaymentLinkURL *string
	PaidAt         *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvoiceItem is one line on an invoice. Items are append-only.
type InvoiceItem struct {
	ID             uuid.UUID
	InvoiceID      uuid.UUID
	Description    string
	Quantity       int
	UnitPriceCents int64
	TotalCents     int64
}

const invoiceNotFoundMsg = "invoice not found"

const invoiceColumns = `id, invoice_number, broker_id, type, status, amount_cents, description,
	due_date, assignment_id, package_id, payment_link_id, payment_link_url,
	paid_at, created_at, updated_at`

// Repository provides database access for invoices.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new billing repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts the invoice and its items in one transaction, allocating
// the next YYYY-NNNN number from the per-year counter row. The counter
// upsert is atomic, two concurrent creates cannot share a number.
func (r *Repository) Create(ctx context.Context, inv Invoice, items []InvoiceItem) (Invoice, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, fmt.Errorf("begin invoice create: %w", err)
	}
	defer tx.Rollback(ctx)

	year := time.Now().Year()
	var seq int
	err = tx.QueryRow(ctx, `
		INSERT INTO invoice_numbers (year, counter) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET counter = invoice_numbers.counter + 1
		RETURNING counter`, year).Scan(&seq)
	if err != nil {
		return Invoice{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	inv.InvoiceNumber = FormatInvoiceNumber(year, seq)
	inv.Status = StatusPending

	err = tx.QueryRow(ctx, `
		INSERT INTO invoices (id, invoice_number, broker_id, type, status, amount_cents,
			description, due_date, assignment_id, package_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		inv.ID, inv.InvoiceNumber, inv.BrokerID, inv.Type, inv.Status, inv.AmountCents,
		inv.Description, inv.DueDate, inv.AssignmentID, inv.PackageID,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	for _, item := range items {
		_, err = tx.Exec(ctx, `
			INSERT INTO invoice_items (id, invoice_id, description, quantity, unit_price_cents, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, inv.ID, item.Description, item.Quantity, item.UnitPriceCents, item.TotalCents)
		if err != nil {
			return Invoice{}, fmt.Errorf("create invoice item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, fmt.Errorf("commit invoice create: %w", err)
	}
	return inv, nil
}

// FormatInvoiceNumber renders the YYYY-NNNN invoice number.
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%d-%04d", year, seq)
}

// SetPaymentLink stores the external payment link on the invoice.
func (r *Repository) SetPaymentLink(ctx context.Context, id uuid.UUID, linkID, linkURL string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET payment_link_id = $2, payment_link_url = $3, updated_at = now()
		WHERE id = $1`, id, linkID, linkURL)
	if err != nil {
		return fmt.Errorf("set payment link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(invoiceNotFoundMsg)
	}
	return nil
}

// Cancel voids a pending invoice. Used when payment-link creation failed
// after the invoice row was written.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = $2, updated_at = now()
		WHERE id = $1 AND status = $3`, id, StatusCancelled, StatusPending)
	if err != nil {
		return fmt.Errorf("cancel invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("only pending invoices can be cancelled")
	}
	return nil
}

// GetByID retrieves an invoice.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return r.scanOne(row, "get invoice")
}

// GetByNumber retrieves an invoice by its human-facing number. Used by the
// manual payment verification path.
func (r *Repository) GetByNumber(ctx context.Context, invoiceNumber string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, invoiceNumber)
	return r.scanOne(row, "get invoice by number")
}

// GetByPaymentLinkID retrieves an invoice by its stored payment-link id.
// Fallback for webhook events without an invoice id in their metadata.
func (r *Repository) GetByPaymentLinkID(ctx context.Context, linkID string) (Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_link_id = $1`, linkID)
	return r.scanOne(row, "get invoice by payment link")
}

func (r *Repository) scanOne(row pgx.Row, op string) (Invoice, error) {
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, apperr.NotFound(invoiceNotFoundMsg)
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("%s: %w", op, err)
	}
	return inv, nil
}

// List returns invoices, optionally scoped to one broker, newest first.
func (r *Repository) List(ctx context.Context, brokerID *uuid.UUID) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	args := []interface{}{}
	if brokerID != nil {
		query += ` WHERE broker_id = $1`
		args = append(args, *brokerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Items returns the line items of an invoice.
func (r *Repository) Items(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price_cents, total_cents
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description,
			&item.Quantity, &item.UnitPriceCents, &item.TotalCents); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MarkPaid flips a pending invoice to paid under a row lock. A second
// confirmation for the same invoice reports alreadyPaid instead of
// mutating, so retried webhooks cannot double-deliver.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (Invoice, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Invoice{}, false, fmt.Errorf("begin mark paid: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, false, apperr.NotFound(invoiceNotFoundMsg)
	}
	if err != nil {
		return Invoice{}, false, fmt.Errorf("lock invoice: %w", err)
	}

	if inv.Status == StatusPaid {
		return inv, true, nil
	}
	if inv.Status == StatusCancelled {
		return Invoice{}, false, apperr.Conflict("invoice has been cancelled")
	}

	err = tx.QueryRow(ctx, `
		UPDATE invoices SET status = $2, paid_at = $3, updated_at = now()
		WHERE id = $1
		RETURNING status, paid_at, updated_at`, id, StatusPaid, paidAt,
	).Scan(&inv.Status, &inv.PaidAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, false, fmt.Errorf("mark invoice paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Invoice{}, false, fmt.Errorf("commit mark paid: %w", err)
	}
	return inv, false, nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.BrokerID, &inv.Type, &inv.Status,
		&inv.AmountCents, &inv.Description, &inv.DueDate, &inv.AssignmentID,
		&inv.PackageID, &inv.PaymentLinkID, &inv.PaymentLinkURL,
		&inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	return inv, err
}
