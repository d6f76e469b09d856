package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadbroker_backend/internal/assignments/domain"
	leaddomain "leadbroker_backend/internal/leads/domain"
	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Assignment records a lead handed to a broker under specific terms.
type Assignment struct {
	ID                  uuid.UUID
	LeadID              uuid.UUID
	BrokerID            uuid.UUID
	PricingModel        string
	PriceChargedCents   *int64
	RevenueSharePercent *float64
	Status              string
	Unlocked            bool
	FeedbackToken       *string
	FollowupResponse    *string
	FollowupDate        *time.Time
	FollowupSentAt      *time.Time
	FollowupRespondedAt *time.Time
	FollowupCount       int
	CommissionCents     *int64
	Notes               *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

const assignmentNotFoundMsg = "assignment not found"

const assignmentColumns = `id, lead_id, broker_id, pricing_model, price_charged_cents,
	revenue_share_percent, status, unlocked, feedback_token, followup_response,
	followup_date, followup_sent_at, followup_responded_at, followup_count,
	commission_cents, notes, created_at, updated_at`

// Repository provides database access for lead assignments. Mutations that
// touch both the assignment and its lead run in one transaction so the
// coupled state machines never drift apart.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new assignments repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateWithLeadTransition inserts the assignment and moves its lead to
// leadNext in one transaction. The lead row is locked and the status edge
// validated; assignable leads only, unless the lead was pre-reserved for
// this flow.
func (r *Repository) CreateWithLeadTransition(ctx context.Context, a Assignment, leadNext leaddomain.Status) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("begin assignment create: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := r.createInTx(ctx, tx, a, leadNext)
	if err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("commit assignment create: %w", err)
	}
	return created, nil
}

// CreateBatchWithLeadTransitions inserts several assignments atomically,
// moving every lead to leadNext. Used by bulk assignment and package
// delivery, where partial creation would corrupt the package counters.
func (r *Repository) CreateBatchWithLeadTransitions(ctx context.Context, batch []Assignment, leadNext leaddomain.Status) ([]Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin batch create: %w", err)
	}
	defer tx.Rollback(ctx)

	created := make([]Assignment, 0, len(batch))
	for _, a := range batch {
		one, err := r.createInTx(ctx, tx, a, leadNext)
		if err != nil {
			return nil, err
		}
		created = append(created, one)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch create: %w", err)
	}
	return created, nil
}

func (r *Repository) createInTx(ctx context.Context, tx pgx.Tx, a Assignment, leadNext leaddomain.Status) (Assignment, error) {
	var current leaddomain.Status
	err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, a.LeadID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, apperr.NotFound("lead not found")
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("lock lead: %w", err)
	}

	validated, err := current.Transition(leadNext)
	if err != nil {
		return Assignment{}, err
	}

	query := `
		INSERT INTO lead_assignments (id, lead_id, broker_id, pricing_model, price_charged_cents,
			revenue_share_percent, status, unlocked, feedback_token, followup_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING followup_count, created_at, updated_at`

	err = tx.QueryRow(ctx, query,
		a.ID, a.LeadID, a.BrokerID, a.PricingModel, a.PriceChargedCents,
		a.RevenueSharePercent, a.Status, a.Unlocked, a.FeedbackToken, a.FollowupDate,
	).Scan(&a.FollowupCount, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Assignment{}, fmt.Errorf("create assignment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET status = $2, assignment_count = assignment_count + 1, updated_at = now()
		WHERE id = $1`, a.LeadID, validated)
	if err != nil {
		return Assignment{}, fmt.Errorf("update lead on assignment: %w", err)
	}

	return a, nil
}

// GetByID retrieves an assignment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Assignment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, apperr.NotFound(assignmentNotFoundMsg)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

// List returns assignments, optionally scoped to one broker, newest first.
func (r *Repository) List(ctx context.Context, brokerID *uuid.UUID) ([]Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM lead_assignments`
	args := []interface{}{}
	if brokerID != nil {
		query += ` WHERE broker_id = $1`
		args = append(args, *brokerID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Deliver flips a payment-gated assignment to sent+unlocked and moves its
// lead to assigned, in one transaction.
func (r *Repository) Deliver(ctx context.Context, id uuid.UUID) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("begin deliver: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, apperr.NotFound(assignmentNotFoundMsg)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("lock assignment: %w", err)
	}

	if a.Status != domain.StatusPending {
		// Already delivered by an earlier confirmation, keep it idempotent.
		if a.Unlocked {
			return a, nil
		}
		return Assignment{}, apperr.Conflict(fmt.Sprintf("assignment in status %s cannot be delivered", a.Status))
	}

	err = tx.QueryRow(ctx, `
		UPDATE lead_assignments SET status = $2, unlocked = true, updated_at = now()
		WHERE id = $1
		RETURNING status, unlocked, updated_at`, id, domain.StatusSent,
	).Scan(&a.Status, &a.Unlocked, &a.UpdatedAt)
	if err != nil {
		return Assignment{}, fmt.Errorf("deliver assignment: %w", err)
	}

	var current leaddomain.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, a.LeadID).Scan(&current); err != nil {
		return Assignment{}, fmt.Errorf("lock lead: %w", err)
	}
	validated, err := current.Transition(leaddomain.StatusAssigned)
	if err != nil {
		return Assignment{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, a.LeadID, validated); err != nil {
		return Assignment{}, fmt.Errorf("update lead on delivery: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("commit deliver: %w", err)
	}
	return a, nil
}

// CancelPendingWithLeadRelease removes a pending assignment and puts its
// lead back on the market. Used when invoice creation fails after the
// assignment row was already written.
func (r *Repository) CancelPendingWithLeadRelease(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	var leadID uuid.UUID
	err = tx.QueryRow(ctx, `
		DELETE FROM lead_assignments WHERE id = $1 AND status = $2
		RETURNING lead_id`, id, domain.StatusPending).Scan(&leadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("only pending assignments can be cancelled")
	}
	if err != nil {
		return fmt.Errorf("cancel assignment: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE leads SET status = $2, assignment_count = assignment_count - 1, updated_at = now()
		WHERE id = $1 AND status = $3`,
		leadID, leaddomain.StatusAvailable, leaddomain.StatusReserved)
	if err != nil {
		return fmt.Errorf("release lead: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cancel: %w", err)
	}
	return nil
}

// ApplyFollowup records a broker response: assignment status, lead status,
// follow-up bookkeeping and optional commission, all in one transaction.
func (r *Repository) ApplyFollowup(ctx context.Context, id uuid.UUID, response string, commissionCents *int64, notes *string, now time.Time) (Assignment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Assignment{}, fmt.Errorf("begin followup: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM lead_assignments WHERE id = $1 FOR UPDATE`, id)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, apperr.NotFound(assignmentNotFoundMsg)
	}
	if err != nil {
		return Assignment{}, fmt.Errorf("lock assignment: %w", err)
	}

	outcome, err := domain.ApplyFollowup(domain.FollowupState{
		Response:    a.FollowupResponse,
		RespondedAt: a.FollowupRespondedAt,
		SentAt:      a.FollowupSentAt,
	}, response, now)
	if err != nil {
		return Assignment{}, err
	}

	var nextDate *time.Time
	if outcome.ScheduleNext {
		next := domain.NextFollowupDate(now)
		nextDate = &next
	}

	err = tx.QueryRow(ctx, `
		UPDATE lead_assignments
		SET status = $2, followup_response = $3, followup_responded_at = $4,
		    followup_date = $5, followup_sent_at = NULL,
		    followup_count = followup_count + 1,
		    commission_cents = COALESCE($6, commission_cents),
		    notes = COALESCE($7, notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+assignmentColumns,
		id, outcome.AssignmentStatus, response, now, nextDate, commissionCents, notes,
	).Scan(
		&a.ID, &a.LeadID, &a.BrokerID, &a.PricingModel, &a.PriceChargedCents,
		&a.RevenueSharePercent, &a.Status, &a.Unlocked, &a.FeedbackToken,
		&a.FollowupResponse, &a.FollowupDate, &a.FollowupSentAt, &a.FollowupRespondedAt,
		&a.FollowupCount, &a.CommissionCents, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return Assignment{}, fmt.Errorf("apply followup: %w", err)
	}

	var current leaddomain.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM leads WHERE id = $1 FOR UPDATE`, a.LeadID).Scan(&current); err != nil {
		return Assignment{}, fmt.Errorf("lock lead: %w", err)
	}
	validated, err := current.Transition(outcome.LeadStatus)
	if err != nil {
		return Assignment{}, err
	}
	if _, err := tx.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, a.LeadID, validated); err != nil {
		return Assignment{}, fmt.Errorf("update lead on followup: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, fmt.Errorf("commit followup: %w", err)
	}
	return a, nil
}

// DueFollowups returns non-terminal revenue-share assignments whose
// follow-up date has passed and whose reminder is not yet sent. Rows with a
// reached or scheduled response stay eligible: recording such a response
// clears followup_sent_at and schedules the next reminder cycle. The sweep
// is idempotent through followup_sent_at.
func (r *Repository) DueFollowups(ctx context.Context, now time.Time, limit int) ([]Assignment, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM lead_assignments
		WHERE pricing_model = $1
		  AND followup_date IS NOT NULL AND followup_date <= $2
		  AND followup_sent_at IS NULL
		  AND status NOT IN ($3, $4)
		ORDER BY followup_date ASC
		LIMIT $5`,
		domain.PricingRevenueShare, now, domain.StatusReturned, domain.StatusSuccess, limit)
	if err != nil {
		return nil, fmt.Errorf("list due followups: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due followup: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// MarkFollowupSent stamps the reminder timestamp. Only rows still unsent
// are touched, so a double-running sweep sends at most one reminder.
func (r *Repository) MarkFollowupSent(ctx context.Context, id uuid.UUID, sentAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_assignments SET followup_sent_at = $2, updated_at = now()
		WHERE id = $1 AND followup_sent_at IS NULL`, id, sentAt)
	if err != nil {
		return false, fmt.Errorf("mark followup sent: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CommissionRow is one closed commission for the monthly invoice run.
type CommissionRow struct {
	AssignmentID    uuid.UUID
	BrokerID        uuid.UUID
	LeadID          uuid.UUID
	CommissionCents int64
}

// ClosedCommissions returns success assignments with a commission recorded
// in the given window.
func (r *Repository) ClosedCommissions(ctx context.Context, from, to time.Time) ([]CommissionRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, broker_id, lead_id, commission_cents
		FROM lead_assignments
		WHERE status = $1 AND commission_cents IS NOT NULL AND commission_cents > 0
		  AND followup_responded_at >= $2 AND followup_responded_at < $3
		ORDER BY broker_id, followup_responded_at`,
		domain.StatusSuccess, from, to)
	if err != nil {
		return nil, fmt.Errorf("list closed commissions: %w", err)
	}
	defer rows.Close()

	var out []CommissionRow
	for rows.Next() {
		var row CommissionRow
		if err := rows.Scan(&row.AssignmentID, &row.BrokerID, &row.LeadID, &row.CommissionCents); err != nil {
			return nil, fmt.Errorf("scan commission row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (Assignment, error) {
	var a Assignment
	err := row.Scan(
		&a.ID, &a.LeadID, &a.BrokerID, &a.PricingModel, &a.PriceChargedCents,
		&a.RevenueSharePercent, &a.Status, &a.Unlocked, &a.FeedbackToken,
		&a.FollowupResponse, &a.FollowupDate, &a.FollowupSentAt, &a.FollowupRespondedAt,
		&a.FollowupCount, &a.CommissionCents, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}
