// Package webhook provides the lead ingestion bounded context.
// It manages lead sources with their ingestion tokens and normalizes
// inbound form submissions into lead store records.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"leadbroker_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeadSource identifies one configured ingestion channel. The plaintext
// token is handed out once on creation; only its hash is stored.
type LeadSource struct {
	ID          uuid.UUID
	Name        string
	TokenHash   string
	TokenPrefix string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository provides data access for lead sources.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GenerateSourceToken creates a new random ingestion token and returns the
// plaintext token, its hash and a display prefix.
func GenerateSourceToken() (plaintext string, hash string, prefix string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", "", err
	}
	plaintext = "src_" + hex.EncodeToString(bytes)
	h := sha256.Sum256([]byte(plaintext))
	hash = hex.EncodeToString(h[:])
	prefix = plaintext[:12] // "src_" + 8 hex chars
	return plaintext, hash, prefix, nil
}

// HashToken hashes a plaintext ingestion token for lookup.
func HashToken(plaintext string) string {
	h := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(h[:])
}

// Create inserts a new lead source record.
func (r *Repository) Create(ctx context.Context, name, tokenHash, tokenPrefix string) (LeadSource, error) {
	var src LeadSource
	err := r.pool.QueryRow(ctx, `
		INSERT INTO lead_sources (id, name, token_hash, token_prefix)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, token_hash, token_prefix, active, created_at, updated_at
	`, uuid.New(), name, tokenHash, tokenPrefix).Scan(
		&src.ID, &src.Name, &src.TokenHash, &src.TokenPrefix,
		&src.Active, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return LeadSource{}, fmt.Errorf("create lead source: %w", err)
	}
	return src, nil
}

// GetByTokenHash retrieves an active lead source by its token hash.
func (r *Repository) GetByTokenHash(ctx context.Context, tokenHash string) (LeadSource, error) {
	var src LeadSource
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, token_hash, token_prefix, active, created_at, updated_at
		FROM lead_sources
		WHERE token_hash = $1 AND active = true
	`, tokenHash).Scan(
		&src.ID, &src.Name, &src.TokenHash, &src.TokenPrefix,
		&src.Active, &src.CreatedAt, &src.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return LeadSource{}, apperr.Unauthorized("unknown or inactive lead source token")
	}
	if err != nil {
		return LeadSource{}, fmt.Errorf("get lead source by token: %w", err)
	}
	return src, nil
}

// List returns all lead sources, newest first.
func (r *Repository) List(ctx context.Context) ([]LeadSource, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, token_hash, token_prefix, active, created_at, updated_at
		FROM lead_sources
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list lead sources: %w", err)
	}
	defer rows.Close()

	var sources []LeadSource
	for rows.Next() {
		var src LeadSource
		if err := rows.Scan(
			&src.ID, &src.Name, &src.TokenHash, &src.TokenPrefix,
			&src.Active, &src.CreatedAt, &src.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead source: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// SetActive toggles a lead source on or off.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE lead_sources SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set lead source active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead source not found")
	}
	return nil
}

// Delete removes a lead source. Leads keep their source_id reference
// through ON DELETE SET NULL.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM lead_sources WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lead source not found")
	}
	return nil
}
