package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// ProfileRepo implements ProfileRepository using PostgreSQL.
type ProfileRepo struct{ db *DB }

// NewProfileRepo constructs a profile repository.
func NewProfileRepo(db *DB) *ProfileRepo { return &ProfileRepo{db: db} }

// Get loads a profile; attributes are decoded from jsonb.
func (r *ProfileRepo) Get(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	const q = `
SELECT user_id, role, status, attributes, updated_at
FROM profiles WHERE user_id=$1`
	var (
		p     model.Profile
		role  string
		st    string
		attrs []byte
	)
	err := r.db.Pool.QueryRow(ctx, q, userID).Scan(&p.UserID, &role, &st, &attrs, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Role = model.Role(role)
	p.Status = model.Status(st)
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return &p, nil
}

// Upsert creates or replaces a profile.
func (r *ProfileRepo) Upsert(ctx context.Context, p *model.Profile) error {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	b, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	const q = `
INSERT INTO profiles (user_id, role, status, attributes, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (user_id) DO UPDATE
SET role=EXCLUDED.role, status=EXCLUDED.status, attributes=EXCLUDED.attributes, updated_at=now()
RETURNING updated_at`
	return r.db.Pool.QueryRow(ctx, q, p.UserID, string(p.Role), string(p.Status), string(b)).Scan(&p.UpdatedAt)
}
