package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/jackc/pgx/v5"
)

// QRRepo implements QRRepository using PostgreSQL.
type QRRepo struct{ db *DB }

// NewQRRepo constructs a QR repository.
func NewQRRepo(db *DB) *QRRepo { return &QRRepo{db: db} }

// CreateLink inserts a link and fills its ID and creation time.
func (r *QRRepo) CreateLink(ctx context.Context, l *model.QRLink) error {
	const q = `
INSERT INTO qr_links (token, token_hash, user_id, candidate_id, expires_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`
	err := r.db.Pool.QueryRow(ctx, q, l.Token, l.TokenHash, l.UserID, l.CandidateID, l.ExpiresAt).
		Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetLinkByHash loads a link by its token hash.
func (r *QRRepo) GetLinkByHash(ctx context.Context, hash string) (*model.QRLink, error) {
	const q = `
SELECT id, token, token_hash, user_id, candidate_id, created_at, expires_at, used
FROM qr_links WHERE token_hash=$1`
	var l model.QRLink
	err := r.db.Pool.QueryRow(ctx, q, hash).
		Scan(&l.ID, &l.Token, &l.TokenHash, &l.UserID, &l.CandidateID, &l.CreatedAt, &l.ExpiresAt, &l.Used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &l, nil
}

// IsUsed reports whether the hash was already spent.
func (r *QRRepo) IsUsed(ctx context.Context, hash string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM qr_token_usage WHERE token_hash=$1)`
	var used bool
	if err := r.db.Pool.QueryRow(ctx, q, hash).Scan(&used); err != nil {
		return false, err
	}
	return used, nil
}

// RecordUsage appends the hash to the replay ledger and marks a matching
// admin link used, in one transaction.
func (r *QRRepo) RecordUsage(ctx context.Context, u model.QRUsage) error {
	const usage = `
INSERT INTO qr_token_usage (token_hash, user_id, candidate_id)
VALUES ($1, $2, $3)`
	const link = `UPDATE qr_links SET used=true WHERE token_hash=$1 AND used=false`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, usage, u.TokenHash, u.UserID, u.CandidateID); err != nil {
			if isUniqueViolation(err) {
				return errs.ErrConflict
			}
			return err
		}
		// Plain tokens have no link row; zero rows is fine.
		if _, err := tx.Exec(ctx, link, u.TokenHash); err != nil {
			return fmt.Errorf("mark link used: %w", err)
		}
		return nil
	})
}
