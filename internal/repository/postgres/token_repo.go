package postgres

import (
	"context"
	"errors"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a vote token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// GetOrCreate inserts the candidate token unless the (user, election) pair
// already holds one, then returns whichever token is stored.
func (r *TokenRepo) GetOrCreate(ctx context.Context, t model.VoteToken) (*model.VoteToken, error) {
	const ins = `
INSERT INTO vote_tokens (token, user_id, election_id)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, election_id) DO NOTHING`
	if _, err := r.db.Pool.Exec(ctx, ins, t.Token, t.UserID, t.ElectionID); err != nil {
		return nil, err
	}

	const sel = `
SELECT token, user_id, election_id, used, created_at
FROM vote_tokens WHERE user_id=$1 AND election_id=$2`
	var out model.VoteToken
	err := r.db.Pool.QueryRow(ctx, sel, t.UserID, t.ElectionID).
		Scan(&out.Token, &out.UserID, &out.ElectionID, &out.Used, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

// GetForUser loads a token by its value, visible only to its owner.
func (r *TokenRepo) GetForUser(ctx context.Context, token, userID uuid.UUID) (*model.VoteToken, error) {
	const q = `
SELECT token, user_id, election_id, used, created_at
FROM vote_tokens WHERE token=$1 AND user_id=$2`
	var out model.VoteToken
	err := r.db.Pool.QueryRow(ctx, q, token, userID).
		Scan(&out.Token, &out.UserID, &out.ElectionID, &out.Used, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}
