package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/jackc/pgx/v5"
)

// VoteRepo implements VoteRepository using PostgreSQL.
type VoteRepo struct{ db *DB }

// NewVoteRepo constructs a ballot repository.
func NewVoteRepo(db *DB) *VoteRepo { return &VoteRepo{db: db} }

// RecordCast spends the vote token (and the QR hash, if any) and appends the
// ballot in a single transaction.
//
// The token update runs first: it takes the row lock, so a concurrent cast
// with the same token waits and then matches zero rows.
func (r *VoteRepo) RecordCast(ctx context.Context, v *model.EncryptedVote, c model.Consumption) error {
	const spend = `
UPDATE vote_tokens SET used=true, used_at=now()
WHERE token=$1 AND user_id=$2 AND used=false`
	const usage = `
INSERT INTO qr_token_usage (token_hash, user_id, candidate_id)
VALUES ($1, $2, $3)`
	const link = `UPDATE qr_links SET used=true WHERE token_hash=$1 AND used=false`
	const ins = `
INSERT INTO encrypted_votes (election_id, position_id, candidate_id, encrypted_payload, signature)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at`

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, spend, c.Token, c.UserID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrConflict
		}

		if c.QRHash != "" {
			if _, err := tx.Exec(ctx, usage, c.QRHash, c.UserID, c.CandidateID); err != nil {
				if isUniqueViolation(err) {
					return errs.ErrConflict
				}
				return err
			}
			if _, err := tx.Exec(ctx, link, c.QRHash); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx, ins, v.ElectionID, v.PositionID, v.CandidateID, v.EncryptedPayload, v.Signature).
			Scan(&v.ID, &v.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert vote: %w", err)
		}
		return nil
	})
}

// ListByElection returns the election's ballots ordered by id.
func (r *VoteRepo) ListByElection(ctx context.Context, electionID int64) ([]model.EncryptedVote, error) {
	const q = `
SELECT id, election_id, position_id, candidate_id, encrypted_payload, signature, created_at
FROM encrypted_votes
WHERE election_id=$1
ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.EncryptedVote
	for rows.Next() {
		var v model.EncryptedVote
		if err = rows.Scan(&v.ID, &v.ElectionID, &v.PositionID, &v.CandidateID,
			&v.EncryptedPayload, &v.Signature, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
