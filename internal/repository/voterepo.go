package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
)

// VoteRepository persists ballots.
type VoteRepository interface {
	// RecordCast atomically spends the credentials in c and appends v.
	// A spent credential yields ErrConflict and nothing is persisted.
	RecordCast(ctx context.Context, v *model.EncryptedVote, c model.Consumption) error
	// ListByElection returns all ballots of an election in insertion order.
	ListByElection(ctx context.Context, electionID int64) ([]model.EncryptedVote, error)
}
