package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TokenRepository stores per-(principal, election) vote tokens.
type TokenRepository interface {
	// GetOrCreate returns the principal's token for the election, inserting
	// candidate as the new token only if none exists yet.
	GetOrCreate(ctx context.Context, candidate model.VoteToken) (*model.VoteToken, error)
	// GetForUser loads a token scoped to its owner; a foreign token is ErrNotFound.
	GetForUser(ctx context.Context, token, userID uuid.UUID) (*model.VoteToken, error)
}
