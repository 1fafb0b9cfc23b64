package repository

import (
	"context"

	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
)

// CatalogRepository reads election, position and candidate reference data.
type CatalogRepository interface {
	// ElectionExists reports whether the election exists.
	ElectionExists(ctx context.Context, electionID int64) (bool, error)
	// GetPosition loads a position that belongs to the election.
	GetPosition(ctx context.Context, positionID, electionID int64) (*model.Position, error)
	// GetCandidate loads a candidate that belongs to the position.
	GetCandidate(ctx context.Context, candidateID, positionID int64) (*model.Candidate, error)
	// GetCandidateByID loads a candidate by ID.
	GetCandidateByID(ctx context.Context, candidateID int64) (*model.Candidate, error)
	// GetCandidateBySlug loads a candidate by its QR slug.
	GetCandidateBySlug(ctx context.Context, slug uuid.UUID) (*model.Candidate, error)
}
