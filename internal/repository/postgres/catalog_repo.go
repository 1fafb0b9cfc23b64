package postgres

import (
	"context"
	"errors"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// CatalogRepo implements CatalogRepository using PostgreSQL.
type CatalogRepo struct{ db *DB }

// NewCatalogRepo constructs a catalog repository.
func NewCatalogRepo(db *DB) *CatalogRepo { return &CatalogRepo{db: db} }

const candidateCols = `
SELECT c.id, c.position_id, p.election_id, c.name, c.qr_slug
FROM candidates c JOIN positions p ON p.id = c.position_id`

func (r *CatalogRepo) ElectionExists(ctx context.Context, electionID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM elections WHERE id=$1)`
	var ok bool
	if err := r.db.Pool.QueryRow(ctx, q, electionID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *CatalogRepo) GetPosition(ctx context.Context, positionID, electionID int64) (*model.Position, error) {
	const q = `SELECT id, election_id, name FROM positions WHERE id=$1 AND election_id=$2`
	var p model.Position
	if err := r.db.Pool.QueryRow(ctx, q, positionID, electionID).Scan(&p.ID, &p.ElectionID, &p.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *CatalogRepo) GetCandidate(ctx context.Context, candidateID, positionID int64) (*model.Candidate, error) {
	return r.candidate(ctx, candidateCols+` WHERE c.id=$1 AND c.position_id=$2`, candidateID, positionID)
}

func (r *CatalogRepo) GetCandidateByID(ctx context.Context, candidateID int64) (*model.Candidate, error) {
	return r.candidate(ctx, candidateCols+` WHERE c.id=$1`, candidateID)
}

func (r *CatalogRepo) GetCandidateBySlug(ctx context.Context, slug uuid.UUID) (*model.Candidate, error) {
	return r.candidate(ctx, candidateCols+` WHERE c.qr_slug=$1`, slug)
}

func (r *CatalogRepo) candidate(ctx context.Context, q string, args ...any) (*model.Candidate, error) {
	var c model.Candidate
	err := r.db.Pool.QueryRow(ctx, q, args...).Scan(&c.ID, &c.PositionID, &c.ElectionID, &c.Name, &c.QRSlug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
