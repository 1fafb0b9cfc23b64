package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/and161185/campus-vote/internal/abac"
	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// TokenService issues per-(principal, election) vote tokens.
type TokenService interface {
	// Issue returns the principal's token for the election, creating it on
	// first call. A used token is returned as is.
	Issue(ctx context.Context, userID uuid.UUID, electionID int64) (*model.VoteToken, error)
}

type TokenServiceImpl struct {
	profiles repository.ProfileRepository
	tokens   repository.TokenRepository
	catalog  repository.CatalogRepository
	policy   Policy
	audit    auditor
	m        metrics.Sink
	log      *zap.Logger
}

// NewTokenService constructs TokenService with required dependencies.
func NewTokenService(profiles repository.ProfileRepository, tokens repository.TokenRepository,
	catalog repository.CatalogRepository, policy Policy, audit repository.AuditRepository,
	m metrics.Sink, log *zap.Logger) *TokenServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &TokenServiceImpl{
		profiles: profiles, tokens: tokens, catalog: catalog, policy: policy,
		audit: auditor{repo: audit, log: log, m: m}, m: m, log: log,
	}
}

// Issue is gated by the issue_token policy before any row is read or written.
func (s *TokenServiceImpl) Issue(ctx context.Context, userID uuid.UUID, electionID int64) (*model.VoteToken, error) {
	if userID == uuid.Nil || electionID <= 0 {
		return nil, fmt.Errorf("%w: user and election are required", errs.ErrValidation)
	}
	p, err := resolvePrincipal(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	resource := "election:" + strconv.FormatInt(electionID, 10)
	if !s.policy.Evaluate(ctx, p, abac.ActionIssueToken, resource, nil) {
		return nil, errs.ErrForbidden
	}

	ok, err := s.catalog.ElectionExists(ctx, electionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotFound
	}

	fresh, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.GetOrCreate(ctx, model.VoteToken{Token: fresh, UserID: userID, ElectionID: electionID})
	if err != nil {
		return nil, err
	}
	created := tok.Token == fresh
	if created {
		s.m.Inc(metrics.TokenIssued)
	}
	s.audit.record(ctx, &userID, AuditTokenIssue, map[string]any{
		"election_id": electionID,
		"new":         created,
	})
	return tok, nil
}
