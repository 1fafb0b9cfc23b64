package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/campus-vote/internal/abac"
	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/limiter"
	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/qrsign"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// QR verification reasons.
const (
	ReasonInvalidOrExpired  = "invalid_or_expired"
	ReasonAlreadyUsed       = "already_used"
	ReasonCandidateNotFound = "candidate_not_found"
	DetailExpired           = "expired"
	DetailInvalidSignature  = "invalid_signature"
)

// QRService issues, verifies and redeems signed QR capabilities.
type QRService interface {
	// Issue signs a self-service token; no QR link row is written.
	Issue(ctx context.Context, userID uuid.UUID, candidateID int64) (*model.IssuedQR, error)
	// IssueLink lets an administrator pre-register a token with an optional TTL.
	IssueLink(ctx context.Context, adminID, userID uuid.UUID, candidateID int64, ttlMinutes int) (*model.IssuedQR, error)
	// Verify checks a token without consuming it.
	Verify(ctx context.Context, token string) (*model.QRVerification, error)
	// Redeem verifies and then records the token hash.
	Redeem(ctx context.Context, token string) (*model.QRVerification, error)
}

type QRServiceImpl struct {
	profiles repository.ProfileRepository
	catalog  repository.CatalogRepository
	qr       repository.QRRepository
	policy   Policy
	tokens   QRTokens
	lim      limiter.Limiter
	audit    auditor
	m        metrics.Sink
	log      *zap.Logger
	now      func() time.Time
}

// NewQRService constructs QRService. lim may be nil to disable rate limiting.
func NewQRService(profiles repository.ProfileRepository, catalog repository.CatalogRepository,
	qr repository.QRRepository, policy Policy, tokens QRTokens, lim limiter.Limiter, audit repository.AuditRepository,
	m metrics.Sink, log *zap.Logger) *QRServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &QRServiceImpl{
		profiles: profiles, catalog: catalog, qr: qr, policy: policy, tokens: tokens, lim: lim,
		audit: auditor{repo: audit, log: log, m: m}, m: m, log: log, now: time.Now,
	}
}

// Issue is gated by the issue_qr policy for the requesting principal.
func (s *QRServiceImpl) Issue(ctx context.Context, userID uuid.UUID, candidateID int64) (*model.IssuedQR, error) {
	if err := s.validIssue(userID, candidateID); err != nil {
		return nil, err
	}
	p, err := resolvePrincipal(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	resource := "candidate:" + strconv.FormatInt(candidateID, 10)
	if !s.policy.Evaluate(ctx, p, abac.ActionIssueQR, resource, nil) {
		return nil, errs.ErrForbidden
	}
	return s.sign(ctx, userID, candidateID)
}

func (s *QRServiceImpl) validIssue(userID uuid.UUID, candidateID int64) error {
	if userID == uuid.Nil || candidateID <= 0 {
		return fmt.Errorf("%w: user and candidate are required", errs.ErrValidation)
	}
	return nil
}

// sign issues a token for a known candidate.
func (s *QRServiceImpl) sign(ctx context.Context, userID uuid.UUID, candidateID int64) (*model.IssuedQR, error) {
	if _, err := s.catalog.GetCandidateByID(ctx, candidateID); err != nil {
		return nil, err
	}
	tok, err := s.tokens.Sign(userID, candidateID)
	if err != nil {
		return nil, err
	}
	return &model.IssuedQR{Token: tok, TokenHash: qrsign.Hash(tok), Preview: qrsign.Preview(tok)}, nil
}

func (s *QRServiceImpl) IssueLink(ctx context.Context, adminID, userID uuid.UUID, candidateID int64, ttlMinutes int) (*model.IssuedQR, error) {
	admin, err := resolvePrincipal(ctx, s.profiles, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, errs.ErrForbidden
	}
	if err := s.validIssue(userID, candidateID); err != nil {
		return nil, err
	}
	issued, err := s.sign(ctx, userID, candidateID)
	if err != nil {
		return nil, err
	}
	if ttlMinutes > 0 {
		exp := s.now().Add(time.Duration(ttlMinutes) * time.Minute)
		issued.ExpiresAt = &exp
	}

	link := &model.QRLink{
		Token:       issued.Token,
		TokenHash:   issued.TokenHash,
		UserID:      userID,
		CandidateID: candidateID,
		ExpiresAt:   issued.ExpiresAt,
	}
	if err := s.qr.CreateLink(ctx, link); err != nil {
		return nil, err
	}
	s.audit.record(ctx, &adminID, AuditQRIssue, map[string]any{
		"link_id":      link.ID,
		"user_id":      userID.String(),
		"candidate_id": candidateID,
		"ttl_minutes":  ttlMinutes,
	})
	return issued, nil
}

// Verify applies per-IP rate limiting to signature failures.
func (s *QRServiceImpl) Verify(ctx context.Context, token string) (*model.QRVerification, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: token required", errs.ErrValidation)
	}
	subject := limiter.HashIP(ClientIP(ctx))
	if s.lim != nil {
		ok, _, err := s.lim.Allow(ctx, limiter.ScopeQRVerify, subject)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.ErrRateLimited
		}
	}

	res, err := s.check(ctx, token)
	if err != nil {
		return nil, err
	}
	s.m.Inc(metrics.QRVerify)
	if !res.Valid {
		s.m.Inc(metrics.QRVerifyFailed)
	}
	if s.lim != nil {
		switch {
		case res.Detail == DetailInvalidSignature:
			if blocked, _, ferr := s.lim.Failure(ctx, limiter.ScopeQRVerify, subject); ferr == nil && blocked {
				s.log.Warn("qr verify blocked", zap.String("scope", limiter.ScopeQRVerify))
			}
		case res.Valid:
			_ = s.lim.Success(ctx, limiter.ScopeQRVerify, subject)
		}
	}
	return res, nil
}

func (s *QRServiceImpl) Redeem(ctx context.Context, token string) (*model.QRVerification, error) {
	res, err := s.Verify(ctx, token)
	if err != nil || !res.Valid {
		return res, err
	}
	err = s.qr.RecordUsage(ctx, model.QRUsage{
		TokenHash:   qrsign.Hash(token),
		UserID:      &res.UserID,
		CandidateID: &res.CandidateID,
	})
	if errors.Is(err, errs.ErrConflict) {
		return &model.QRVerification{Reason: ReasonAlreadyUsed}, nil
	}
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, &res.UserID, AuditQRRedeem, map[string]any{"candidate_id": res.CandidateID})
	return res, nil
}

// check adds the candidate lookup to the shared capability checks.
func (s *QRServiceImpl) check(ctx context.Context, token string) (*model.QRVerification, error) {
	claims, rejected, err := checkCapability(ctx, s.tokens, s.qr, s.now(), token)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return rejected, nil
	}

	cand, err := s.catalog.GetCandidateByID(ctx, claims.CandidateID)
	if errors.Is(err, errs.ErrNotFound) {
		return &model.QRVerification{Reason: ReasonCandidateNotFound}, nil
	}
	if err != nil {
		return nil, err
	}
	return &model.QRVerification{
		Valid:         true,
		UserID:        claims.UserID,
		CandidateID:   cand.ID,
		CandidateName: cand.Name,
	}, nil
}
