package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/and161185/campus-vote/internal/abac"
	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/metrics"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/qrsign"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// CastService turns a single-use credential into exactly one ballot.
type CastService interface {
	// CastWithToken casts one ballot with a previously issued vote token.
	CastWithToken(ctx context.Context, userID, token uuid.UUID, positionID, candidateID int64) (*model.EncryptedVote, error)
	// CastViaQR casts for the candidate behind a QR slug. Without a valid
	// signed token for this principal and candidate, nothing is cast
	// unless confirm is set.
	CastViaQR(ctx context.Context, userID, slug uuid.UUID, signedToken string, confirm bool) (*model.QRCastResult, error)
}

// CastDeps groups the collaborators of the cast orchestrator.
type CastDeps struct {
	Profiles repository.ProfileRepository
	Tokens   repository.TokenRepository
	Votes    repository.VoteRepository
	Catalog  repository.CatalogRepository
	QR       repository.QRRepository
	Audit    repository.AuditRepository
	Policy   Policy
	Crypto   BallotCrypto
	QRTokens QRTokens
	Metrics  metrics.Sink
	Log      *zap.Logger
}

type CastServiceImpl struct {
	d     CastDeps
	audit auditor
	now   func() time.Time
}

// NewCastService constructs CastService with required dependencies.
func NewCastService(d CastDeps) *CastServiceImpl {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &CastServiceImpl{d: d, audit: auditor{repo: d.Audit, log: d.Log, m: d.Metrics}, now: time.Now}
}

// castStage names the progress of one cast attempt.
type castStage string

const (
	stageStart          castStage = "start"
	stageABACChecked    castStage = "abac_checked"
	stageTokenValidated castStage = "token_validated"
	stageEncrypted      castStage = "encrypted"
	stagePersisted      castStage = "persisted"
	stageTokenConsumed  castStage = "token_consumed"
	stageAudited        castStage = "audited"
)

// Abort reasons.
const (
	reasonForbidden = "forbidden"
	reasonNotFound  = "not_found"
	reasonConflict  = "conflict"
	reasonKeys      = "keys_not_configured"
	reasonInvalid   = "invalid_request"
	reasonInternal  = "internal"
)

// attempt tracks a single cast request through its stages.
type attempt struct {
	s             *CastServiceImpl
	userID        uuid.UUID
	stage         castStage
	failureAction string
	successAction string
	meta          map[string]any
}

func (s *CastServiceImpl) newAttempt(userID uuid.UUID, qr bool) *attempt {
	a := &attempt{s: s, userID: userID, stage: stageStart,
		failureAction: AuditVoteCastFailure, successAction: AuditVoteCastSuccess, meta: map[string]any{}}
	if qr {
		a.failureAction, a.successAction = AuditQRCastFailure, AuditQRCastSuccess
	}
	return a
}

func (a *attempt) advance(st castStage) {
	a.s.d.Log.Debug("cast stage", zap.String("from", string(a.stage)), zap.String("to", string(st)))
	a.stage = st
}

// abort terminates the attempt, emits the failure audit event and returns err.
func (a *attempt) abort(ctx context.Context, reason string, err error) error {
	a.s.d.Log.Info("cast aborted", zap.String("stage", string(a.stage)), zap.String("reason", reason))
	a.s.d.Metrics.Inc(metrics.VoteCastFailed)
	meta := map[string]any{"reason": reason, "stage": string(a.stage)}
	for k, v := range a.meta {
		meta[k] = v
	}
	a.s.audit.record(ctx, &a.userID, a.failureAction, meta)
	return err
}

// abortFor classifies err into the failure taxonomy.
func (a *attempt) abortFor(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errs.ErrForbidden):
		return a.abort(ctx, reasonForbidden, errs.ErrForbidden)
	case errors.Is(err, errs.ErrNotFound):
		return a.abort(ctx, reasonNotFound, errs.ErrNotFound)
	case errors.Is(err, errs.ErrConflict):
		return a.abort(ctx, reasonConflict, errs.ErrConflict)
	case errors.Is(err, errs.ErrKeysNotConfigured):
		a.s.d.Log.Error("voting keys not configured", zap.Error(err))
		return a.abort(ctx, reasonKeys, err)
	case errors.Is(err, errs.ErrValidation):
		return a.abort(ctx, reasonInvalid, err)
	default:
		return a.abort(ctx, reasonInternal, err)
	}
}

// CastWithToken runs the full state machine for a direct cast.
func (s *CastServiceImpl) CastWithToken(ctx context.Context, userID, token uuid.UUID, positionID, candidateID int64) (*model.EncryptedVote, error) {
	a := s.newAttempt(userID, false)
	a.meta["position_id"] = positionID
	if token == uuid.Nil || positionID <= 0 || candidateID <= 0 {
		return nil, a.abortFor(ctx, fmt.Errorf("%w: token, position and candidate are required", errs.ErrValidation))
	}

	p, err := resolvePrincipal(ctx, s.d.Profiles, userID)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	resource := "position:" + strconv.FormatInt(positionID, 10)
	if !s.d.Policy.Evaluate(ctx, p, abac.ActionCastVote, resource, nil) {
		return nil, a.abortFor(ctx, errs.ErrForbidden)
	}
	a.advance(stageABACChecked)

	tok, err := s.d.Tokens.GetForUser(ctx, token, userID)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	if tok.Used {
		return nil, a.abortFor(ctx, errs.ErrConflict)
	}
	a.meta["election_id"] = tok.ElectionID
	pos, err := s.d.Catalog.GetPosition(ctx, positionID, tok.ElectionID)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	cand, err := s.d.Catalog.GetCandidate(ctx, candidateID, pos.ID)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	a.advance(stageTokenValidated)

	return a.finish(ctx, *tok, *cand, "")
}

// CastViaQR resolves the candidate by slug and casts with the principal's
// election token, creating it if needed.
func (s *CastServiceImpl) CastViaQR(ctx context.Context, userID, slug uuid.UUID, signedToken string, confirm bool) (*model.QRCastResult, error) {
	a := s.newAttempt(userID, true)

	cand, err := s.d.Catalog.GetCandidateBySlug(ctx, slug)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	a.meta["candidate_id"] = cand.ID

	var qrHash string
	if signedToken != "" {
		qrHash = s.autoCastHash(ctx, userID, cand.ID, signedToken)
	}
	if qrHash == "" && !confirm {
		s.audit.record(ctx, &userID, AuditQRScan, map[string]any{"candidate_id": cand.ID})
		return &model.QRCastResult{AwaitingConfirmation: true, Candidate: *cand}, nil
	}

	p, err := resolvePrincipal(ctx, s.d.Profiles, userID)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	resource := "candidate:" + strconv.FormatInt(cand.ID, 10)
	if !s.d.Policy.Evaluate(ctx, p, abac.ActionCastVote, resource, nil) {
		return nil, a.abortFor(ctx, errs.ErrForbidden)
	}
	a.advance(stageABACChecked)

	fresh, err := uuid.NewV4()
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	tok, err := s.d.Tokens.GetOrCreate(ctx, model.VoteToken{Token: fresh, UserID: userID, ElectionID: cand.ElectionID})
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	if tok.Used {
		return nil, a.abortFor(ctx, errs.ErrConflict)
	}
	a.advance(stageTokenValidated)

	v, err := a.finish(ctx, *tok, *cand, qrHash)
	if err != nil {
		return nil, err
	}
	return &model.QRCastResult{Candidate: *cand, Vote: v}, nil
}

// autoCastHash returns the replay hash when signedToken is a fresh, valid
// capability for exactly this principal and candidate, and "" otherwise.
func (s *CastServiceImpl) autoCastHash(ctx context.Context, userID uuid.UUID, candidateID int64, signedToken string) string {
	c, rejected, err := checkCapability(ctx, s.d.QRTokens, s.d.QR, s.now(), signedToken)
	if err != nil || rejected != nil || c.UserID != userID || c.CandidateID != candidateID {
		return ""
	}
	return qrsign.Hash(signedToken)
}

// finish encrypts, signs and persists the ballot, then audits it.
func (a *attempt) finish(ctx context.Context, tok model.VoteToken, cand model.Candidate, qrHash string) (*model.EncryptedVote, error) {
	d := a.s.d

	payload, err := d.Crypto.EncryptBallot(ctx, cand.ID, tok.Token)
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	a.advance(stageEncrypted)

	v := &model.EncryptedVote{
		ElectionID:       tok.ElectionID,
		PositionID:       cand.PositionID,
		CandidateID:      cand.ID,
		EncryptedPayload: payload,
	}
	if sig, err := d.Crypto.SignTally(ctx, payload); err != nil {
		d.Log.Warn("tally signing failed, storing unsigned vote", zap.Error(err))
		d.Metrics.Inc(metrics.VoteUnsigned)
	} else {
		v.Signature = &sig
	}

	err = d.Votes.RecordCast(ctx, v, model.Consumption{
		Token:       tok.Token,
		UserID:      tok.UserID,
		QRHash:      qrHash,
		CandidateID: cand.ID,
	})
	if err != nil {
		return nil, a.abortFor(ctx, err)
	}
	a.advance(stagePersisted)
	a.advance(stageTokenConsumed)

	d.Metrics.Inc(metrics.VoteCast)
	a.s.audit.record(ctx, &a.userID, a.successAction, map[string]any{
		"vote_id":     v.ID,
		"election_id": v.ElectionID,
		"position_id": v.PositionID,
		"signed":      v.Signed(),
	})
	a.advance(stageAudited)
	return v, nil
}
