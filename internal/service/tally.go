package service

import (
	"context"
	"fmt"

	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// BallotOpener authenticates and decrypts stored ballots at count time.
type BallotOpener interface {
	VerifyTally(ctx context.Context, payload, signature string) error
	DecryptBallot(ctx context.Context, b64 string) (int64, uuid.UUID, error)
}

// TallyService counts an election offline, holding the private keys.
type TallyService interface {
	Tally(ctx context.Context, electionID int64) (*model.TallyResult, error)
}

type TallyServiceImpl struct {
	votes repository.VoteRepository
	open  BallotOpener
	log   *zap.Logger
}

// NewTallyService constructs TallyService.
func NewTallyService(votes repository.VoteRepository, open BallotOpener, log *zap.Logger) *TallyServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &TallyServiceImpl{votes: votes, open: open, log: log}
}

// Tally verifies and decrypts every ballot of the election. A ballot is
// counted only when its signature (if any) verifies, it decrypts, its
// plaintext names the stored candidate and its vote token is not repeated.
func (s *TallyServiceImpl) Tally(ctx context.Context, electionID int64) (*model.TallyResult, error) {
	ballots, err := s.votes.ListByElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("list ballots: %w", err)
	}

	res := &model.TallyResult{ElectionID: electionID, Ballots: len(ballots), Counts: map[int64]int{}}
	seen := make(map[uuid.UUID]struct{}, len(ballots))
	for _, b := range ballots {
		log := s.log.With(zap.Int64("ballot_id", b.ID))
		if b.Signed() {
			if err := s.open.VerifyTally(ctx, b.EncryptedPayload, *b.Signature); err != nil {
				log.Warn("tally signature rejected", zap.Error(err))
				res.BadSignature++
				continue
			}
		}
		cand, tok, err := s.open.DecryptBallot(ctx, b.EncryptedPayload)
		if err != nil {
			log.Warn("ballot does not decrypt", zap.Error(err))
			res.Undecryptable++
			continue
		}
		if cand != b.CandidateID {
			log.Warn("ballot candidate mismatch", zap.Int64("stored", b.CandidateID), zap.Int64("decrypted", cand))
			res.Mismatched++
			continue
		}
		if _, dup := seen[tok]; dup {
			log.Warn("vote token repeated")
			res.Duplicate++
			continue
		}
		seen[tok] = struct{}{}
		if !b.Signed() {
			res.Unsigned++
		}
		res.Counts[cand]++
	}
	s.log.Info("tally complete",
		zap.Int64("election_id", electionID),
		zap.Int("ballots", res.Ballots),
		zap.Int("rejected", res.BadSignature+res.Undecryptable+res.Mismatched+res.Duplicate))
	return res, nil
}
