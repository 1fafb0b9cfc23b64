package convert

import (
	"fmt"
	"time"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	model "github.com/and161185/campus-vote/internal/model"
	u "github.com/gofrs/uuid/v5"
)

// --- helpers ---

func tsPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	c := t.UTC()
	return &c
}

// --- VoteToken ---

// ToWireToken converts an issued token to the IssueToken response.
func ToWireToken(t model.VoteToken) *pb.IssueTokenResponse {
	return &pb.IssueTokenResponse{
		Token:      t.Token.String(),
		ElectionID: t.ElectionID,
		Used:       t.Used,
		CreatedAt:  t.CreatedAt.UTC(),
	}
}

// --- Votes ---

// ToWireVote strips the ciphertext and signature from a stored ballot.
func ToWireVote(v model.EncryptedVote) pb.Vote {
	return pb.Vote{
		ID:          v.ID,
		ElectionID:  v.ElectionID,
		PositionID:  v.PositionID,
		CandidateID: v.CandidateID,
		Signed:      v.Signed(),
		CreatedAt:   v.CreatedAt.UTC(),
	}
}

// ToWireCandidate drops the QR slug; clients already know it.
func ToWireCandidate(c model.Candidate) pb.Candidate {
	return pb.Candidate{ID: c.ID, PositionID: c.PositionID, ElectionID: c.ElectionID, Name: c.Name}
}

// ToWireQRCast converts a QR cast outcome.
func ToWireQRCast(r model.QRCastResult) *pb.CastQRResponse {
	out := &pb.CastQRResponse{
		AwaitingConfirmation: r.AwaitingConfirmation,
		Candidate:            ToWireCandidate(r.Candidate),
	}
	if r.Vote != nil {
		v := ToWireVote(*r.Vote)
		out.Vote = &v
	}
	return out
}

// --- QR ---

// ToWireIssuedQR converts a freshly signed QR token.
func ToWireIssuedQR(q model.IssuedQR) *pb.IssueQRResponse {
	return &pb.IssueQRResponse{
		Token:     q.Token,
		TokenHash: q.TokenHash,
		Preview:   q.Preview,
		ExpiresAt: tsPtr(q.ExpiresAt),
	}
}

// ToWireVerification converts a verification outcome. Subject fields are
// only filled for valid tokens.
func ToWireVerification(v model.QRVerification) *pb.VerifyQRResponse {
	out := &pb.VerifyQRResponse{Valid: v.Valid, Reason: v.Reason, Detail: v.Detail}
	if v.Valid {
		out.UserID = v.UserID.String()
		out.CandidateID = v.CandidateID
		out.CandidateName = v.CandidateName
	}
	return out
}

// --- Profiles (client -> server) ---

// FromWireProfile parses an UpdateProfile request into a domain profile.
// Role and status are validated by the service.
func FromWireProfile(in *pb.UpdateProfileRequest) (*model.Profile, error) {
	if in == nil {
		return nil, fmt.Errorf("nil UpdateProfileRequest")
	}
	var id u.UUID
	if err := id.UnmarshalText([]byte(in.UserID)); err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}
	attrs := in.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	return &model.Profile{
		UserID:     id,
		Role:       model.Role(in.Role),
		Status:     model.Status(in.Status),
		Attributes: attrs,
	}, nil
}
