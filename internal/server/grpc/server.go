// Package grpcserver exposes the campus voting gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"github.com/and161185/campus-vote/internal/convert"
	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// Services groups the domain services the handlers call.
type Services struct {
	Tokens   service.TokenService
	Cast     service.CastService
	QR       service.QRService
	Profiles service.ProfileService
}

// Server wires services into gRPC handlers.
type Server struct {
	pb.UnimplementedVotingServer
	svc  Services
	auth *Authenticator
	log  *zap.Logger
}

// New constructs a gRPC server with injected services. signKey verifies
// bearer tokens.
func New(svc Services, signKey []byte, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, auth: NewAuthenticator(signKey), log: log}
}

func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// statusFor maps service errors onto gRPC codes without revealing which
// check failed.
func (s *Server) statusFor(op string, err error) error {
	switch {
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "not eligible")
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrConflict):
		return status.Error(codes.FailedPrecondition, "token already used")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, errs.ErrKeysNotConfigured), errors.Is(err, errs.ErrConfiguration):
		s.log.Error("voting keys not configured", zap.String("op", op), zap.Error(err))
		return status.Error(codes.FailedPrecondition, "voting keys not configured")
	default:
		s.log.Error("rpc failed", zap.String("op", op), zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func caller(ctx context.Context) (uuid.UUID, error) {
	c, ok := CallerFromCtx(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "no auth")
	}
	return c.UserID, nil
}

// --- Tokens / casting ---

// IssueToken returns the caller's single-use token for an election.
func (s *Server) IssueToken(ctx context.Context, req *pb.IssueTokenRequest) (*pb.IssueTokenResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ElectionID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "election_id required")
	}
	tok, err := s.svc.Tokens.Issue(ctx, userID, req.ElectionID)
	if err != nil {
		return nil, s.statusFor("issue token", err)
	}
	return convert.ToWireToken(*tok), nil
}

// CastVote spends a vote token on one candidate.
func (s *Server) CastVote(ctx context.Context, req *pb.CastVoteRequest) (*pb.CastVoteResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	token, err := uuid.FromString(req.Token)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad token")
	}
	if req.PositionID <= 0 || req.CandidateID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "position_id and candidate_id required")
	}
	v, err := s.svc.Cast.CastWithToken(ctx, userID, token, req.PositionID, req.CandidateID)
	if err != nil {
		return nil, s.statusFor("cast", err)
	}
	return &pb.CastVoteResponse{Vote: convert.ToWireVote(*v)}, nil
}

// CastQR casts for the candidate behind a scanned QR slug.
func (s *Server) CastQR(ctx context.Context, req *pb.CastQRRequest) (*pb.CastQRResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	slug, err := uuid.FromString(req.Slug)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad slug")
	}
	res, err := s.svc.Cast.CastViaQR(ctx, userID, slug, req.SignedToken, req.Confirm)
	if err != nil {
		return nil, s.statusFor("qr cast", err)
	}
	return convert.ToWireQRCast(*res), nil
}

// --- QR ---

// IssueQR signs a token binding the caller to a candidate.
func (s *Server) IssueQR(ctx context.Context, req *pb.IssueQRRequest) (*pb.IssueQRResponse, error) {
	userID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	q, err := s.svc.QR.Issue(ctx, userID, req.CandidateID)
	if err != nil {
		return nil, s.statusFor("issue qr", err)
	}
	return convert.ToWireIssuedQR(*q), nil
}

// IssueQRLink lets an administrator issue a token for another user.
func (s *Server) IssueQRLink(ctx context.Context, req *pb.IssueQRLinkRequest) (*pb.IssueQRResponse, error) {
	adminID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	target, err := uuid.FromString(req.UserID)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "bad user_id")
	}
	if req.TTLMinutes < 0 {
		return nil, status.Error(codes.InvalidArgument, "ttl_minutes must not be negative")
	}
	q, err := s.svc.QR.IssueLink(ctx, adminID, target, req.CandidateID, req.TTLMinutes)
	if err != nil {
		return nil, s.statusFor("issue qr link", err)
	}
	return convert.ToWireIssuedQR(*q), nil
}

// VerifyQR checks a token without consuming it. No authentication.
func (s *Server) VerifyQR(ctx context.Context, req *pb.VerifyQRRequest) (*pb.VerifyQRResponse, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "empty token")
	}
	res, err := s.svc.QR.Verify(ctx, req.Token)
	if err != nil {
		return nil, s.statusFor("verify qr", err)
	}
	return convert.ToWireVerification(*res), nil
}

// RedeemQR verifies a token and records its hash.
func (s *Server) RedeemQR(ctx context.Context, req *pb.VerifyQRRequest) (*pb.VerifyQRResponse, error) {
	if req.Token == "" {
		return nil, status.Error(codes.InvalidArgument, "empty token")
	}
	res, err := s.svc.QR.Redeem(ctx, req.Token)
	if err != nil {
		return nil, s.statusFor("redeem qr", err)
	}
	return convert.ToWireVerification(*res), nil
}

// --- Profiles ---

func (s *Server) UpdateProfile(ctx context.Context, req *pb.UpdateProfileRequest) (*pb.UpdateProfileResponse, error) {
	adminID, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	p, err := convert.FromWireProfile(req)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad profile: %v", err)
	}
	if err := s.svc.Profiles.Update(ctx, adminID, p); err != nil {
		return nil, s.statusFor("update profile", err)
	}
	return &pb.UpdateProfileResponse{}, nil
}
