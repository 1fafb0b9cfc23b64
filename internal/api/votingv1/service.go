package votingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "campusvote.v1.Voting"

// Full method names.
const (
	IssueTokenMethod    = "/" + ServiceName + "/IssueToken"
	CastVoteMethod      = "/" + ServiceName + "/CastVote"
	CastQRMethod        = "/" + ServiceName + "/CastQR"
	IssueQRMethod       = "/" + ServiceName + "/IssueQR"
	IssueQRLinkMethod   = "/" + ServiceName + "/IssueQRLink"
	VerifyQRMethod      = "/" + ServiceName + "/VerifyQR"
	RedeemQRMethod      = "/" + ServiceName + "/RedeemQR"
	UpdateProfileMethod = "/" + ServiceName + "/UpdateProfile"
)

// VotingServer is the server API for the Voting service.
type VotingServer interface {
	IssueToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error)
	CastVote(context.Context, *CastVoteRequest) (*CastVoteResponse, error)
	CastQR(context.Context, *CastQRRequest) (*CastQRResponse, error)
	IssueQR(context.Context, *IssueQRRequest) (*IssueQRResponse, error)
	IssueQRLink(context.Context, *IssueQRLinkRequest) (*IssueQRResponse, error)
	VerifyQR(context.Context, *VerifyQRRequest) (*VerifyQRResponse, error)
	RedeemQR(context.Context, *VerifyQRRequest) (*VerifyQRResponse, error)
	UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error)
}

// UnimplementedVotingServer can be embedded to keep implementations
// forward compatible.
type UnimplementedVotingServer struct{}

func (UnimplementedVotingServer) IssueToken(context.Context, *IssueTokenRequest) (*IssueTokenResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueToken not implemented")
}
func (UnimplementedVotingServer) CastVote(context.Context, *CastVoteRequest) (*CastVoteResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CastVote not implemented")
}
func (UnimplementedVotingServer) CastQR(context.Context, *CastQRRequest) (*CastQRResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CastQR not implemented")
}
func (UnimplementedVotingServer) IssueQR(context.Context, *IssueQRRequest) (*IssueQRResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueQR not implemented")
}
func (UnimplementedVotingServer) IssueQRLink(context.Context, *IssueQRLinkRequest) (*IssueQRResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method IssueQRLink not implemented")
}
func (UnimplementedVotingServer) VerifyQR(context.Context, *VerifyQRRequest) (*VerifyQRResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method VerifyQR not implemented")
}
func (UnimplementedVotingServer) RedeemQR(context.Context, *VerifyQRRequest) (*VerifyQRResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RedeemQR not implemented")
}
func (UnimplementedVotingServer) UpdateProfile(context.Context, *UpdateProfileRequest) (*UpdateProfileResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateProfile not implemented")
}

// unary builds a method descriptor that decodes Req and dispatches through
// the server's interceptor chain.
func unary[Req, Resp any](name string, call func(VotingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if ic == nil {
				return call(srv.(VotingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(VotingServer), ctx, req.(*Req))
			})
		},
	}
}

// ServiceDesc describes the Voting service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VotingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IssueToken", VotingServer.IssueToken),
		unary("CastVote", VotingServer.CastVote),
		unary("CastQR", VotingServer.CastQR),
		unary("IssueQR", VotingServer.IssueQR),
		unary("IssueQRLink", VotingServer.IssueQRLink),
		unary("VerifyQR", VotingServer.VerifyQR),
		unary("RedeemQR", VotingServer.RedeemQR),
		unary("UpdateProfile", VotingServer.UpdateProfile),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "campusvote/v1/voting",
}

// RegisterVotingServer registers srv on s.
func RegisterVotingServer(s grpc.ServiceRegistrar, srv VotingServer) {
	s.RegisterService(&ServiceDesc, srv)
}
