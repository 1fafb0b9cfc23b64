package votingv1

import (
	"context"

	"google.golang.org/grpc"
)

// VotingClient is the client API for the Voting service.
type VotingClient interface {
	IssueToken(ctx context.Context, in *IssueTokenRequest, opts ...grpc.CallOption) (*IssueTokenResponse, error)
	CastVote(ctx context.Context, in *CastVoteRequest, opts ...grpc.CallOption) (*CastVoteResponse, error)
	CastQR(ctx context.Context, in *CastQRRequest, opts ...grpc.CallOption) (*CastQRResponse, error)
	IssueQR(ctx context.Context, in *IssueQRRequest, opts ...grpc.CallOption) (*IssueQRResponse, error)
	IssueQRLink(ctx context.Context, in *IssueQRLinkRequest, opts ...grpc.CallOption) (*IssueQRResponse, error)
	VerifyQR(ctx context.Context, in *VerifyQRRequest, opts ...grpc.CallOption) (*VerifyQRResponse, error)
	RedeemQR(ctx context.Context, in *VerifyQRRequest, opts ...grpc.CallOption) (*VerifyQRResponse, error)
	UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UpdateProfileResponse, error)
}

type votingClient struct {
	cc grpc.ClientConnInterface
}

// NewVotingClient returns a client that always sends the JSON content-subtype.
func NewVotingClient(cc grpc.ClientConnInterface) VotingClient {
	return &votingClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *votingClient) IssueToken(ctx context.Context, in *IssueTokenRequest, opts ...grpc.CallOption) (*IssueTokenResponse, error) {
	return invoke[IssueTokenResponse](ctx, c.cc, IssueTokenMethod, in, opts)
}

func (c *votingClient) CastVote(ctx context.Context, in *CastVoteRequest, opts ...grpc.CallOption) (*CastVoteResponse, error) {
	return invoke[CastVoteResponse](ctx, c.cc, CastVoteMethod, in, opts)
}

func (c *votingClient) CastQR(ctx context.Context, in *CastQRRequest, opts ...grpc.CallOption) (*CastQRResponse, error) {
	return invoke[CastQRResponse](ctx, c.cc, CastQRMethod, in, opts)
}

func (c *votingClient) IssueQR(ctx context.Context, in *IssueQRRequest, opts ...grpc.CallOption) (*IssueQRResponse, error) {
	return invoke[IssueQRResponse](ctx, c.cc, IssueQRMethod, in, opts)
}

func (c *votingClient) IssueQRLink(ctx context.Context, in *IssueQRLinkRequest, opts ...grpc.CallOption) (*IssueQRResponse, error) {
	return invoke[IssueQRResponse](ctx, c.cc, IssueQRLinkMethod, in, opts)
}

func (c *votingClient) VerifyQR(ctx context.Context, in *VerifyQRRequest, opts ...grpc.CallOption) (*VerifyQRResponse, error) {
	return invoke[VerifyQRResponse](ctx, c.cc, VerifyQRMethod, in, opts)
}

func (c *votingClient) RedeemQR(ctx context.Context, in *VerifyQRRequest, opts ...grpc.CallOption) (*VerifyQRResponse, error) {
	return invoke[VerifyQRResponse](ctx, c.cc, RedeemQRMethod, in, opts)
}

func (c *votingClient) UpdateProfile(ctx context.Context, in *UpdateProfileRequest, opts ...grpc.CallOption) (*UpdateProfileResponse, error) {
	return invoke[UpdateProfileResponse](ctx, c.cc, UpdateProfileMethod, in, opts)
}
