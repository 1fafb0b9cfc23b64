package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	pb "github.com/and161185/campus-vote/internal/api/votingv1"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

const testUser = "6f1cbe8e-b2e7-4a3b-9f6e-2a2c0f2f9c11"

func Test_store_SaveLoadClear(t *testing.T) {
	t.Parallel()

	st := store{dir: filepath.Join(t.TempDir(), "campusvote")}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := st.load(now)
	require.ErrorIs(t, err, errNoSession)

	in := session{AccessToken: "tok", UserID: testUser, ExpiresAt: now.Add(time.Minute)}
	require.NoError(t, st.save(in))

	fi, err := os.Stat(st.path())
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	got, err := st.load(now)
	require.NoError(t, err)
	require.Equal(t, "tok", got.AccessToken)
	require.Equal(t, testUser, got.UserID)
	require.True(t, got.ExpiresAt.Equal(in.ExpiresAt))

	_, err = st.load(now.Add(2 * time.Minute))
	require.ErrorIs(t, err, errSessionExpired)

	require.NoError(t, st.clear())
	require.NoError(t, st.clear(), "clearing twice is fine")
	_, err = st.load(now)
	require.ErrorIs(t, err, errNoSession)
}

func Test_store_CorruptFile(t *testing.T) {
	t.Parallel()

	st := store{dir: t.TempDir()}
	require.NoError(t, os.WriteFile(st.path(), []byte("{"), 0o600))
	_, err := st.load(time.Now())
	require.ErrorContains(t, err, "session file")
}

func Test_defaultStore_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "campusvote", "session.json"), defaultStore().path())
}

func Test_mintToken_And_sessionFromToken(t *testing.T) {
	t.Parallel()

	key := []byte("k")
	tok, exp, err := mintToken(testUser, key, time.Hour)
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	_, err = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return key, nil })
	require.NoError(t, err, "minted token must verify")

	sess := sessionFromToken(tok)
	require.Equal(t, testUser, sess.UserID)
	require.Equal(t, exp.Unix(), sess.ExpiresAt.Unix())

	sess = sessionFromToken("garbage")
	require.Equal(t, "garbage", sess.AccessToken)
	require.Empty(t, sess.UserID)
	require.True(t, sess.ExpiresAt.After(time.Now()))
}

func Test_readAll_File_And_Stdin(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(tmp, []byte("hello"), 0o600))
	b, err := readAll(tmp)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	r, w, err := os.Pipe()
	require.NoError(t, err)
	old := os.Stdin
	os.Stdin = r
	defer func() { os.Stdin = old }()
	go func() { _, _ = io.WriteString(w, "from-stdin"); _ = w.Close() }()
	b, err = readAll("-")
	require.NoError(t, err)
	require.Equal(t, "from-stdin", string(b))
}

func Test_bearer_Metadata(t *testing.T) {
	t.Parallel()

	b := bearer{token: "T"}
	md, err := b.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer T", md["authorization"])
	require.True(t, b.RequireTransportSecurity())
	require.False(t, bearer{token: "T", plaintext: true}.RequireTransportSecurity())
}

func Test_transportCreds(t *testing.T) {
	t.Parallel()

	for _, ep := range []endpoint{{plaintext: true}, {skipVerify: true}, {}} {
		creds, err := ep.transportCreds()
		require.NoError(t, err)
		require.NotNil(t, creds)
	}

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not pem"), 0o600))
	_, err := endpoint{caPath: bad}.transportCreds()
	require.ErrorContains(t, err, "no certificates")

	_, err = endpoint{caPath: filepath.Join(t.TempDir(), "missing.pem")}.transportCreds()
	require.Error(t, err)
}

func Test_connect_Plaintext(t *testing.T) {
	t.Parallel()

	cli, done, err := endpoint{addr: "localhost:1", plaintext: true}.connect("tok")
	require.NoError(t, err)
	require.NotNil(t, cli)
	done()
}

// fakeVoting answers the calls the tests make; anything else panics.
type fakeVoting struct {
	pb.VotingClient
	castQR   *pb.CastQRResponse
	verified []string
	redeemed []string
	elects   []int64
}

func (f *fakeVoting) IssueToken(_ context.Context, in *pb.IssueTokenRequest, _ ...grpc.CallOption) (*pb.IssueTokenResponse, error) {
	f.elects = append(f.elects, in.ElectionID)
	return &pb.IssueTokenResponse{Token: "vt", ElectionID: in.ElectionID}, nil
}

func (f *fakeVoting) CastQR(context.Context, *pb.CastQRRequest, ...grpc.CallOption) (*pb.CastQRResponse, error) {
	return f.castQR, nil
}

func (f *fakeVoting) VerifyQR(_ context.Context, in *pb.VerifyQRRequest, _ ...grpc.CallOption) (*pb.VerifyQRResponse, error) {
	f.verified = append(f.verified, in.Token)
	return &pb.VerifyQRResponse{Valid: true}, nil
}

func (f *fakeVoting) RedeemQR(_ context.Context, in *pb.VerifyQRRequest, _ ...grpc.CallOption) (*pb.VerifyQRResponse, error) {
	f.redeemed = append(f.redeemed, in.Token)
	return &pb.VerifyQRResponse{Valid: true}, nil
}

type harness struct {
	app    *app
	fake   *fakeVoting
	tokens []string
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{fake: &fakeVoting{}, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	h.app = &app{
		store: store{dir: t.TempDir()},
		connect: func(token string) (pb.VotingClient, func(), error) {
			h.tokens = append(h.tokens, token)
			return h.fake, func() {}, nil
		},
		out:    h.out,
		errOut: h.errOut,
		now:    time.Now,
	}
	return h
}

func Test_run_Version(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.app.run(context.Background(), "version", nil))
	require.Equal(t, "vote-cli dev (unknown)\n", h.out.String())
}

func Test_run_UsageErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cmd  string
		args []string
	}{
		{"nope", nil},
		{"login", nil},
		{"issue-token", nil},
		{"cast", []string{"-token", "x"}},
		{"qr-verify", nil},
		{"qr-cast", []string{"-bogus"}},
		{"profile-set", []string{"-user", "not-a-uuid"}},
		{"tally", []string{"-election", "1"}},
		{"tally", []string{"-dsn", "postgres://x"}},
		{"tally", []string{"-bogus"}},
	}
	for _, tc := range cases {
		h := newHarness(t)
		err := h.app.run(context.Background(), tc.cmd, tc.args)
		require.ErrorIs(t, err, errUsage, tc.cmd)
		require.Empty(t, h.tokens, "%s must not dial", tc.cmd)
	}
}

func Test_run_NeedsLogin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.ErrorIs(t, h.app.run(context.Background(), "issue-token", []string{"-election", "1"}), errNoSession)
	require.ErrorIs(t, h.app.run(context.Background(), "whoami", nil), errNoSession)
}

func Test_run_LoginIssueTokenLogout(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.app.run(ctx, "login", []string{"-sub", testUser, "-jwt-key", "k", "-ttl", "5m"}))

	h.out.Reset()
	require.NoError(t, h.app.run(ctx, "whoami", nil))
	var who map[string]any
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &who))
	require.Equal(t, testUser, who["user_id"])

	h.out.Reset()
	require.NoError(t, h.app.run(ctx, "issue-token", []string{"-election", "7"}))
	require.Equal(t, []int64{7}, h.fake.elects)
	require.Len(t, h.tokens, 1)
	require.NotEmpty(t, h.tokens[0], "authed call carries the saved token")

	var resp pb.IssueTokenResponse
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &resp))
	require.Equal(t, "vt", resp.Token)

	require.NoError(t, h.app.run(ctx, "logout", nil))
	require.ErrorIs(t, h.app.run(ctx, "whoami", nil), errNoSession)
}

func Test_run_LoginWithToken(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	tok, _, err := mintToken(testUser, []byte("k"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, h.app.run(context.Background(), "login", []string{"-token", tok}))

	sess, err := h.app.store.load(time.Now())
	require.NoError(t, err)
	require.Equal(t, tok, sess.AccessToken)
	require.Equal(t, testUser, sess.UserID)
}

func Test_run_QRVerifyRedeem_Anonymous(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.app.run(ctx, "qr-verify", []string{"-token", "a.b"}))
	require.NoError(t, h.app.run(ctx, "qr-redeem", []string{"-token", "c.d"}))

	require.Equal(t, []string{"a.b"}, h.fake.verified)
	require.Equal(t, []string{"c.d"}, h.fake.redeemed)
	require.Equal(t, []string{"", ""}, h.tokens)
}

func Test_run_QRCast_AwaitingConfirmation(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.app.run(ctx, "login", []string{"-sub", testUser, "-jwt-key", "k"}))
	h.fake.castQR = &pb.CastQRResponse{AwaitingConfirmation: true, Candidate: pb.Candidate{ID: 3, Name: "Ada"}}

	require.NoError(t, h.app.run(ctx, "qr-cast", []string{"-slug", "0b0e9c1e-6a7e-4c8e-9b1d-0f1c2d3e4f50"}))
	require.Contains(t, h.errOut.String(), `"Ada"`)
	require.Contains(t, h.out.String(), `"awaiting_confirmation": true`)
}
