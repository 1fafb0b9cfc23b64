package grpcserver

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

var authNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedAuthenticator(key []byte) *Authenticator {
	a := NewAuthenticator(key)
	a.now = func() time.Time { return authNow }
	return a
}

func signClaims(t *testing.T, m jwt.SigningMethod, key any, c jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(m, c).SignedString(key)
	require.NoError(t, err)
	return s
}

func claimsFor(sub string, iat time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
}

func TestAuthenticate_Valid(t *testing.T) {
	t.Parallel()
	key := []byte("k")
	user := uuid.Must(uuid.NewV4())
	tok := signClaims(t, jwt.SigningMethodHS256, key, claimsFor(user.String(), authNow, time.Hour))

	c, err := fixedAuthenticator(key).Authenticate(ctxAuth(tok))
	require.NoError(t, err)
	require.Equal(t, user, c.UserID)
	require.True(t, c.ExpiresAt.Equal(authNow.Add(time.Hour)))
}

func TestAuthenticate_Rejects(t *testing.T) {
	t.Parallel()
	key := []byte("k")
	sub := uuid.Must(uuid.NewV4()).String()

	noExp := claimsFor(sub, authNow, time.Hour)
	noExp.ExpiresAt = nil

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{"no metadata", context.Background()},
		{"no bearer", metadata.NewIncomingContext(context.Background(),
			metadata.Pairs("authorization", "Basic a", "authorization", "Digest b"))},
		{"garbage", ctxAuth("not-a-jwt")},
		{"wrong key", ctxAuth(signClaims(t, jwt.SigningMethodHS256, []byte("other"), claimsFor(sub, authNow, time.Hour)))},
		{"wrong alg", ctxAuth(signClaims(t, jwt.SigningMethodHS512, key, claimsFor(sub, authNow, time.Hour)))},
		{"alg none", ctxAuth(signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, claimsFor(sub, authNow, time.Hour)))},
		{"expired", ctxAuth(signClaims(t, jwt.SigningMethodHS256, key, claimsFor(sub, authNow.Add(-2*time.Hour), time.Hour)))},
		{"not yet valid", ctxAuth(signClaims(t, jwt.SigningMethodHS256, key, claimsFor(sub, authNow.Add(10*time.Minute), time.Hour)))},
		{"no expiry", ctxAuth(signClaims(t, jwt.SigningMethodHS256, key, noExp))},
		{"bad subject", ctxAuth(signClaims(t, jwt.SigningMethodHS256, key, claimsFor("alice", authNow, time.Hour)))},
		{"nil subject", ctxAuth(signClaims(t, jwt.SigningMethodHS256, key, claimsFor(uuid.Nil.String(), authNow, time.Hour)))},
	}
	a := fixedAuthenticator(key)
	for _, tt := range tests {
		_, err := a.Authenticate(tt.ctx)
		require.ErrorIs(t, err, errs.ErrUnauthorized, tt.name)
	}
}

func TestAuthenticate_Leeway(t *testing.T) {
	t.Parallel()
	key := []byte("k")
	sub := uuid.Must(uuid.NewV4()).String()
	a := fixedAuthenticator(key)

	// expired 10s ago, issued 5s in the future: both inside the leeway
	stale := signClaims(t, jwt.SigningMethodHS256, key, claimsFor(sub, authNow.Add(-time.Minute-10*time.Second), time.Minute))
	_, err := a.Authenticate(ctxAuth(stale))
	require.NoError(t, err)

	skewed := signClaims(t, jwt.SigningMethodHS256, key, claimsFor(sub, authNow.Add(5*time.Second), time.Minute))
	_, err = a.Authenticate(ctxAuth(skewed))
	require.NoError(t, err)
}

func TestBearer(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   []string
		want string
		ok   bool
	}{
		{[]string{"Bearer abc"}, "abc", true},
		{[]string{"Basic foo", "  bearer   tok.part.sig   "}, "tok.part.sig", true},
		{[]string{"BEARER x"}, "x", true},
		{[]string{"Bearer    "}, "", false},
		{[]string{"Bearerabc"}, "", false},
		{nil, "", false},
	}
	for _, tt := range tests {
		got, ok := bearer(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Fatalf("bearer(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCallerFromCtx(t *testing.T) {
	t.Parallel()

	if _, ok := CallerFromCtx(context.Background()); ok {
		t.Fatalf("expected no caller in empty ctx")
	}
	if _, ok := CallerFromCtx(WithCaller(context.Background(), Caller{})); ok {
		t.Fatalf("expected nil user to be rejected")
	}

	want := Caller{UserID: uuid.Must(uuid.NewV4()), ExpiresAt: authNow}
	got, ok := CallerFromCtx(WithCaller(context.Background(), want))
	if !ok || got != want {
		t.Fatalf("caller mismatch: got %+v, want %+v", got, want)
	}
}
