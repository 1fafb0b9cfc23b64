package grpcserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/metadata"
)

// DefaultLeeway tolerates clock skew between the identity layer and this server.
const DefaultLeeway = 30 * time.Second

// Caller is the principal a request was authenticated as.
type Caller struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type callerKey struct{}

// WithCaller stores the authenticated caller in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromCtx returns the caller stored by WithCaller.
func CallerFromCtx(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != uuid.Nil
}

// Authenticator verifies HS256 bearer tokens minted by the identity layer.
// The subject must be the principal's UUID and an expiry is required.
type Authenticator struct {
	key    []byte
	leeway time.Duration
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator for key.
func NewAuthenticator(key []byte) *Authenticator {
	return &Authenticator{key: key, leeway: DefaultLeeway, now: time.Now}
}

// Authenticate reads "authorization: Bearer <jwt>" from incoming metadata.
// Every failure wraps errs.ErrUnauthorized.
func (a *Authenticator) Authenticate(ctx context.Context) (Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return Caller{}, fmt.Errorf("%w: no metadata", errs.ErrUnauthorized)
	}
	raw, ok := bearer(md.Get("authorization"))
	if !ok {
		return Caller{}, fmt.Errorf("%w: no bearer token", errs.ErrUnauthorized)
	}
	return a.verify(raw)
}

func (a *Authenticator) verify(raw string) (Caller, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return Caller{}, fmt.Errorf("%w: bad subject", errs.ErrUnauthorized)
	}
	return Caller{UserID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// bearer picks the first non-empty bearer credential; the scheme is case-insensitive.
func bearer(values []string) (string, bool) {
	const scheme = "bearer "
	for _, v := range values {
		v = strings.TrimSpace(v)
		if len(v) < len(scheme) || !strings.EqualFold(v[:len(scheme)], scheme) {
			continue
		}
		if tok := strings.TrimSpace(v[len(scheme):]); tok != "" {
			return tok, true
		}
	}
	return "", false
}
