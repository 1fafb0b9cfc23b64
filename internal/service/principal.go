// Package service contains application services for token issuance,
// ballot casting, QR capabilities and profile management.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// Policy is the access-control engine consulted by services.
type Policy interface {
	Evaluate(ctx context.Context, p model.Principal, action, resource string, attrs map[string]string) bool
	Invalidate(ctx context.Context, principal string)
}

// BallotCrypto encrypts and signs ballots.
type BallotCrypto interface {
	EncryptBallot(ctx context.Context, candidateID int64, token uuid.UUID) (string, error)
	SignTally(ctx context.Context, payload string) (string, error)
}

// QRTokens issues and checks signed QR capabilities.
type QRTokens interface {
	Sign(userID uuid.UUID, candidateID int64) (string, error)
	Verify(token string) (model.QRClaims, error)
	VerifyMaxAge(token string, maxAge time.Duration) (model.QRClaims, error)
}

type ctxKey string

const clientIPKey ctxKey = "vote.clientIP"

// WithClientIP stores the caller's address for audit and rate limiting.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the address stored by WithClientIP.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}

// resolvePrincipal loads the principal's profile. A missing profile is not
// an error: the principal is returned without one and policy denies it.
func resolvePrincipal(ctx context.Context, profiles repository.ProfileRepository, id uuid.UUID) (model.Principal, error) {
	p, err := profiles.Get(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Principal{ID: id}, nil
		}
		return model.Principal{}, err
	}
	return model.Principal{ID: id, Profile: p}, nil
}
