package service

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/and161185/campus-vote/internal/qrsign"
	"github.com/and161185/campus-vote/internal/repository"
)

// checkCapability runs the signature, link and replay checks on a signed QR
// token. A non-nil rejection means the token must not be honoured; err is
// left for storage failures.
//
// Standalone verification and QR casting both go through here, so a token
// is either usable on both paths or on neither.
func checkCapability(ctx context.Context, tokens QRTokens, qr repository.QRRepository, now time.Time, token string) (model.QRClaims, *model.QRVerification, error) {
	hash := qrsign.Hash(token)

	link, err := qr.GetLinkByHash(ctx, hash)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return model.QRClaims{}, nil, err
	}

	var claims model.QRClaims
	if link != nil && link.ExpiresAt != nil {
		// The link's own TTL replaces the default max age.
		claims, err = tokens.VerifyMaxAge(token, 0)
	} else {
		claims, err = tokens.Verify(token)
	}
	if err != nil {
		detail := DetailInvalidSignature
		if qrsign.IsExpired(err) {
			detail = DetailExpired
		}
		return model.QRClaims{}, &model.QRVerification{Reason: ReasonInvalidOrExpired, Detail: detail}, nil
	}

	if link != nil {
		if link.Used {
			return model.QRClaims{}, &model.QRVerification{Reason: ReasonAlreadyUsed}, nil
		}
		if link.Expired(now) {
			return model.QRClaims{}, &model.QRVerification{Reason: ReasonInvalidOrExpired, Detail: DetailExpired}, nil
		}
	}

	used, err := qr.IsUsed(ctx, hash)
	if err != nil {
		return model.QRClaims{}, nil, err
	}
	if used {
		return model.QRClaims{}, &model.QRVerification{Reason: ReasonAlreadyUsed}, nil
	}
	return claims, nil, nil
}
