// Package qrsign issues and verifies signed QR capability tokens.
//
// A token is an HS256 JWT carrying the voter, the candidate and the issue
// time. The HMAC key is derived from the server secret with HKDF so the QR
// channel never shares a key with bearer authentication.
package qrsign

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

// Salt namespaces the derived key.
const Salt = "voting-signed-qr"

// DefaultMaxAge is the default token lifetime.
const DefaultMaxAge = 300 * time.Second

type claims struct {
	User      string `json:"u"`
	Candidate int64  `json:"c"`
	TS        int64  `json:"ts"`
	jwt.RegisteredClaims
}

// Signer creates and checks QR tokens.
type Signer struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner derives the signing key from secret. maxAge <= 0 uses DefaultMaxAge.
func NewSigner(secret []byte, maxAge time.Duration) (*Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: qr secret is empty", errs.ErrConfiguration)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(Salt), []byte("qr-token")), key); err != nil {
		return nil, fmt.Errorf("derive qr key: %w", err)
	}
	return &Signer{key: key, maxAge: maxAge, now: time.Now}, nil
}

// Sign issues a token for (userID, candidateID) stamped with the current time.
func (s *Signer) Sign(userID uuid.UUID, candidateID int64) (string, error) {
	now := s.now()
	c := claims{
		User:      userID.String(),
		Candidate: candidateID,
		TS:        now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

// Verify checks the signature and the default max age.
func (s *Signer) Verify(token string) (model.QRClaims, error) {
	return s.VerifyMaxAge(token, s.maxAge)
}

// VerifyMaxAge checks the signature and, when maxAge > 0, the token age.
// A stale token is ErrExpired; anything else invalid is ErrInvalidSignature.
func (s *Signer) VerifyMaxAge(token string, maxAge time.Duration) (model.QRClaims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		return model.QRClaims{}, fmt.Errorf("%w: %v", errs.ErrInvalidSignature, err)
	}

	userID, err := uuid.FromString(c.User)
	if err != nil || c.Candidate <= 0 {
		return model.QRClaims{}, fmt.Errorf("%w: malformed payload", errs.ErrInvalidSignature)
	}
	issued := time.Unix(c.TS, 0)
	if maxAge > 0 && s.now().Sub(issued) > maxAge {
		return model.QRClaims{}, errs.ErrExpired
	}
	return model.QRClaims{UserID: userID, CandidateID: c.Candidate, IssuedAt: issued}, nil
}

// Hash returns the hex SHA-256 of the exact token string.
func Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Preview returns a short non-secret prefix for display and logs.
func Preview(token string) string {
	const n = 12
	if len(token) <= n {
		return token
	}
	return token[:n] + "..."
}

// IsExpired reports whether err is a stale-token failure.
func IsExpired(err error) bool { return errors.Is(err, errs.ErrExpired) }
