// Package crypto encrypts ballots and signs their ciphertexts.
package crypto

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/keyprovider"
	"github.com/gofrs/uuid/v5"
)

// Service performs ballot cryptography against a key provider.
type Service struct {
	keys keyprovider.Provider
}

// NewService constructs a crypto service.
func NewService(keys keyprovider.Provider) *Service {
	return &Service{keys: keys}
}

// BallotPlaintext formats the plaintext bound into every ballot ciphertext.
func BallotPlaintext(candidateID int64, token uuid.UUID) string {
	return strconv.FormatInt(candidateID, 10) + "|" + token.String()
}

// EncryptBallot encrypts "{candidate}|{token}" with the vote public key.
func (s *Service) EncryptBallot(ctx context.Context, candidateID int64, token uuid.UUID) (string, error) {
	return s.Encrypt(ctx, []byte(BallotPlaintext(candidateID, token)))
}

// Encrypt returns base64 RSA-OAEP SHA-256 ciphertext under the vote key.
// A missing vote key is ErrKeysNotConfigured.
func (s *Service) Encrypt(ctx context.Context, plaintext []byte) (string, error) {
	pub, err := s.keys.LoadPublicKey(ctx, s.keys.Refs(keyprovider.PurposeVote).PublicRef)
	if err != nil {
		return "", keysErr(err)
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	if err != nil {
		return "", fmt.Errorf("encrypt ballot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt using the vote private key.
func (s *Service) Decrypt(ctx context.Context, b64 string) ([]byte, error) {
	ct, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not base64", errs.ErrValidation)
	}
	dec, err := s.keys.LoadDecrypter(ctx, s.keys.Refs(keyprovider.PurposeVote).PrivateRef)
	if err != nil {
		return nil, keysErr(err)
	}
	return dec.Decrypt(ctx, ct)
}

// DecryptBallot decrypts and parses a ballot ciphertext.
func (s *Service) DecryptBallot(ctx context.Context, b64 string) (int64, uuid.UUID, error) {
	pt, err := s.Decrypt(ctx, b64)
	if err != nil {
		return 0, uuid.Nil, err
	}
	cand, tok, ok := strings.Cut(string(pt), "|")
	if !ok {
		return 0, uuid.Nil, fmt.Errorf("%w: malformed ballot", errs.ErrValidation)
	}
	id, err := strconv.ParseInt(cand, 10, 64)
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: malformed ballot candidate", errs.ErrValidation)
	}
	token, err := uuid.FromString(tok)
	if err != nil {
		return 0, uuid.Nil, fmt.Errorf("%w: malformed ballot token", errs.ErrValidation)
	}
	return id, token, nil
}

// SignTally returns a base64 RSA-PSS SHA-256 signature of payload under the tally key.
func (s *Service) SignTally(ctx context.Context, payload string) (string, error) {
	signer, err := s.keys.LoadSigner(ctx, s.keys.Refs(keyprovider.PurposeTally).PrivateRef)
	if err != nil {
		return "", keysErr(err)
	}
	sig, err := signer.Sign(ctx, []byte(payload))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyTally checks a tally signature; a mismatch is ErrInvalidSignature.
func (s *Service) VerifyTally(ctx context.Context, payload, signature string) error {
	pub, err := s.keys.LoadPublicKey(ctx, s.keys.Refs(keyprovider.PurposeTally).PublicRef)
	if err != nil {
		return keysErr(err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return errs.ErrInvalidSignature
	}
	digest := sha256.Sum256([]byte(payload))
	if err := rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto}); err != nil {
		return errs.ErrInvalidSignature
	}
	return nil
}

func keysErr(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Errorf("%w: %v", errs.ErrKeysNotConfigured, err)
	}
	return err
}
