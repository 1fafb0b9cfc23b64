// Package keyprovider stores and uses the election's RSA keys.
//
// Two purposes exist: the vote key encrypts ballots (RSA-OAEP SHA-256) and
// the tally key signs ciphertexts (RSA-PSS SHA-256). Private material can
// live in PEM files or stay inside AWS KMS.
package keyprovider

import (
	"context"
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/and161185/campus-vote/internal/errs"
)

// Purpose selects which keypair an operation uses.
type Purpose string

const (
	PurposeVote  Purpose = "vote"
	PurposeTally Purpose = "tally"
)

// ParsePurpose validates a purpose name.
func ParsePurpose(s string) (Purpose, error) {
	switch Purpose(strings.ToLower(s)) {
	case PurposeVote:
		return PurposeVote, nil
	case PurposeTally:
		return PurposeTally, nil
	}
	return "", fmt.Errorf("%w: unknown key purpose %q", errs.ErrValidation, s)
}

// KeyRef locates a key: a file path for the local backend, kms://<id> for KMS.
type KeyRef string

// KeyPair holds references to both halves of a keypair.
type KeyPair struct {
	PrivateRef KeyRef
	PublicRef  KeyRef
}

// Signer produces RSA-PSS SHA-256 signatures.
type Signer interface {
	Sign(ctx context.Context, msg []byte) ([]byte, error)
}

// Decrypter reverses RSA-OAEP SHA-256 encryption.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Provider is a key storage backend.
type Provider interface {
	// Name returns the backend name ("local" or "kms").
	Name() string
	// Refs returns the configured references for the purpose.
	Refs(p Purpose) KeyPair
	// GenerateKeypair creates a new RSA keypair of the given size.
	GenerateKeypair(ctx context.Context, p Purpose, bits int) (KeyPair, error)
	// LoadPublicKey returns the public half; a missing key is ErrNotFound.
	LoadPublicKey(ctx context.Context, ref KeyRef) (*rsa.PublicKey, error)
	// LoadSigner returns a signer bound to the private key.
	LoadSigner(ctx context.Context, ref KeyRef) (Signer, error)
	// LoadDecrypter returns a decrypter bound to the private key.
	LoadDecrypter(ctx context.Context, ref KeyRef) (Decrypter, error)
}

// Backends.
const (
	BackendLocal = "local"
	BackendKMS   = "kms"
)

// New builds the provider selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendLocal:
		return NewLocal(cfg.Local), nil
	case BackendKMS:
		return NewKMS(ctx, cfg.KMS)
	}
	return nil, fmt.Errorf("%w: unknown key backend %q", errs.ErrConfiguration, cfg.Backend)
}

func validBits(bits int) error {
	switch bits {
	case 2048, 3072, 4096:
		return nil
	}
	return fmt.Errorf("%w: unsupported key size %d", errs.ErrValidation, bits)
}
