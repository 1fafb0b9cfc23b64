package keyprovider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/and161185/campus-vote/internal/errs"
)

// Local keeps keys as PEM files: PKCS#1 private keys, SPKI public keys.
type Local struct {
	cfg LocalConfig
}

// NewLocal constructs a file-backed provider.
func NewLocal(cfg LocalConfig) *Local {
	def := DefaultLocalConfig(cfg.Dir)
	if cfg.VotePrivateFile == "" {
		cfg.VotePrivateFile = def.VotePrivateFile
	}
	if cfg.VotePublicFile == "" {
		cfg.VotePublicFile = def.VotePublicFile
	}
	if cfg.TallyPrivateFile == "" {
		cfg.TallyPrivateFile = def.TallyPrivateFile
	}
	if cfg.TallyPublicFile == "" {
		cfg.TallyPublicFile = def.TallyPublicFile
	}
	return &Local{cfg: cfg}
}

func (l *Local) Name() string { return BackendLocal }

func (l *Local) Refs(p Purpose) KeyPair {
	if p == PurposeTally {
		return KeyPair{
			PrivateRef: KeyRef(filepath.Join(l.cfg.Dir, l.cfg.TallyPrivateFile)),
			PublicRef:  KeyRef(filepath.Join(l.cfg.Dir, l.cfg.TallyPublicFile)),
		}
	}
	return KeyPair{
		PrivateRef: KeyRef(filepath.Join(l.cfg.Dir, l.cfg.VotePrivateFile)),
		PublicRef:  KeyRef(filepath.Join(l.cfg.Dir, l.cfg.VotePublicFile)),
	}
}

// GenerateKeypair writes a fresh keypair, replacing any existing files.
func (l *Local) GenerateKeypair(_ context.Context, p Purpose, bits int) (KeyPair, error) {
	if err := validBits(bits); err != nil {
		return KeyPair{}, err
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("marshal public key: %w", err)
	}

	if err := os.MkdirAll(l.cfg.Dir, 0o700); err != nil {
		return KeyPair{}, fmt.Errorf("create keys dir: %w", err)
	}
	refs := l.Refs(p)
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	if err := os.WriteFile(string(refs.PrivateRef), priv, 0o600); err != nil {
		return KeyPair{}, fmt.Errorf("write private key: %w", err)
	}
	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(string(refs.PublicRef), pub, 0o644); err != nil {
		return KeyPair{}, fmt.Errorf("write public key: %w", err)
	}
	return refs, nil
}

func (l *Local) LoadPublicKey(_ context.Context, ref KeyRef) (*rsa.PublicKey, error) {
	block, err := readPEM(ref)
	if err != nil {
		return nil, err
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse public key: %w", err)
		}
		pub, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not an RSA key", errs.ErrConfiguration, ref)
		}
		return pub, nil
	}
}

func (l *Local) LoadSigner(_ context.Context, ref KeyRef) (Signer, error) {
	key, err := loadPrivate(ref)
	if err != nil {
		return nil, err
	}
	return localKey{key: key}, nil
}

func (l *Local) LoadDecrypter(_ context.Context, ref KeyRef) (Decrypter, error) {
	key, err := loadPrivate(ref)
	if err != nil {
		return nil, err
	}
	return localKey{key: key}, nil
}

type localKey struct{ key *rsa.PrivateKey }

func (k localKey) Sign(_ context.Context, msg []byte) ([]byte, error) {
	digest := sha256.Sum256(msg)
	return rsa.SignPSS(rand.Reader, k.key, crypto.SHA256, digest[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto})
}

func (k localKey) Decrypt(_ context.Context, ct []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, k.key, ct, nil)
}

func loadPrivate(ref KeyRef) (*rsa.PrivateKey, error) {
	block, err := readPEM(ref)
	if err != nil {
		return nil, err
	}
	if block.Type == "RSA PRIVATE KEY" {
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an RSA key", errs.ErrConfiguration, ref)
	}
	return key, nil
}

func readPEM(ref KeyRef) (*pem.Block, error) {
	b, err := os.ReadFile(string(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: key %s", errs.ErrNotFound, ref)
		}
		return nil, err
	}
	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("%w: %s is not PEM", errs.ErrConfiguration, ref)
	}
	return block, nil
}
