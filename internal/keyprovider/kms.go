package keyprovider

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
)

const kmsScheme = "kms://"

const defaultKMSTimeout = 3 * time.Second

// kmsAPI is the subset of *kms.Client the provider calls.
type kmsAPI interface {
	CreateKey(ctx context.Context, in *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	DescribeKey(ctx context.Context, in *kms.DescribeKeyInput, optFns ...func(*kms.Options)) (*kms.DescribeKeyOutput, error)
	GetPublicKey(ctx context.Context, in *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, in *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Replaced in tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

// KMS keeps private keys inside AWS KMS. Ballot encryption uses the
// downloaded public key; only signing and decryption go remote.
type KMS struct {
	client  kmsAPI
	cfg     KMSConfig
	mu      sync.Mutex
	pubKeys map[string]*rsa.PublicKey
}

// NewKMS builds a KMS client and validates credentials and configured keys.
// Any failure is reported as ErrConfiguration.
func NewKMS(ctx context.Context, cfg KMSConfig) (*KMS, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("%w: kms region is required", errs.ErrConfiguration)
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %v", errs.ErrConfiguration, err)
	}
	if awsCfg.Credentials == nil {
		return nil, fmt.Errorf("%w: no aws credentials", errs.ErrConfiguration)
	}
	if _, err := awsCfg.Credentials.Retrieve(ctx); err != nil {
		return nil, fmt.Errorf("%w: aws credentials: %v", errs.ErrConfiguration, err)
	}
	client := kms.NewFromConfig(awsCfg, func(o *kms.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewKMSWithClient(ctx, client, cfg)
}

// NewKMSWithClient wraps an existing client and describes every configured key.
func NewKMSWithClient(ctx context.Context, client kmsAPI, cfg KMSConfig) (*KMS, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultKMSTimeout
	}
	k := &KMS{client: client, cfg: cfg, pubKeys: make(map[string]*rsa.PublicKey)}
	for _, id := range []string{cfg.VoteKeyID, cfg.TallyKeyID} {
		if id == "" {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		_, err := client.DescribeKey(cctx, &kms.DescribeKeyInput{KeyId: aws.String(id)})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("%w: describe kms key %s: %v", errs.ErrConfiguration, id, err)
		}
	}
	return k, nil
}

func (k *KMS) Name() string { return BackendKMS }

func (k *KMS) Refs(p Purpose) KeyPair {
	id := k.cfg.VoteKeyID
	if p == PurposeTally {
		id = k.cfg.TallyKeyID
	}
	if id == "" {
		return KeyPair{}
	}
	ref := KeyRef(kmsScheme + id)
	return KeyPair{PrivateRef: ref, PublicRef: ref}
}

// GenerateKeypair creates a customer managed key. Vote keys are
// ENCRYPT_DECRYPT, tally keys SIGN_VERIFY.
func (k *KMS) GenerateKeypair(ctx context.Context, p Purpose, bits int) (KeyPair, error) {
	var spec kmstypes.KeySpec
	switch bits {
	case 2048:
		spec = kmstypes.KeySpecRsa2048
	case 3072:
		spec = kmstypes.KeySpecRsa3072
	case 4096:
		spec = kmstypes.KeySpecRsa4096
	default:
		return KeyPair{}, validBits(bits)
	}
	usage := kmstypes.KeyUsageTypeEncryptDecrypt
	if p == PurposeTally {
		usage = kmstypes.KeyUsageTypeSignVerify
	}

	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()
	out, err := k.client.CreateKey(ctx, &kms.CreateKeyInput{
		KeySpec:     spec,
		KeyUsage:    usage,
		Description: aws.String("campus-vote " + string(p) + " key"),
	})
	if err != nil {
		return KeyPair{}, fmt.Errorf("kms create key: %w", err)
	}
	if out.KeyMetadata == nil || out.KeyMetadata.KeyId == nil {
		return KeyPair{}, fmt.Errorf("kms create key: empty metadata")
	}
	ref := KeyRef(kmsScheme + *out.KeyMetadata.KeyId)
	return KeyPair{PrivateRef: ref, PublicRef: ref}, nil
}

func (k *KMS) LoadPublicKey(ctx context.Context, ref KeyRef) (*rsa.PublicKey, error) {
	id, err := kmsKeyID(ref)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	pub, ok := k.pubKeys[id]
	k.mu.Unlock()
	if ok {
		return pub, nil
	}

	ctx, cancel := context.WithTimeout(ctx, k.cfg.Timeout)
	defer cancel()
	out, err := k.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(id)})
	if err != nil {
		return nil, fmt.Errorf("kms get public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(out.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parse kms public key: %w", err)
	}
	pub, ok = parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: kms key %s is not RSA", errs.ErrConfiguration, id)
	}

	k.mu.Lock()
	k.pubKeys[id] = pub
	k.mu.Unlock()
	return pub, nil
}

func (k *KMS) LoadSigner(_ context.Context, ref KeyRef) (Signer, error) {
	id, err := kmsKeyID(ref)
	if err != nil {
		return nil, err
	}
	return kmsKey{k: k, id: id}, nil
}

func (k *KMS) LoadDecrypter(_ context.Context, ref KeyRef) (Decrypter, error) {
	id, err := kmsKeyID(ref)
	if err != nil {
		return nil, err
	}
	return kmsKey{k: k, id: id}, nil
}

type kmsKey struct {
	k  *KMS
	id string
}

func (s kmsKey) Sign(ctx context.Context, msg []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.k.cfg.Timeout)
	defer cancel()
	out, err := s.k.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.id),
		Message:          msg,
		MessageType:      kmstypes.MessageTypeRaw,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecRsassaPssSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kms sign: %w", err)
	}
	return out.Signature, nil
}

func (s kmsKey) Decrypt(ctx context.Context, ct []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.k.cfg.Timeout)
	defer cancel()
	out, err := s.k.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:               aws.String(s.id),
		CiphertextBlob:      ct,
		EncryptionAlgorithm: kmstypes.EncryptionAlgorithmSpecRsaesOaepSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("kms decrypt: %w", err)
	}
	return out.Plaintext, nil
}

func kmsKeyID(ref KeyRef) (string, error) {
	s := string(ref)
	if s == "" {
		return "", fmt.Errorf("%w: kms key not configured", errs.ErrNotFound)
	}
	if !strings.HasPrefix(s, kmsScheme) || len(s) == len(kmsScheme) {
		return "", fmt.Errorf("%w: bad kms key ref %q", errs.ErrValidation, s)
	}
	return strings.TrimPrefix(s, kmsScheme), nil
}
