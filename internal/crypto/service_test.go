package crypto

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"testing"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/and161185/campus-vote/internal/keyprovider"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, purposes ...keyprovider.Purpose) *Service {
	t.Helper()
	p := keyprovider.NewLocal(keyprovider.LocalConfig{Dir: t.TempDir()})
	for _, pp := range purposes {
		_, err := p.GenerateKeypair(context.Background(), pp, 2048)
		require.NoError(t, err)
	}
	return NewService(p)
}

func TestBallotRoundTrip(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeVote)
	ctx := context.Background()
	token := uuid.Must(uuid.NewV4())

	b64, err := s.EncryptBallot(ctx, 7, token)
	require.NoError(t, err)
	require.NotContains(t, b64, token.String())

	cand, tok, err := s.DecryptBallot(ctx, b64)
	require.NoError(t, err)
	require.Equal(t, int64(7), cand)
	require.Equal(t, token, tok)
}

func TestEncrypt_Randomized(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeVote)
	token := uuid.Must(uuid.NewV4())

	a, err := s.EncryptBallot(context.Background(), 1, token)
	require.NoError(t, err)
	b, err := s.EncryptBallot(context.Background(), 1, token)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestEncrypt_NoKeys(t *testing.T) {
	t.Parallel()
	s := newService(t)

	_, err := s.EncryptBallot(context.Background(), 1, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrKeysNotConfigured)
	_, err = s.SignTally(context.Background(), "x")
	require.ErrorIs(t, err, errs.ErrKeysNotConfigured)
}

func TestSignVerifyTally(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeTally)
	ctx := context.Background()

	sig, err := s.SignTally(ctx, "cipher")
	require.NoError(t, err)
	require.NoError(t, s.VerifyTally(ctx, "cipher", sig))
	require.ErrorIs(t, s.VerifyTally(ctx, "cipher2", sig), errs.ErrInvalidSignature)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	raw[0] ^= 0x01
	require.ErrorIs(t, s.VerifyTally(ctx, "cipher", base64.StdEncoding.EncodeToString(raw)), errs.ErrInvalidSignature)
}

func TestDecrypt_TamperedCiphertext(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeVote)
	ctx := context.Background()

	b64, err := s.EncryptBallot(ctx, 2, uuid.Must(uuid.NewV4()))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x80

	_, err = s.Decrypt(ctx, base64.StdEncoding.EncodeToString(raw))
	require.Error(t, err)

	_, err = s.Decrypt(ctx, "%%%")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestDecryptBallot_Malformed(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeVote)
	ctx := context.Background()

	b64, err := s.Encrypt(ctx, []byte("no-separator"))
	require.NoError(t, err)
	_, _, err = s.DecryptBallot(ctx, b64)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestEncryptDecrypt_ArbitraryPayloads(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeVote)
	ctx := context.Background()

	// RSA-2048 with OAEP SHA-256 fits at most 256-2*32-2 bytes.
	const maxPlain = 190
	for _, n := range []int{0, 1, 16, 64, 128, maxPlain - 1, maxPlain} {
		in := make([]byte, n)
		_, err := rand.Read(in)
		require.NoError(t, err)

		b64, err := s.Encrypt(ctx, in)
		require.NoError(t, err, "len %d", n)
		out, err := s.Decrypt(ctx, b64)
		require.NoError(t, err, "len %d", n)
		require.Equal(t, in, out, "len %d", n)
	}

	_, err := s.Encrypt(ctx, make([]byte, maxPlain+1))
	require.ErrorIs(t, err, rsa.ErrMessageTooLong)
}

func TestVerifyTally_MessageBitFlips(t *testing.T) {
	t.Parallel()
	s := newService(t, keyprovider.PurposeTally)
	ctx := context.Background()

	msg := []byte("election=1;candidate=100;n=42")
	sig, err := s.SignTally(ctx, string(msg))
	require.NoError(t, err)
	require.NoError(t, s.VerifyTally(ctx, string(msg), sig))

	for i := 0; i < len(msg)*8; i++ {
		flipped := append([]byte(nil), msg...)
		flipped[i/8] ^= 1 << (i % 8)
		require.ErrorIs(t, s.VerifyTally(ctx, string(flipped), sig), errs.ErrInvalidSignature, "bit %d", i)
	}
}
