package keyprovider

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/and161185/campus-vote/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestLocal_GenerateAndUse(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := NewLocal(LocalConfig{Dir: dir})
	ctx := context.Background()

	refs, err := p.GenerateKeypair(ctx, PurposeTally, 2048)
	require.NoError(t, err)
	require.Equal(t, KeyRef(filepath.Join(dir, "tally_sign_private.pem")), refs.PrivateRef)
	require.Equal(t, KeyRef(filepath.Join(dir, "tally_sign_public.pem")), refs.PublicRef)

	st, err := os.Stat(string(refs.PrivateRef))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	pub, err := p.LoadPublicKey(ctx, refs.PublicRef)
	require.NoError(t, err)
	require.Equal(t, 2048, pub.N.BitLen())

	signer, err := p.LoadSigner(ctx, refs.PrivateRef)
	require.NoError(t, err)
	sig, err := signer.Sign(ctx, []byte("payload"))
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("payload"))
	require.NoError(t, rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthAuto}))
}

func TestLocal_DecryptOAEP(t *testing.T) {
	t.Parallel()
	p := NewLocal(LocalConfig{Dir: t.TempDir()})
	ctx := context.Background()

	refs, err := p.GenerateKeypair(ctx, PurposeVote, 2048)
	require.NoError(t, err)
	require.Equal(t, "private_key.pem", filepath.Base(string(refs.PrivateRef)))

	pub, err := p.LoadPublicKey(ctx, refs.PublicRef)
	require.NoError(t, err)
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte("7|tok"), nil)
	require.NoError(t, err)

	dec, err := p.LoadDecrypter(ctx, refs.PrivateRef)
	require.NoError(t, err)
	pt, err := dec.Decrypt(ctx, ct)
	require.NoError(t, err)
	require.Equal(t, "7|tok", string(pt))
}

func TestLocal_MissingKey(t *testing.T) {
	t.Parallel()
	p := NewLocal(LocalConfig{Dir: t.TempDir()})

	_, err := p.LoadPublicKey(context.Background(), p.Refs(PurposeVote).PublicRef)
	require.ErrorIs(t, err, errs.ErrNotFound)
	_, err = p.LoadSigner(context.Background(), p.Refs(PurposeTally).PrivateRef)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestLocal_NotPEM(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "public_key.pem")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := NewLocal(LocalConfig{Dir: dir}).LoadPublicKey(context.Background(), KeyRef(path))
	require.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestLocal_RejectsKeySize(t *testing.T) {
	t.Parallel()
	_, err := NewLocal(LocalConfig{Dir: t.TempDir()}).GenerateKeypair(context.Background(), PurposeVote, 1024)
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestParsePurpose(t *testing.T) {
	t.Parallel()
	p, err := ParsePurpose("Tally")
	require.NoError(t, err)
	require.Equal(t, PurposeTally, p)
	_, err = ParsePurpose("audit")
	require.ErrorIs(t, err, errs.ErrValidation)
}

func TestNew_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), Config{Backend: "vault"})
	require.ErrorIs(t, err, errs.ErrConfiguration)

	p, err := New(context.Background(), Config{Local: LocalConfig{Dir: t.TempDir()}})
	require.NoError(t, err)
	require.Equal(t, BackendLocal, p.Name())
}
