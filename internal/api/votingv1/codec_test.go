package votingv1

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	t.Parallel()
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	require.Equal(t, CodecName, c.Name())
}

func TestCodec_OmitsEmptyQRFields(t *testing.T) {
	t.Parallel()
	b, err := Codec{}.Marshal(&VerifyQRResponse{Reason: "already_used"})
	require.NoError(t, err)
	require.JSONEq(t, `{"valid":false,"reason":"already_used"}`, string(b))

	var out VerifyQRResponse
	require.NoError(t, Codec{}.Unmarshal(b, &out))
	require.Equal(t, "already_used", out.Reason)
}

func TestCodec_EmptyPayload(t *testing.T) {
	t.Parallel()
	var out UpdateProfileResponse
	require.NoError(t, Codec{}.Unmarshal(nil, &out))
	require.Error(t, Codec{}.Unmarshal([]byte("{"), &out))
}
