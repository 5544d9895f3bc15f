package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/internal/testutils/guardians"
	"github.com/alphabill-org/guardian-core/types"
)

func TestConfig_MarshalUnmarshal(t *testing.T) {
	cfg := &Config{GuardianSetIndex: 3, GuardianSetTTL: 86400}
	b := cfg.Marshal()
	require.Equal(t, []byte{3, 0, 0, 0, 0x80, 0x51, 0x01, 0}, b)
	c, err := UnmarshalConfig(b)
	require.NoError(t, err)
	require.Equal(t, cfg, c)

	_, err = UnmarshalConfig(b[:7])
	require.ErrorIs(t, err, types.ErrMalformedRecord)
	require.ErrorContains(t, err, "config must be 8 bytes, got 7")
}

func TestSignatureSet_MarshalUnmarshal(t *testing.T) {
	set := &SignatureSet{
		Signatures:       []bool{true, false, true},
		MessageHash:      common.Hash{1, 2, 3},
		GuardianSetIndex: 7,
	}
	require.Equal(t, 2, set.NumVerified())
	b := set.Marshal()
	require.Len(t, b, 4+3+32+4)
	require.Equal(t, []byte{3, 0, 0, 0, 1, 0, 1}, b[:7])
	require.Equal(t, set.MessageHash[:], b[7:39])
	require.EqualValues(t, 7, binary.LittleEndian.Uint32(b[39:]))

	s, err := UnmarshalSignatureSet(b)
	require.NoError(t, err)
	require.Equal(t, set, s)
}

func TestUnmarshalSignatureSet_Malformed(t *testing.T) {
	valid := (&SignatureSet{Signatures: []bool{true, true}, GuardianSetIndex: 1}).Marshal()

	tests := []struct {
		name   string
		data   []byte
		errMsg string
	}{
		{name: "empty", data: nil, errMsg: "signature set is too short: 0 bytes"},
		{name: "truncated", data: valid[:len(valid)-1], errMsg: "signature set of 2 guardians must be 42 bytes, got 41"},
		{name: "trailing byte", data: append(append([]byte{}, valid...), 0), errMsg: "signature set of 2 guardians must be 42 bytes, got 43"},
		{name: "invalid flag", data: func() []byte {
			b := append([]byte{}, valid...)
			b[5] = 2
			return b
		}(), errMsg: "signature set flag 1 has invalid value 2"},
		{name: "huge count", data: append([]byte{0xFF, 0xFF, 0xFF, 0xFF}, valid[4:]...), errMsg: "must be 4294967335 bytes, got 42"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := UnmarshalSignatureSet(tc.data)
			require.ErrorIs(t, err, types.ErrMalformedRecord)
			require.ErrorContains(t, err, tc.errMsg)
			require.Nil(t, s)
		})
	}
}

func TestPostedVAA_MarshalUnmarshal(t *testing.T) {
	v := guardians.NewVAA(2, []byte("payload"))
	posted := newPostedVAA(v, account.Address{9})
	b := posted.Marshal()
	require.Len(t, b, postedVAAFixedSize+7)
	require.Equal(t, []byte("vaa\x01"), b[:4])
	require.Equal(t, v.ConsistencyLevel, b[4])
	require.Equal(t, v.Timestamp, binary.LittleEndian.Uint32(b[5:]))
	require.Equal(t, posted.SignatureSet[:], b[9:41])
	require.Equal(t, v.GuardianSetIndex, binary.LittleEndian.Uint32(b[41:]))
	require.Equal(t, v.Nonce, binary.LittleEndian.Uint32(b[45:]))
	require.Equal(t, v.Sequence, binary.LittleEndian.Uint64(b[49:]))
	require.EqualValues(t, v.EmitterChain, binary.LittleEndian.Uint16(b[57:]))
	require.Equal(t, v.EmitterAddress[:], b[59:91])
	require.EqualValues(t, 7, binary.LittleEndian.Uint32(b[91:]))
	require.Equal(t, []byte("payload"), b[95:])

	p, err := UnmarshalPostedVAA(b)
	require.NoError(t, err)
	require.Equal(t, posted, p)
	require.Equal(t, v.MessageHash(), p.MessageHash())
}

func TestUnmarshalPostedVAA_Malformed(t *testing.T) {
	valid := newPostedVAA(guardians.NewVAA(0, []byte{1, 2}), account.Address{}).Marshal()

	_, err := UnmarshalPostedVAA(valid[:postedVAAFixedSize-1])
	require.ErrorIs(t, err, types.ErrMalformedRecord)
	require.ErrorContains(t, err, "posted VAA is too short")

	_, err = UnmarshalPostedVAA(valid[:len(valid)-1])
	require.ErrorContains(t, err, "posted VAA with 2 bytes of payload must be 97 bytes, got 96")

	b := append([]byte{}, valid...)
	b[3] = 2
	_, err = UnmarshalPostedVAA(b)
	require.ErrorIs(t, err, types.ErrMalformedRecord)
	require.ErrorContains(t, err, "posted VAA discriminator 76616102")
}
