package bridge

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/types"
)

const (
	configSize            = 4 + 4
	signatureSetFixedSize = 4 + 32 + 4
	postedVAAFixedSize    = 4 + 1 + 4 + account.AddressLength + 4 + 4 + 8 + 2 + 32 + 4
)

// PostedVAADiscriminator prefixes the data of posted VAA accounts.
var PostedVAADiscriminator = [4]byte{'v', 'a', 'a', 1}

type (
	// Config is the bridge configuration record stored at the "Bridge" address.
	Config struct {
		GuardianSetIndex uint32 `json:"guardianSetIndex"`
		// GuardianSetTTL is the number of seconds the previous guardian set stays
		// active after it has been replaced.
		GuardianSetTTL uint32 `json:"guardianSetTtl"`
	}

	/*
		SignatureSet records which guardians of the guardian set have presented a
		valid signature over the message.
	*/
	SignatureSet struct {
		Signatures       []bool      `json:"signatures"`
		MessageHash      common.Hash `json:"messageHash"`
		GuardianSetIndex uint32      `json:"guardianSetIndex"`
	}

	// PostedVAA is the verified VAA stored for downstream consumers.
	PostedVAA struct {
		ConsistencyLevel uint8                `json:"consistencyLevel"`
		Timestamp        uint32               `json:"timestamp"`
		SignatureSet     account.Address      `json:"signatureSet"`
		GuardianSetIndex uint32               `json:"guardianSetIndex"`
		Nonce            uint32               `json:"nonce"`
		Sequence         uint64               `json:"sequence"`
		EmitterChain     types.ChainID        `json:"emitterChain"`
		EmitterAddress   types.EmitterAddress `json:"emitterAddress"`
		Payload          hexutil.Bytes        `json:"payload"`
	}
)

func (c *Config) Marshal() []byte {
	b := binary.LittleEndian.AppendUint32(make([]byte, 0, configSize), c.GuardianSetIndex)
	return binary.LittleEndian.AppendUint32(b, c.GuardianSetTTL)
}

func UnmarshalConfig(data []byte) (*Config, error) {
	if len(data) != configSize {
		return nil, fmt.Errorf("%w: config must be %d bytes, got %d", types.ErrMalformedRecord, configSize, len(data))
	}
	return &Config{
		GuardianSetIndex: binary.LittleEndian.Uint32(data),
		GuardianSetTTL:   binary.LittleEndian.Uint32(data[4:]),
	}, nil
}

/*
Marshal encodes the signature set:

	num u32 | num * bool | message_hash [32] | guardian_set_index u32
*/
func (s *SignatureSet) Marshal() []byte {
	b := make([]byte, 0, signatureSetFixedSize+len(s.Signatures))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(s.Signatures)))
	for _, ok := range s.Signatures {
		if ok {
			b = append(b, 1)
		} else {
			b = append(b, 0)
		}
	}
	b = append(b, s.MessageHash[:]...)
	return binary.LittleEndian.AppendUint32(b, s.GuardianSetIndex)
}

func UnmarshalSignatureSet(data []byte) (*SignatureSet, error) {
	if len(data) < signatureSetFixedSize {
		return nil, fmt.Errorf("%w: signature set is too short: %d bytes", types.ErrMalformedRecord, len(data))
	}
	n := uint64(binary.LittleEndian.Uint32(data))
	if size := signatureSetFixedSize + n; uint64(len(data)) != size {
		return nil, fmt.Errorf("%w: signature set of %d guardians must be %d bytes, got %d", types.ErrMalformedRecord, n, size, len(data))
	}
	s := &SignatureSet{Signatures: make([]bool, n)}
	offset := 4
	for i := range s.Signatures {
		switch data[offset] {
		case 0:
		case 1:
			s.Signatures[i] = true
		default:
			return nil, fmt.Errorf("%w: signature set flag %d has invalid value %d", types.ErrMalformedRecord, i, data[offset])
		}
		offset++
	}
	copy(s.MessageHash[:], data[offset:])
	s.GuardianSetIndex = binary.LittleEndian.Uint32(data[offset+32:])
	return s, nil
}

// NumVerified returns the number of guardians whose signature has been verified.
func (s *SignatureSet) NumVerified() int {
	cnt := 0
	for _, ok := range s.Signatures {
		if ok {
			cnt++
		}
	}
	return cnt
}

/*
Marshal encodes the posted VAA:

	"vaa\x01" | consistency u8 | timestamp u32 | signature_set [32] | guardian_set_index u32 |
	nonce u32 | sequence u64 | emitter_chain u16 | emitter_address [32] | payload_len u32 | payload
*/
func (p *PostedVAA) Marshal() []byte {
	b := make([]byte, 0, postedVAAFixedSize+len(p.Payload))
	b = append(b, PostedVAADiscriminator[:]...)
	b = append(b, p.ConsistencyLevel)
	b = binary.LittleEndian.AppendUint32(b, p.Timestamp)
	b = append(b, p.SignatureSet[:]...)
	b = binary.LittleEndian.AppendUint32(b, p.GuardianSetIndex)
	b = binary.LittleEndian.AppendUint32(b, p.Nonce)
	b = binary.LittleEndian.AppendUint64(b, p.Sequence)
	b = binary.LittleEndian.AppendUint16(b, uint16(p.EmitterChain))
	b = append(b, p.EmitterAddress[:]...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(p.Payload)))
	return append(b, p.Payload...)
}

func UnmarshalPostedVAA(data []byte) (*PostedVAA, error) {
	if len(data) < postedVAAFixedSize {
		return nil, fmt.Errorf("%w: posted VAA is too short: %d bytes", types.ErrMalformedRecord, len(data))
	}
	if !bytes.Equal(data[:4], PostedVAADiscriminator[:]) {
		return nil, fmt.Errorf("%w: posted VAA discriminator %x", types.ErrMalformedRecord, data[:4])
	}
	p := &PostedVAA{ConsistencyLevel: data[4]}
	p.Timestamp = binary.LittleEndian.Uint32(data[5:])
	offset := 9
	copy(p.SignatureSet[:], data[offset:])
	offset += account.AddressLength
	p.GuardianSetIndex = binary.LittleEndian.Uint32(data[offset:])
	p.Nonce = binary.LittleEndian.Uint32(data[offset+4:])
	p.Sequence = binary.LittleEndian.Uint64(data[offset+8:])
	p.EmitterChain = types.ChainID(binary.LittleEndian.Uint16(data[offset+16:]))
	offset += 18
	copy(p.EmitterAddress[:], data[offset:])
	offset += 32
	payloadLen := uint64(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if size := uint64(postedVAAFixedSize) + payloadLen; uint64(len(data)) != size {
		return nil, fmt.Errorf("%w: posted VAA with %d bytes of payload must be %d bytes, got %d",
			types.ErrMalformedRecord, payloadLen, size, len(data))
	}
	p.Payload = bytes.Clone(data[offset:])
	return p, nil
}

// VAA returns the body fields of the posted VAA, signatures are not stored.
func (p *PostedVAA) VAA() *types.VAA {
	return &types.VAA{
		Version:          types.SupportedVAAVersion,
		GuardianSetIndex: p.GuardianSetIndex,
		Timestamp:        p.Timestamp,
		Nonce:            p.Nonce,
		EmitterChain:     p.EmitterChain,
		EmitterAddress:   p.EmitterAddress,
		Sequence:         p.Sequence,
		ConsistencyLevel: p.ConsistencyLevel,
		Payload:          p.Payload,
	}
}

func (p *PostedVAA) MessageHash() common.Hash {
	return p.VAA().MessageHash()
}

func newPostedVAA(v *types.VAA, signatureSet account.Address) *PostedVAA {
	return &PostedVAA{
		ConsistencyLevel: v.ConsistencyLevel,
		Timestamp:        v.Timestamp,
		SignatureSet:     signatureSet,
		GuardianSetIndex: v.GuardianSetIndex,
		Nonce:            v.Nonce,
		Sequence:         v.Sequence,
		EmitterChain:     v.EmitterChain,
		EmitterAddress:   v.EmitterAddress,
		Payload:          bytes.Clone(v.Payload),
	}
}
