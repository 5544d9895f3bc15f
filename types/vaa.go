package types

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alphabill-org/guardian-core/crypto"
)

const (
	// SupportedVAAVersion is the only attestation version accepted by the decoder.
	SupportedVAAVersion uint8 = 1

	// MaxGuardians is the max size of guardian set, guardian index in the signature is single byte.
	MaxGuardians = 255

	vaaHeaderSize      = 1 + 4 + 1         // version, guardian set index, signature count
	signatureEntrySize = 1 + SignatureSize // guardian index, signature
	vaaBodySize        = 4 + 4 + 2 + 32 + 8 + 1

	SignatureSize = crypto.SignatureLength
)

type (
	// EmitterAddress is the 32 byte address of the message emitter on the source chain.
	EmitterAddress [32]byte

	// SignatureData is recoverable secp256k1 signature, r || s || recovery id.
	SignatureData [SignatureSize]byte

	Signature struct {
		Index     uint8         `json:"index"`
		Signature SignatureData `json:"signature"`
	}

	// VAA (Verifiable Action Approval) is the guardian signed attestation of an
	// event observed on the source chain.
	VAA struct {
		Version          uint8          `json:"version"`
		GuardianSetIndex uint32         `json:"guardianSetIndex"`
		Signatures       []*Signature   `json:"signatures"`
		Timestamp        uint32         `json:"timestamp"`
		Nonce            uint32         `json:"nonce"`
		EmitterChain     ChainID        `json:"emitterChain"`
		EmitterAddress   EmitterAddress `json:"emitterAddress"`
		Sequence         uint64         `json:"sequence"`
		ConsistencyLevel uint8          `json:"consistencyLevel"`
		Payload          hexutil.Bytes  `json:"payload"`
	}
)

/*
UnmarshalVAA decodes VAA from its wire encoding (big-endian):

	version u8 | guardian_set_index u32 | n u8 | n * (guardian_index u8, signature [65]) | body

Any truncated field or unsupported version results in ErrMalformedRecord.
*/
func UnmarshalVAA(data []byte) (*VAA, error) {
	if len(data) < vaaHeaderSize {
		return nil, fmt.Errorf("%w: VAA is too short: %d bytes", ErrMalformedRecord, len(data))
	}
	v := &VAA{
		Version:          data[0],
		GuardianSetIndex: binary.BigEndian.Uint32(data[1:5]),
	}
	if v.Version != SupportedVAAVersion {
		return nil, fmt.Errorf("%w: unsupported VAA version %d", ErrMalformedRecord, v.Version)
	}
	numSigs := int(data[5])
	offset := vaaHeaderSize
	if len(data) < offset+numSigs*signatureEntrySize {
		return nil, fmt.Errorf("%w: VAA signature list truncated: %d signatures in %d bytes", ErrMalformedRecord, numSigs, len(data))
	}
	v.Signatures = make([]*Signature, numSigs)
	for i := range v.Signatures {
		sig := &Signature{Index: data[offset]}
		copy(sig.Signature[:], data[offset+1:offset+signatureEntrySize])
		v.Signatures[i] = sig
		offset += signatureEntrySize
	}
	if err := v.unmarshalBody(data[offset:]); err != nil {
		return nil, err
	}
	return v, nil
}

/*
UnmarshalVAABody decodes the body part of the attestation, the returned VAA
has no header fields set.
*/
func UnmarshalVAABody(body []byte) (*VAA, error) {
	v := &VAA{}
	if err := v.unmarshalBody(body); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *VAA) unmarshalBody(body []byte) error {
	if len(body) < vaaBodySize {
		return fmt.Errorf("%w: VAA body is too short: %d bytes", ErrMalformedRecord, len(body))
	}
	v.Timestamp = binary.BigEndian.Uint32(body[0:4])
	v.Nonce = binary.BigEndian.Uint32(body[4:8])
	v.EmitterChain = ChainID(binary.BigEndian.Uint16(body[8:10]))
	copy(v.EmitterAddress[:], body[10:42])
	v.Sequence = binary.BigEndian.Uint64(body[42:50])
	v.ConsistencyLevel = body[50]
	v.Payload = bytes.Clone(body[vaaBodySize:])
	return nil
}

// Marshal returns the wire encoding of the VAA.
func (v *VAA) Marshal() ([]byte, error) {
	if len(v.Signatures) > MaxGuardians {
		return nil, fmt.Errorf("too many signatures: %d", len(v.Signatures))
	}
	var b bytes.Buffer
	b.WriteByte(v.Version)
	b.Write(binary.BigEndian.AppendUint32(nil, v.GuardianSetIndex))
	b.WriteByte(uint8(len(v.Signatures)))
	for _, sig := range v.Signatures {
		b.WriteByte(sig.Index)
		b.Write(sig.Signature[:])
	}
	b.Write(v.MarshalBody())
	return b.Bytes(), nil
}

// MarshalBody returns the signed part of the VAA.
func (v *VAA) MarshalBody() []byte {
	b := make([]byte, 0, vaaBodySize+len(v.Payload))
	b = binary.BigEndian.AppendUint32(b, v.Timestamp)
	b = binary.BigEndian.AppendUint32(b, v.Nonce)
	b = binary.BigEndian.AppendUint16(b, uint16(v.EmitterChain))
	b = append(b, v.EmitterAddress[:]...)
	b = binary.BigEndian.AppendUint64(b, v.Sequence)
	b = append(b, v.ConsistencyLevel)
	return append(b, v.Payload...)
}

// MessageHash returns keccak256 of the body. Posted attestations are stored under it.
func (v *VAA) MessageHash() common.Hash {
	return crypto.Keccak256(v.MarshalBody())
}

// SigningDigest returns the digest guardians sign, keccak256(keccak256(body)).
func (v *VAA) SigningDigest() common.Hash {
	return crypto.DoubleKeccak256(v.MarshalBody())
}

// AddSignature signs the VAA digest with signer and appends signature as guardian "index".
func (v *VAA) AddSignature(signer crypto.Signer, index uint8) error {
	sig, err := signer.SignHash(v.SigningDigest())
	if err != nil {
		return fmt.Errorf("signing VAA: %w", err)
	}
	s := &Signature{Index: index}
	copy(s.Signature[:], sig)
	v.Signatures = append(v.Signatures, s)
	return nil
}

// IsGovernance returns true when the VAA was emitted by the governance emitter.
func (v *VAA) IsGovernance() bool {
	return v.EmitterChain == GovernanceChain && v.EmitterAddress == GovernanceEmitter
}

func (a EmitterAddress) String() string {
	return hex.EncodeToString(a[:])
}

func (a EmitterAddress) MarshalText() ([]byte, error) {
	return hexutil.Bytes(a[:]).MarshalText()
}

func (a *EmitterAddress) UnmarshalText(text []byte) error {
	return hexutil.UnmarshalFixedText("EmitterAddress", text, a[:])
}

func (s SignatureData) MarshalText() ([]byte, error) {
	return hexutil.Bytes(s[:]).MarshalText()
}

func (s *SignatureData) UnmarshalText(text []byte) error {
	return hexutil.UnmarshalFixedText("SignatureData", text, s[:])
}
