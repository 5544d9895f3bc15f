package zerocopy

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/minio/sha256-simd"

	"github.com/alphabill-org/guardian-core/types"
)

const (
	discriminatorSize = 8
	keySize           = common.AddressLength

	// fixed part of the legacy layout: index, num guardians, creation and expiration time
	legacyFixedSize  = 4 + 4 + 4 + 4
	currentFixedSize = discriminatorSize + legacyFixedSize
)

// GuardianSetDiscriminator tags the current guardian set layout.
var GuardianSetDiscriminator = AccountDiscriminator("GuardianSet")

// AccountDiscriminator returns the 8 byte type tag of the account named "name".
func AccountDiscriminator(name string) [discriminatorSize]byte {
	h := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], h[:discriminatorSize])
	return d
}

/*
GuardianSet is a read-only view over guardian set account data in the current
layout (little-endian):

	discriminator [8] | index u32 | n u32 | n * key [20] | creation_time u32 | expiration_time u32

Accessors do not validate the data, views are only handed out by ParseGuardianSet
which checks the length.
*/
type GuardianSet []byte

/*
LegacyGuardianSet is a read-only view over guardian set account data created
before the discriminator was introduced:

	index u32 | n u32 | n * key [20] | creation_time u32 | expiration_time u32
*/
type LegacyGuardianSet []byte

/*
ParseGuardianSet returns a view over data in either layout, the layout is
detected by the discriminator. The legacy layout can't produce the
discriminator bytes as a valid (index, num guardians) pair.
*/
func ParseGuardianSet(data []byte) (types.GuardianSetReader, error) {
	if len(data) <= discriminatorSize {
		return nil, fmt.Errorf("%w: guardian set account data is too short: %d bytes", types.ErrMalformedRecord, len(data))
	}
	if [discriminatorSize]byte(data[:discriminatorSize]) == GuardianSetDiscriminator {
		gs, err := parseCurrent(data)
		if err != nil {
			return nil, err
		}
		return gs, nil
	}
	gs, err := parseLegacy(data)
	if err != nil {
		return nil, err
	}
	return gs, nil
}

func parseCurrent(data []byte) (GuardianSet, error) {
	if len(data) <= currentFixedSize {
		return nil, fmt.Errorf("%w: guardian set account data is too short: %d bytes", types.ErrMalformedRecord, len(data))
	}
	gs := GuardianSet(data)
	if want := uint64(currentFixedSize) + uint64(gs.numGuardians())*keySize; uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: guardian set account data must be %d bytes, got %d", types.ErrMalformedRecord, want, len(data))
	}
	return gs, nil
}

func parseLegacy(data []byte) (LegacyGuardianSet, error) {
	// at least one guardian
	if len(data) <= legacyFixedSize {
		return nil, fmt.Errorf("%w: legacy guardian set account data is too short: %d bytes", types.ErrMalformedRecord, len(data))
	}
	gs := LegacyGuardianSet(data)
	if want := uint64(legacyFixedSize) + uint64(gs.numGuardians())*keySize; uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: legacy guardian set account data must be %d bytes, got %d", types.ErrMalformedRecord, want, len(data))
	}
	return gs, nil
}

func (g GuardianSet) GetIndex() uint32 {
	return binary.LittleEndian.Uint32(g[8:12])
}

func (g GuardianSet) numGuardians() uint32 {
	return binary.LittleEndian.Uint32(g[12:16])
}

func (g GuardianSet) GetNumGuardians() int {
	return int(g.numGuardians())
}

func (g GuardianSet) GetKey(i int) common.Address {
	return common.BytesToAddress(g[16+i*keySize : 16+(i+1)*keySize])
}

func (g GuardianSet) GetCreationTime() uint32 {
	off := 16 + g.GetNumGuardians()*keySize
	return binary.LittleEndian.Uint32(g[off : off+4])
}

func (g GuardianSet) GetExpirationTime() uint32 {
	off := 20 + g.GetNumGuardians()*keySize
	return binary.LittleEndian.Uint32(g[off : off+4])
}

func (g GuardianSet) setExpirationTime(t uint32) {
	off := 20 + g.GetNumGuardians()*keySize
	binary.LittleEndian.PutUint32(g[off:off+4], t)
}

func (g GuardianSet) IsActive(now uint32) bool {
	return types.IsActive(g, now)
}

func (g LegacyGuardianSet) GetIndex() uint32 {
	return binary.LittleEndian.Uint32(g[0:4])
}

func (g LegacyGuardianSet) numGuardians() uint32 {
	return binary.LittleEndian.Uint32(g[4:8])
}

func (g LegacyGuardianSet) GetNumGuardians() int {
	return int(g.numGuardians())
}

func (g LegacyGuardianSet) GetKey(i int) common.Address {
	return common.BytesToAddress(g[8+i*keySize : 8+(i+1)*keySize])
}

func (g LegacyGuardianSet) GetCreationTime() uint32 {
	off := 8 + g.GetNumGuardians()*keySize
	return binary.LittleEndian.Uint32(g[off : off+4])
}

func (g LegacyGuardianSet) GetExpirationTime() uint32 {
	off := 12 + g.GetNumGuardians()*keySize
	return binary.LittleEndian.Uint32(g[off : off+4])
}

func (g LegacyGuardianSet) setExpirationTime(t uint32) {
	off := 12 + g.GetNumGuardians()*keySize
	binary.LittleEndian.PutUint32(g[off:off+4], t)
}

func (g LegacyGuardianSet) IsActive(now uint32) bool {
	return types.IsActive(g, now)
}

/*
SetExpirationTime overwrites the expiration time of the guardian set stored
in data (either layout). Data must be mutably borrowed by the caller.
*/
func SetExpirationTime(data []byte, t uint32) error {
	gs, err := ParseGuardianSet(data)
	if err != nil {
		return err
	}
	switch v := gs.(type) {
	case GuardianSet:
		v.setExpirationTime(t)
	case LegacyGuardianSet:
		v.setExpirationTime(t)
	}
	return nil
}

// EncodeGuardianSet returns account data of gs in the current layout.
func EncodeGuardianSet(gs types.GuardianSetReader) []byte {
	n := gs.GetNumGuardians()
	b := make([]byte, 0, currentFixedSize+n*keySize)
	b = append(b, GuardianSetDiscriminator[:]...)
	return appendGuardianSet(b, gs)
}

// EncodeLegacyGuardianSet returns account data of gs in the legacy layout.
func EncodeLegacyGuardianSet(gs types.GuardianSetReader) []byte {
	n := gs.GetNumGuardians()
	return appendGuardianSet(make([]byte, 0, legacyFixedSize+n*keySize), gs)
}

func appendGuardianSet(b []byte, gs types.GuardianSetReader) []byte {
	n := gs.GetNumGuardians()
	b = binary.LittleEndian.AppendUint32(b, gs.GetIndex())
	b = binary.LittleEndian.AppendUint32(b, uint32(n))
	for i := 0; i < n; i++ {
		k := gs.GetKey(i)
		b = append(b, k[:]...)
	}
	b = binary.LittleEndian.AppendUint32(b, gs.GetCreationTime())
	return binary.LittleEndian.AppendUint32(b, gs.GetExpirationTime())
}
