package types

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// GovernanceChain is the chain governance actions are emitted from.
	GovernanceChain = ChainIDSolana

	// ActionGuardianSetUpgrade is the core module governance action replacing the guardian set.
	ActionGuardianSetUpgrade uint8 = 2

	governanceModuleSize        = 32
	guardianSetUpgradeFixedSize = governanceModuleSize + 1 + 2 + 4 + 1
)

var (
	// GovernanceEmitter is the emitter address of the governance channel.
	GovernanceEmitter = EmitterAddress{31: 4}

	// CoreModule is the left padded "Core" module name of the core bridge governance actions.
	CoreModule = [governanceModuleSize]byte{28: 'C', 29: 'o', 30: 'r', 31: 'e'}
)

/*
GuardianSetUpgrade is the payload of the governance VAA which registers
a new guardian set:

	module [32] | action u8 | chain u16 | new_index u32 | n u8 | n * key [20]
*/
type GuardianSetUpgrade struct {
	Module         [governanceModuleSize]byte
	Action         uint8
	TargetChain    ChainID
	NewIndex       uint32
	NewGuardianSet []common.Address
}

func ParseGuardianSetUpgrade(payload []byte) (*GuardianSetUpgrade, error) {
	if len(payload) < guardianSetUpgradeFixedSize {
		return nil, fmt.Errorf("%w: guardian set upgrade payload is too short: %d bytes", ErrMalformedRecord, len(payload))
	}
	u := &GuardianSetUpgrade{}
	copy(u.Module[:], payload[:governanceModuleSize])
	offset := governanceModuleSize
	u.Action = payload[offset]
	u.TargetChain = ChainID(binary.BigEndian.Uint16(payload[offset+1:]))
	u.NewIndex = binary.BigEndian.Uint32(payload[offset+3:])
	numKeys := int(payload[offset+7])
	offset = guardianSetUpgradeFixedSize
	if len(payload) != offset+numKeys*common.AddressLength {
		return nil, fmt.Errorf("%w: guardian set upgrade with %d keys must be %d bytes, got %d",
			ErrMalformedRecord, numKeys, offset+numKeys*common.AddressLength, len(payload))
	}
	u.NewGuardianSet = make([]common.Address, numKeys)
	for i := range u.NewGuardianSet {
		copy(u.NewGuardianSet[i][:], payload[offset:offset+common.AddressLength])
		offset += common.AddressLength
	}
	return u, nil
}

func (u *GuardianSetUpgrade) Marshal() []byte {
	b := make([]byte, 0, guardianSetUpgradeFixedSize+len(u.NewGuardianSet)*common.AddressLength)
	b = append(b, u.Module[:]...)
	b = append(b, u.Action)
	b = binary.BigEndian.AppendUint16(b, uint16(u.TargetChain))
	b = binary.BigEndian.AppendUint32(b, u.NewIndex)
	b = append(b, uint8(len(u.NewGuardianSet)))
	for _, k := range u.NewGuardianSet {
		b = append(b, k[:]...)
	}
	return b
}

// ModuleName returns the module field as rendered text.
func (u *GuardianSetUpgrade) ModuleName() string {
	s, _ := ParseFixedUTF8(u.Module[:], governanceModuleSize)
	return s
}

/*
IsValid checks that the upgrade is a core module guardian set upgrade meant
for "chain" (or for all chains).
*/
func (u *GuardianSetUpgrade) IsValid(chain ChainID) error {
	if u.Module != CoreModule {
		return fmt.Errorf("%w: unexpected governance module %q", ErrInvalidGovernance, u.ModuleName())
	}
	if u.Action != ActionGuardianSetUpgrade {
		return fmt.Errorf("%w: unexpected governance action %d", ErrInvalidGovernance, u.Action)
	}
	if u.TargetChain != ChainIDUnset && u.TargetChain != chain {
		return fmt.Errorf("%w: governance action is for chain %s", ErrInvalidGovernance, u.TargetChain)
	}
	if len(u.NewGuardianSet) == 0 {
		return fmt.Errorf("%w: new guardian set is empty", ErrInvalidGovernance)
	}
	return nil
}
