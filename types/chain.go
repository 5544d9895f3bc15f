package types

import "strconv"

// ChainID identifies the source chain of the attestation.
type ChainID uint16

const (
	ChainIDUnset    ChainID = 0
	ChainIDSolana   ChainID = 1
	ChainIDEthereum ChainID = 2
	ChainIDTerra    ChainID = 3
	ChainIDBSC      ChainID = 4
	ChainIDPolygon  ChainID = 5
)

func (c ChainID) String() string {
	switch c {
	case ChainIDUnset:
		return "unset"
	case ChainIDSolana:
		return "solana"
	case ChainIDEthereum:
		return "ethereum"
	case ChainIDTerra:
		return "terra"
	case ChainIDBSC:
		return "bsc"
	case ChainIDPolygon:
		return "polygon"
	default:
		return "unknown chain ID: " + strconv.Itoa(int(c))
	}
}
