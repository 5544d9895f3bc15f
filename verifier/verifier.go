package verifier

import (
	"fmt"
	"reflect"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alphabill-org/guardian-core/crypto"
	"github.com/alphabill-org/guardian-core/types"
)

type (
	Option func(*options)

	options struct {
		now           func() time.Time
		allowInactive bool
	}
)

// WithClock sets the time source used to decide whether the guardian set is active.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithTime verifies as if the current time was "unixTime".
func WithTime(unixTime uint32) Option {
	return WithClock(func() time.Time { return time.Unix(int64(unixTime), 0) })
}

/*
AllowInactive allows verifying against guardian set which is not active any
more. Meant only for replaying records which were finalized while the set
was active.
*/
func AllowInactive() Option {
	return func(o *options) {
		o.allowInactive = true
	}
}

func newOptions(opts []Option) *options {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) unixNow() uint32 {
	return uint32(o.now().Unix())
}

/*
VerifySignatures checks that "sigs" contains at least quorum of valid signatures
of the guardian set "gs" over "digest".

Guardian indexes must be strictly increasing which rejects duplicate and
reordered entries in a single pass.
*/
func VerifySignatures(digest common.Hash, sigs []*types.Signature, gs types.GuardianSetReader) error {
	if isNil(gs) {
		return fmt.Errorf("%w: guardian set is nil", types.ErrGuardianSetUnavailable)
	}
	if quorum := types.Quorum(gs.GetNumGuardians()); len(sigs) < quorum {
		return fmt.Errorf("%w: %d signatures, quorum of guardian set %d is %d", types.ErrInvalidSignatures, len(sigs), gs.GetIndex(), quorum)
	}
	return VerifyEach(digest, sigs, gs)
}

/*
VerifyEach checks that every signature in "sigs" is a valid signature of the
guardian it claims to be from, without the quorum requirement. Guardian
indexes must be strictly increasing.
*/
func VerifyEach(digest common.Hash, sigs []*types.Signature, gs types.GuardianSetReader) error {
	if isNil(gs) {
		return fmt.Errorf("%w: guardian set is nil", types.ErrGuardianSetUnavailable)
	}
	numGuardians := gs.GetNumGuardians()
	last := -1
	for i, sig := range sigs {
		if sig == nil {
			return fmt.Errorf("%w: signature %d is nil", types.ErrInvalidSignatures, i)
		}
		idx := int(sig.Index)
		if idx <= last {
			return fmt.Errorf("%w: signature %d: guardian index %d is not greater than previous index %d", types.ErrInvalidSignatures, i, idx, last)
		}
		last = idx
		if idx >= numGuardians {
			return fmt.Errorf("%w: signature %d: guardian index %d out of range, guardian set %d has %d guardians",
				types.ErrInvalidSignatures, i, idx, gs.GetIndex(), numGuardians)
		}
		addr, err := crypto.RecoverAddress(digest, sig.Signature[:])
		if err != nil {
			return fmt.Errorf("%w: signature %d: %w", types.ErrInvalidSignatures, i, err)
		}
		if addr != gs.GetKey(idx) {
			return fmt.Errorf("%w: signature %d: recovered %s, guardian %d is %s", types.ErrInvalidSignatures, i, addr, idx, gs.GetKey(idx))
		}
	}
	return nil
}

/*
VerifyVAA checks that the VAA is signed by the guardian set "gs", which must be
the set the VAA claims to be signed by and active at the current time (unless
AllowInactive option is used).
*/
func VerifyVAA(v *types.VAA, gs types.GuardianSetReader, opts ...Option) error {
	if v == nil {
		return fmt.Errorf("%w: VAA is nil", types.ErrMalformedRecord)
	}
	if isNil(gs) {
		return fmt.Errorf("%w: guardian set %d not found", types.ErrGuardianSetUnavailable, v.GuardianSetIndex)
	}
	if gs.GetIndex() != v.GuardianSetIndex {
		return fmt.Errorf("%w: VAA is signed by guardian set %d, got guardian set %d", types.ErrGuardianSetUnavailable, v.GuardianSetIndex, gs.GetIndex())
	}
	o := newOptions(opts)
	if !o.allowInactive {
		if now := o.unixNow(); !types.IsActive(gs, now) {
			return fmt.Errorf("%w: guardian set %d is not active (expiration time %d, now %d)",
				types.ErrGuardianSetUnavailable, gs.GetIndex(), gs.GetExpirationTime(), now)
		}
	}
	return VerifySignatures(v.SigningDigest(), v.Signatures, gs)
}

/*
Verify decodes the wire encoded VAA and verifies it against the guardian set
"gs". Returns the decoded VAA when it is valid.
*/
func Verify(raw []byte, gs types.GuardianSetReader, opts ...Option) (*types.VAA, error) {
	v, err := types.UnmarshalVAA(raw)
	if err != nil {
		return nil, err
	}
	if err := VerifyVAA(v, gs, opts...); err != nil {
		return nil, err
	}
	return v, nil
}

// isNil also catches typed nil pointers stored in the interface.
func isNil(gs types.GuardianSetReader) bool {
	if gs == nil {
		return true
	}
	v := reflect.ValueOf(gs)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
