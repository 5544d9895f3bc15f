package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/crypto"
	"github.com/alphabill-org/guardian-core/logger"
	"github.com/alphabill-org/guardian-core/observability"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/types"
	"github.com/alphabill-org/guardian-core/verifier"
	"github.com/alphabill-org/guardian-core/zerocopy"
)

type (
	Observability interface {
		PrometheusRegisterer() prometheus.Registerer
		Logger() *slog.Logger
	}

	/*
		Processor executes the core bridge operations over the account store.
		Every operation is applied atomically, on error no account is changed.
	*/
	Processor struct {
		store     *state.Store
		programID account.Address
		resolver  *Resolver
		log       *slog.Logger
		ops       *prometheus.CounterVec
	}
)

func NewProcessor(store *state.Store, programID account.Address, obs Observability) (*Processor, error) {
	resolver, err := NewResolver(store, programID)
	if err != nil {
		return nil, err
	}
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: observability.Namespace,
		Subsystem: "bridge",
		Name:      "operations_total",
		Help:      "Number of bridge operations executed, by operation and result",
	}, []string{"op", "result"})
	if ops, err = observability.Register(obs.PrometheusRegisterer(), ops); err != nil {
		return nil, fmt.Errorf("registering bridge operations counter: %w", err)
	}
	return &Processor{
		store:     store,
		programID: programID,
		resolver:  resolver,
		log:       obs.Logger().With(logger.Module("bridge")),
		ops:       ops,
	}, nil
}

func (p *Processor) ProgramID() account.Address { return p.programID }

// Resolver returns guardian set resolver over the accounts of the processor.
func (p *Processor) Resolver() *Resolver { return p.resolver }

/*
Initialize creates the bridge config and the initial guardian set (index 0)
with "keys". Previous guardian sets stay active "guardianSetTTL" seconds
after they have been replaced by an upgrade.
*/
func (p *Processor) Initialize(ctx context.Context, guardianSetTTL uint32, keys []common.Address, now uint32) (rErr error) {
	defer func() { p.observe("initialize", rErr) }()

	if guardianSetTTL == 0 {
		return fmt.Errorf("%w: guardian set TTL must be greater than zero", types.ErrMalformedRecord)
	}
	gs, err := types.NewGuardianSet(0, keys, now)
	if err != nil {
		return fmt.Errorf("invalid initial guardian set: %w", err)
	}
	cfgAddr, err := account.ConfigAddress(p.programID)
	if err != nil {
		return err
	}
	gsAddr, err := account.GuardianSetAddress(p.programID, gs.Index)
	if err != nil {
		return err
	}
	cfg := &Config{GuardianSetIndex: gs.Index, GuardianSetTTL: guardianSetTTL}
	if err := p.store.Apply(
		state.CreateAccount(cfgAddr, p.programID, cfg.Marshal()),
		state.CreateAccount(gsAddr, p.programID, zerocopy.EncodeGuardianSet(gs)),
	); err != nil {
		return fmt.Errorf("initializing bridge: %w", err)
	}
	p.log.InfoContext(ctx, "bridge initialized", logger.GuardianSetIndex(gs.Index), logger.Address(gsAddr))
	return nil
}

/*
UpgradeGuardianSet executes guardian set upgrade governance VAA "raw". The VAA
must be signed by the current guardian set and register the set with the next
index. The current set expires "guardian set TTL" seconds after "now".
*/
func (p *Processor) UpgradeGuardianSet(ctx context.Context, raw []byte, now uint32) (_ *types.GuardianSet, rErr error) {
	defer func() { p.observe("upgrade_guardian_set", rErr) }()

	v, err := types.UnmarshalVAA(raw)
	if err != nil {
		return nil, err
	}
	if !v.IsGovernance() {
		return nil, fmt.Errorf("%w: VAA is emitted by %s on chain %s", types.ErrInvalidGovernance, v.EmitterAddress, v.EmitterChain)
	}
	upgrade, err := types.ParseGuardianSetUpgrade(v.Payload)
	if err != nil {
		return nil, err
	}
	if err := upgrade.IsValid(types.ChainIDSolana); err != nil {
		return nil, err
	}

	cfg, err := p.Config(ctx)
	if err != nil {
		return nil, err
	}
	err = p.resolver.WithGuardianSet(ctx, cfg.GuardianSetIndex, func(gs types.GuardianSetReader) error {
		return verifier.VerifyVAA(v, gs, verifier.WithTime(now))
	})
	if err != nil {
		return nil, fmt.Errorf("verifying guardian set upgrade: %w", err)
	}
	if upgrade.NewIndex != cfg.GuardianSetIndex+1 {
		return nil, fmt.Errorf("%w: new guardian set index must be %d, got %d", types.ErrInvalidGovernance, cfg.GuardianSetIndex+1, upgrade.NewIndex)
	}
	newGS, err := types.NewGuardianSet(upgrade.NewIndex, upgrade.NewGuardianSet, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidGovernance, err)
	}

	cfgAddr, err := account.ConfigAddress(p.programID)
	if err != nil {
		return nil, err
	}
	curAddr, err := account.GuardianSetAddress(p.programID, cfg.GuardianSetIndex)
	if err != nil {
		return nil, err
	}
	newAddr, err := account.GuardianSetAddress(p.programID, newGS.Index)
	if err != nil {
		return nil, err
	}
	expiration := expirationTime(now, cfg.GuardianSetTTL)
	if err := p.store.Apply(
		state.CreateAccount(newAddr, p.programID, zerocopy.EncodeGuardianSet(newGS)),
		state.UpdateAccount(curAddr, p.expireGuardianSet(expiration)),
		state.UpdateAccount(cfgAddr, p.updateConfig(func(c *Config) { c.GuardianSetIndex = newGS.Index })),
	); err != nil {
		return nil, fmt.Errorf("upgrading guardian set: %w", err)
	}
	p.log.InfoContext(ctx, fmt.Sprintf("guardian set %d expires at %d", cfg.GuardianSetIndex, expiration), logger.GuardianSetIndex(cfg.GuardianSetIndex))
	p.log.InfoContext(ctx, "guardian set registered", logger.GuardianSetIndex(newGS.Index), logger.Address(newAddr))
	return newGS, nil
}

/*
VerifySignatures verifies signatures of the guardian set "gsIndex" over the
message and records the guardians who signed in the signature set account.
The account is created on first call, following calls must be for the same
message and guardian set.
*/
func (p *Processor) VerifySignatures(ctx context.Context, signatureSet account.Address, gsIndex uint32, messageHash common.Hash, sigs []*types.Signature, now uint32) (_ *SignatureSet, rErr error) {
	defer func() { p.observe("verify_signatures", rErr) }()

	if signatureSet.IsZero() {
		return nil, errors.New("signature set address is zero")
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no signatures", types.ErrInvalidSignatures)
	}
	numGuardians := 0
	err := p.resolver.WithGuardianSet(ctx, gsIndex, func(gs types.GuardianSetReader) error {
		if !types.IsActive(gs, now) {
			return fmt.Errorf("%w: guardian set %d is not active", types.ErrGuardianSetUnavailable, gsIndex)
		}
		numGuardians = gs.GetNumGuardians()
		return verifier.VerifyEach(crypto.Keccak256(messageHash[:]), sigs, gs)
	})
	if err != nil {
		return nil, err
	}

	var set *SignatureSet
	err = p.store.Apply(func(s state.Accounts) error {
		_, err := s.Get(signatureSet)
		if errors.Is(err, state.ErrAccountNotFound) {
			set = &SignatureSet{Signatures: make([]bool, numGuardians), MessageHash: messageHash, GuardianSetIndex: gsIndex}
			if err := set.mark(sigs); err != nil {
				return err
			}
			return state.CreateAccount(signatureSet, p.programID, set.Marshal())(s)
		}
		if err != nil {
			return err
		}
		return state.UpdateAccount(signatureSet, func(info *account.AccountInfo) error {
			if err := p.checkOwner(info); err != nil {
				return err
			}
			ref, err := info.TryBorrowMutData()
			if err != nil {
				return err
			}
			defer ref.Release()
			if set, err = UnmarshalSignatureSet(ref.Bytes()); err != nil {
				return err
			}
			if set.MessageHash != messageHash || set.GuardianSetIndex != gsIndex {
				return fmt.Errorf("%w: signature set %s is for message %s of guardian set %d",
					types.ErrSignatureSetMismatch, signatureSet, set.MessageHash, set.GuardianSetIndex)
			}
			if err := set.mark(sigs); err != nil {
				return err
			}
			copy(ref.Bytes(), set.Marshal())
			return nil
		})(s)
	})
	if err != nil {
		return nil, fmt.Errorf("recording signatures: %w", err)
	}
	p.log.DebugContext(ctx, fmt.Sprintf("%d of %d guardians verified", set.NumVerified(), numGuardians),
		logger.Address(signatureSet), logger.Digest(messageHash[:]), logger.GuardianSetIndex(gsIndex))
	return set, nil
}

/*
PostVAA stores the VAA whose signatures have been verified into the signature
set account "signatureSet". The signature set must contain quorum of
verified signatures. Posting already posted VAA is no-op, the signature set
reference of the posted VAA never changes.
*/
func (p *Processor) PostVAA(ctx context.Context, signatureSet account.Address, v *types.VAA) (_ account.Address, rErr error) {
	defer func() { p.observe("post_vaa", rErr) }()

	set, err := p.SignatureSet(ctx, signatureSet)
	if err != nil {
		return account.Address{}, err
	}
	if msgHash := v.MessageHash(); set.MessageHash != msgHash {
		return account.Address{}, fmt.Errorf("%w: signature set %s is for message %s, VAA message is %s",
			types.ErrSignatureSetMismatch, signatureSet, set.MessageHash, msgHash)
	}
	if set.GuardianSetIndex != v.GuardianSetIndex {
		return account.Address{}, fmt.Errorf("%w: signature set %s is for guardian set %d, VAA is signed by guardian set %d",
			types.ErrSignatureSetMismatch, signatureSet, set.GuardianSetIndex, v.GuardianSetIndex)
	}
	quorum := 0
	err = p.resolver.WithGuardianSet(ctx, set.GuardianSetIndex, func(gs types.GuardianSetReader) error {
		quorum = types.Quorum(gs.GetNumGuardians())
		return nil
	})
	if err != nil {
		return account.Address{}, err
	}
	if cnt := set.NumVerified(); cnt < quorum {
		return account.Address{}, fmt.Errorf("%w: %d verified signatures, quorum of guardian set %d is %d",
			types.ErrInvalidSignatures, cnt, set.GuardianSetIndex, quorum)
	}
	return p.post(ctx, newPostedVAA(v, signatureSet))
}

/*
PostVerifiedVAA verifies all the signatures of the VAA in one step and stores
it. The posted VAA doesn't reference any signature set.
*/
func (p *Processor) PostVerifiedVAA(ctx context.Context, v *types.VAA, now uint32) (_ account.Address, rErr error) {
	defer func() { p.observe("post_verified_vaa", rErr) }()

	err := p.resolver.WithGuardianSet(ctx, v.GuardianSetIndex, func(gs types.GuardianSetReader) error {
		return verifier.VerifyVAA(v, gs, verifier.WithTime(now))
	})
	if err != nil {
		return account.Address{}, err
	}
	return p.post(ctx, newPostedVAA(v, account.Address{}))
}

func (p *Processor) post(ctx context.Context, posted *PostedVAA) (account.Address, error) {
	msgHash := posted.MessageHash()
	addr, err := account.PostedVAAAddress(p.programID, msgHash)
	if err != nil {
		return account.Address{}, err
	}
	created := false
	err = p.store.Apply(func(s state.Accounts) error {
		if _, err := s.Get(addr); !errors.Is(err, state.ErrAccountNotFound) {
			return err
		}
		created = true
		return state.CreateAccount(addr, p.programID, posted.Marshal())(s)
	})
	if err != nil {
		return account.Address{}, fmt.Errorf("posting VAA: %w", err)
	}
	if created {
		p.log.InfoContext(ctx, "VAA posted", logger.Address(addr), logger.Digest(msgHash[:]), logger.GuardianSetIndex(posted.GuardianSetIndex))
	} else {
		p.log.DebugContext(ctx, "VAA already posted", logger.Address(addr), logger.Digest(msgHash[:]))
	}
	return addr, nil
}

/*
ClosePostedVAA closes the posted VAA account and refunds its balance to the
recipient. When the VAA was posted using signature set the same signature set
must be given and it is closed too, otherwise "signatureSet" must be nil.
*/
func (p *Processor) ClosePostedVAA(ctx context.Context, recipient, postedVAA account.Address, signatureSet *account.Address) (rErr error) {
	defer func() { p.observe("close_posted_vaa", rErr) }()

	var refund uint64
	err := p.store.Apply(func(s state.Accounts) error {
		info, err := s.Get(postedVAA)
		if err != nil {
			return err
		}
		posted, err := decodeAccount(p, info, UnmarshalPostedVAA)
		if err != nil {
			return err
		}
		addr, err := account.PostedVAAAddress(p.programID, posted.MessageHash())
		if err != nil {
			return err
		}
		if addr != postedVAA {
			return fmt.Errorf("%w: posted VAA must be stored at %s, found at %s", types.ErrAddressMismatch, addr, postedVAA)
		}
		refund = info.Lamports

		if signatureSet == nil {
			if !posted.SignatureSet.IsZero() {
				return fmt.Errorf("%w: posted VAA %s references signature set %s", types.ErrSignatureSetMismatch, postedVAA, posted.SignatureSet)
			}
			return state.CloseAccount(postedVAA, recipient)(s)
		}

		if signatureSet.IsZero() || *signatureSet != posted.SignatureSet {
			return fmt.Errorf("%w: posted VAA %s references signature set %s, got %s", types.ErrSignatureSetMismatch, postedVAA, posted.SignatureSet, signatureSet)
		}
		setInfo, err := s.Get(*signatureSet)
		if err != nil {
			return fmt.Errorf("signature set: %w", err)
		}
		if err := p.checkOwner(setInfo); err != nil {
			return err
		}
		refund += setInfo.Lamports
		if err := state.CloseAccount(postedVAA, recipient)(s); err != nil {
			return err
		}
		return state.CloseAccount(*signatureSet, recipient)(s)
	})
	if err != nil {
		return fmt.Errorf("closing posted VAA: %w", err)
	}
	p.log.InfoContext(ctx, fmt.Sprintf("posted VAA closed, refunded %d lamports to %s", refund, recipient), logger.Address(postedVAA))
	return nil
}

/*
CloseSignatureSet closes signature set which is not referenced by a posted
VAA and refunds its balance to the recipient. Signature sets used to post a
VAA are closed together with the posted VAA.
*/
func (p *Processor) CloseSignatureSet(ctx context.Context, recipient, signatureSet account.Address) (rErr error) {
	defer func() { p.observe("close_signature_set", rErr) }()

	var refund uint64
	err := p.store.Apply(func(s state.Accounts) error {
		info, err := s.Get(signatureSet)
		if err != nil {
			return err
		}
		set, err := decodeAccount(p, info, UnmarshalSignatureSet)
		if err != nil {
			return err
		}
		postedAddr, err := account.PostedVAAAddress(p.programID, set.MessageHash)
		if err != nil {
			return err
		}
		postedInfo, err := s.Get(postedAddr)
		switch {
		case err == nil:
			posted, err := decodeAccount(p, postedInfo, UnmarshalPostedVAA)
			if err != nil {
				return err
			}
			if posted.SignatureSet == signatureSet {
				return fmt.Errorf("%w: signature set %s is referenced by posted VAA %s", types.ErrSignatureSetMismatch, signatureSet, postedAddr)
			}
		case !errors.Is(err, state.ErrAccountNotFound):
			return err
		}
		refund = info.Lamports
		return state.CloseAccount(signatureSet, recipient)(s)
	})
	if err != nil {
		return fmt.Errorf("closing signature set: %w", err)
	}
	p.log.InfoContext(ctx, fmt.Sprintf("signature set closed, refunded %d lamports to %s", refund, recipient), logger.Address(signatureSet))
	return nil
}

func (p *Processor) Config(ctx context.Context) (*Config, error) {
	addr, err := account.ConfigAddress(p.programID)
	if err != nil {
		return nil, err
	}
	info, err := p.store.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("bridge is not initialized: %w", err)
	}
	return decodeAccount(p, info, UnmarshalConfig)
}

// GuardianSet returns copy of the guardian set "index".
func (p *Processor) GuardianSet(ctx context.Context, index uint32) (gs *types.GuardianSet, err error) {
	err = p.resolver.WithGuardianSet(ctx, index, func(view types.GuardianSetReader) error {
		gs = types.Copy(view)
		return nil
	})
	return gs, err
}

// CurrentGuardianSet returns copy of the guardian set the config points to.
func (p *Processor) CurrentGuardianSet(ctx context.Context) (*types.GuardianSet, error) {
	cfg, err := p.Config(ctx)
	if err != nil {
		return nil, err
	}
	return p.GuardianSet(ctx, cfg.GuardianSetIndex)
}

// PostedVAA returns the posted VAA with the message hash (keccak256 of the VAA body).
func (p *Processor) PostedVAA(ctx context.Context, messageHash common.Hash) (*PostedVAA, error) {
	addr, err := account.PostedVAAAddress(p.programID, messageHash)
	if err != nil {
		return nil, err
	}
	info, err := p.store.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("posted VAA %s: %w", messageHash, err)
	}
	return decodeAccount(p, info, UnmarshalPostedVAA)
}

func (p *Processor) SignatureSet(ctx context.Context, addr account.Address) (*SignatureSet, error) {
	info, err := p.store.GetAccount(addr)
	if err != nil {
		return nil, fmt.Errorf("signature set: %w", err)
	}
	return decodeAccount(p, info, UnmarshalSignatureSet)
}

func (p *Processor) expireGuardianSet(expiration uint32) state.UpdateFunction {
	return func(info *account.AccountInfo) error {
		if err := p.checkOwner(info); err != nil {
			return err
		}
		ref, err := info.TryBorrowMutData()
		if err != nil {
			return err
		}
		defer ref.Release()
		gs, err := zerocopy.ParseGuardianSet(ref.Bytes())
		if err != nil {
			return err
		}
		if t := gs.GetExpirationTime(); t != 0 {
			return fmt.Errorf("guardian set %d already expires at %d", gs.GetIndex(), t)
		}
		return zerocopy.SetExpirationTime(ref.Bytes(), expiration)
	}
}

/*
expirationTime returns "now + ttl" saturated to the uint32 range. Zero means
"never expires" so it is never returned.
*/
func expirationTime(now, ttl uint32) uint32 {
	exp := uint64(now) + uint64(ttl)
	switch {
	case exp > math.MaxUint32:
		return math.MaxUint32
	case exp == 0:
		return 1
	}
	return uint32(exp)
}

func (p *Processor) updateConfig(f func(c *Config)) state.UpdateFunction {
	return func(info *account.AccountInfo) error {
		if err := p.checkOwner(info); err != nil {
			return err
		}
		ref, err := info.TryBorrowMutData()
		if err != nil {
			return err
		}
		defer ref.Release()
		cfg, err := UnmarshalConfig(ref.Bytes())
		if err != nil {
			return err
		}
		f(cfg)
		copy(ref.Bytes(), cfg.Marshal())
		return nil
	}
}

func (p *Processor) checkOwner(info *account.AccountInfo) error {
	if info.Owner != p.programID {
		return fmt.Errorf("%w: account %s is owned by %s", types.ErrAddressMismatch, info.Key, info.Owner)
	}
	return nil
}

func (p *Processor) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = types.ErrorKind(err)
	}
	p.ops.WithLabelValues(op, result).Inc()
}

// decodeAccount checks that the account is owned by the program and decodes its data.
func decodeAccount[T any](p *Processor, info *account.AccountInfo, decode func([]byte) (*T, error)) (*T, error) {
	if err := p.checkOwner(info); err != nil {
		return nil, err
	}
	ref, err := info.TryBorrowData()
	if err != nil {
		return nil, err
	}
	defer ref.Release()
	v, err := decode(ref.Bytes())
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", info.Key, err)
	}
	return v, nil
}

// mark records the guardians of "sigs" as verified.
func (s *SignatureSet) mark(sigs []*types.Signature) error {
	for _, sig := range sigs {
		if int(sig.Index) >= len(s.Signatures) {
			return fmt.Errorf("%w: guardian index %d out of range, signature set has %d guardians",
				types.ErrSignatureSetMismatch, sig.Index, len(s.Signatures))
		}
		s.Signatures[sig.Index] = true
	}
	return nil
}
