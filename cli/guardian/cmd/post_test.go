package cmd

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/bridge"
	"github.com/alphabill-org/guardian-core/internal/testutils/guardians"
	"github.com/alphabill-org/guardian-core/keyvaluedb/boltdb"
	"github.com/alphabill-org/guardian-core/state"
	"github.com/alphabill-org/guardian-core/types"
)

// accountBalance reads the balance of the account from the database of the home dir, zero when there is no account.
func accountBalance(t *testing.T, homeDir string, addr account.Address) uint64 {
	t.Helper()
	db, err := boltdb.New(filepath.Join(homeDir, defaultDBFile))
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()
	store, err := state.NewStore(db)
	require.NoError(t, err)
	info, err := store.GetAccount(addr)
	if err != nil {
		require.ErrorIs(t, err, state.ErrAccountNotFound)
		return 0
	}
	return info.Lamports
}

func TestPostAndClose(t *testing.T) {
	setUnixNow(t, 1_700_000_000)
	homeDir, signers := initBridge(t, 4)
	recipient := account.Address{0xEE}

	v := guardians.NewVAA(0, []byte("hello"))
	guardians.SignQuorum(t, v, signers)
	raw := hex.EncodeToString(guardians.Marshal(t, v))
	postedAddr, err := account.PostedVAAAddress(account.DefaultProgramID, v.MessageHash())
	require.NoError(t, err)

	out, err := execCommand(t, homeDir, "post", raw)
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("VAA %s posted to %s", v.MessageHash(), postedAddr)}, out.lines)
	postedBalance := accountBalance(t, homeDir, postedAddr)
	require.NotZero(t, postedBalance)

	// posting again is no-op
	out, err = execCommand(t, homeDir, "post", raw)
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("VAA %s posted to %s", v.MessageHash(), postedAddr)}, out.lines)

	// posted without signature set, must be closed without one
	_, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--posted", postedAddr.String(), "--signature-set", account.Address{1}.String())
	require.ErrorIs(t, err, types.ErrSignatureSetMismatch)

	out, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--posted", postedAddr.String())
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("posted VAA %s closed", postedAddr)}, out.lines)
	require.Zero(t, accountBalance(t, homeDir, postedAddr))
	require.Equal(t, postedBalance, accountBalance(t, homeDir, recipient))

	_, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--posted", postedAddr.String())
	require.ErrorIs(t, err, state.ErrAccountNotFound)
}

func TestPostWithSignatureSet(t *testing.T) {
	setUnixNow(t, 1_700_000_000)
	homeDir, signers := initBridge(t, 7)
	recipient := account.Address{0xEE}
	sigSet := account.Address{0x51, 0x6E}

	v := guardians.NewVAA(0, []byte("multi step"))
	guardians.SignQuorum(t, v, signers)
	require.Len(t, v.Signatures, 5)
	raw := hex.EncodeToString(guardians.Marshal(t, v))
	postedAddr, err := account.PostedVAAAddress(account.DefaultProgramID, v.MessageHash())
	require.NoError(t, err)

	out, err := execCommand(t, homeDir, "post", raw, "--signature-set", sigSet.String(), "--batch-size", "2")
	require.NoError(t, err)
	require.Equal(t, []string{
		fmt.Sprintf("signature set %s: 2 signatures verified", sigSet),
		fmt.Sprintf("signature set %s: 4 signatures verified", sigSet),
		fmt.Sprintf("signature set %s: 5 signatures verified", sigSet),
		fmt.Sprintf("VAA %s posted to %s", v.MessageHash(), postedAddr),
	}, out.lines)

	// signature set referenced by the posted VAA can't be closed on its own
	_, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--signature-set", sigSet.String())
	require.ErrorIs(t, err, types.ErrSignatureSetMismatch)

	_, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--posted", postedAddr.String())
	require.ErrorIs(t, err, types.ErrSignatureSetMismatch)

	out, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--posted", postedAddr.String(), "--signature-set", sigSet.String())
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("posted VAA %s closed", postedAddr)}, out.lines)

	posted := &bridge.PostedVAA{Payload: v.Payload}
	set := &bridge.SignatureSet{Signatures: make([]bool, len(signers))}
	require.Equal(t, state.MinimumBalance(len(posted.Marshal()))+state.MinimumBalance(len(set.Marshal())), accountBalance(t, homeDir, recipient))
	require.Zero(t, accountBalance(t, homeDir, sigSet))
}

func TestPost_quorumNotReached(t *testing.T) {
	setUnixNow(t, 1_700_000_000)
	homeDir, signers := initBridge(t, 4)
	recipient := account.Address{0xEE}
	sigSet := account.Address{0x51}

	v := guardians.NewVAA(0, []byte("hello"))
	guardians.Sign(t, v, signers, 1, 3)
	raw := hex.EncodeToString(guardians.Marshal(t, v))

	_, err := execCommand(t, homeDir, "post", raw)
	require.ErrorIs(t, err, types.ErrInvalidSignatures)

	out, err := execCommand(t, homeDir, "post", raw, "--signature-set", sigSet.String())
	require.ErrorIs(t, err, types.ErrInvalidSignatures)
	require.Equal(t, []string{fmt.Sprintf("signature set %s: 2 signatures verified", sigSet)}, out.lines)

	// unused signature set can be closed
	balance := accountBalance(t, homeDir, sigSet)
	require.NotZero(t, balance)
	out, err = execCommand(t, homeDir, "close", "--recipient", recipient.String(), "--signature-set", sigSet.String())
	require.NoError(t, err)
	require.Equal(t, []string{fmt.Sprintf("signature set %s closed", sigSet)}, out.lines)
	require.Equal(t, balance, accountBalance(t, homeDir, recipient))
}

func TestClose_invalidArgs(t *testing.T) {
	homeDir := t.TempDir()
	recipient := account.Address{0xEE}.String()

	_, err := execCommand(t, homeDir, "close", "--posted", recipient)
	require.EqualError(t, err, `required flag(s) "recipient" not set`)

	_, err = execCommand(t, homeDir, "close", "--recipient", recipient)
	require.EqualError(t, err, "either --posted or --signature-set must be set")

	_, err = execCommand(t, homeDir, "close", "--recipient", "0OIl", "--posted", recipient)
	require.ErrorContains(t, err, "invalid recipient address")

	_, err = execCommand(t, homeDir, "close", "--recipient", recipient, "--signature-set", "0OIl")
	require.ErrorContains(t, err, "invalid signature set address")
}

func TestSignatureBatches(t *testing.T) {
	sigs := make([]*types.Signature, 5)
	require.Len(t, signatureBatches(sigs, 0), 1)
	require.Len(t, signatureBatches(sigs, 5), 1)
	batches := signatureBatches(sigs, 2)
	require.Len(t, batches, 3)
	require.Len(t, batches[2], 1)
}
