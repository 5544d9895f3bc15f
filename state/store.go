package state

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/alphabill-org/guardian-core/account"
	"github.com/alphabill-org/guardian-core/keyvaluedb"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

type (
	/*
		Store keeps accounts in key-value database. Actions are applied
		atomically: either all of them succeed or nothing is changed.
	*/
	Store struct {
		db keyvaluedb.KeyValueDB
		// serializes Apply calls, the memory db transaction is copy-on-write
		mu sync.Mutex
	}

	accountRecord struct {
		_        struct{}        `cbor:",toarray"`
		Owner    account.Address `json:"owner"`
		Lamports uint64          `json:"lamports"`
		Data     []byte          `json:"data"`
	}

	txAccounts struct {
		tx keyvaluedb.ReadWriter
	}
)

func NewStore(db keyvaluedb.KeyValueDB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("account database is nil")
	}
	return &Store{db: db}, nil
}

/*
GetAccount returns copy of the account, changes made to it are not stored
unless the account is written back with an action.
*/
func (s *Store) GetAccount(addr account.Address) (*account.AccountInfo, error) {
	return getAccount(s.db, addr)
}

// Apply executes actions in single database transaction.
func (s *Store) Apply(actions ...Action) (rErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.StartTx()
	if err != nil {
		return fmt.Errorf("starting account db transaction: %w", err)
	}
	defer func() {
		if rErr != nil {
			rErr = errors.Join(rErr, tx.Rollback())
		}
	}()

	accs := &txAccounts{tx: tx}
	for _, action := range actions {
		if err := action(accs); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing account db transaction: %w", err)
	}
	return nil
}

// TotalLamports returns sum of the balances of all accounts.
func (s *Store) TotalLamports() (total uint64, rErr error) {
	it := s.db.First()
	defer func() { rErr = errors.Join(rErr, it.Close()) }()
	for ; it.Valid(); it.Next() {
		rec := &accountRecord{}
		if err := it.Value(rec); err != nil {
			return 0, fmt.Errorf("reading account %x: %w", it.Key(), err)
		}
		total += rec.Lamports
	}
	return total, nil
}

func (a *txAccounts) Get(addr account.Address) (*account.AccountInfo, error) {
	return getAccount(a.tx, addr)
}

func (a *txAccounts) Put(info *account.AccountInfo) error {
	ref, err := info.TryBorrowData()
	if err != nil {
		return err
	}
	defer ref.Release()
	rec := &accountRecord{
		Owner:    info.Owner,
		Lamports: info.Lamports,
		Data:     bytes.Clone(ref.Bytes()),
	}
	if err := a.tx.Write(info.Key[:], rec); err != nil {
		return fmt.Errorf("writing account %s: %w", info.Key, err)
	}
	return nil
}

func (a *txAccounts) Delete(addr account.Address) error {
	if err := a.tx.Delete(addr[:]); err != nil {
		return fmt.Errorf("deleting account %s: %w", addr, err)
	}
	return nil
}

func getAccount(db keyvaluedb.Reader, addr account.Address) (*account.AccountInfo, error) {
	rec := &accountRecord{}
	found, err := db.Read(addr[:], rec)
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", addr, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	return account.NewAccountInfo(addr, rec.Owner, rec.Lamports, rec.Data), nil
}
