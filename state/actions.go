package state

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guardian-core/account"
)

type (
	// Accounts is the view of the account storage actions are applied to.
	Accounts interface {
		Get(addr account.Address) (*account.AccountInfo, error)
		Put(info *account.AccountInfo) error
		Delete(addr account.Address) error
	}

	Action func(s Accounts) error

	// UpdateFunction modifies the account, data must be borrowed and released by the function.
	UpdateFunction func(info *account.AccountInfo) error
)

/*
MinimumBalance returns the balance account with "size" bytes of data must
hold to be exempt from rent.
*/
func MinimumBalance(size int) uint64 {
	const (
		accountStorageOverhead = 128
		lamportsPerByteYear    = 3480
		exemptionThreshold     = 2
	)
	return uint64(accountStorageOverhead+size) * lamportsPerByteYear * exemptionThreshold
}

/*
CreateAccount creates new account owned by "owner" and credits it with the
minimum balance for the data size. Fails when the account already exists.
*/
func CreateAccount(addr, owner account.Address, data []byte) Action {
	return func(s Accounts) error {
		if addr.IsZero() {
			return errors.New("account address is zero")
		}
		if _, err := s.Get(addr); err == nil {
			return fmt.Errorf("%w: %s", ErrAccountExists, addr)
		} else if !errors.Is(err, ErrAccountNotFound) {
			return err
		}
		d := make([]byte, len(data))
		copy(d, data)
		if err := s.Put(account.NewAccountInfo(addr, owner, MinimumBalance(len(d)), d)); err != nil {
			return fmt.Errorf("unable to create account: %w", err)
		}
		return nil
	}
}

/*
UpdateAccount loads the account, calls "f" to modify it and stores the
result. When the data grew the balance is topped up to the minimum balance.
*/
func UpdateAccount(addr account.Address, f UpdateFunction) Action {
	return func(s Accounts) error {
		if f == nil {
			return errors.New("update function is nil")
		}
		info, err := s.Get(addr)
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}
		if err := f(info); err != nil {
			return fmt.Errorf("unable to update account %s: %w", addr, err)
		}
		if info.IsBorrowed() {
			return fmt.Errorf("account %s data has not been released", addr)
		}
		if minBalance := MinimumBalance(info.DataLen()); info.Lamports < minBalance {
			info.Lamports = minBalance
		}
		if err := s.Put(info); err != nil {
			return fmt.Errorf("unable to update account: %w", err)
		}
		return nil
	}
}

/*
CloseAccount deletes the account and moves its balance to the "recipient".
Recipient account is created (as system account) if it doesn't exist.
*/
func CloseAccount(addr, recipient account.Address) Action {
	return func(s Accounts) error {
		if addr == recipient {
			return fmt.Errorf("account %s can't be closed into itself", addr)
		}
		if recipient.IsZero() {
			return errors.New("recipient address is zero")
		}
		closed, err := s.Get(addr)
		if err != nil {
			return fmt.Errorf("failed to get account: %w", err)
		}
		rcpt, err := s.Get(recipient)
		switch {
		case errors.Is(err, ErrAccountNotFound):
			rcpt = account.NewAccountInfo(recipient, account.SystemProgramID, 0, nil)
		case err != nil:
			return fmt.Errorf("failed to get recipient account: %w", err)
		}
		rcpt.Lamports += closed.Lamports
		if err := s.Put(rcpt); err != nil {
			return fmt.Errorf("unable to refund recipient: %w", err)
		}
		if err := s.Delete(addr); err != nil {
			return fmt.Errorf("unable to delete account: %w", err)
		}
		return nil
	}
}
