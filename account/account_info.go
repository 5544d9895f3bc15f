package account

import (
	"errors"
	"fmt"
)

var ErrAccountBorrowFailed = errors.New("account data already borrowed")

/*
AccountInfo is an account loaded from the storage: its address, owner program,
balance and raw data.

The data can be accessed only through a borrow: any number of shared (read-only)
borrows or a single mutable borrow may be outstanding at a time. Not safe for
concurrent use, the storage hands out separate AccountInfo per caller.
*/
type AccountInfo struct {
	Key      Address
	Owner    Address
	Lamports uint64

	data []byte
	// number of shared borrows, -1 when borrowed mutably
	borrows int
}

/*
DataRef is a scoped borrow of the account data. Release must be called when
the data is no longer used, the slice returned by Bytes must not be retained
after that.
*/
type DataRef struct {
	info    *AccountInfo
	mutable bool
}

func NewAccountInfo(key, owner Address, lamports uint64, data []byte) *AccountInfo {
	return &AccountInfo{Key: key, Owner: owner, Lamports: lamports, data: data}
}

// TryBorrowData returns shared borrow of the account data, fails when data is borrowed mutably.
func (a *AccountInfo) TryBorrowData() (*DataRef, error) {
	if a.borrows < 0 {
		return nil, fmt.Errorf("%w: account %s is borrowed mutably", ErrAccountBorrowFailed, a.Key)
	}
	a.borrows++
	return &DataRef{info: a}, nil
}

// TryBorrowMutData returns exclusive borrow of the account data, fails when data is borrowed.
func (a *AccountInfo) TryBorrowMutData() (*DataRef, error) {
	if a.borrows != 0 {
		return nil, fmt.Errorf("%w: account %s", ErrAccountBorrowFailed, a.Key)
	}
	a.borrows = -1
	return &DataRef{info: a, mutable: true}, nil
}

// DataLen returns the size of the account data, doesn't require borrow.
func (a *AccountInfo) DataLen() int {
	return len(a.data)
}

// IsBorrowed returns true while any borrow of the data is outstanding.
func (a *AccountInfo) IsBorrowed() bool {
	return a.borrows != 0
}

/*
Resize changes the length of the account data, new bytes are zeroed. The data
must not be borrowed while it's resized.
*/
func (a *AccountInfo) Resize(newLen int) error {
	if newLen < 0 {
		return fmt.Errorf("invalid account data length %d", newLen)
	}
	if a.borrows != 0 {
		return fmt.Errorf("%w: can't resize account %s", ErrAccountBorrowFailed, a.Key)
	}
	if newLen <= len(a.data) {
		a.data = a.data[:newLen]
		return nil
	}
	a.data = append(a.data, make([]byte, newLen-len(a.data))...)
	return nil
}

// Bytes returns the borrowed data, nil after the borrow has been released.
func (r *DataRef) Bytes() []byte {
	if r.info == nil {
		return nil
	}
	return r.info.data
}

func (r *DataRef) IsMutable() bool {
	return r.mutable
}

// Release ends the borrow, calling it more than once is a no-op.
func (r *DataRef) Release() {
	if r.info == nil {
		return
	}
	if r.mutable {
		r.info.borrows = 0
	} else {
		r.info.borrows--
	}
	r.info = nil
}
