package keyvaluedb

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrInvalidKey = errors.New("invalid key")
	ErrValueIsNil = errors.New("value is nil")
)

type (
	// Reader reads values from the store.
	Reader interface {
		// Read decodes the value stored under key into value. Returns false
		// when the key is not present.
		Read(key []byte, value any) (bool, error)
	}

	// Writer modifies the store.
	Writer interface {
		// Write encodes value and stores it under key.
		Write(key []byte, value any) error
		// Delete removes the key. Deleting a missing key is not an error.
		Delete(key []byte) error
	}

	ReadWriter interface {
		Reader
		Writer
	}

	// DBTx starts database transactions.
	// NB! all transactions MUST be completed by either calling Commit() or Rollback().
	// Only one read-write transaction is allowed at a time.
	DBTx interface {
		StartTx() (DBTransaction, error)
	}

	// KeyValueDB is the full set of operations a backing store must support.
	KeyValueDB interface {
		ReadWriter
		Iterable
		DBTx
	}

	Iterator interface {
		// Next moves the iterator to the next key value pair
		Next()
		// Valid returns false once the iterator has moved past the last item
		Valid() bool
		// Key returns the key of the current key/value pair, or nil if not valid.
		Key() []byte
		// Value decodes the value of the current key/value pair.
		Value(value any) error
		// Close releases associated resources. Can be called multiple times.
		Close() error
	}

	// Iterable creates iterators over the store.
	Iterable interface {
		// First creates a binary-alphabetical forward iterator starting with first item.
		// NB! when done iterator MUST be released with Close() or next DB operation may deadlock
		First() Iterator
		// Find returns forward iterator positioned at the first key >= key.
		// NB! when done iterator MUST be released with Close() or next DB operation may deadlock
		Find(key []byte) Iterator
	}

	// DBTransaction is a key value database transaction.
	DBTransaction interface {
		ReadWriter
		// Commit commits all pending changes
		Commit() error
		// Rollback reverts everything and nothing is changed
		Rollback() error
	}
)

// IsEmpty returns true if the key value DB is empty
func IsEmpty(db Iterable) (empty bool, err error) {
	if db == nil {
		return true, fmt.Errorf("db is nil")
	}
	it := db.First()
	defer func() { err = errors.Join(err, it.Close()) }()
	return !it.Valid(), nil
}

func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

func CheckKeyAndValue(key []byte, val any) error {
	if err := CheckKey(key); err != nil {
		return err
	}
	if val == nil {
		return ErrValueIsNil
	}
	if v := reflect.ValueOf(val); v.Kind() == reflect.Ptr && v.IsNil() {
		return ErrValueIsNil
	}
	return nil
}
