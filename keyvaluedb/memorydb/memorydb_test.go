package memorydb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alphabill-org/guardian-core/keyvaluedb"
)

func isEmpty(t *testing.T, db *MemoryDB) bool {
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	return empty
}

func TestMemDB_IsEmpty(t *testing.T) {
	db := New()
	require.True(t, db.Empty())
	require.True(t, isEmpty(t, db))
	require.NoError(t, db.Write([]byte("foo"), "test"))
	require.False(t, db.Empty())
	require.False(t, isEmpty(t, db))
	empty, err := keyvaluedb.IsEmpty(nil)
	require.ErrorContains(t, err, "db is nil")
	require.True(t, empty)
}

func TestMemDB_WriteAndRead(t *testing.T) {
	db := New()
	var value uint64 = 1
	require.NoError(t, db.Write([]byte("integer"), value))
	require.NoError(t, db.Write([]byte("slice"), []byte{}))
	var some []byte
	found, err := db.Read([]byte("slice"), &some)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, some)
	var back uint64
	found, err = db.Read([]byte("integer"), &back)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(1), back)
	// wrong type
	found, err = db.Read([]byte("slice"), &back)
	require.ErrorContains(t, err, "json: cannot unmarshal string into Go value of type uint64")
	require.True(t, found)
}

func TestMemDB_InvalidWriteAndRead(t *testing.T) {
	db := New()
	var rec *struct{}
	require.ErrorIs(t, db.Write([]byte("record"), rec), keyvaluedb.ErrValueIsNil)
	require.ErrorIs(t, db.Write(nil, uint64(1)), keyvaluedb.ErrInvalidKey)
	found, err := db.Read([]byte{}, new(uint64))
	require.ErrorIs(t, err, keyvaluedb.ErrInvalidKey)
	require.False(t, found)
	require.Error(t, db.Write([]byte("channel"), make(chan int)))
	require.True(t, isEmpty(t, db))
}

func TestMemDB_Delete(t *testing.T) {
	db := New()
	require.NoError(t, db.Write([]byte("integer"), uint64(1)))
	require.NoError(t, db.Delete([]byte("integer")))
	require.True(t, isEmpty(t, db))
	require.NoError(t, db.Delete([]byte("integer")))
	require.Error(t, db.Delete(nil))
}

func TestMemDB_MockWriteError(t *testing.T) {
	db := New()
	errDiskFull := errors.New("disk full")
	db.MockWriteError(errDiskFull)
	require.ErrorIs(t, db.Write([]byte("a"), uint64(1)), errDiskFull)
	tx, err := db.StartTx()
	require.NoError(t, err)
	require.ErrorIs(t, tx.Write([]byte("a"), uint64(1)), errDiskFull)
	require.NoError(t, tx.Rollback())
	db.MockWriteError(nil)
	require.NoError(t, db.Write([]byte("a"), uint64(1)))
}

func TestMemDB_Iterator(t *testing.T) {
	db := New()
	require.NoError(t, db.Write([]byte{3}, uint64(3)))
	require.NoError(t, db.Write([]byte{1}, uint64(1)))
	require.NoError(t, db.Write([]byte{2}, uint64(2)))
	it := db.First()
	defer func() { require.NoError(t, it.Close()) }()
	var got []uint64
	for ; it.Valid(); it.Next() {
		var v uint64
		require.NoError(t, it.Value(&v))
		got = append(got, v)
	}
	require.Equal(t, []uint64{1, 2, 3}, got)
	require.Nil(t, it.Key())

	fit := db.Find([]byte{2})
	require.True(t, fit.Valid())
	require.Equal(t, []byte{2}, fit.Key())
	fit = db.Find([]byte{4})
	require.False(t, fit.Valid())
}

func TestMemDB_Tx(t *testing.T) {
	db := New()
	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("a"), "1"))
	require.True(t, isEmpty(t, db))
	require.NoError(t, tx.Commit())
	require.False(t, isEmpty(t, db))
	require.ErrorContains(t, tx.Write([]byte("b"), "2"), "tx closed")

	tx, err = db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Delete([]byte("a")))
	var v string
	found, err := tx.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, tx.Rollback())
	found, err = db.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "1", v)
}
