package account

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountInfo_Borrow(t *testing.T) {
	info := NewAccountInfo(Address{1}, DefaultProgramID, 10, []byte{1, 2, 3})
	require.False(t, info.IsBorrowed())

	r1, err := info.TryBorrowData()
	require.NoError(t, err)
	r2, err := info.TryBorrowData()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, r1.Bytes())
	require.False(t, r1.IsMutable())

	_, err = info.TryBorrowMutData()
	require.ErrorIs(t, err, ErrAccountBorrowFailed)
	require.ErrorIs(t, info.Resize(5), ErrAccountBorrowFailed)

	r1.Release()
	r1.Release()
	require.Nil(t, r1.Bytes())
	require.True(t, info.IsBorrowed())
	r2.Release()
	require.False(t, info.IsBorrowed())

	w, err := info.TryBorrowMutData()
	require.NoError(t, err)
	require.True(t, w.IsMutable())
	w.Bytes()[0] = 9
	_, err = info.TryBorrowData()
	require.ErrorIs(t, err, ErrAccountBorrowFailed)
	w.Release()

	r, err := info.TryBorrowData()
	require.NoError(t, err)
	require.Equal(t, []byte{9, 2, 3}, r.Bytes())
	r.Release()
}

func TestAccountInfo_Resize(t *testing.T) {
	info := NewAccountInfo(Address{1}, DefaultProgramID, 10, []byte{1, 2, 3})
	require.NoError(t, info.Resize(5))
	require.Equal(t, 5, info.DataLen())
	r, err := info.TryBorrowData()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 0, 0}, r.Bytes())
	r.Release()

	require.NoError(t, info.Resize(1))
	require.Equal(t, 1, info.DataLen())
	require.ErrorContains(t, info.Resize(-1), "invalid account data length -1")
}
