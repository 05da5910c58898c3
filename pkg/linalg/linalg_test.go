package linalg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexRange(t *testing.T) {
	r, err := NewIndexRange(2, 5, 10)
	require.NoError(t, err)
	require.Equal(t, 3, r.Size())
	require.Equal(t, 10, r.GlobalSize())
	require.False(t, r.Complete())
	require.True(t, r.Contains(2))
	require.True(t, r.Contains(4))
	require.False(t, r.Contains(5))

	c := CompleteRange(4)
	require.True(t, c.Complete())
	require.Equal(t, 4, c.Size())

	require.True(t, r.SameAs(r))
	require.False(t, r.SameAs(c))

	_, err = NewIndexRange(3, 2, 10)
	require.Error(t, err)
	_, err = NewIndexRange(0, 4, 3)
	require.Error(t, err)
}

func TestComm(t *testing.T) {
	c := SelfComm()
	require.Equal(t, 0, c.Rank())
	require.Equal(t, 1, c.Size())
	require.True(t, c.SameAs(Comm{}))
}

func TestMPIVector(t *testing.T) {
	v := NewSequentialVector(3)
	require.Equal(t, 3, v.LocalSize())
	require.Equal(t, 3, v.GlobalSize())

	v.Set(1, 2.5)
	require.Equal(t, 2.5, v.At(1))
	require.Panics(t, func() { v.At(3) })

	v.Fill(1)
	require.Equal(t, []float64{1, 1, 1}, v.LocalData())

	w := NewSequentialVector(3)
	require.NoError(t, w.CopyFrom(v))
	require.Equal(t, v.LocalData(), w.LocalData())

	u := NewSequentialVector(4)
	require.Error(t, u.CopyFrom(v))
}
