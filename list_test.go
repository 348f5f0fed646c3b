package helium

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/helium/types"
)

func TestListAppendGrows(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	l, _ := h.List(h.AllocList(nil))
	requireT.Equal(0, l.Len())

	for i := range int32(10) {
		requireT.NoError(l.Append(types.NewInt(i)))
	}
	requireT.Equal(10, l.Len())
	for i, v := range l.Content() {
		requireT.Equal(types.NewInt(int32(i)), v)
	}

	// The backing array was swapped for larger ones while growing.
	arr, _ := h.Array(l.Backing())
	requireT.GreaterOrEqual(arr.Capacity(), 10)
	requireT.Equal(types.TagRef, l.Backing().Tag())
}

func TestListInsertRemoveClear(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	l, _ := h.List(h.AllocList([]types.Value{types.NewInt(1), types.NewInt(3)}))

	requireT.NoError(l.Insert(1, types.NewInt(2)))
	requireT.Equal("[1, 2, 3]", h.Repr(h.AllocList(l.Content())))

	v, err := l.Remove(0)
	requireT.NoError(err)
	requireT.Equal(types.NewInt(1), v)
	requireT.Equal(2, l.Len())

	requireT.NoError(l.SetAt(0, types.NewInt(9)))
	requireT.Equal(types.NewInt(9), l.Content()[0])

	requireT.NoError(l.Clear())
	requireT.Equal(0, l.Len())

	// Clearing an empty list over the static backing array is a no-op.
	empty, _ := h.List(h.AllocList(nil))
	requireT.NoError(empty.Clear())
}

func TestFrozenListIsImmutable(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	v := h.AllocList([]types.Value{types.NewInt(1), types.NewInt(2)})
	f := NewFreezer(h)
	fv, err := f.Freeze(v)
	requireT.NoError(err)
	f.Seal()

	fl, ok := h.List(fv.Value())
	requireT.True(ok)
	requireT.True(fl.Frozen())
	requireT.Equal(2, fl.Len())

	requireT.Error(fl.Append(types.NewInt(3)))
	requireT.Error(fl.SetAt(0, types.None))
	requireT.Error(fl.Clear())
	_, err = fl.Remove(0)
	requireT.Error(err)

	// Frozen lists still read and iterate.
	requireT.Equal("[1, 2]", h.Repr(fv.Value()))
	it := fl.Iter()
	first, ok := it.Next()
	requireT.True(ok)
	requireT.Equal(types.NewInt(1), first)
	it.Close()
}

func TestListIterationGuardsMutation(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	v := h.AllocList([]types.Value{types.NewInt(1)})
	l, _ := h.List(v)

	it := l.Iter()
	requireT.Panics(func() {
		_ = l.Append(types.NewInt(2))
	})
	it.Close()
	requireT.NoError(l.Append(types.NewInt(2)))
}
