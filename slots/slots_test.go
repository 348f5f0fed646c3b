package slots

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/helium"
	"github.com/outofforest/helium/types"
)

func newTestHeap() *helium.Heap {
	return helium.NewHeap(helium.Config{ArenaSize: 1 << 20})
}

func TestSlotsScenario(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	s := NewMutable()
	s.EnsureSlots(3)
	requireT.Equal(3, s.Len())

	// Existing but unassigned is not the same as assigned.
	_, ok := s.Get(0)
	requireT.False(ok)

	s.Set(0, types.NewInt(11))
	s.Set(2, h.AllocStr("value"))

	v, ok := s.Get(0)
	requireT.True(ok)
	requireT.Equal(types.NewInt(11), v)

	_, ok = s.Get(1)
	requireT.False(ok)

	f := helium.NewFreezer(h)
	frozen, err := s.Freeze(f)
	requireT.NoError(err)
	f.Seal()

	// Indices survive freezing exactly, including the unassigned hole.
	requireT.Equal(3, frozen.Len())

	fv, ok := frozen.Get(0)
	requireT.True(ok)
	requireT.Equal(types.NewInt(11), fv.Value())

	_, ok = frozen.Get(1)
	requireT.False(ok)

	fv, ok = frozen.Get(2)
	requireT.True(ok)
	str, ok := h.Str(fv.Value())
	requireT.True(ok)
	requireT.Equal("value", str)
}

func TestEnsureSlotsNeverShrinks(t *testing.T) {
	requireT := require.New(t)

	s := NewMutable()
	s.EnsureSlots(5)
	s.Set(4, types.True)
	s.EnsureSlots(2)
	requireT.Equal(5, s.Len())

	v, ok := s.Get(4)
	requireT.True(ok)
	requireT.Equal(types.True, v)
}

func TestSlotsContractViolations(t *testing.T) {
	requireT := require.New(t)

	s := NewMutable()
	s.EnsureSlots(1)

	requireT.Panics(func() {
		s.Set(0, types.Unassigned)
	})
	requireT.Panics(func() {
		s.Set(1, types.None)
	})
	requireT.Panics(func() {
		s.Get(5)
	})
}

func TestSlotsTrace(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	s := NewMutable()
	s.EnsureSlots(2)
	s.Set(0, h.AllocStr("rooted"))

	h.Compact(0, func(tr *helium.Tracer) {
		s.Trace(tr)
	})

	v, ok := s.Get(0)
	requireT.True(ok)
	str, ok := h.Str(v)
	requireT.True(ok)
	requireT.Equal("rooted", str)

	_, ok = s.Get(1)
	requireT.False(ok)
}
