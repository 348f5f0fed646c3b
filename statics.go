package helium

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/outofforest/helium/arena"
	"github.com/outofforest/helium/types"
)

// selfRegionMarker stands in for the owning region when a fingerprint is
// computed, so the digest does not depend on registration order. It is never
// handed out by registerRegion.
const selfRegionMarker types.RegionID = math.MaxUint16

// Shared immediate constants.
const (
	None       = types.None
	True       = types.True
	False      = types.False
	Unassigned = types.Unassigned
)

// Static shared instances living in frozen region 0. They are never allocated
// per heap and freezing an empty container resolves back to them.
var (
	EmptyStr   types.FrozenValue
	EmptyTuple types.FrozenValue
	EmptyList  types.FrozenValue
	emptyArray types.FrozenValue
)

var (
	regionMu sync.Mutex
	regions  atomic.Pointer[[]*FrozenHeap]
)

var staticHeap = func() *FrozenHeap {
	fh := &FrozenHeap{arena: arena.New(256), sealed: true}
	initial := []*FrozenHeap{fh}
	regions.Store(&initial)

	EmptyStr = staticRecord(fh, types.KindStr, 0)
	EmptyTuple = staticRecord(fh, types.KindTuple, 0)
	EmptyList = staticRecord(fh, types.KindList, 0)
	emptyArray = staticRecord(fh, types.KindArray, 0)

	return fh
}()

func staticRecord(fh *FrozenHeap, kind types.Kind, extraLen uint32) types.FrozenValue {
	addr := fh.arena.Allocate(types.RecordLength)
	*fh.arena.Header(addr) = types.Header{Kind: kind, Mode: types.ModeDirect, ExtraLen: extraLen}
	return types.NewFrozenRef(fh.region, addr)
}

func registerRegion(fh *FrozenHeap) types.RegionID {
	regionMu.Lock()
	defer regionMu.Unlock()

	old := *regions.Load()
	if len(old) >= int(selfRegionMarker) {
		panic("frozen region registry exhausted")
	}
	next := make([]*FrozenHeap, len(old)+1)
	copy(next, old)
	next[len(old)] = fh
	regions.Store(&next)
	return types.RegionID(len(old))
}

func deregisterRegion(id types.RegionID) {
	regionMu.Lock()
	defer regionMu.Unlock()

	old := *regions.Load()
	next := make([]*FrozenHeap, len(old))
	copy(next, old)
	next[id] = nil
	regions.Store(&next)
}

func regionByID(id types.RegionID) *FrozenHeap {
	fh := (*regions.Load())[id]
	if fh == nil {
		panic("reference into a discarded frozen region")
	}
	return fh
}
