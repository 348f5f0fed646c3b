package helium

import (
	"math"
	"unsafe"

	"github.com/zeebo/blake3"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/arena"
	"github.com/outofforest/helium/types"
)

// FrozenHeap is an immutable arena produced by the Freeze Engine. Once sealed
// it may be read concurrently and outlives the heap it was frozen from.
type FrozenHeap struct {
	arena       *arena.Arena
	boxes       []Payload
	region      types.RegionID
	fingerprint [32]byte
	sealed      bool
}

// Region returns the registry identifier of the frozen heap.
func (fh *FrozenHeap) Region() types.RegionID {
	return fh.region
}

// Fingerprint returns the BLAKE3 digest of the arena content, usable as a
// cache identity for compiled modules. Valid once sealed.
func (fh *FrozenHeap) Fingerprint() [32]byte {
	if !fh.sealed {
		panic("fingerprint of unsealed frozen heap")
	}
	return fh.fingerprint
}

// StaticHeap returns the process-wide frozen heap holding the shared empty
// string, tuple, list and array.
func StaticHeap() *FrozenHeap {
	return staticHeap
}

// NewFreezer creates a freezer targeting a fresh frozen heap and registers
// its region.
func NewFreezer(h *Heap) *Freezer {
	fh := &FrozenHeap{arena: arena.New(h.arena.Size())}
	fh.region = registerRegion(fh)
	return &Freezer{
		heap:    h,
		target:  fh,
		forward: map[types.HeapAddress]types.FrozenValue{},
	}
}

// Freezer converts a mutable value graph into its immutable image. Forwarding
// lives in a side map instead of the records themselves, so a failed freeze
// leaves the mutable heap fully usable.
type Freezer struct {
	heap        *Heap
	target      *FrozenHeap
	forward     map[types.HeapAddress]types.FrozenValue
	frozenFuncs []types.FrozenValue
}

// Heap returns the mutable heap being frozen.
func (f *Freezer) Heap() *Heap {
	return f.heap
}

// Freeze returns the frozen image of v. The forwarding entry of a record is
// written before its children are visited, which is what makes shared
// subgraphs collapse and cycles terminate.
func (f *Freezer) Freeze(v types.Value) (types.FrozenValue, error) {
	if v.Tag() != types.TagRef {
		// Immediates and already-frozen words are their own image.
		return types.FrozenValue(v), nil
	}

	addr := v.Addr()
	if fv, ok := f.forward[addr]; ok {
		return fv, nil
	}

	hdr := f.heap.arena.Header(addr)
	switch hdr.Kind {
	case types.KindStr:
		s, _ := f.heap.Str(v)
		fv := f.AllocStr(s)
		f.forward[addr] = fv
		return fv, nil

	case types.KindTuple:
		elems, _ := f.heap.Tuple(v)
		if len(elems) == 0 {
			f.forward[addr] = EmptyTuple
			return EmptyTuple, nil
		}
		dstAddr := f.reserve(types.KindTuple, types.ModeDirect, hdr.ExtraLen, types.CellLength)
		*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = uint64(len(elems))
		fv := types.NewFrozenRef(f.target.region, dstAddr)
		f.forward[addr] = fv
		dst := photon.SliceFromPointer[types.FrozenValue](f.target.arena.Extra(dstAddr), len(elems))
		for i, elem := range elems {
			fe, err := f.Freeze(elem)
			if err != nil {
				return 0, err
			}
			dst[i] = fe
		}
		return fv, nil

	case types.KindList:
		l, _ := f.heap.List(v)
		elems := l.Content()
		if len(elems) == 0 {
			f.forward[addr] = EmptyList
			return EmptyList, nil
		}
		dstAddr := f.reserve(types.KindList, types.ModeDirect, uint32(len(elems)), types.CellLength)
		*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = uint64(len(elems))
		fv := types.NewFrozenRef(f.target.region, dstAddr)
		f.forward[addr] = fv
		dst := photon.SliceFromPointer[types.FrozenValue](f.target.arena.Extra(dstAddr), len(elems))
		for i, elem := range elems {
			fe, err := f.Freeze(elem)
			if err != nil {
				return 0, err
			}
			dst[i] = fe
		}
		return fv, nil

	case types.KindFloat:
		fl, _ := f.heap.Float(v)
		fv := f.AllocFloat(fl)
		f.forward[addr] = fv
		return fv, nil

	case types.KindArray:
		panic("array is not freezable directly")

	case types.KindBox:
		idx := *photon.FromPointer[uint64](f.heap.arena.Payload(addr))
		p := f.heap.boxes[idx]
		if hdr.Mode == types.ModeSimple {
			fv := f.AllocBox(p)
			f.forward[addr] = fv
			return fv, nil
		}

		// The destination box is reserved before the freeze hook runs so
		// cyclic references resolve to it.
		boxIdx := len(f.target.boxes)
		f.target.boxes = append(f.target.boxes, nil)
		dstAddr := f.reserve(types.KindBox, types.ModeSimple, 0, 0)
		*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = uint64(boxIdx)
		fv := types.NewFrozenRef(f.target.region, dstAddr)
		f.forward[addr] = fv

		fp, err := p.(ComplexPayload).Freeze(f)
		if err != nil {
			return 0, err
		}
		f.target.boxes[boxIdx] = fp
		if _, ok := fp.(FunctionDef); ok {
			f.frozenFuncs = append(f.frozenFuncs, fv)
		}
		return fv, nil

	case types.KindForward:
		panic("operation on forwarded record")
	}
	panic("unknown record kind")
}

// AllocStr allocates a string directly in the frozen arena.
func (f *Freezer) AllocStr(s string) types.FrozenValue {
	if len(s) == 0 {
		return EmptyStr
	}
	dstAddr := f.reserve(types.KindStr, types.ModeDirect, uint32(len(s)), 1)
	*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = uint64(len(s))
	copy(photon.SliceFromPointer[byte](f.target.arena.Extra(dstAddr), len(s)), s)
	return types.NewFrozenRef(f.target.region, dstAddr)
}

// AllocFloat allocates a float directly in the frozen arena.
func (f *Freezer) AllocFloat(fl float64) types.FrozenValue {
	dstAddr := f.reserve(types.KindFloat, types.ModeDirect, 0, 0)
	*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = math.Float64bits(fl)
	return types.NewFrozenRef(f.target.region, dstAddr)
}

// AllocBox stores a frozen Go payload directly in the frozen arena.
func (f *Freezer) AllocBox(p Payload) types.FrozenValue {
	dstAddr := f.reserve(types.KindBox, types.ModeSimple, 0, 0)
	*photon.FromPointer[uint64](f.target.arena.Payload(dstAddr)) = uint64(len(f.target.boxes))
	f.target.boxes = append(f.target.boxes, p)
	fv := types.NewFrozenRef(f.target.region, dstAddr)
	if _, ok := p.(FunctionDef); ok {
		f.frozenFuncs = append(f.frozenFuncs, fv)
	}
	return fv
}

func (f *Freezer) reserve(kind types.Kind, mode types.Mode, extraLen uint32, extraElemSize uint64) types.HeapAddress {
	addr := f.target.arena.Allocate(types.RecordLength + uint64(extraLen)*extraElemSize)
	*f.target.arena.Header(addr) = types.Header{Kind: kind, Mode: mode, ExtraLen: extraLen}
	return addr
}

// FrozenFuncs returns the function definitions frozen so far, in freeze order.
func (f *Freezer) FrozenFuncs() []types.FrozenValue {
	return f.frozenFuncs
}

// Seal finalizes the frozen heap and computes its fingerprint.
func (f *Freezer) Seal() *FrozenHeap {
	fh := f.target
	fh.fingerprint = blake3.Sum256(fh.normalizedBytes())
	fh.sealed = true
	f.target = nil
	return fh
}

// normalizedBytes returns a copy of the arena content with every reference
// word pointing back into this same heap retagged to selfRegionMarker, so
// structurally identical heaps fingerprint identically regardless of the
// region they were registered under.
func (fh *FrozenHeap) normalizedBytes() []byte {
	src := fh.arena.Bytes()
	words := make([]uint64, (uint64(len(src))+types.CellLength-1)/types.CellLength)
	data := photon.SliceFromPointer[byte](unsafe.Pointer(&words[0]), len(src))
	copy(data, src)

	for off := uint64(types.CellLength); off < uint64(len(data)); {
		hdr := photon.FromPointer[types.Header](unsafe.Pointer(&data[off]))
		extraBytes := uint64(0)
		switch hdr.Kind {
		case types.KindStr:
			extraBytes = uint64(hdr.ExtraLen)
		case types.KindTuple, types.KindList:
			extraBytes = uint64(hdr.ExtraLen) * types.CellLength
			elems := photon.SliceFromPointer[types.FrozenValue](
				unsafe.Pointer(&data[off+types.RecordLength]), int(hdr.ExtraLen))
			for i, elem := range elems {
				if elem.Tag() == types.TagFrozen && elem.FrozenRegion() == fh.region {
					elems[i] = elem.WithRegion(selfRegionMarker)
				}
			}
		}
		off += types.RecordLength + (extraBytes+types.CellLength-1)/types.CellLength*types.CellLength
	}
	return data
}

// Discard deregisters the half-built frozen heap after a failed freeze.
func (f *Freezer) Discard() {
	deregisterRegion(f.target.region)
	f.target = nil
}
