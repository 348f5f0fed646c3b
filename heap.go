package helium

import (
	"math"
	"unsafe"

	"github.com/outofforest/mass"
	"github.com/outofforest/photon"

	"github.com/outofforest/helium/arena"
	"github.com/outofforest/helium/types"
)

const (
	// DefaultArenaSize is the arena capacity used when none is configured.
	DefaultArenaSize = 4 * 1024 * 1024

	massIteratorChunkSize = 64
)

// Config stores the heap configuration.
type Config struct {
	// ArenaSize is the capacity of the mutable arena. Ignored when Recycler
	// is set, because recycled buffers have a fixed size.
	ArenaSize uint64

	// Recycler, when set, provides zeroed arena buffers.
	Recycler *arena.Recycler
}

// NewHeap creates a mutable heap for a single evaluation. A heap must be
// mutated by one goroutine only.
func NewHeap(config Config) *Heap {
	if config.ArenaSize == 0 {
		config.ArenaSize = DefaultArenaSize
	}
	return &Heap{
		config:       config,
		arena:        newArena(config),
		massIterator: mass.New[Iterator](massIteratorChunkSize),
	}
}

func newArena(config Config) *arena.Arena {
	if config.Recycler == nil {
		return arena.New(config.ArenaSize)
	}
	buf, err := config.Recycler.Acquire()
	if err != nil {
		panic(err)
	}
	return arena.NewFromBuffer(buf)
}

// Heap owns every mutable value allocated during one evaluation. Records live
// in the arena; Go-side payloads live in the boxes slice and are referenced by
// index, so the garbage collector keeps seeing them.
type Heap struct {
	config       Config
	arena        *arena.Arena
	boxes        []Payload
	massIterator *mass.Mass[Iterator]
}

// Used returns the number of bytes allocated in the mutable arena.
func (h *Heap) Used() uint64 {
	return h.arena.Used()
}

// Size returns the capacity of the mutable arena.
func (h *Heap) Size() uint64 {
	return h.arena.Size()
}

// AllocStr allocates a string value. The view returned later by Str stays
// valid until the heap is compacted. The empty string is the shared static.
func (h *Heap) AllocStr(s string) types.Value {
	if len(s) == 0 {
		return EmptyStr.Value()
	}
	addr := h.reserve(types.KindStr, types.ModeDirect, uint32(len(s)), 1)
	*photon.FromPointer[uint64](h.arena.Payload(addr)) = uint64(len(s))
	copy(photon.SliceFromPointer[byte](h.arena.Extra(addr), len(s)), s)
	return types.NewRef(addr)
}

// AllocTuple allocates a tuple value. The empty tuple is the shared static.
func (h *Heap) AllocTuple(elems []types.Value) types.Value {
	if len(elems) == 0 {
		return EmptyTuple.Value()
	}
	addr := h.reserve(types.KindTuple, types.ModeDirect, uint32(len(elems)), types.CellLength)
	*photon.FromPointer[uint64](h.arena.Payload(addr)) = uint64(len(elems))
	copy(photon.SliceFromPointer[types.Value](h.arena.Extra(addr), len(elems)), elems)
	return types.NewRef(addr)
}

// AllocArray allocates an array of the given capacity. The zero-capacity
// array is the shared static.
func (h *Heap) AllocArray(capacity int) types.Value {
	if capacity == 0 {
		return emptyArray.Value()
	}
	addr := h.reserve(types.KindArray, types.ModeDirect, uint32(capacity), types.CellLength)
	return types.NewRef(addr)
}

// AllocList allocates a list over a backing array sized exactly to the
// content. An empty list shares the static zero-capacity array.
func (h *Heap) AllocList(elems []types.Value) types.Value {
	backing := h.AllocArray(len(elems))
	if len(elems) > 0 {
		arr, _ := h.Array(backing)
		arr.ExtendFromSlice(elems)
	}
	addr := h.reserve(types.KindList, types.ModeDirect, 0, 0)
	*photon.FromPointer[types.Value](h.arena.Payload(addr)) = backing
	return types.NewRef(addr)
}

// AllocFloat allocates a float value. NaN and -0.0 round-trip bit-exactly.
func (h *Heap) AllocFloat(f float64) types.Value {
	addr := h.reserve(types.KindFloat, types.ModeDirect, 0, 0)
	*photon.FromPointer[uint64](h.arena.Payload(addr)) = math.Float64bits(f)
	return types.NewRef(addr)
}

// AllocSimple stores a Go payload holding no value references.
func (h *Heap) AllocSimple(p Payload) types.Value {
	return h.allocBox(types.ModeSimple, p)
}

// AllocComplex stores a Go payload owning other values.
func (h *Heap) AllocComplex(p ComplexPayload) types.Value {
	return h.allocBox(types.ModeComplex, p)
}

func (h *Heap) allocBox(mode types.Mode, p Payload) types.Value {
	addr := h.reserve(types.KindBox, mode, 0, 0)
	*photon.FromPointer[uint64](h.arena.Payload(addr)) = uint64(len(h.boxes))
	h.boxes = append(h.boxes, p)
	return types.NewRef(addr)
}

func (h *Heap) reserve(kind types.Kind, mode types.Mode, extraLen uint32, extraElemSize uint64) types.HeapAddress {
	addr := h.arena.Allocate(types.RecordLength + uint64(extraLen)*extraElemSize)
	*h.arena.Header(addr) = types.Header{Kind: kind, Mode: mode, ExtraLen: extraLen}
	return addr
}

// record is a resolved view of one heap-resident value.
type record struct {
	hdr     *types.Header
	payload unsafe.Pointer
	extra   unsafe.Pointer
	boxes   []Payload
	frozen  bool
}

// record resolves v to its record, panicking on forwarded records because
// they are unreachable through any live reference.
func (h *Heap) record(v types.Value) record {
	switch v.Tag() {
	case types.TagRef:
		addr := v.Addr()
		if addr == 0 {
			panic("nil value reference")
		}
		hdr := h.arena.Header(addr)
		if hdr.Kind == types.KindForward {
			panic("operation on forwarded record")
		}
		return record{
			hdr:     hdr,
			payload: h.arena.Payload(addr),
			extra:   h.arena.Extra(addr),
			boxes:   h.boxes,
		}
	case types.TagFrozen:
		fh := regionByID(v.FrozenRegion())
		addr := v.FrozenAddr()
		return record{
			hdr:     fh.arena.Header(addr),
			payload: fh.arena.Payload(addr),
			extra:   fh.arena.Extra(addr),
			boxes:   fh.boxes,
			frozen:  true,
		}
	default:
		panic("not a heap reference")
	}
}

func boxIndex(r record) uint64 {
	return *photon.FromPointer[uint64](r.payload)
}

func (h *Heap) payloadOf(v types.Value) (Payload, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return nil, false
	}
	r := h.record(v)
	if r.hdr.Kind != types.KindBox {
		return nil, false
	}
	return r.boxes[boxIndex(r)], true
}

// Str returns the string content when v is a string value. The view aliases
// arena memory and stays valid until the heap is compacted.
func (h *Heap) Str(v types.Value) (string, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return "", false
	}
	r := h.record(v)
	if r.hdr.Kind != types.KindStr {
		return "", false
	}
	if r.hdr.ExtraLen == 0 {
		return "", true
	}
	return unsafe.String((*byte)(r.extra), int(r.hdr.ExtraLen)), true
}

// Tuple returns the element view when v is a tuple value.
func (h *Heap) Tuple(v types.Value) ([]types.Value, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return nil, false
	}
	r := h.record(v)
	if r.hdr.Kind != types.KindTuple {
		return nil, false
	}
	return photon.SliceFromPointer[types.Value](r.extra, int(r.hdr.ExtraLen)), true
}

// Float returns the float content when v is a float value.
func (h *Heap) Float(v types.Value) (float64, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return 0, false
	}
	r := h.record(v)
	if r.hdr.Kind != types.KindFloat {
		return 0, false
	}
	return math.Float64frombits(*photon.FromPointer[uint64](r.payload)), true
}
