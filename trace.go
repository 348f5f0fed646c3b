package helium

import (
	"github.com/outofforest/photon"

	"github.com/outofforest/helium/arena"
	"github.com/outofforest/helium/types"
)

// NewTracer creates a tracer relocating the live value graph into a fresh
// arena. Values not traced before Commit are abandoned with the old buffer.
func NewTracer(h *Heap, newSize uint64) *Tracer {
	if newSize == 0 {
		newSize = h.arena.Size()
	}
	var dst *arena.Arena
	if h.config.Recycler == nil {
		dst = arena.New(newSize)
	} else {
		buf, err := h.config.Recycler.Acquire()
		if err != nil {
			panic(err)
		}
		dst = arena.NewFromBuffer(buf)
	}
	return &Tracer{heap: h, dst: dst}
}

// Tracer relocates values during heap compaction or growth. Relocated records
// are overwritten in place with a forwarding record before their children are
// traced, which is what makes shared subgraphs collapse and cycles terminate.
// Tracing cannot fail.
type Tracer struct {
	heap  *Heap
	dst   *arena.Arena
	boxes []Payload
}

// Trace relocates the value in place.
func (t *Tracer) Trace(v *types.Value) {
	if v.Tag() != types.TagRef {
		return
	}
	addr := v.Addr()
	hdr := t.heap.arena.Header(addr)
	if hdr.Kind == types.KindForward {
		*v = *photon.FromPointer[types.Value](t.heap.arena.Payload(addr))
		return
	}

	switch hdr.Kind {
	case types.KindStr:
		n := int(hdr.ExtraLen)
		dstAddr := t.reserve(types.KindStr, types.ModeDirect, hdr.ExtraLen, 1)
		*photon.FromPointer[uint64](t.dst.Payload(dstAddr)) = uint64(n)
		copy(photon.SliceFromPointer[byte](t.dst.Extra(dstAddr), n),
			photon.SliceFromPointer[byte](t.heap.arena.Extra(addr), n))
		*v = t.forward(addr, hdr, dstAddr)

	case types.KindTuple:
		n := int(hdr.ExtraLen)
		dstAddr := t.reserve(types.KindTuple, types.ModeDirect, hdr.ExtraLen, types.CellLength)
		*photon.FromPointer[uint64](t.dst.Payload(dstAddr)) = uint64(n)
		dst := photon.SliceFromPointer[types.Value](t.dst.Extra(dstAddr), n)
		copy(dst, photon.SliceFromPointer[types.Value](t.heap.arena.Extra(addr), n))
		*v = t.forward(addr, hdr, dstAddr)
		for i := range dst {
			t.Trace(&dst[i])
		}

	case types.KindList:
		backing := *photon.FromPointer[types.Value](t.heap.arena.Payload(addr))
		dstAddr := t.reserve(types.KindList, types.ModeDirect, 0, 0)
		*v = t.forward(addr, hdr, dstAddr)
		t.Trace(&backing)
		*photon.FromPointer[types.Value](t.dst.Payload(dstAddr)) = backing

	case types.KindArray:
		// Capacity shrinks to the live length and the iterator count resets.
		// An emptied array collapses to the static, no forwarding needed.
		n := int(photon.FromPointer[arrayPayload](t.heap.arena.Payload(addr)).Len)
		if n == 0 {
			*v = emptyArray.Value()
			return
		}
		dstAddr := t.reserve(types.KindArray, types.ModeDirect, uint32(n), types.CellLength)
		photon.FromPointer[arrayPayload](t.dst.Payload(dstAddr)).Len = uint32(n)
		dst := photon.SliceFromPointer[types.Value](t.dst.Extra(dstAddr), n)
		copy(dst, photon.SliceFromPointer[types.Value](t.heap.arena.Extra(addr), n))
		*v = t.forward(addr, hdr, dstAddr)
		for i := range dst {
			t.Trace(&dst[i])
		}

	case types.KindFloat:
		bits := *photon.FromPointer[uint64](t.heap.arena.Payload(addr))
		dstAddr := t.reserve(types.KindFloat, types.ModeDirect, 0, 0)
		*photon.FromPointer[uint64](t.dst.Payload(dstAddr)) = bits
		*v = t.forward(addr, hdr, dstAddr)

	case types.KindBox:
		idx := *photon.FromPointer[uint64](t.heap.arena.Payload(addr))
		p := t.heap.boxes[idx]
		mode := hdr.Mode
		dstAddr := t.reserve(types.KindBox, mode, 0, 0)
		*photon.FromPointer[uint64](t.dst.Payload(dstAddr)) = uint64(len(t.boxes))
		t.boxes = append(t.boxes, p)
		*v = t.forward(addr, hdr, dstAddr)
		if mode == types.ModeComplex {
			p.(ComplexPayload).Trace(t)
		}

	default:
		panic("unknown record kind")
	}
}

func (t *Tracer) reserve(kind types.Kind, mode types.Mode, extraLen uint32, extraElemSize uint64) types.HeapAddress {
	addr := t.dst.Allocate(types.RecordLength + uint64(extraLen)*extraElemSize)
	*t.dst.Header(addr) = types.Header{Kind: kind, Mode: mode, ExtraLen: extraLen}
	return addr
}

// forward overwrites the old record with a forwarding record pointing at the
// relocated one.
func (t *Tracer) forward(addr types.HeapAddress, hdr *types.Header, dstAddr types.HeapAddress) types.Value {
	v := types.NewRef(dstAddr)
	hdr.Kind = types.KindForward
	*photon.FromPointer[types.Value](t.heap.arena.Payload(addr)) = v
	return v
}

// Commit replaces the heap's storage with the relocated one and releases the
// old buffer to the recycler.
func (t *Tracer) Commit() {
	old := t.heap.arena
	t.heap.arena = t.dst
	t.heap.boxes = t.boxes
	t.dst = nil
	t.boxes = nil
	if t.heap.config.Recycler != nil {
		t.heap.config.Recycler.Release(old.Buffer())
	}
}

// Compact relocates everything reachable from the roots into a fresh arena
// and abandons the rest.
func (h *Heap) Compact(newSize uint64, roots func(t *Tracer)) {
	t := NewTracer(h, newSize)
	roots(t)
	t.Commit()
}
