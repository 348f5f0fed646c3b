package helium

import (
	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

// arrayPayload is the fixed payload of an array record.
type arrayPayload struct {
	Len       uint32
	IterCount uint32
}

// Array is a handle over a fixed-capacity sequence mutated in place, backing
// list values. Mutating beyond capacity or while iterators are outstanding is
// a contract violation and panics.
type Array struct {
	heap *Heap
	v    types.Value
}

// Array resolves v to an array handle.
func (h *Heap) Array(v types.Value) (Array, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return Array{}, false
	}
	if h.record(v).hdr.Kind != types.KindArray {
		return Array{}, false
	}
	return Array{heap: h, v: v}, true
}

func (a Array) rec() record {
	return a.heap.record(a.v)
}

// mutable resolves the record and enforces the mutation guards.
func (a Array) mutable() (record, *arrayPayload) {
	r := a.rec()
	if r.frozen {
		panic("mutation of frozen array")
	}
	p := photon.FromPointer[arrayPayload](r.payload)
	if p.IterCount != 0 {
		panic("array mutated while iterators are outstanding")
	}
	return r, p
}

// Len returns the number of elements.
func (a Array) Len() int {
	return int(photon.FromPointer[arrayPayload](a.rec().payload).Len)
}

// Capacity returns the fixed capacity.
func (a Array) Capacity() int {
	return int(a.rec().hdr.ExtraLen)
}

// Content returns a view of the live elements.
func (a Array) Content() []types.Value {
	r := a.rec()
	return photon.SliceFromPointer[types.Value](r.extra, int(photon.FromPointer[arrayPayload](r.payload).Len))
}

// Push appends a value. Exceeding the capacity panics.
func (a Array) Push(v types.Value) {
	r, p := a.mutable()
	if p.Len >= r.hdr.ExtraLen {
		panic("array capacity exceeded")
	}
	photon.SliceFromPointer[types.Value](r.extra, int(p.Len)+1)[p.Len] = v
	p.Len++
}

// SetAt replaces the element at index.
func (a Array) SetAt(index int, v types.Value) {
	r, p := a.mutable()
	if index < 0 || index >= int(p.Len) {
		panic("array index out of range")
	}
	photon.SliceFromPointer[types.Value](r.extra, int(p.Len))[index] = v
}

// Insert inserts v at index, shifting the tail right.
func (a Array) Insert(index int, v types.Value) {
	r, p := a.mutable()
	if p.Len >= r.hdr.ExtraLen {
		panic("array capacity exceeded")
	}
	if index < 0 || index > int(p.Len) {
		panic("array index out of range")
	}
	content := photon.SliceFromPointer[types.Value](r.extra, int(p.Len)+1)
	copy(content[index+1:], content[index:int(p.Len)])
	content[index] = v
	p.Len++
}

// Remove removes and returns the element at index, shifting the tail left.
func (a Array) Remove(index int) types.Value {
	r, p := a.mutable()
	if index < 0 || index >= int(p.Len) {
		panic("array index out of range")
	}
	content := photon.SliceFromPointer[types.Value](r.extra, int(p.Len))
	v := content[index]
	copy(content[index:], content[index+1:])
	p.Len--
	return v
}

// Extend appends all the values.
func (a Array) Extend(values ...types.Value) {
	a.ExtendFromSlice(values)
}

// ExtendFromSlice bulk-appends the values.
func (a Array) ExtendFromSlice(values []types.Value) {
	if len(values) == 0 {
		return
	}
	r, p := a.mutable()
	if int(p.Len)+len(values) > int(r.hdr.ExtraLen) {
		panic("array capacity exceeded")
	}
	content := photon.SliceFromPointer[types.Value](r.extra, int(p.Len)+len(values))
	copy(content[p.Len:], values)
	p.Len += uint32(len(values))
}

// Clear removes all the elements.
func (a Array) Clear() {
	_, p := a.mutable()
	p.Len = 0
}

// Double duplicates the content into the unused back half of the capacity.
func (a Array) Double() {
	r, p := a.mutable()
	if 2*p.Len > r.hdr.ExtraLen {
		panic("array capacity exceeded")
	}
	content := photon.SliceFromPointer[types.Value](r.extra, 2*int(p.Len))
	copy(content[p.Len:], content[:p.Len])
	p.Len *= 2
}

// IterCount returns the number of outstanding iterators.
func (a Array) IterCount() int {
	return int(photon.FromPointer[arrayPayload](a.rec().payload).IterCount)
}

// Iter returns an iterator over the current elements and increments the
// outstanding-iterator count. The static and frozen arrays are read-only, so
// their count is never touched.
func (a Array) Iter() *Iterator {
	r := a.rec()
	if !r.frozen {
		photon.FromPointer[arrayPayload](r.payload).IterCount++
	}
	it := a.heap.massIterator.New()
	*it = Iterator{heap: a.heap, array: a.v, guarded: !r.frozen}
	return it
}

// Iterator walks the elements of a sequence. Close must be called so guarded
// arrays release their outstanding-iterator count.
type Iterator struct {
	heap    *Heap
	elems   []types.Value
	array   types.Value
	next    int
	guarded bool
}

// Next returns the next element, or false when the sequence is exhausted.
func (it *Iterator) Next() (types.Value, bool) {
	if it.array != 0 {
		arr, _ := it.heap.Array(it.array)
		content := arr.Content()
		if it.next >= len(content) {
			return 0, false
		}
		v := content[it.next]
		it.next++
		return v, true
	}
	if it.next >= len(it.elems) {
		return 0, false
	}
	v := it.elems[it.next]
	it.next++
	return v, true
}

// Close releases the iterator.
func (it *Iterator) Close() {
	if !it.guarded {
		return
	}
	it.guarded = false
	p := photon.FromPointer[arrayPayload](it.heap.record(it.array).payload)
	if p.IterCount == 0 {
		panic("iterator count underflow")
	}
	p.IterCount--
}
