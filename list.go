package helium

import (
	"github.com/pkg/errors"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

const minListCapacity = 4

// List is a handle over a mutable sequence backed by a capacity-managed
// array. Mutating a frozen list is a recoverable error, because it is the
// language user who triggers it.
type List struct {
	heap *Heap
	v    types.Value
}

// List resolves v to a list handle.
func (h *Heap) List(v types.Value) (List, bool) {
	if v.Tag() != types.TagRef && v.Tag() != types.TagFrozen {
		return List{}, false
	}
	if h.record(v).hdr.Kind != types.KindList {
		return List{}, false
	}
	return List{heap: h, v: v}, true
}

// Frozen reports whether the list is immutable.
func (l List) Frozen() bool {
	return l.heap.record(l.v).frozen
}

// Backing returns the value of the backing array of a mutable list.
func (l List) Backing() types.Value {
	r := l.heap.record(l.v)
	if r.frozen {
		panic("frozen list has no backing array")
	}
	return *photon.FromPointer[types.Value](r.payload)
}

// Content returns a view of the elements.
func (l List) Content() []types.Value {
	r := l.heap.record(l.v)
	if r.frozen {
		n := int(*photon.FromPointer[uint64](r.payload))
		return photon.SliceFromPointer[types.Value](r.extra, n)
	}
	arr, _ := l.heap.Array(*photon.FromPointer[types.Value](r.payload))
	return arr.Content()
}

// Len returns the number of elements.
func (l List) Len() int {
	return len(l.Content())
}

// Append adds a value at the end, growing the backing array when needed.
func (l List) Append(v types.Value) error {
	arr, err := l.ensure(1)
	if err != nil {
		return err
	}
	arr.Push(v)
	return nil
}

// Insert inserts v at index, growing the backing array when needed.
func (l List) Insert(index int, v types.Value) error {
	arr, err := l.ensure(1)
	if err != nil {
		return err
	}
	arr.Insert(index, v)
	return nil
}

// Remove removes and returns the element at index.
func (l List) Remove(index int) (types.Value, error) {
	r, err := l.mutable()
	if err != nil {
		return 0, err
	}
	arr, _ := l.heap.Array(*photon.FromPointer[types.Value](r.payload))
	return arr.Remove(index), nil
}

// SetAt replaces the element at index.
func (l List) SetAt(index int, v types.Value) error {
	r, err := l.mutable()
	if err != nil {
		return err
	}
	arr, _ := l.heap.Array(*photon.FromPointer[types.Value](r.payload))
	arr.SetAt(index, v)
	return nil
}

// Clear removes all the elements, keeping the backing array.
func (l List) Clear() error {
	r, err := l.mutable()
	if err != nil {
		return err
	}
	arr, _ := l.heap.Array(*photon.FromPointer[types.Value](r.payload))
	if arr.Len() > 0 {
		arr.Clear()
	}
	return nil
}

// Iter returns an iterator over the elements.
func (l List) Iter() *Iterator {
	r := l.heap.record(l.v)
	if r.frozen {
		it := l.heap.massIterator.New()
		*it = Iterator{heap: l.heap, elems: l.Content()}
		return it
	}
	arr, _ := l.heap.Array(*photon.FromPointer[types.Value](r.payload))
	return arr.Iter()
}

func (l List) mutable() (record, error) {
	r := l.heap.record(l.v)
	if r.frozen {
		return record{}, errors.WithStack(&OpError{Op: "mutate", Types: []string{"frozen list"}})
	}
	return r, nil
}

// ensure returns the backing array with room for extra more elements,
// reallocating it with doubled capacity when it is full.
func (l List) ensure(extra int) (Array, error) {
	r, err := l.mutable()
	if err != nil {
		return Array{}, err
	}
	backing := *photon.FromPointer[types.Value](r.payload)
	arr, _ := l.heap.Array(backing)
	if arr.Capacity()-arr.Len() >= extra {
		return arr, nil
	}

	// The guard must hold even when growth swaps the backing array out from
	// under an outstanding iterator.
	if arr.IterCount() != 0 {
		panic("array mutated while iterators are outstanding")
	}

	newCapacity := max(2*arr.Capacity(), arr.Len()+extra, minListCapacity)
	newBacking := l.heap.AllocArray(newCapacity)
	newArr, _ := l.heap.Array(newBacking)
	newArr.ExtendFromSlice(arr.Content())
	*photon.FromPointer[types.Value](r.payload) = newBacking
	return newArr, nil
}
