package helium

import (
	"github.com/outofforest/helium/types"
)

// Payload is the contract implemented by Go-side value types stored behind
// box records. Implementations holding no references to other values are
// allocated with AllocSimple; implementations owning values must also
// implement ComplexPayload and are allocated with AllocComplex.
type Payload interface {
	// TypeName returns the user-visible type name.
	TypeName() string

	// Repr renders the value for display.
	Repr(h *Heap) string

	// Truth returns the boolean interpretation of the value.
	Truth() bool

	// Hash returns a hash stable across freeze and copy. Unhashable types
	// return an error; function-like types return a fixed constant.
	Hash(h *Heap) (uint64, error)
}

// ComplexPayload is implemented by payloads owning other values. They are
// traced during compaction and freeze into a counterpart payload which may
// have a different shape.
type ComplexPayload interface {
	Payload

	// Trace relocates every owned value in place.
	Trace(t *Tracer)

	// Freeze returns the frozen counterpart of the payload.
	Freeze(f *Freezer) (Payload, error)
}

// Callable is implemented by payloads which may be invoked.
type Callable interface {
	Invoke(h *Heap, args []types.Value) (types.Value, error)
}

// HasAttrs is implemented by payloads exposing named attributes.
type HasAttrs interface {
	Attr(h *Heap, name string) (types.Value, bool)
	AttrNames() []string
}

// Indexable is implemented by payloads supporting subscript reads.
type Indexable interface {
	Index(h *Heap, index types.Value) (types.Value, error)
	Len() int
}

// IndexSettable is implemented by payloads supporting subscript writes.
type IndexSettable interface {
	SetIndex(h *Heap, index, elem types.Value) error
}

// Iterable is implemented by payloads whose elements can be walked.
type Iterable interface {
	Elems(h *Heap) []types.Value
}

// Addable is implemented by payloads defining their own addition.
type Addable interface {
	Add(h *Heap, rhs types.Value) (types.Value, error)
}

// EqualTo is implemented by payloads defining their own equality. Payloads
// without it compare by identity only.
type EqualTo interface {
	EqualTo(h *Heap, other types.Value) (bool, error)
}

// FunctionDef marks frozen payloads representing function definitions. The
// freezer collects them so the embedder can run post-freeze fixups.
type FunctionDef interface {
	FunctionDef()
}

// Unbox returns the payload behind v iff its concrete type is exactly T.
func Unbox[T Payload](h *Heap, v types.Value) (T, bool) {
	var zero T
	p, ok := h.payloadOf(v)
	if !ok {
		return zero, false
	}
	t, ok := p.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
