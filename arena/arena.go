package arena

import (
	"unsafe"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

// New creates an arena over a fresh zeroed buffer.
func New(size uint64) *Arena {
	return NewFromBuffer(make([]byte, size))
}

// NewFromBuffer creates an arena over the provided zeroed buffer.
func NewFromBuffer(data []byte) *Arena {
	if uint64(len(data)) < types.RecordLength+types.CellLength {
		panic("arena buffer is too small")
	}
	return &Arena{
		data:  data,
		dataP: unsafe.Pointer(&data[0]),
		// Offset 0 is reserved so a zero word is never a valid reference.
		off: types.CellLength,
	}
}

// Arena is a bump allocator producing header-prefixed records. Records are
// never freed individually; the whole buffer is dropped or recycled once the
// owning heap is compacted or abandoned.
type Arena struct {
	data  []byte
	dataP unsafe.Pointer
	off   uint64
}

// Allocate reserves size bytes, rounded up to the cell size, and returns the
// address of the extent. Exhaustion is a contract violation.
func (a *Arena) Allocate(size uint64) types.HeapAddress {
	size = (size + types.CellLength - 1) / types.CellLength * types.CellLength
	if a.off+size > uint64(len(a.data)) {
		panic("arena exhausted")
	}
	addr := types.HeapAddress(a.off)
	a.off += size
	return addr
}

// At returns the memory at the given address.
func (a *Arena) At(addr types.HeapAddress) unsafe.Pointer {
	return unsafe.Add(a.dataP, addr)
}

// Header returns the record header at the given address.
func (a *Arena) Header(addr types.HeapAddress) *types.Header {
	return photon.FromPointer[types.Header](a.At(addr))
}

// Payload returns the fixed payload area of the record at the given address.
func (a *Arena) Payload(addr types.HeapAddress) unsafe.Pointer {
	return unsafe.Add(a.dataP, uint64(addr)+types.HeaderLength)
}

// Extra returns the extra region of the record at the given address.
func (a *Arena) Extra(addr types.HeapAddress) unsafe.Pointer {
	return unsafe.Add(a.dataP, uint64(addr)+types.RecordLength)
}

// Used returns the number of bytes allocated so far.
func (a *Arena) Used() uint64 {
	return a.off
}

// Size returns the capacity of the arena.
func (a *Arena) Size() uint64 {
	return uint64(len(a.data))
}

// Bytes returns the allocated prefix of the buffer.
func (a *Arena) Bytes() []byte {
	return a.data[:a.off]
}

// Buffer returns the whole backing buffer.
func (a *Arena) Buffer() []byte {
	return a.data
}
