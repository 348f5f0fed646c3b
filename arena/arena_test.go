package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

func TestAllocateAligns(t *testing.T) {
	requireT := require.New(t)
	a := New(1024)

	// Offset 0 is reserved.
	addr := a.Allocate(types.RecordLength)
	requireT.Equal(types.HeapAddress(types.CellLength), addr)

	addr2 := a.Allocate(types.RecordLength + 3)
	requireT.Equal(types.HeapAddress(types.CellLength+types.RecordLength), addr2)

	// The 3 extra bytes round up to a full cell.
	addr3 := a.Allocate(types.RecordLength)
	requireT.Equal(addr2+types.RecordLength+types.CellLength, addr3)

	requireT.Equal(uint64(addr3)+types.RecordLength, a.Used())
	requireT.Equal(uint64(1024), a.Size())
	requireT.Len(a.Bytes(), int(a.Used()))
}

func TestAllocateExhaustionPanics(t *testing.T) {
	requireT := require.New(t)
	a := New(64)

	a.Allocate(32)
	requireT.Panics(func() {
		a.Allocate(64)
	})
}

func TestRecordViews(t *testing.T) {
	requireT := require.New(t)
	a := New(1024)

	addr := a.Allocate(types.RecordLength + 16)
	*a.Header(addr) = types.Header{Kind: types.KindStr, Mode: types.ModeDirect, ExtraLen: 16}

	requireT.Equal(unsafe.Add(a.At(addr), types.HeaderLength), a.Payload(addr))
	requireT.Equal(unsafe.Add(a.At(addr), types.RecordLength), a.Extra(addr))

	*photon.FromPointer[uint64](a.Payload(addr)) = 0xdeadbeef
	copy(photon.SliceFromPointer[byte](a.Extra(addr), 16), "0123456789abcdef")

	hdr := a.Header(addr)
	requireT.Equal(types.KindStr, hdr.Kind)
	requireT.Equal(uint32(16), hdr.ExtraLen)
	requireT.Equal(uint64(0xdeadbeef), *photon.FromPointer[uint64](a.Payload(addr)))
	requireT.Equal("0123456789abcdef", string(photon.SliceFromPointer[byte](a.Extra(addr), 16)))
}

func TestNewFromBufferRejectsTinyBuffer(t *testing.T) {
	require.Panics(t, func() {
		NewFromBuffer(make([]byte, 8))
	})
}
