package types

const (
	// CellLength is the alignment unit of arena allocations.
	CellLength = 8

	// HeaderLength is the number of bytes occupied by a record header.
	HeaderLength = 8

	// PayloadLength is the size of the fixed payload area of a record. It is
	// always a full word so a forwarding word never overlaps the extra region.
	PayloadLength = 8

	// RecordLength is the offset of the extra region inside a record.
	RecordLength = HeaderLength + PayloadLength
)

type (
	// HeapAddress is the byte offset of a record header inside its arena.
	HeapAddress uint64

	// RegionID identifies a frozen arena in the process-wide registry.
	RegionID uint16
)

// Tag classifies the content of a value word. It occupies the low three bits.
type Tag uint8

const (
	// TagRef means the word is an offset into the owning mutable arena.
	TagRef Tag = iota

	// TagFrozen means the word addresses a record in a registered frozen arena.
	TagFrozen

	// TagInt means the word carries a 32-bit integer immediate.
	TagInt

	// TagBool means the word carries a boolean immediate.
	TagBool

	// TagNone means the word is the none constant.
	TagNone

	// TagUnassigned means the word is the unassigned slot sentinel.
	TagUnassigned
)

// Mode classifies how a record's payload is stored and frozen.
type Mode uint8

const (
	// ModeDirect marks records laid out entirely inside the arena.
	ModeDirect Mode = iota

	// ModeSimple marks records backed by a Go payload holding no value references.
	ModeSimple

	// ModeComplex marks records backed by a Go payload owning other values.
	ModeComplex
)

// Kind identifies the concrete shape of a record.
type Kind uint16

const (
	// KindForward marks a relocated record. The payload holds the destination word.
	KindForward Kind = iota

	// KindStr is a string record. The extra region holds the bytes.
	KindStr

	// KindTuple is a tuple record. The extra region holds the element words.
	KindTuple

	// KindList is a list record. The mutable form points at its backing array,
	// the frozen form stores its elements in the extra region.
	KindList

	// KindArray is a fixed-capacity array record backing mutable lists.
	KindArray

	// KindFloat is a float record storing IEEE-754 bits in the payload.
	KindFloat

	// KindBox is a record whose payload indexes a Go-side payload object.
	KindBox
)

// Header precedes every record stored in an arena.
type Header struct {
	Kind     Kind
	Mode     Mode
	_        uint8
	ExtraLen uint32
}

const (
	tagBits = 3
	tagMask = 1<<tagBits - 1

	frozenRegionShift = 48
	frozenAddrMask    = 1<<frozenRegionShift - 1
)

type (
	// Value is a tagged word referencing a value owned by a mutable heap.
	Value uint64

	// FrozenValue is a tagged word referencing an immutable value. It never
	// carries TagRef, so it stays valid when the originating heap is gone.
	FrozenValue uint64
)

// Immediate constants.
const (
	None       Value = Value(TagNone)
	False      Value = Value(TagBool)
	True       Value = Value(TagBool) | 1<<32
	Unassigned Value = Value(TagUnassigned)

	FrozenNone       FrozenValue = FrozenValue(None)
	FrozenFalse      FrozenValue = FrozenValue(False)
	FrozenTrue       FrozenValue = FrozenValue(True)
	FrozenUnassigned FrozenValue = FrozenValue(Unassigned)
)

// NewRef returns a value addressing a record in the owning mutable arena.
func NewRef(addr HeapAddress) Value {
	if addr == 0 || addr&tagMask != 0 {
		panic("invalid heap address")
	}
	return Value(addr)
}

// NewFrozenRef returns a value addressing a record in a registered frozen arena.
func NewFrozenRef(region RegionID, addr HeapAddress) FrozenValue {
	if addr == 0 || addr&tagMask != 0 || addr > frozenAddrMask {
		panic("invalid frozen address")
	}
	return FrozenValue(uint64(region)<<frozenRegionShift | uint64(addr) | uint64(TagFrozen))
}

// NewInt returns an integer immediate.
func NewInt(v int32) Value {
	return Value(uint64(uint32(v))<<32 | uint64(TagInt))
}

// NewBool returns a boolean immediate.
func NewBool(v bool) Value {
	if v {
		return True
	}
	return False
}

// Tag returns the tag bits of the word.
func (v Value) Tag() Tag {
	return Tag(v & tagMask)
}

// Addr returns the arena offset of a TagRef word.
func (v Value) Addr() HeapAddress {
	return HeapAddress(v)
}

// FrozenRegion returns the registry identifier of a TagFrozen word.
func (v Value) FrozenRegion() RegionID {
	return RegionID(v >> frozenRegionShift)
}

// FrozenAddr returns the arena offset of a TagFrozen word.
func (v Value) FrozenAddr() HeapAddress {
	return HeapAddress(uint64(v) & frozenAddrMask &^ tagMask)
}

// Int returns the integer immediate.
func (v Value) Int() int32 {
	return int32(uint32(v >> 32))
}

// Bool returns the boolean immediate.
func (v Value) Bool() bool {
	return v>>32 != 0
}

// IsUnassigned reports whether the word is the unassigned slot sentinel.
func (v Value) IsUnassigned() bool {
	return v.Tag() == TagUnassigned
}

// Frozen reinterprets the word as frozen. Legal for every tag but TagRef.
func (v Value) Frozen() (FrozenValue, bool) {
	if v.Tag() == TagRef {
		return 0, false
	}
	return FrozenValue(v), true
}

// Value reinterprets the frozen word as a value readable by any heap.
func (v FrozenValue) Value() Value {
	return Value(v)
}

// Tag returns the tag bits of the word.
func (v FrozenValue) Tag() Tag {
	return Tag(v & tagMask)
}

// FrozenRegion returns the registry identifier of a TagFrozen word.
func (v FrozenValue) FrozenRegion() RegionID {
	return RegionID(v >> frozenRegionShift)
}

// FrozenAddr returns the arena offset of a TagFrozen word.
func (v FrozenValue) FrozenAddr() HeapAddress {
	return HeapAddress(uint64(v) & frozenAddrMask &^ tagMask)
}

// Int returns the integer immediate.
func (v FrozenValue) Int() int32 {
	return int32(uint32(v >> 32))
}

// Bool returns the boolean immediate.
func (v FrozenValue) Bool() bool {
	return v>>32 != 0
}

// IsUnassigned reports whether the word is the unassigned slot sentinel.
func (v FrozenValue) IsUnassigned() bool {
	return v.Tag() == TagUnassigned
}

// WithRegion returns the word retagged to the given region.
func (v FrozenValue) WithRegion(region RegionID) FrozenValue {
	return FrozenValue(uint64(v)&frozenAddrMask | uint64(region)<<frozenRegionShift)
}
