package helium

import (
	"math"

	"github.com/cespare/xxhash"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

// Num unifies integer and float values so equal numbers hash and compare the
// same regardless of representation.
type Num struct {
	f     float64
	i     int32
	isInt bool
}

// NumOf extracts the numeric view of the value. Booleans are not numbers.
func (h *Heap) NumOf(v types.Value) (Num, bool) {
	switch v.Tag() {
	case types.TagInt:
		return Num{i: v.Int(), isInt: true}, true
	case types.TagRef, types.TagFrozen:
		if f, ok := h.Float(v); ok {
			return Num{f: f}, true
		}
	}
	return Num{}, false
}

// NumInt returns the numeric view of an integer.
func NumInt(i int32) Num {
	return Num{i: i, isInt: true}
}

// NumFloat returns the numeric view of a float.
func NumFloat(f float64) Num {
	return Num{f: f}
}

// IsInt reports whether the number is represented as an integer.
func (n Num) IsInt() bool {
	return n.isInt
}

// Float returns the number as a float.
func (n Num) Float() float64 {
	if n.isInt {
		return float64(n.i)
	}
	return n.f
}

// Int returns the number as an integer when it is precisely representable.
func (n Num) Int() (int32, bool) {
	if n.isInt {
		return n.i, true
	}
	if math.IsNaN(n.f) || n.f < math.MinInt32 || n.f > math.MaxInt32 {
		return 0, false
	}
	i := int32(n.f)
	if float64(i) != n.f {
		return 0, false
	}
	return i, true
}

// Hash64 returns the raw unified hash of the number. Integers and int-valued
// floats (including both zeros) hash as the integer; every NaN hashes the
// same; both infinities hash the same.
func (n Num) Hash64() uint64 {
	if i, ok := n.Int(); ok {
		return uint64(int64(i))
	}
	switch {
	case math.IsNaN(n.f):
		return 0
	case math.IsInf(n.f, 0):
		return math.MaxUint64
	}
	return math.Float64bits(n.f)
}

// Hash returns the mixed hash of the number.
func (n Num) Hash() uint64 {
	raw := n.Hash64()
	return xxhash.Sum64(photon.NewFromValue(&raw).B)
}

func numEqual(a, b Num) bool {
	if a.isInt && b.isInt {
		return a.i == b.i
	}
	return a.Float() == b.Float()
}

func numCompare(a, b Num) int {
	if a.isInt && b.isInt {
		switch {
		case a.i < b.i:
			return -1
		case a.i > b.i:
			return 1
		}
		return 0
	}
	af, bf := a.Float(), b.Float()
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}
