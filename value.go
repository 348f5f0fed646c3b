package helium

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/photon"

	"github.com/outofforest/helium/types"
)

// OpError reports an operation applied to values which do not support it. It
// is recoverable and surfaces to the language user.
type OpError struct {
	Op    string
	Types []string
}

func (e *OpError) Error() string {
	if len(e.Types) == 2 {
		return fmt.Sprintf("unsupported operation %s between %s and %s", e.Op, e.Types[0], e.Types[1])
	}
	return fmt.Sprintf("unsupported operation %s on %s", e.Op, e.Types[0])
}

func (h *Heap) opError(op string, vs ...types.Value) error {
	return errors.WithStack(&OpError{
		Op: op,
		Types: lo.Map(vs, func(v types.Value, _ int) string {
			return h.TypeName(v)
		}),
	})
}

// TypeName returns the user-visible type name of the value.
func (h *Heap) TypeName(v types.Value) string {
	switch v.Tag() {
	case types.TagNone:
		return "NoneType"
	case types.TagBool:
		return "bool"
	case types.TagInt:
		return "int"
	case types.TagUnassigned:
		return "unassigned"
	}
	r := h.record(v)
	switch r.hdr.Kind {
	case types.KindStr:
		return "string"
	case types.KindTuple:
		return "tuple"
	case types.KindList:
		return "list"
	case types.KindArray:
		return "array"
	case types.KindFloat:
		return "float"
	case types.KindBox:
		return r.boxes[boxIndex(r)].TypeName()
	}
	panic("unknown record kind")
}

// Repr renders the value the way the language prints it. Cyclic graphs are
// not detected and do not terminate.
func (h *Heap) Repr(v types.Value) string {
	switch v.Tag() {
	case types.TagNone:
		return "None"
	case types.TagBool:
		if v.Bool() {
			return "True"
		}
		return "False"
	case types.TagInt:
		return strconv.FormatInt(int64(v.Int()), 10)
	case types.TagUnassigned:
		return "<unassigned>"
	}
	r := h.record(v)
	switch r.hdr.Kind {
	case types.KindStr:
		s, _ := h.Str(v)
		return strconv.Quote(s)
	case types.KindFloat:
		f, _ := h.Float(v)
		return formatFloat(f)
	case types.KindTuple:
		elems, _ := h.Tuple(v)
		inner := strings.Join(h.reprs(elems), ", ")
		if len(elems) == 1 {
			return "(" + inner + ",)"
		}
		return "(" + inner + ")"
	case types.KindList:
		l, _ := h.List(v)
		return "[" + strings.Join(h.reprs(l.Content()), ", ") + "]"
	case types.KindArray:
		arr, _ := h.Array(v)
		return "array([" + strings.Join(h.reprs(arr.Content()), ", ") + "], cap=" +
			strconv.Itoa(arr.Capacity()) + ")"
	case types.KindBox:
		return r.boxes[boxIndex(r)].Repr(h)
	}
	panic("unknown record kind")
}

func (h *Heap) reprs(elems []types.Value) []string {
	return lo.Map(elems, func(e types.Value, _ int) string {
		return h.Repr(e)
	})
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "+inf"
	case math.IsInf(f, -1):
		return "-inf"
	case f == math.Trunc(f) && math.Abs(f) < 1e17:
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Truth returns the boolean interpretation of the value.
func (h *Heap) Truth(v types.Value) bool {
	switch v.Tag() {
	case types.TagNone:
		return false
	case types.TagBool:
		return v.Bool()
	case types.TagInt:
		return v.Int() != 0
	case types.TagUnassigned:
		panic("operation on unassigned value")
	}
	r := h.record(v)
	switch r.hdr.Kind {
	case types.KindStr:
		return r.hdr.ExtraLen != 0
	case types.KindTuple:
		return r.hdr.ExtraLen != 0
	case types.KindList:
		l, _ := h.List(v)
		return l.Len() != 0
	case types.KindArray:
		arr, _ := h.Array(v)
		return arr.Len() != 0
	case types.KindFloat:
		f, _ := h.Float(v)
		return f != 0
	case types.KindBox:
		return r.boxes[boxIndex(r)].Truth()
	}
	panic("unknown record kind")
}

// Hash returns a hash stable across freeze and copy. Values which compare
// equal hash equally, including integers against int-valued floats.
func (h *Heap) Hash(v types.Value) (uint64, error) {
	switch v.Tag() {
	case types.TagNone, types.TagBool:
		return hashWord(uint64(v)), nil
	case types.TagInt:
		return NumInt(v.Int()).Hash(), nil
	case types.TagUnassigned:
		panic("operation on unassigned value")
	}
	r := h.record(v)
	switch r.hdr.Kind {
	case types.KindStr:
		s, _ := h.Str(v)
		return xxhash.Sum64String(s), nil
	case types.KindFloat:
		f, _ := h.Float(v)
		return NumFloat(f).Hash(), nil
	case types.KindTuple:
		elems, _ := h.Tuple(v)
		return h.hashElems(elems)
	case types.KindList, types.KindArray:
		return 0, h.opError("hash", v)
	case types.KindBox:
		return r.boxes[boxIndex(r)].Hash(h)
	}
	panic("unknown record kind")
}

func (h *Heap) hashElems(elems []types.Value) (uint64, error) {
	acc := uint64(0x345678)
	mult := uint64(1000003)
	for _, elem := range elems {
		eh, err := h.Hash(elem)
		if err != nil {
			return 0, err
		}
		acc = (acc ^ eh) * mult
		mult += 82520 + 2*uint64(len(elems))
	}
	return acc + 97531, nil
}

func hashWord(w uint64) uint64 {
	return xxhash.Sum64(photon.NewFromValue(&w).B)
}

// Equals reports language-level equality. Values of unrelated types are
// unequal, never an error.
func (h *Heap) Equals(a, b types.Value) (bool, error) {
	if a == b {
		return true, nil
	}
	if an, ok := h.NumOf(a); ok {
		bn, ok := h.NumOf(b)
		return ok && numEqual(an, bn), nil
	}
	if a.Tag() != types.TagRef && a.Tag() != types.TagFrozen {
		// Immediates of the same tag are equal only bit-identically.
		return false, nil
	}
	if b.Tag() != types.TagRef && b.Tag() != types.TagFrozen {
		return false, nil
	}

	ra := h.record(a)
	rb := h.record(b)
	switch {
	case ra.hdr.Kind == types.KindStr && rb.hdr.Kind == types.KindStr:
		sa, _ := h.Str(a)
		sb, _ := h.Str(b)
		return sa == sb, nil
	case ra.hdr.Kind == types.KindTuple && rb.hdr.Kind == types.KindTuple:
		ea, _ := h.Tuple(a)
		eb, _ := h.Tuple(b)
		return h.elemsEqual(ea, eb)
	case ra.hdr.Kind == types.KindList && rb.hdr.Kind == types.KindList:
		la, _ := h.List(a)
		lb, _ := h.List(b)
		return h.elemsEqual(la.Content(), lb.Content())
	}

	// Either box side may define equality; a left box without EqualTo must
	// not swallow the right one's.
	if ra.hdr.Kind == types.KindBox {
		if eq, ok := ra.boxes[boxIndex(ra)].(EqualTo); ok {
			return eq.EqualTo(h, b)
		}
	}
	if rb.hdr.Kind == types.KindBox {
		if eq, ok := rb.boxes[boxIndex(rb)].(EqualTo); ok {
			return eq.EqualTo(h, a)
		}
	}
	return false, nil
}

func (h *Heap) elemsEqual(a, b []types.Value) (bool, error) {
	if len(a) != len(b) {
		return false, nil
	}
	for i := range a {
		eq, err := h.Equals(a[i], b[i])
		if err != nil || !eq {
			return false, err
		}
	}
	return true, nil
}

// Compare orders two values, failing for unordered types.
func (h *Heap) Compare(a, b types.Value) (int, error) {
	if an, ok := h.NumOf(a); ok {
		if bn, ok := h.NumOf(b); ok {
			return numCompare(an, bn), nil
		}
		return 0, h.opError("compare", a, b)
	}
	if sa, ok := h.Str(a); ok {
		if sb, ok := h.Str(b); ok {
			return strings.Compare(sa, sb), nil
		}
		return 0, h.opError("compare", a, b)
	}
	if ea, ok := h.Tuple(a); ok {
		if eb, ok := h.Tuple(b); ok {
			return h.elemsCompare(ea, eb)
		}
		return 0, h.opError("compare", a, b)
	}
	if la, ok := h.List(a); ok {
		if lb, ok := h.List(b); ok {
			return h.elemsCompare(la.Content(), lb.Content())
		}
	}
	return 0, h.opError("compare", a, b)
}

func (h *Heap) elemsCompare(a, b []types.Value) (int, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		c, err := h.Compare(a[i], b[i])
		if err != nil || c != 0 {
			return c, err
		}
	}
	switch {
	case len(a) < len(b):
		return -1, nil
	case len(a) > len(b):
		return 1, nil
	}
	return 0, nil
}

// Add computes a + b: numeric addition, string/tuple/list concatenation, or
// the payload's own addition.
func (h *Heap) Add(a, b types.Value) (types.Value, error) {
	if an, ok := h.NumOf(a); ok {
		if bn, ok := h.NumOf(b); ok {
			if an.IsInt() && bn.IsInt() {
				ai, _ := an.Int()
				bi, _ := bn.Int()
				return h.intResult(int64(ai) + int64(bi))
			}
			return h.AllocFloat(an.Float() + bn.Float()), nil
		}
		return 0, h.opError("+", a, b)
	}
	if sa, ok := h.Str(a); ok {
		if sb, ok := h.Str(b); ok {
			return h.AllocStr(sa + sb), nil
		}
		return 0, h.opError("+", a, b)
	}
	if ea, ok := h.Tuple(a); ok {
		if eb, ok := h.Tuple(b); ok {
			return h.AllocTuple(concatElems(ea, eb)), nil
		}
		return 0, h.opError("+", a, b)
	}
	if la, ok := h.List(a); ok {
		if lb, ok := h.List(b); ok {
			return h.AllocList(concatElems(la.Content(), lb.Content())), nil
		}
		return 0, h.opError("+", a, b)
	}
	if p, ok := h.payloadOf(a); ok {
		if ad, ok := p.(Addable); ok {
			return ad.Add(h, b)
		}
	}
	return 0, h.opError("+", a, b)
}

func concatElems(a, b []types.Value) []types.Value {
	out := make([]types.Value, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// Sub computes a - b for numbers.
func (h *Heap) Sub(a, b types.Value) (types.Value, error) {
	an, aok := h.NumOf(a)
	bn, bok := h.NumOf(b)
	if !aok || !bok {
		return 0, h.opError("-", a, b)
	}
	if an.IsInt() && bn.IsInt() {
		ai, _ := an.Int()
		bi, _ := bn.Int()
		return h.intResult(int64(ai) - int64(bi))
	}
	return h.AllocFloat(an.Float() - bn.Float()), nil
}

// Mul computes a * b: numeric multiplication or sequence repetition.
func (h *Heap) Mul(a, b types.Value) (types.Value, error) {
	if a.Tag() == types.TagInt && b.Tag() != types.TagInt {
		if v, ok, err := h.repeat(b, a.Int()); ok {
			return v, err
		}
	}
	if b.Tag() == types.TagInt {
		if v, ok, err := h.repeat(a, b.Int()); ok {
			return v, err
		}
	}
	an, aok := h.NumOf(a)
	bn, bok := h.NumOf(b)
	if !aok || !bok {
		return 0, h.opError("*", a, b)
	}
	if an.IsInt() && bn.IsInt() {
		ai, _ := an.Int()
		bi, _ := bn.Int()
		return h.intResult(int64(ai) * int64(bi))
	}
	return h.AllocFloat(an.Float() * bn.Float()), nil
}

func (h *Heap) repeat(v types.Value, n int32) (types.Value, bool, error) {
	if n < 0 {
		n = 0
	}
	if s, ok := h.Str(v); ok {
		return h.AllocStr(strings.Repeat(s, int(n))), true, nil
	}
	if elems, ok := h.Tuple(v); ok {
		return h.AllocTuple(repeatElems(elems, int(n))), true, nil
	}
	if l, ok := h.List(v); ok {
		return h.AllocList(repeatElems(l.Content(), int(n))), true, nil
	}
	return 0, false, nil
}

func repeatElems(elems []types.Value, n int) []types.Value {
	out := make([]types.Value, 0, len(elems)*n)
	for range n {
		out = append(out, elems...)
	}
	return out
}

// Div computes true division, always producing a float.
func (h *Heap) Div(a, b types.Value) (types.Value, error) {
	an, aok := h.NumOf(a)
	bn, bok := h.NumOf(b)
	if !aok || !bok {
		return 0, h.opError("/", a, b)
	}
	if bn.Float() == 0 {
		return 0, errors.New("division by zero")
	}
	return h.AllocFloat(an.Float() / bn.Float()), nil
}

// FloorDiv computes a // b rounded towards negative infinity.
func (h *Heap) FloorDiv(a, b types.Value) (types.Value, error) {
	an, aok := h.NumOf(a)
	bn, bok := h.NumOf(b)
	if !aok || !bok {
		return 0, h.opError("//", a, b)
	}
	if an.IsInt() && bn.IsInt() {
		ai, _ := an.Int()
		bi, _ := bn.Int()
		if bi == 0 {
			return 0, errors.New("division by zero")
		}
		q := int64(ai) / int64(bi)
		if (ai%bi != 0) && ((ai < 0) != (bi < 0)) {
			q--
		}
		return h.intResult(q)
	}
	if bn.Float() == 0 {
		return 0, errors.New("division by zero")
	}
	return h.AllocFloat(math.Floor(an.Float() / bn.Float())), nil
}

// Mod computes a % b with the sign of the divisor.
func (h *Heap) Mod(a, b types.Value) (types.Value, error) {
	an, aok := h.NumOf(a)
	bn, bok := h.NumOf(b)
	if !aok || !bok {
		return 0, h.opError("%", a, b)
	}
	if an.IsInt() && bn.IsInt() {
		ai, _ := an.Int()
		bi, _ := bn.Int()
		if bi == 0 {
			return 0, errors.New("division by zero")
		}
		m := int64(ai) % int64(bi)
		if m != 0 && (ai < 0) != (bi < 0) {
			m += int64(bi)
		}
		return h.intResult(m)
	}
	if bn.Float() == 0 {
		return 0, errors.New("division by zero")
	}
	m := math.Mod(an.Float(), bn.Float())
	if m != 0 && (m < 0) != (bn.Float() < 0) {
		m += bn.Float()
	}
	return h.AllocFloat(m), nil
}

// Neg computes -a for numbers.
func (h *Heap) Neg(a types.Value) (types.Value, error) {
	an, ok := h.NumOf(a)
	if !ok {
		return 0, h.opError("-", a)
	}
	if an.IsInt() {
		ai, _ := an.Int()
		return h.intResult(-int64(ai))
	}
	return h.AllocFloat(-an.Float()), nil
}

func (h *Heap) intResult(v int64) (types.Value, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errors.New("integer overflow")
	}
	return types.NewInt(int32(v)), nil
}

// Index computes v[index].
func (h *Heap) Index(v, index types.Value) (types.Value, error) {
	if s, ok := h.Str(v); ok {
		i, err := h.seqIndex(index, len(s), v)
		if err != nil {
			return 0, err
		}
		return h.AllocStr(s[i : i+1]), nil
	}
	if elems, ok := h.Tuple(v); ok {
		i, err := h.seqIndex(index, len(elems), v)
		if err != nil {
			return 0, err
		}
		return elems[i], nil
	}
	if l, ok := h.List(v); ok {
		content := l.Content()
		i, err := h.seqIndex(index, len(content), v)
		if err != nil {
			return 0, err
		}
		return content[i], nil
	}
	if p, ok := h.payloadOf(v); ok {
		if idx, ok := p.(Indexable); ok {
			return idx.Index(h, index)
		}
	}
	return 0, h.opError("[]", v, index)
}

// SetIndex computes v[index] = elem.
func (h *Heap) SetIndex(v, index, elem types.Value) error {
	if l, ok := h.List(v); ok {
		i, err := h.seqIndex(index, l.Len(), v)
		if err != nil {
			return err
		}
		return l.SetAt(i, elem)
	}
	if p, ok := h.payloadOf(v); ok {
		if idx, ok := p.(IndexSettable); ok {
			return idx.SetIndex(h, index, elem)
		}
	}
	return h.opError("[]=", v, index)
}

// seqIndex validates an index against a sequence length, wrapping negative
// indices the way the language does.
func (h *Heap) seqIndex(index types.Value, length int, seq types.Value) (int, error) {
	if index.Tag() != types.TagInt {
		return 0, h.opError("[]", seq, index)
	}
	i := int(index.Int())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, errors.Errorf("index %d out of range of length %d", index.Int(), length)
	}
	return i, nil
}

// Length returns the number of elements of the value.
func (h *Heap) Length(v types.Value) (int, error) {
	if s, ok := h.Str(v); ok {
		return len(s), nil
	}
	if elems, ok := h.Tuple(v); ok {
		return len(elems), nil
	}
	if l, ok := h.List(v); ok {
		return l.Len(), nil
	}
	if arr, ok := h.Array(v); ok {
		return arr.Len(), nil
	}
	if p, ok := h.payloadOf(v); ok {
		if idx, ok := p.(Indexable); ok {
			return idx.Len(), nil
		}
	}
	return 0, h.opError("len", v)
}

// Iterate returns an iterator over the elements of the value. The caller must
// Close it.
func (h *Heap) Iterate(v types.Value) (*Iterator, error) {
	if elems, ok := h.Tuple(v); ok {
		it := h.massIterator.New()
		*it = Iterator{heap: h, elems: elems}
		return it, nil
	}
	if l, ok := h.List(v); ok {
		return l.Iter(), nil
	}
	if arr, ok := h.Array(v); ok {
		return arr.Iter(), nil
	}
	if p, ok := h.payloadOf(v); ok {
		if iter, ok := p.(Iterable); ok {
			it := h.massIterator.New()
			*it = Iterator{heap: h, elems: iter.Elems(h)}
			return it, nil
		}
	}
	return nil, h.opError("iterate", v)
}

// Attr returns the named attribute of the value.
func (h *Heap) Attr(v types.Value, name string) (types.Value, error) {
	if p, ok := h.payloadOf(v); ok {
		if attrs, ok := p.(HasAttrs); ok {
			if av, ok := attrs.Attr(h, name); ok {
				return av, nil
			}
			return 0, errors.Errorf("%s has no attribute %q", h.TypeName(v), name)
		}
	}
	return 0, h.opError("attr", v)
}

// AttrNames returns the attribute names exposed by the value.
func (h *Heap) AttrNames(v types.Value) []string {
	if p, ok := h.payloadOf(v); ok {
		if attrs, ok := p.(HasAttrs); ok {
			return attrs.AttrNames()
		}
	}
	return nil
}

// Invoke calls the value with the given arguments.
func (h *Heap) Invoke(v types.Value, args []types.Value) (types.Value, error) {
	if p, ok := h.payloadOf(v); ok {
		if c, ok := p.(Callable); ok {
			return c.Invoke(h, args)
		}
	}
	return 0, h.opError("call", v)
}
