package helium

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	lukechampineblake3 "lukechampine.com/blake3"

	"github.com/outofforest/helium/types"
)

// poison is a complex payload whose freeze hook always fails.
type poison struct {
	inner types.Value
}

func (p *poison) TypeName() string {
	return "poison"
}

func (p *poison) Repr(h *Heap) string {
	return "<poison>"
}

func (p *poison) Truth() bool {
	return true
}

func (p *poison) Hash(h *Heap) (uint64, error) {
	return 0, errors.New("unhashable type: poison")
}

func (p *poison) Trace(t *Tracer) {
	t.Trace(&p.inner)
}

func (p *poison) Freeze(f *Freezer) (Payload, error) {
	return nil, errors.New("poison cannot be frozen")
}

// lambda is a complex payload freezing into a function definition.
type lambda struct {
	name string
}

func (l *lambda) TypeName() string            { return "function" }
func (l *lambda) Repr(h *Heap) string         { return "<function " + l.name + ">" }
func (l *lambda) Truth() bool                 { return true }
func (l *lambda) Hash(h *Heap) (uint64, error) { return 0x9e3779b97f4a7c15, nil }
func (l *lambda) Trace(t *Tracer)             {}

func (l *lambda) Freeze(f *Freezer) (Payload, error) {
	return &frozenLambda{name: l.name}, nil
}

type frozenLambda struct {
	name string
}

func (l *frozenLambda) TypeName() string            { return "function" }
func (l *frozenLambda) Repr(h *Heap) string         { return "<function " + l.name + ">" }
func (l *frozenLambda) Truth() bool                 { return true }
func (l *frozenLambda) Hash(h *Heap) (uint64, error) { return 0x9e3779b97f4a7c15, nil }
func (l *frozenLambda) FunctionDef()                {}

func TestFreezeScalarsAndStrings(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()
	f := NewFreezer(h)

	// Immediates are their own frozen image.
	fv, err := f.Freeze(types.NewInt(5))
	requireT.NoError(err)
	requireT.Equal(types.NewInt(5), fv.Value())

	fv, err = f.Freeze(types.None)
	requireT.NoError(err)
	requireT.Equal(types.FrozenNone, fv)

	sv, err := f.Freeze(h.AllocStr("hello"))
	requireT.NoError(err)
	requireT.Equal(types.TagFrozen, sv.Tag())
	f.Seal()

	s, ok := h.Str(sv.Value())
	requireT.True(ok)
	requireT.Equal("hello", s)
}

func TestFreezeCollapsesSharedSubgraphs(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	shared := h.AllocStr("shared")
	ta := h.AllocTuple([]types.Value{shared, shared})
	f := NewFreezer(h)

	fv, err := f.Freeze(ta)
	requireT.NoError(err)
	f.Seal()

	elems, ok := h.Tuple(fv.Value())
	requireT.True(ok)
	requireT.Equal(elems[0], elems[1])
}

func TestFreezeCycle(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	// l = [t]; t = (l,): a reference cycle between a list and a tuple.
	lv := h.AllocList(nil)
	tv := h.AllocTuple([]types.Value{lv})
	l, _ := h.List(lv)
	requireT.NoError(l.Append(tv))

	f := NewFreezer(h)
	fv, err := f.Freeze(lv)
	requireT.NoError(err)
	f.Seal()

	fl, ok := h.List(fv.Value())
	requireT.True(ok)
	requireT.True(fl.Frozen())
	requireT.Equal(1, fl.Len())

	innerTuple, ok := h.Tuple(fl.Content()[0])
	requireT.True(ok)
	requireT.Len(innerTuple, 1)

	// The cycle closes back on the same frozen word.
	requireT.Equal(fv.Value(), innerTuple[0])
}

func TestFreezeComplexPayloadCycle(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	p := &pair{second: types.NewInt(1)}
	pv := h.AllocComplex(p)
	p.first = pv

	f := NewFreezer(h)
	fv, err := f.Freeze(pv)
	requireT.NoError(err)
	f.Seal()

	fp, ok := Unbox[*frozenPair](h, fv.Value())
	requireT.True(ok)
	requireT.Equal(fv, fp.first)
	requireT.Equal(types.NewInt(1), fp.second.Value())
}

func TestFreezeEmptiesResolveToStatics(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()
	f := NewFreezer(h)

	fv, err := f.Freeze(h.AllocStr(""))
	requireT.NoError(err)
	requireT.Equal(EmptyStr, fv)

	fv, err = f.Freeze(h.AllocTuple(nil))
	requireT.NoError(err)
	requireT.Equal(EmptyTuple, fv)

	fv, err = f.Freeze(h.AllocList(nil))
	requireT.NoError(err)
	requireT.Equal(EmptyList, fv)

	// A list emptied after growing still freezes to the static.
	lv := h.AllocList([]types.Value{types.NewInt(1)})
	l, _ := h.List(lv)
	requireT.NoError(l.Clear())
	fv, err = f.Freeze(lv)
	requireT.NoError(err)
	requireT.Equal(EmptyList, fv)

	f.Seal()
}

func TestFailedFreezeLeavesHeapUsable(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	good := h.AllocStr("good")
	bad := h.AllocComplex(&poison{inner: good})
	lv := h.AllocList([]types.Value{good, bad})

	f := NewFreezer(h)
	_, err := f.Freeze(lv)
	requireT.Error(err)
	f.Discard()

	// Forwarding lives in a side map, so nothing in the mutable heap was
	// touched and evaluation continues.
	s, ok := h.Str(good)
	requireT.True(ok)
	requireT.Equal("good", s)

	l, _ := h.List(lv)
	requireT.Equal(2, l.Len())
	requireT.NoError(l.Append(h.AllocStr("more")))

	// A later freeze of the clean part succeeds.
	f2 := NewFreezer(h)
	fv, err := f2.Freeze(good)
	requireT.NoError(err)
	f2.Seal()
	s, ok = h.Str(fv.Value())
	requireT.True(ok)
	requireT.Equal("good", s)
}

func TestFrozenFuncs(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()

	fn1 := h.AllocComplex(&lambda{name: "f"})
	fn2 := h.AllocComplex(&lambda{name: "g"})
	lv := h.AllocList([]types.Value{fn1, fn2, fn1})

	f := NewFreezer(h)
	_, err := f.Freeze(lv)
	requireT.NoError(err)

	// Each function definition is collected once, in freeze order.
	funcs := f.FrozenFuncs()
	requireT.Len(funcs, 2)
	f.Seal()

	l1, ok := Unbox[*frozenLambda](h, funcs[0].Value())
	requireT.True(ok)
	requireT.Equal("f", l1.name)
	l2, ok := Unbox[*frozenLambda](h, funcs[1].Value())
	requireT.True(ok)
	requireT.Equal("g", l2.name)
}

func TestFreezingArrayDirectlyPanics(t *testing.T) {
	requireT := require.New(t)
	h := newTestHeap()
	f := NewFreezer(h)
	defer f.Discard()

	requireT.Panics(func() {
		_, _ = f.Freeze(h.AllocArray(2))
	})
}

func TestFingerprint(t *testing.T) {
	requireT := require.New(t)

	buildFrozen := func(s string) *FrozenHeap {
		h := newTestHeap()
		f := NewFreezer(h)
		_, err := f.Freeze(h.AllocList([]types.Value{h.AllocStr(s), types.NewInt(7)}))
		requireT.NoError(err)
		return f.Seal()
	}

	fa := buildFrozen("payload")
	fb := buildFrozen("payload")
	fc := buildFrozen("different")

	// The same content fingerprints identically regardless of which region
	// the frozen heap was registered under.
	requireT.NotEqual(fa.Region(), fb.Region())
	requireT.Equal(fa.Fingerprint(), fb.Fingerprint())
	requireT.NotEqual(fa.Fingerprint(), fc.Fingerprint())

	// References into a foreign region are part of the identity and survive
	// normalization unchanged.
	h := newTestHeap()
	f := NewFreezer(h)
	shared, err := f.Freeze(h.AllocStr("shared"))
	requireT.NoError(err)
	f.Seal()

	buildRef := func() *FrozenHeap {
		hh := newTestHeap()
		ff := NewFreezer(hh)
		_, err := ff.Freeze(hh.AllocTuple([]types.Value{shared.Value(), hh.AllocStr("own")}))
		requireT.NoError(err)
		return ff.Seal()
	}

	requireT.Equal(buildRef().Fingerprint(), buildRef().Fingerprint())
}

func TestFingerprintLibrariesAgree(t *testing.T) {
	requireT := require.New(t)

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}

	requireT.Equal(lukechampineblake3.Sum256(data), blake3.Sum256(data))
}
