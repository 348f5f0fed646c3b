package slots

import (
	"github.com/outofforest/helium"
	"github.com/outofforest/helium/types"
)

// ID addresses one module-scope binding resolved at compile time.
type ID uint32

// NewMutable creates the slot table used while a module is evaluated.
func NewMutable() *Mutable {
	return &Mutable{}
}

// Mutable is an indexed table of module-scope bindings. A slot may exist and
// still be unassigned, which is different from not existing at all.
type Mutable struct {
	values []types.Value
}

// EnsureSlots grows the table so indices 0..count-1 are valid. It never
// shrinks.
func (s *Mutable) EnsureSlots(count int) {
	for len(s.values) < count {
		s.values = append(s.values, types.Unassigned)
	}
}

// Len returns the current size of the table.
func (s *Mutable) Len() int {
	return len(s.values)
}

// Get returns the value of the slot. ok is false when the slot is unassigned.
// Addressing a slot which does not exist is a contract violation and panics.
func (s *Mutable) Get(id ID) (types.Value, bool) {
	v := s.values[id]
	if v.IsUnassigned() {
		return types.Unassigned, false
	}
	return v, true
}

// Set stores a value in the slot. Storing the unassigned sentinel is a
// contract violation.
func (s *Mutable) Set(id ID, v types.Value) {
	if v.IsUnassigned() {
		panic("unassigned sentinel stored in slot")
	}
	s.values[id] = v
}

// Trace relocates every assigned slot during heap compaction.
func (s *Mutable) Trace(t *helium.Tracer) {
	for i := range s.values {
		t.Trace(&s.values[i])
	}
}

// Freeze produces the frozen table, preserving indices exactly.
func (s *Mutable) Freeze(f *helium.Freezer) (*Frozen, error) {
	values := make([]types.FrozenValue, 0, len(s.values))
	for _, v := range s.values {
		fv, err := f.Freeze(v)
		if err != nil {
			return nil, err
		}
		values = append(values, fv)
	}
	return &Frozen{values: values}, nil
}

// Frozen is the immutable slot table of a frozen module.
type Frozen struct {
	values []types.FrozenValue
}

// Len returns the size of the table.
func (s *Frozen) Len() int {
	return len(s.values)
}

// Get returns the value of the slot. ok is false when the slot was frozen
// unassigned.
func (s *Frozen) Get(id ID) (types.FrozenValue, bool) {
	v := s.values[id]
	if v.IsUnassigned() {
		return types.FrozenUnassigned, false
	}
	return v, true
}
