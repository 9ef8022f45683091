package modeltree

import (
	"fmt"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Var is a scalar decision variable.
type Var struct {
	name     string
	value    float64
	fixed    bool
	lower    float64
	upper    float64
	hasLower bool
	hasUpper bool
	scaling  float64
	units    string
}

// NewVar creates an unbounded free variable.
func NewVar(name string) *Var {
	return &Var{name: name}
}

// WithUnits records the variable's unit-of-measure string.
func (v *Var) WithUnits(units string) *Var {
	v.units = units
	return v
}

// WithBounds sets both bounds and returns the variable for chaining.
func (v *Var) WithBounds(lower, upper float64) *Var {
	v.SetBounds(lower, upper)
	return v
}

// WithValue sets the current value and returns the variable.
func (v *Var) WithValue(value float64) *Var {
	v.value = value
	return v
}

// Name returns the fully qualified variable name.
func (v *Var) Name() string { return v.name }

// Value returns the current value.
func (v *Var) Value() float64 { return v.value }

// SetValue assigns the current value.
func (v *Var) SetValue(x float64) { v.value = x }

// Fixed reports whether the variable is fixed.
func (v *Var) Fixed() bool { return v.fixed }

// Fix fixes the variable at the given value.
func (v *Var) Fix(x float64) {
	v.value = x
	v.fixed = true
}

// Unfix releases the variable.
func (v *Var) Unfix() { v.fixed = false }

// Bounds returns the bounds and their presence flags.
func (v *Var) Bounds() (float64, float64, bool, bool) {
	return v.lower, v.upper, v.hasLower, v.hasUpper
}

// SetBounds assigns both bounds.
func (v *Var) SetBounds(lower, upper float64) {
	v.lower, v.upper = lower, upper
	v.hasLower, v.hasUpper = true, true
}

// SetLower assigns only the lower bound.
func (v *Var) SetLower(lower float64) {
	v.lower, v.hasLower = lower, true
}

// SetUpper assigns only the upper bound.
func (v *Var) SetUpper(upper float64) {
	v.upper, v.hasUpper = upper, true
}

// SetScalingHint records a suggested scaling factor.
func (v *Var) SetScalingHint(factor float64) { v.scaling = factor }

// ScalingHint returns the recorded scaling factor, zero when unset.
func (v *Var) ScalingHint() float64 { return v.scaling }

// Units returns the unit-of-measure string.
func (v *Var) Units() string { return v.units }

// IndexedVar is a variable indexed over an ordered set of composite
// keys. Members are created up front from the index set.
type IndexedVar struct {
	name    string
	order   []engine.Index
	members map[string]*Var
}

// NewIndexedVar creates an indexed variable with one member per index,
// preserving the given order.
func NewIndexedVar(name string, indices ...engine.Index) *IndexedVar {
	iv := &IndexedVar{name: name, members: make(map[string]*Var, len(indices))}
	for _, ix := range indices {
		key := ix.String()
		if _, dup := iv.members[key]; dup {
			continue
		}
		iv.order = append(iv.order, ix)
		iv.members[key] = NewVar(fmt.Sprintf("%s[%s]", name, key))
	}
	return iv
}

// Name returns the indexed variable's name.
func (iv *IndexedVar) Name() string { return iv.name }

// GetIndexed returns the member at the index, or nil when absent.
func (iv *IndexedVar) GetIndexed(ix engine.Index) interface{} {
	v, ok := iv.members[ix.String()]
	if !ok {
		return nil
	}
	return v
}

// At returns the member as a *Var, or nil when absent.
func (iv *IndexedVar) At(ix engine.Index) *Var {
	return iv.members[ix.String()]
}

// IndexSet returns the indices in insertion order.
func (iv *IndexedVar) IndexSet() []engine.Index {
	out := make([]engine.Index, len(iv.order))
	copy(out, iv.order)
	return out
}

// Members iterates the member variables in index order.
func (iv *IndexedVar) Members() []*Var {
	out := make([]*Var, 0, len(iv.order))
	for _, ix := range iv.order {
		out = append(out, iv.members[ix.String()])
	}
	return out
}
