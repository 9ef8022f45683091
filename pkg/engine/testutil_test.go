package engine

import (
	"context"
	"fmt"
)

// fakeVar is a scalar variable backed by plain fields.
type fakeVar struct {
	name     string
	value    float64
	fixed    bool
	lower    float64
	upper    float64
	hasLower bool
	hasUpper bool
	scaling  float64
}

func newFakeVar(name string) *fakeVar { return &fakeVar{name: name} }

func (v *fakeVar) withBounds(lower, upper float64) *fakeVar {
	v.lower, v.upper = lower, upper
	v.hasLower, v.hasUpper = true, true
	return v
}

func (v *fakeVar) Name() string       { return v.name }
func (v *fakeVar) Value() float64     { return v.value }
func (v *fakeVar) SetValue(x float64) { v.value = x }
func (v *fakeVar) Fixed() bool        { return v.fixed }
func (v *fakeVar) Fix(x float64)      { v.value = x; v.fixed = true }
func (v *fakeVar) Unfix()             { v.fixed = false }

func (v *fakeVar) Bounds() (float64, float64, bool, bool) {
	return v.lower, v.upper, v.hasLower, v.hasUpper
}

func (v *fakeVar) SetBounds(lower, upper float64) {
	v.lower, v.upper = lower, upper
	v.hasLower, v.hasUpper = true, true
}

func (v *fakeVar) SetScalingHint(f float64) { v.scaling = f }

// fakeIndexedVar holds members keyed by canonical index key, preserving
// insertion order for IndexSet.
type fakeIndexedVar struct {
	name    string
	order   []Index
	members map[string]*fakeVar
}

func newFakeIndexedVar(name string, indices ...Index) *fakeIndexedVar {
	iv := &fakeIndexedVar{name: name, members: make(map[string]*fakeVar)}
	for _, ix := range indices {
		iv.order = append(iv.order, ix)
		iv.members[ix.String()] = newFakeVar(fmt.Sprintf("%s[%s]", name, indexComponents(ix)))
	}
	return iv
}

func (iv *fakeIndexedVar) GetIndexed(ix Index) interface{} {
	v, ok := iv.members[ix.String()]
	if !ok {
		return nil
	}
	return v
}

func (iv *fakeIndexedVar) IndexSet() []Index {
	out := make([]Index, len(iv.order))
	copy(out, iv.order)
	return out
}

func (iv *fakeIndexedVar) at(ix Index) *fakeVar { return iv.members[ix.String()] }

// fakeBlock is a named container over a child map.
type fakeBlock struct {
	children map[string]interface{}
}

func newFakeBlock() *fakeBlock {
	return &fakeBlock{children: make(map[string]interface{})}
}

func (b *fakeBlock) add(name string, child interface{}) *fakeBlock {
	b.children[name] = child
	return b
}

func (b *fakeBlock) GetChild(name string) interface{} {
	return b.children[name]
}

// fakeModel is a model with explicit unit and connection lists.
type fakeModel struct {
	*fakeBlock
	units []UnitNode
	conns []Connection
}

func newFakeModel() *fakeModel {
	return &fakeModel{fakeBlock: newFakeBlock()}
}

func (m *fakeModel) addUnit(name string) *fakeModel {
	m.units = append(m.units, UnitNode{Name: name, InitMethod: InitStandard})
	return m
}

func (m *fakeModel) connect(name, source, dest string) *fakeModel {
	m.conns = append(m.conns, Connection{Name: name, Source: source, Dest: dest})
	return m
}

func (m *fakeModel) Units() []UnitNode          { return m.units }
func (m *fakeModel) Connections() []Connection  { return m.conns }

// fakeIntrospector returns canned results.
type fakeIntrospector struct {
	free        int
	constraints int
	dofErr      error

	structural []string
	residuals  []ConstraintResidual
	violations []BoundViolation

	scaling    ScalingReport
	scalingErr error
	applyCalls int

	vars []Variable
}

func (f *fakeIntrospector) DegreesOfFreedom(Model) (int, int, error) {
	return f.free, f.constraints, f.dofErr
}

func (f *fakeIntrospector) StructuralIssues(Model) ([]string, error) {
	return f.structural, nil
}

func (f *fakeIntrospector) Residuals(Model, float64, int) ([]ConstraintResidual, error) {
	return f.residuals, nil
}

func (f *fakeIntrospector) BoundViolationsAt(Model, float64, int) ([]BoundViolation, error) {
	return f.violations, nil
}

func (f *fakeIntrospector) ScalingIssues(Model) (ScalingReport, error) {
	return f.scaling, f.scalingErr
}

func (f *fakeIntrospector) ApplyScaling(Model) error {
	f.applyCalls++
	return nil
}

func (f *fakeIntrospector) Variables(Model) []Variable { return f.vars }

// fakeInitializer records call order and can fail on a named unit or
// connection.
type fakeInitializer struct {
	initialized []string
	propagated  []string
	failUnit    string
	failConn    string
}

func (f *fakeInitializer) Initialize(_ context.Context, _ Model, unit UnitNode) error {
	if unit.Name == f.failUnit {
		return fmt.Errorf("initialization blew up for %s", unit.Name)
	}
	f.initialized = append(f.initialized, unit.Name)
	return nil
}

func (f *fakeInitializer) PropagateState(_ context.Context, _ Model, conn Connection) error {
	if conn.Name == f.failConn {
		return fmt.Errorf("no state available on %s", conn.Name)
	}
	f.propagated = append(f.propagated, conn.Name)
	return nil
}

// fakeSolver replays a scripted sequence of reports.
type fakeSolver struct {
	reports []SolveReport
	errs    []error
	calls   int
	seen    []map[string]interface{}
}

func (f *fakeSolver) Solve(_ context.Context, _ Model, options map[string]interface{}) (SolveReport, error) {
	i := f.calls
	f.calls++
	f.seen = append(f.seen, options)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var report SolveReport
	if i < len(f.reports) {
		report = f.reports[i]
	} else if len(f.reports) > 0 {
		report = f.reports[len(f.reports)-1]
	}
	return report, err
}

func optimalReport() SolveReport {
	return SolveReport{Optimal: true, TerminationCondition: "optimal"}
}

func failedReport(condition, message string) SolveReport {
	return SolveReport{Optimal: false, TerminationCondition: condition, SolverMessage: message}
}

// fakeDecomposer records the options it was called with.
type fakeDecomposer struct {
	seq  []string
	opts []DecomposeOptions
}

func (f *fakeDecomposer) Sequence(_ context.Context, _ Model, opts DecomposeOptions) ([]string, error) {
	f.opts = append(f.opts, opts)
	return f.seq, nil
}
