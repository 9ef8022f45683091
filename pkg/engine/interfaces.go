package engine

import (
	"context"
)

// NamedContainer is a node in the model tree that can resolve children
// by name and indexed members by index.
type NamedContainer interface {
	// GetChild returns the named child component, or nil if absent.
	GetChild(name string) interface{}
}

// Indexed is a component addressable by index, such as an indexed
// variable or constraint.
type Indexed interface {
	// GetIndexed returns the member at the given index, or nil if the
	// index is not present.
	GetIndexed(index Index) interface{}

	// IndexSet enumerates the valid indices in deterministic order.
	IndexSet() []Index
}

// Variable is a scalar decision variable handle in the model tree.
type Variable interface {
	// Name returns the fully qualified variable name.
	Name() string

	// Value returns the current variable value.
	Value() float64

	// SetValue assigns the variable value.
	SetValue(v float64)

	// Fixed reports whether the variable is fixed.
	Fixed() bool

	// Fix fixes the variable at the given value, removing a degree of
	// freedom.
	Fix(v float64)

	// Unfix releases a fixed variable.
	Unfix()

	// Bounds returns the lower and upper bounds. A missing bound is
	// reported as hasLower or hasUpper false.
	Bounds() (lower, upper float64, hasLower, hasUpper bool)

	// SetBounds assigns both bounds.
	SetBounds(lower, upper float64)

	// SetScalingHint records a suggested scaling factor for the variable.
	SetScalingHint(factor float64)
}

// Model is the root of a built flowsheet model.
type Model interface {
	NamedContainer

	// Units returns the unit nodes in insertion order.
	Units() []UnitNode

	// Connections returns the directed connections in insertion order.
	Connections() []Connection
}

// Introspector inspects a model's structure and numerical health.
// Implementations wrap the underlying modeling environment.
type Introspector interface {
	// DegreesOfFreedom returns free variables minus active equality
	// constraints.
	DegreesOfFreedom(m Model) (free, constraints int, err error)

	// StructuralIssues reports structural problems found before solving.
	StructuralIssues(m Model) ([]string, error)

	// Residuals returns constraints whose absolute residual exceeds the
	// threshold, sorted descending, at most limit entries.
	Residuals(m Model, threshold float64, limit int) ([]ConstraintResidual, error)

	// BoundViolationsAt returns variables within tolerance of, at, or
	// beyond a bound.
	BoundViolationsAt(m Model, tolerance float64, limit int) ([]BoundViolation, error)

	// ScalingIssues reports unscaled and badly scaled components.
	ScalingIssues(m Model) (ScalingReport, error)

	// ApplyScaling computes and applies scaling factors to the model.
	ApplyScaling(m Model) error

	// Variables iterates all scalar variables in the model in
	// deterministic order.
	Variables(m Model) []Variable
}

// Initializer runs a unit's initialization routine. The pipeline calls
// initializers in topological order, propagating state between calls.
type Initializer interface {
	// Initialize initializes one unit. The method variant is taken from
	// the unit's registry entry.
	Initialize(ctx context.Context, m Model, unit UnitNode) error

	// PropagateState copies stream state across a connection from the
	// source unit's outlet to the destination unit's inlet.
	PropagateState(ctx context.Context, m Model, conn Connection) error
}

// Solver invokes the numerical solver on a model.
type Solver interface {
	// Solve runs the solver with the given options and reports the
	// termination outcome. A non-optimal termination is returned in the
	// report, not as an error; errors are reserved for invocation
	// failures.
	Solve(ctx context.Context, m Model, options map[string]interface{}) (SolveReport, error)
}

// DecomposeOptions controls decomposer-driven ordering.
type DecomposeOptions struct {
	// TearEdges lists connection names to remove before ordering. The
	// decomposer may select additional tears itself.
	TearEdges []string

	// AllowMIP permits the decomposer to formulate tear selection as a
	// mixed-integer program. The engine never sets this; decomposer
	// implementations must work without MIP-class solvers.
	AllowMIP bool
}

// Decomposer computes an initialization sequence for a model, selecting
// tear streams as needed.
type Decomposer interface {
	// Sequence returns unit names in initialization order.
	Sequence(ctx context.Context, m Model, opts DecomposeOptions) ([]string, error)
}

// InitMethodResolver maps a unit to its initialization routine variant.
// The resolution is static; no runtime probing of the unit is performed.
type InitMethodResolver func(unit string) InitMethod
