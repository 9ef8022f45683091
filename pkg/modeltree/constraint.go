package modeltree

// ResidualFunc evaluates a constraint's residual at the current
// variable values.
type ResidualFunc func() float64

// Constraint is an algebraic constraint over the model's variables.
// Only the residual is represented; the engine never needs the
// symbolic form.
type Constraint struct {
	name     string
	residual ResidualFunc
	equality bool
	active   bool
	scaling  float64
}

// NewConstraint creates an active equality constraint.
func NewConstraint(name string, residual ResidualFunc) *Constraint {
	return &Constraint{name: name, residual: residual, equality: true, active: true}
}

// AsInequality marks the constraint as an inequality and returns it.
func (c *Constraint) AsInequality() *Constraint {
	c.equality = false
	return c
}

// Name returns the constraint name.
func (c *Constraint) Name() string { return c.name }

// Residual evaluates the residual. Constraints without a residual
// function report zero.
func (c *Constraint) Residual() float64 {
	if c.residual == nil {
		return 0
	}
	return c.residual()
}

// Equality reports whether this is an equality constraint.
func (c *Constraint) Equality() bool { return c.equality }

// Active reports whether the constraint participates in the model.
func (c *Constraint) Active() bool { return c.active }

// Deactivate removes the constraint from the active set.
func (c *Constraint) Deactivate() { c.active = false }

// Activate restores the constraint to the active set.
func (c *Constraint) Activate() { c.active = true }

// SetScalingHint records a suggested scaling factor.
func (c *Constraint) SetScalingHint(factor float64) { c.scaling = factor }

// ScalingHint returns the recorded scaling factor, zero when unset.
func (c *Constraint) ScalingHint() float64 { return c.scaling }
