// Package modeltree provides the in-memory flowsheet model consumed by
// the solve engine: blocks, scalar and indexed variables, constraints,
// and arcs, all iterable in insertion order so runs are deterministic.
//
// The package also ships the reference introspector (degree-of-freedom
// counting, residual and bound scans, scaling surveys), a heuristic
// tear-selecting decomposer, and a port-copying initializer. Together
// these let a flowsheet be built, sequenced, and diagnosed without any
// external modeling environment.
package modeltree
