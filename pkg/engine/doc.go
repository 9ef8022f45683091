// Package engine implements the solve-orchestration core of AquaSolve.
//
// The engine prepares a flowsheet model for an external nonlinear solver
// and drives it to a solved state through a staged hygiene pipeline:
//
//	Idle -> DOFCheck -> Scaling -> Initialization -> PreSolveDiagnostics -> Solving
//	                                                                           |
//	Completed <- PostSolveDiagnostics <----------------------------------------+
//	     ^              | (on solve failure, recovery enabled)
//	     +------- RelaxedSolve --------------------------------------------------+
//
// The package owns four concerns:
//
//   - PathResolver: a string-addressed variable resolver over an
//     arbitrarily shaped model tree (see path.go). Paths such as
//     "control_volume.properties_out[0].pressure" or
//     "feed_side.cp_modulus[0,*,*]" are resolved against the
//     NamedContainer capability; a missing attribute is a normal
//     "absent" result, never a panic.
//   - TopologicalOrderer: unit evaluation order from the connection
//     graph with tear-edge cycle breaking (order.go).
//   - HygienePipeline: the staged state machine with an append-only
//     result history (pipeline.go).
//   - FailureAnalyzer / RecoveryExecutor: classification of solver
//     failures and bounded, prioritized recovery retries (recovery.go).
//
// Unit physics, the nonlinear solver itself, and the decomposition
// utility are external collaborators consumed through the interfaces in
// interfaces.go.
package engine
