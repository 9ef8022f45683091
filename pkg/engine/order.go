package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// TopologicalOrderer sequences flowsheet units for initialization.
//
// Planning mode runs Kahn's algorithm over the unit precedence graph
// with the configured tear streams removed. Bound mode hands ordering
// to the model's decomposer, which selects tears itself.
type TopologicalOrderer struct {
	log        zerolog.Logger
	decomposer Decomposer
}

// NewTopologicalOrderer creates an orderer. The decomposer may be nil
// when only planning mode is used.
func NewTopologicalOrderer(log zerolog.Logger, decomposer Decomposer) *TopologicalOrderer {
	return &TopologicalOrderer{
		log:        log.With().Str("component", "orderer").Logger(),
		decomposer: decomposer,
	}
}

// Order sequences the model's units in the given mode. Tear streams
// name connections whose edges are dropped before ordering; unknown
// tear names are ignored with a warning so a stale config does not
// block a solve.
func (o *TopologicalOrderer) Order(ctx context.Context, m Model, mode OrderMode, tearStreams []string) (OrderResult, error) {
	switch mode {
	case OrderModePlanning, "":
		return o.planningOrder(m, tearStreams)
	case OrderModeBound:
		return o.boundOrder(ctx, m, tearStreams)
	default:
		return OrderResult{}, NewFatalError(
			fmt.Sprintf("unknown order mode %q", mode), nil,
		).WithCode(ErrCodeInternal)
	}
}

func (o *TopologicalOrderer) planningOrder(m Model, tearStreams []string) (OrderResult, error) {
	units := m.Units()
	tears := make(map[string]bool, len(tearStreams))
	for _, t := range tearStreams {
		tears[t] = false
	}

	// Adjacency and in-degree over unit names, preserving the order
	// units were added to the flowsheet so ties break deterministically.
	inDegree := make(map[string]int, len(units))
	adjacency := make(map[string][]string, len(units))
	order := make([]string, 0, len(units))
	for _, u := range units {
		inDegree[u.Name] = 0
	}

	var applied []string
	for _, c := range m.Connections() {
		if used, torn := tears[c.Name]; torn {
			if !used {
				tears[c.Name] = true
				applied = append(applied, c.Name)
			}
			continue
		}
		if _, ok := inDegree[c.Source]; !ok {
			continue
		}
		if _, ok := inDegree[c.Dest]; !ok {
			continue
		}
		adjacency[c.Source] = append(adjacency[c.Source], c.Dest)
		inDegree[c.Dest]++
	}
	for name, used := range tears {
		if !used {
			o.log.Warn().Str("tear", name).Msg("tear stream names no connection, ignoring")
		}
	}

	// Kahn's algorithm with a FIFO queue seeded in insertion order.
	queue := make([]string, 0, len(units))
	for _, u := range units {
		if inDegree[u.Name] == 0 {
			queue = append(queue, u.Name)
		}
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dep := range adjacency[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(units) {
		var remaining []string
		ordered := make(map[string]bool, len(order))
		for _, name := range order {
			ordered[name] = true
		}
		for _, u := range units {
			if !ordered[u.Name] {
				remaining = append(remaining, u.Name)
			}
		}
		return OrderResult{}, NewFatalError(
			fmt.Sprintf("cycle detected in flowsheet, remaining units: %s; specify tear streams to break recycle loops",
				strings.Join(remaining, ", ")), nil,
		).WithCode(ErrCodeCycleDetected).WithDetail("remaining", remaining)
	}

	o.log.Debug().Strs("order", order).Strs("tears", applied).Msg("planning order computed")
	return OrderResult{Order: order, Mode: OrderModePlanning, TearsApplied: applied}, nil
}

func (o *TopologicalOrderer) boundOrder(ctx context.Context, m Model, tearStreams []string) (OrderResult, error) {
	if o.decomposer == nil {
		return OrderResult{}, NewFatalError("bound mode ordering requires a decomposer", nil).
			WithCode(ErrCodeInternal)
	}
	// AllowMIP is deliberately left unset so decomposers never reach for
	// a MIP-class solver on the engine's behalf.
	seq, err := o.decomposer.Sequence(ctx, m, DecomposeOptions{TearEdges: tearStreams})
	if err != nil {
		return OrderResult{}, NewFatalError("decomposer failed to sequence units", err).
			WithCode(ErrCodeCycleDetected)
	}
	o.log.Debug().Strs("order", seq).Msg("bound order computed")
	return OrderResult{Order: seq, Mode: OrderModeBound, TearsApplied: tearStreams}, nil
}
