package modeltree

import (
	"context"
	"fmt"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Decomposer sequences units with a greedy tear heuristic: run Kahn's
// algorithm, and whenever it stalls on a cycle, tear the first incoming
// edge of the first-inserted stuck unit and continue. The heuristic
// never formulates a discrete program regardless of AllowMIP.
type Decomposer struct{}

// NewDecomposer creates the heuristic decomposer.
func NewDecomposer() *Decomposer {
	return &Decomposer{}
}

// Sequence orders the model's units, tearing cycles greedily. Explicit
// tear edges from the options are removed first.
func (d *Decomposer) Sequence(ctx context.Context, m engine.Model, opts engine.DecomposeOptions) ([]string, error) {
	units := m.Units()
	if len(units) == 0 {
		return nil, nil
	}

	torn := make(map[string]bool, len(opts.TearEdges))
	for _, name := range opts.TearEdges {
		torn[name] = true
	}

	type edge struct {
		name string
		src  string
		dst  string
	}
	var edges []edge
	inSet := make(map[string]bool, len(units))
	for _, u := range units {
		inSet[u.Name] = true
	}
	for _, c := range m.Connections() {
		if torn[c.Name] || !inSet[c.Source] || !inSet[c.Dest] {
			continue
		}
		edges = append(edges, edge{name: c.Name, src: c.Source, dst: c.Dest})
	}

	order := make([]string, 0, len(units))
	placed := make(map[string]bool, len(units))
	for len(order) < len(units) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inDegree := make(map[string]int, len(units))
		for _, e := range edges {
			if !placed[e.src] && !placed[e.dst] {
				inDegree[e.dst]++
			}
		}

		progressed := false
		for _, u := range units {
			if placed[u.Name] || inDegree[u.Name] > 0 {
				continue
			}
			order = append(order, u.Name)
			placed[u.Name] = true
			progressed = true
		}
		if progressed {
			continue
		}

		// Every remaining unit sits on a cycle. Tear the first incoming
		// edge of the first-inserted remaining unit and retry.
		tearApplied := false
		for _, u := range units {
			if placed[u.Name] {
				continue
			}
			for i, e := range edges {
				if e.dst == u.Name && !placed[e.src] {
					edges = append(edges[:i], edges[i+1:]...)
					tearApplied = true
					break
				}
			}
			if tearApplied {
				break
			}
		}
		if !tearApplied {
			return nil, fmt.Errorf("no tearable edge found with %d unit(s) unplaced", len(units)-len(order))
		}
	}
	return order, nil
}

// interface guard
var _ engine.Decomposer = (*Decomposer)(nil)
