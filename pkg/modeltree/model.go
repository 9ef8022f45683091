package modeltree

import (
	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Arc is a directed stream between two unit ports.
type Arc struct {
	// Name is the arc's flowsheet-unique name.
	Name string

	// SourceUnit and SourcePort locate the upstream outlet.
	SourceUnit string
	SourcePort string

	// DestUnit and DestPort locate the downstream inlet.
	DestUnit string
	DestPort string
}

// Model is the root of a built flowsheet: a block tree plus the unit
// and arc lists the engine orders and initializes over.
type Model struct {
	*Block
	units []engine.UnitNode
	arcs  []Arc
}

// NewModel creates an empty model whose root block is named "m".
func NewModel() *Model {
	return &Model{Block: NewBlock("m")}
}

// AddUnit registers a unit node and creates its block under the
// flowsheet scope, returning the block for population.
func (m *Model) AddUnit(scope *Block, name string, method engine.InitMethod) *Block {
	m.units = append(m.units, engine.UnitNode{Name: name, InitMethod: method})
	return scope.AddBlock(name)
}

// AddArc registers a directed arc between two unit ports.
func (m *Model) AddArc(arc Arc) {
	m.arcs = append(m.arcs, arc)
}

// Units returns the unit nodes in insertion order.
func (m *Model) Units() []engine.UnitNode {
	out := make([]engine.UnitNode, len(m.units))
	copy(out, m.units)
	return out
}

// Connections derives the engine's connection view from the arcs.
func (m *Model) Connections() []engine.Connection {
	out := make([]engine.Connection, 0, len(m.arcs))
	for _, a := range m.arcs {
		out = append(out, engine.Connection{Name: a.Name, Source: a.SourceUnit, Dest: a.DestUnit})
	}
	return out
}

// Arc returns the arc with the given name, or nil.
func (m *Model) Arc(name string) *Arc {
	for i := range m.arcs {
		if m.arcs[i].Name == name {
			return &m.arcs[i]
		}
	}
	return nil
}

// Arcs returns the arcs in insertion order.
func (m *Model) Arcs() []Arc {
	out := make([]Arc, len(m.arcs))
	copy(out, m.arcs)
	return out
}

// interface guard
var _ engine.Model = (*Model)(nil)
