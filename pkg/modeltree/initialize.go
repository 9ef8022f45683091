package modeltree

import (
	"context"
	"fmt"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Initializer is the reference engine.Initializer: it seeds each unit's
// free variables with in-bounds starting values and propagates stream
// state across arcs by copying matching port variables.
type Initializer struct{}

// NewInitializer creates the reference initializer.
func NewInitializer() *Initializer {
	return &Initializer{}
}

// Initialize seeds every free, zero-valued variable in the unit's block
// with a point inside its bounds.
func (in *Initializer) Initialize(ctx context.Context, m engine.Model, unit engine.UnitNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree, err := asModel(m)
	if err != nil {
		return err
	}
	block := findBlock(tree.Block, unit.Name)
	if block == nil {
		return fmt.Errorf("unit %s has no block in the model", unit.Name)
	}
	for _, v := range block.Variables() {
		if v.Fixed() || v.Value() != 0 {
			continue
		}
		v.SetValue(startingPoint(v))
	}
	return nil
}

// PropagateState copies the source port's variable values onto the
// destination port, matching children by name. Missing counterpart
// variables are skipped; a missing port is an error since the arc
// references it.
func (in *Initializer) PropagateState(ctx context.Context, m engine.Model, conn engine.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tree, err := asModel(m)
	if err != nil {
		return err
	}
	arc := tree.Arc(conn.Name)
	if arc == nil {
		return fmt.Errorf("connection %s has no arc in the model", conn.Name)
	}
	srcPort, err := portBlock(tree, arc.SourceUnit, arc.SourcePort)
	if err != nil {
		return err
	}
	dstPort, err := portBlock(tree, arc.DestUnit, arc.DestPort)
	if err != nil {
		return err
	}

	for _, name := range srcPort.ChildNames() {
		switch src := srcPort.GetChild(name).(type) {
		case *Var:
			if dst, ok := dstPort.GetChild(name).(*Var); ok && !dst.Fixed() {
				dst.SetValue(src.Value())
			}
		case *IndexedVar:
			dst, ok := dstPort.GetChild(name).(*IndexedVar)
			if !ok {
				continue
			}
			for _, ix := range src.IndexSet() {
				sv := src.At(ix)
				dv := dst.At(ix)
				if sv != nil && dv != nil && !dv.Fixed() {
					dv.SetValue(sv.Value())
				}
			}
		}
	}
	return nil
}

func portBlock(tree *Model, unit, port string) (*Block, error) {
	unitBlock := findBlock(tree.Block, unit)
	if unitBlock == nil {
		return nil, fmt.Errorf("unit %s has no block in the model", unit)
	}
	pb, ok := unitBlock.GetChild(port).(*Block)
	if !ok {
		return nil, fmt.Errorf("unit %s has no port %s", unit, port)
	}
	return pb, nil
}

// findBlock locates the first block with the given name in depth-first
// insertion order.
func findBlock(root *Block, name string) *Block {
	if root.Name() == name {
		return root
	}
	var found *Block
	root.Walk(func(child interface{}) {
		if found != nil {
			return
		}
		if b, ok := child.(*Block); ok && b.Name() == name {
			found = b
		}
	})
	return found
}

// startingPoint picks an initial value inside the variable's bounds:
// the midpoint when both bounds exist, just inside a single bound
// otherwise, and one for unbounded variables.
func startingPoint(v *Var) float64 {
	lower, upper, hasLower, hasUpper := v.Bounds()
	switch {
	case hasLower && hasUpper:
		return lower + (upper-lower)/2
	case hasLower:
		if lower >= 1 {
			return lower + 1
		}
		return 1
	case hasUpper:
		if upper <= 1 {
			return upper - 1
		}
		return 1
	default:
		return 1
	}
}

// interface guard
var _ engine.Initializer = (*Initializer)(nil)
