package modeltree

import (
	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Block is a named container of child blocks, variables, and
// constraints. Children keep their insertion order so every walk over
// the tree is deterministic.
type Block struct {
	name     string
	order    []string
	children map[string]interface{}
}

// NewBlock creates an empty block.
func NewBlock(name string) *Block {
	return &Block{name: name, children: make(map[string]interface{})}
}

// Name returns the block name.
func (b *Block) Name() string { return b.name }

// GetChild returns the named child, or nil when absent.
func (b *Block) GetChild(name string) interface{} {
	return b.children[name]
}

// add registers a child under the given name. A duplicate name
// replaces the child but keeps its original position.
func (b *Block) add(name string, child interface{}) {
	if _, exists := b.children[name]; !exists {
		b.order = append(b.order, name)
	}
	b.children[name] = child
}

// AddBlock creates and attaches a child block.
func (b *Block) AddBlock(name string) *Block {
	child := NewBlock(name)
	b.add(name, child)
	return child
}

// AttachBlock attaches an existing block under its own name.
func (b *Block) AttachBlock(child *Block) *Block {
	b.add(child.name, child)
	return child
}

// AddVar creates and attaches a scalar variable. The variable's full
// name is left to the caller; builders qualify it with the tree path.
func (b *Block) AddVar(name string, v *Var) *Var {
	b.add(name, v)
	return v
}

// AddIndexedVar attaches an indexed variable.
func (b *Block) AddIndexedVar(name string, iv *IndexedVar) *IndexedVar {
	b.add(name, iv)
	return iv
}

// AddConstraint attaches a constraint.
func (b *Block) AddConstraint(name string, c *Constraint) *Constraint {
	b.add(name, c)
	return c
}

// ChildNames returns the child names in insertion order.
func (b *Block) ChildNames() []string {
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// Walk visits every descendant of the block in depth-first insertion
// order, calling fn with each child. Blocks recurse after their own
// visit.
func (b *Block) Walk(fn func(child interface{})) {
	for _, name := range b.order {
		child := b.children[name]
		fn(child)
		if nested, ok := child.(*Block); ok {
			nested.Walk(fn)
		}
	}
}

// Variables collects every scalar variable under the block, expanding
// indexed variables into their members, in deterministic order.
func (b *Block) Variables() []*Var {
	var out []*Var
	b.Walk(func(child interface{}) {
		switch v := child.(type) {
		case *Var:
			out = append(out, v)
		case *IndexedVar:
			out = append(out, v.Members()...)
		}
	})
	return out
}

// Constraints collects every constraint under the block in
// deterministic order.
func (b *Block) Constraints() []*Constraint {
	var out []*Constraint
	b.Walk(func(child interface{}) {
		if c, ok := child.(*Constraint); ok {
			out = append(out, c)
		}
	})
	return out
}

// interface guard
var _ engine.NamedContainer = (*Block)(nil)
