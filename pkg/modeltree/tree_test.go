package modeltree

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

func TestBlock_InsertionOrderPreserved(t *testing.T) {
	b := NewBlock("fs")
	b.AddVar("z", NewVar("z"))
	b.AddVar("a", NewVar("a"))
	b.AddVar("m", NewVar("m"))

	names := b.ChildNames()
	want := []string{"z", "a", "m"}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Position %d: expected %s, got %s", i, name, names[i])
		}
	}
}

func TestBlock_VariablesExpandIndexed(t *testing.T) {
	b := NewBlock("unit")
	b.AddVar("flow", NewVar("unit.flow"))
	b.AddIndexedVar("conc", NewIndexedVar("unit.conc",
		engine.Index{"Liq", "H2O"},
		engine.Index{"Liq", "NaCl"},
	))

	vars := b.Variables()
	if len(vars) != 3 {
		t.Fatalf("Expected 3 scalar variables, got %d", len(vars))
	}
	if vars[1].Name() != "unit.conc[(Liq,H2O)]" {
		t.Errorf("Unexpected member name %q", vars[1].Name())
	}
}

func TestModel_ResolvableByPathResolver(t *testing.T) {
	m := NewModel()
	fs := m.AddBlock("fs")
	feed := m.AddUnit(fs, "feed", engine.InitStandard)
	feed.AddVar("flow_vol", NewVar("fs.feed.flow_vol").WithValue(1.5))
	feed.AddIndexedVar("conc_mass_comp", NewIndexedVar("fs.feed.conc_mass_comp",
		engine.Index{0, "NaCl"},
		engine.Index{0, "H2O"},
	))

	r := engine.NewPathResolver(zerolog.Nop())

	value, found, err := r.Value(m, "fs.feed.flow_vol")
	if err != nil || !found || value != 1.5 {
		t.Errorf("Expected scalar resolution to 1.5, got found=%v value=%v err=%v", found, value, err)
	}

	n, err := r.Fix(m, "fs.feed.conc_mass_comp[0,*]", 0.035)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 members fixed via wildcard, got %d", n)
	}
}

func TestIndexedVar_DuplicateIndexIgnored(t *testing.T) {
	iv := NewIndexedVar("x", engine.Index{0}, engine.Index{0})
	if len(iv.IndexSet()) != 1 {
		t.Errorf("Expected duplicate index collapsed, got %d entries", len(iv.IndexSet()))
	}
}

func TestVar_FixAndBounds(t *testing.T) {
	v := NewVar("x").WithBounds(0, 10)
	v.Fix(5)
	if !v.Fixed() || v.Value() != 5 {
		t.Errorf("Expected fixed at 5, got fixed=%v value=%v", v.Fixed(), v.Value())
	}
	v.Unfix()
	if v.Fixed() {
		t.Error("Expected variable released")
	}
	lower, upper, hasLower, hasUpper := v.Bounds()
	if lower != 0 || upper != 10 || !hasLower || !hasUpper {
		t.Errorf("Unexpected bounds [%v, %v] (%v, %v)", lower, upper, hasLower, hasUpper)
	}
}

func TestModel_ConnectionsFromArcs(t *testing.T) {
	m := NewModel()
	fs := m.AddBlock("fs")
	m.AddUnit(fs, "feed", engine.InitStandard)
	m.AddUnit(fs, "pump", engine.InitStandard)
	m.AddArc(Arc{Name: "s1", SourceUnit: "feed", SourcePort: "outlet", DestUnit: "pump", DestPort: "inlet"})

	conns := m.Connections()
	if len(conns) != 1 {
		t.Fatalf("Expected 1 connection, got %d", len(conns))
	}
	if conns[0].Source != "feed" || conns[0].Dest != "pump" {
		t.Errorf("Unexpected connection %+v", conns[0])
	}
	if m.Arc("s1") == nil || m.Arc("nope") != nil {
		t.Error("Arc lookup by name misbehaved")
	}
}
