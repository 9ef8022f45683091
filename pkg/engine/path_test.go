package engine

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func testResolver() *PathResolver {
	return NewPathResolver(zerolog.Nop())
}

// feedModel builds a small tree:
//
//	fs.feed.flow_vol                          scalar variable
//	fs.feed.flow_mol_phase_comp[0,Liq,H2O]    indexed, four members
//	fs.feed.flow_mol_phase_comp[0,Liq,NaCl]
//	fs.feed.flow_mol_phase_comp[1,Liq,H2O]
//	fs.feed.flow_mol_phase_comp[1,Liq,NaCl]
func feedModel() (*fakeModel, *fakeVar, *fakeIndexedVar) {
	flowVol := newFakeVar("fs.feed.flow_vol")
	indexed := newFakeIndexedVar("fs.feed.flow_mol_phase_comp",
		Index{0, "Liq", "H2O"},
		Index{0, "Liq", "NaCl"},
		Index{1, "Liq", "H2O"},
		Index{1, "Liq", "NaCl"},
	)
	feed := newFakeBlock().
		add("flow_vol", flowVol).
		add("flow_mol_phase_comp", indexed)
	fs := newFakeBlock().add("feed", feed)
	m := newFakeModel()
	m.add("fs", fs)
	return m, flowVol, indexed
}

func TestParsePath_Simple(t *testing.T) {
	segments, err := ParsePath("fs.feed.flow_vol")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if segments[2].Name != "flow_vol" || segments[2].Index != nil {
		t.Errorf("Expected bare flow_vol segment, got %+v", segments[2])
	}
}

func TestParsePath_IndexCoercion(t *testing.T) {
	segments, err := ParsePath("fs.feed.flow_mol_phase_comp[0, H2O]")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	ix := segments[2].Index
	if len(ix) != 2 {
		t.Fatalf("Expected 2 index components, got %d", len(ix))
	}
	if n, ok := ix[0].(int); !ok || n != 0 {
		t.Errorf("Expected integer 0, got %T %v", ix[0], ix[0])
	}
	if s, ok := ix[1].(string); !ok || s != "H2O" {
		t.Errorf("Expected string H2O, got %T %v", ix[1], ix[1])
	}
}

func TestParsePath_DotsInsideBrackets(t *testing.T) {
	segments, err := ParsePath("fs.props[1.5].temperature")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("Expected 3 segments, got %d", len(segments))
	}
	if segments[1].Name != "props" {
		t.Errorf("Expected props segment, got %q", segments[1].Name)
	}
	if f, ok := segments[1].Index[0].(float64); !ok || f != 1.5 {
		t.Errorf("Expected float index 1.5, got %T %v", segments[1].Index[0], segments[1].Index[0])
	}
}

func TestParsePath_Malformed(t *testing.T) {
	cases := []string{
		"",
		"fs..feed",
		"fs.feed[0",
		"fs.feed]0[",
		"fs.[0]",
		"fs.feed[]",
	}
	for _, path := range cases {
		if _, err := ParsePath(path); err == nil {
			t.Errorf("Expected syntax error for %q", path)
		}
	}
}

func TestPathResolver_Resolve_Scalar(t *testing.T) {
	m, flowVol, _ := feedModel()
	flowVol.SetValue(2.5)

	res, err := testResolver().Resolve(m, "fs.feed.flow_vol")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !res.Found {
		t.Fatal("Expected path to be found")
	}
	if len(res.Targets) != 1 {
		t.Fatalf("Expected 1 target, got %d", len(res.Targets))
	}
	if res.Targets[0].Variable.Value() != 2.5 {
		t.Errorf("Expected value 2.5, got %v", res.Targets[0].Variable.Value())
	}
	if res.Targets[0].Path != "fs.feed.flow_vol" {
		t.Errorf("Expected canonical path fs.feed.flow_vol, got %q", res.Targets[0].Path)
	}
}

func TestPathResolver_Resolve_Indexed(t *testing.T) {
	m, _, indexed := feedModel()
	indexed.at(Index{0, "Liq", "NaCl"}).SetValue(0.035)

	res, err := testResolver().Resolve(m, "fs.feed.flow_mol_phase_comp[0,Liq,NaCl]")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !res.Found || len(res.Targets) != 1 {
		t.Fatalf("Expected exactly 1 target, got found=%v targets=%d", res.Found, len(res.Targets))
	}
	if res.Targets[0].Variable.Value() != 0.035 {
		t.Errorf("Expected value 0.035, got %v", res.Targets[0].Variable.Value())
	}
}

func TestPathResolver_Resolve_MissingIsNotAnError(t *testing.T) {
	m, _, _ := feedModel()
	r := testResolver()

	for _, path := range []string{
		"fs.feed.no_such_var",
		"fs.nope.flow_vol",
		"fs.feed.flow_mol_phase_comp[9,Liq,H2O]",
		"fs.feed.flow_vol.deeper",
	} {
		res, err := r.Resolve(m, path)
		if err != nil {
			t.Errorf("Expected nil error for absent path %q, got: %v", path, err)
		}
		if res.Found {
			t.Errorf("Expected Found=false for %q", path)
		}
	}
}

func TestPathResolver_Resolve_WildcardSubset(t *testing.T) {
	m, _, _ := feedModel()

	res, err := testResolver().Resolve(m, "fs.feed.flow_mol_phase_comp[0,*,*]")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !res.Wildcard {
		t.Error("Expected Wildcard flag on resolution")
	}
	if len(res.Targets) != 2 {
		t.Fatalf("Expected 2 targets for time index 0, got %d", len(res.Targets))
	}
	for _, tgt := range res.Targets {
		if n, ok := tgt.Index[0].(int); !ok || n != 0 {
			t.Errorf("Wildcard match leaked index %v outside the constrained set", tgt.Index)
		}
	}
}

func TestPathResolver_Resolve_WildcardAll(t *testing.T) {
	m, _, _ := feedModel()

	res, err := testResolver().Resolve(m, "fs.feed.flow_mol_phase_comp[*,*,*]")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(res.Targets) != 4 {
		t.Errorf("Expected all 4 members, got %d", len(res.Targets))
	}
}

func TestPathResolver_Resolve_IndexlessIndexedExpandsAll(t *testing.T) {
	m, _, _ := feedModel()

	res, err := testResolver().Resolve(m, "fs.feed.flow_mol_phase_comp")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(res.Targets) != 4 {
		t.Errorf("Expected all 4 members for index-less path, got %d", len(res.Targets))
	}
}

func TestPathResolver_Fix_RoundTrip(t *testing.T) {
	m, flowVol, _ := feedModel()
	r := testResolver()

	n, err := r.Fix(m, "fs.feed.flow_vol", 1.2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 variable fixed, got %d", n)
	}
	if !flowVol.Fixed() {
		t.Error("Expected variable to be fixed")
	}

	value, found, err := r.Value(m, "fs.feed.flow_vol")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !found || value != 1.2 {
		t.Errorf("Expected to read back 1.2, got found=%v value=%v", found, value)
	}
}

func TestPathResolver_Fix_WildcardFixesMatches(t *testing.T) {
	m, _, indexed := feedModel()
	r := testResolver()

	n, err := r.Fix(m, "fs.feed.flow_mol_phase_comp[0,*,*]", 0.5)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 2 {
		t.Fatalf("Expected 2 variables fixed, got %d", n)
	}
	if !indexed.at(Index{0, "Liq", "H2O"}).Fixed() {
		t.Error("Expected [0,Liq,H2O] to be fixed")
	}
	if indexed.at(Index{1, "Liq", "H2O"}).Fixed() {
		t.Error("Expected [1,Liq,H2O] to remain free")
	}
}

func TestPathResolver_Fix_AbsentPathFixesNothing(t *testing.T) {
	m, _, _ := feedModel()

	n, err := testResolver().Fix(m, "fs.feed.missing", 1.0)
	if err != nil {
		t.Fatalf("Expected nil error for absent path, got: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 variables fixed, got %d", n)
	}
}

func TestPathResolver_Unfix(t *testing.T) {
	m, flowVol, _ := feedModel()
	r := testResolver()
	flowVol.Fix(3.0)

	n, err := r.Unfix(m, "fs.feed.flow_vol")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if n != 1 || flowVol.Fixed() {
		t.Errorf("Expected variable released, got n=%d fixed=%v", n, flowVol.Fixed())
	}
}

func TestPathResolver_Value_AmbiguousPath(t *testing.T) {
	m, _, _ := feedModel()

	_, _, err := testResolver().Value(m, "fs.feed.flow_mol_phase_comp[*,*,*]")
	if err == nil {
		t.Fatal("Expected error for multi-target value read")
	}
	var engErr *EngineError
	if !errors.As(err, &engErr) {
		t.Fatalf("Expected EngineError, got %T", err)
	}
	if engErr.Code != ErrCodePathAmbiguous {
		t.Errorf("Expected code %s, got %s", ErrCodePathAmbiguous, engErr.Code)
	}
}
