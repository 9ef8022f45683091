package session

import (
	"errors"
	"strings"
	"testing"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

func TestAddTranslator(t *testing.T) {
	s := roSession(t)
	if err := s.AddTranslator("t1", "TranslatorSeawaterNaCl", "s1"); err != nil {
		t.Fatalf("AddTranslator: %v", err)
	}
	if len(s.Translators) != 1 || s.Translators[0].Connection != "s1" {
		t.Fatalf("Expected translator on s1, got %+v", s.Translators)
	}

	if err := s.AddTranslator("t1", "TranslatorNaClBrine", "s2"); err == nil {
		t.Error("Expected duplicate name rejected")
	}
	if err := s.AddTranslator("t2", "TranslatorNaClBrine", "s1"); err == nil {
		t.Error("Expected second translator on s1 rejected")
	}
	if err := s.AddTranslator("t3", "TranslatorUnobtainium", "s2"); err == nil {
		t.Error("Expected unknown translator type rejected")
	}
	if err := s.AddTranslator("t4", "TranslatorNaClBrine", "s99"); err == nil {
		t.Error("Expected missing connection rejected")
	}
}

const roDocument = `
name: ro-train
units:
  - name: feed
    type: Feed
  - name: pump
    type: Pump
  - name: ro
    type: ReverseOsmosis0D
  - name: product
    type: Product
connections:
  - name: s1
    source: feed
    source_port: outlet
    dest: pump
    dest_port: inlet
  - name: s2
    source: pump
    source_port: outlet
    dest: ro
    dest_port: inlet
  - name: s3
    source: ro
    source_port: permeate
    dest: product
    dest_port: inlet
translators:
  - name: t1
    type: TranslatorSeawaterNaCl
    connection: s2
feed_state:
  flow_mass_phase_comp:
    "(Liq,H2O)": 0.965
    "(Liq,TDS)": 0.035
  temperature:
    "()": 293.15
fixed_vars:
  - path: pump.efficiency
    value: 0.8
scaling_hints:
  - path: pump.outlet.pressure
    factor: 1.0e-5
pipeline:
  enable_relaxed_solve: true
  tear_streams: [s2]
`

func TestParseDocument(t *testing.T) {
	s, err := ParseDocument([]byte(roDocument))
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if s.Name != "ro-train" {
		t.Errorf("Expected name ro-train, got %s", s.Name)
	}
	if len(s.Units) != 4 || len(s.Connections) != 3 || len(s.Translators) != 1 {
		t.Fatalf("Expected 4 units, 3 connections, 1 translator, got %d/%d/%d",
			len(s.Units), len(s.Connections), len(s.Translators))
	}
	if v, ok := s.FeedValue("flow_mass_phase_comp", engine.Index{"Liq", "TDS"}); !ok || v != 0.035 {
		t.Errorf("Expected TDS feed value 0.035, got %v (ok=%v)", v, ok)
	}
	if v, ok := s.FeedValue("temperature", nil); !ok || v != 293.15 {
		t.Errorf("Expected scalar temperature 293.15, got %v (ok=%v)", v, ok)
	}
	if len(s.FixedVars) != 1 || s.FixedVars[0].Path != "pump.efficiency" {
		t.Errorf("Expected pump.efficiency fix, got %+v", s.FixedVars)
	}
	if len(s.ScalingHints) != 1 || s.ScalingHints[0].Factor != 1e-5 {
		t.Errorf("Expected scaling factor 1e-5, got %+v", s.ScalingHints)
	}
	if !s.Pipeline.EnableRelaxedSolve {
		t.Error("Expected relaxed solve enabled from document")
	}
	if len(s.Pipeline.TearStreams) != 1 || s.Pipeline.TearStreams[0] != "s2" {
		t.Errorf("Expected tear stream s2, got %v", s.Pipeline.TearStreams)
	}
	// Absent pipeline fields keep their defaults.
	if !s.Pipeline.AutoScale || s.Pipeline.RelaxationFactor != 0.1 {
		t.Errorf("Expected default auto-scale and relaxation, got %+v", s.Pipeline)
	}
}

func TestParseDocument_Rejections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "malformed yaml",
			doc:  "name: [unclosed",
			want: "invalid flowsheet document",
		},
		{
			name: "missing name",
			doc:  "units:\n  - name: feed\n    type: Feed\n",
			want: "no name",
		},
		{
			name: "unknown unit type",
			doc:  "name: x\nunits:\n  - name: feed\n    type: FluxCapacitor\n",
			want: "unit feed rejected",
		},
		{
			name: "bad connection port",
			doc: "name: x\nunits:\n  - name: feed\n    type: Feed\n  - name: pump\n    type: Pump\n" +
				"connections:\n  - name: s1\n    source: feed\n    source_port: drain\n    dest: pump\n    dest_port: inlet\n",
			want: "connection s1 rejected",
		},
		{
			name: "translator on missing connection",
			doc: "name: x\nunits:\n  - name: feed\n    type: Feed\n" +
				"translators:\n  - name: t1\n    type: TranslatorSeawaterNaCl\n    connection: s9\n",
			want: "translator t1 rejected",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.doc))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, err.Error())
			}
			var ee *engine.EngineError
			if !errors.As(err, &ee) {
				t.Fatalf("Expected EngineError, got %T", err)
			}
		})
	}
}
