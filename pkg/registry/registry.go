// Package registry holds the immutable metadata tables describing the
// unit operations, property packs, and translators a flowsheet may use.
// Tables are defined at init and never mutated, so lookups are safe
// from any goroutine.
package registry

import (
	"sort"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// PortSpec describes one port of a unit type.
type PortSpec struct {
	// Name is the port name, e.g. "inlet" or "outlet".
	Name string `json:"name"`

	// Direction is "in" or "out".
	Direction string `json:"direction"`
}

// RequiredFix is a variable a unit type needs fixed before solving.
type RequiredFix struct {
	// Path is the variable path relative to the unit block.
	Path string `json:"path"`

	// TypicalValue is a reasonable default for the fix.
	TypicalValue float64 `json:"typical_value"`

	// Min and Max bound the sensible range for the fix.
	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// Description explains what the variable controls.
	Description string `json:"description,omitempty"`
}

// UnitSpec describes a unit operation type.
type UnitSpec struct {
	// Type is the registry key, e.g. "ReverseOsmosis0D".
	Type string `json:"type"`

	// Category groups related unit types.
	Category string `json:"category"`

	// Ports lists the unit's ports.
	Ports []PortSpec `json:"ports"`

	// RequiredFixes lists variables that must be fixed for zero DOF.
	RequiredFixes []RequiredFix `json:"required_fixes,omitempty"`

	// DefaultScaling maps relative variable paths to scaling factors.
	DefaultScaling map[string]float64 `json:"default_scaling,omitempty"`

	// InitMethod is the initialization routine variant for this type.
	InitMethod engine.InitMethod `json:"init_method"`

	// PropertyPack names the property pack the unit's streams use.
	PropertyPack string `json:"property_pack,omitempty"`
}

// PropertyPackSpec describes a property pack.
type PropertyPackSpec struct {
	// Name is the registry key, e.g. "seawater".
	Name string `json:"name"`

	// Phases lists the phases the pack models.
	Phases []string `json:"phases"`

	// Components lists the chemical components.
	Components []string `json:"components"`

	// StateVars lists the state variable names per stream.
	StateVars []string `json:"state_vars"`
}

// TranslatorSpec describes a state translator between two property
// packs.
type TranslatorSpec struct {
	// Type is the registry key.
	Type string `json:"type"`

	// Source and Dest are the property pack names translated between.
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

var unitSpecs = map[string]UnitSpec{
	"Feed": {
		Type:     "Feed",
		Category: "source_sink",
		Ports:    []PortSpec{{Name: "outlet", Direction: "out"}},
		RequiredFixes: []RequiredFix{
			{Path: "outlet.flow_vol", TypicalValue: 1e-3, Min: 0, Max: 10, Description: "volumetric feed flow"},
		},
		DefaultScaling: map[string]float64{"outlet.flow_vol": 1e3},
		InitMethod:     engine.InitNone,
		PropertyPack:   "seawater",
	},
	"Product": {
		Type:         "Product",
		Category:     "source_sink",
		Ports:        []PortSpec{{Name: "inlet", Direction: "in"}},
		InitMethod:   engine.InitNone,
		PropertyPack: "seawater",
	},
	"Pump": {
		Type:     "Pump",
		Category: "pressure_change",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "outlet", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "outlet.pressure", TypicalValue: 5e5, Min: 1e5, Max: 8.5e6, Description: "discharge pressure"},
			{Path: "efficiency", TypicalValue: 0.8, Min: 0.1, Max: 1, Description: "pump efficiency"},
		},
		DefaultScaling: map[string]float64{"outlet.pressure": 1e-5},
		InitMethod:     engine.InitStandard,
		PropertyPack:   "seawater",
	},
	"EnergyRecoveryDevice": {
		Type:     "EnergyRecoveryDevice",
		Category: "pressure_change",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "outlet", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "outlet.pressure", TypicalValue: 1e5, Min: 1e5, Max: 8.5e6, Description: "outlet pressure"},
			{Path: "efficiency", TypicalValue: 0.9, Min: 0.1, Max: 1, Description: "device efficiency"},
		},
		InitMethod:   engine.InitStandard,
		PropertyPack: "seawater",
	},
	"ReverseOsmosis0D": {
		Type:     "ReverseOsmosis0D",
		Category: "membrane",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "permeate", Direction: "out"},
			{Name: "retentate", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "area", TypicalValue: 50, Min: 1, Max: 5000, Description: "membrane area"},
			{Path: "A_comp", TypicalValue: 4.2e-12, Min: 1e-13, Max: 1e-10, Description: "water permeability"},
			{Path: "B_comp", TypicalValue: 3.5e-8, Min: 1e-9, Max: 1e-6, Description: "salt permeability"},
			{Path: "permeate.pressure", TypicalValue: 101325, Min: 1e5, Max: 5e5, Description: "permeate pressure"},
		},
		DefaultScaling: map[string]float64{"area": 1e-2, "A_comp": 1e12, "B_comp": 1e8},
		InitMethod:     engine.InitBuildSpecific,
		PropertyPack:   "seawater",
	},
	"Nanofiltration0D": {
		Type:     "Nanofiltration0D",
		Category: "membrane",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "permeate", Direction: "out"},
			{Name: "retentate", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "area", TypicalValue: 50, Min: 1, Max: 5000, Description: "membrane area"},
			{Path: "recovery_vol", TypicalValue: 0.8, Min: 0.1, Max: 0.99, Description: "volumetric recovery"},
		},
		DefaultScaling: map[string]float64{"area": 1e-2},
		InitMethod:     engine.InitBuildSpecific,
		PropertyPack:   "seawater",
	},
	"Mixer": {
		Type:     "Mixer",
		Category: "mixing",
		Ports: []PortSpec{
			{Name: "inlet_1", Direction: "in"},
			{Name: "inlet_2", Direction: "in"},
			{Name: "outlet", Direction: "out"},
		},
		InitMethod:   engine.InitStandard,
		PropertyPack: "seawater",
	},
	"Separator": {
		Type:     "Separator",
		Category: "mixing",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "outlet_1", Direction: "out"},
			{Name: "outlet_2", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "split_fraction", TypicalValue: 0.5, Min: 0, Max: 1, Description: "split fraction to outlet_1"},
		},
		InitMethod:   engine.InitStandard,
		PropertyPack: "seawater",
	},
	"Evaporator": {
		Type:     "Evaporator",
		Category: "thermal",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "vapor", Direction: "out"},
			{Name: "brine", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "outlet_temperature", TypicalValue: 343.15, Min: 300, Max: 400, Description: "operating temperature"},
			{Path: "outlet_pressure", TypicalValue: 3e4, Min: 1e3, Max: 1e5, Description: "operating pressure"},
		},
		InitMethod:   engine.InitCustom,
		PropertyPack: "brine",
	},
	"Crystallizer": {
		Type:     "Crystallizer",
		Category: "thermal",
		Ports: []PortSpec{
			{Name: "inlet", Direction: "in"},
			{Name: "solids", Direction: "out"},
			{Name: "liquid", Direction: "out"},
		},
		RequiredFixes: []RequiredFix{
			{Path: "operating_temperature", TypicalValue: 323.15, Min: 273.15, Max: 373.15, Description: "crystallizer temperature"},
		},
		InitMethod:   engine.InitCustom,
		PropertyPack: "brine",
	},
}

var propertyPacks = map[string]PropertyPackSpec{
	"seawater": {
		Name:       "seawater",
		Phases:     []string{"Liq"},
		Components: []string{"H2O", "TDS"},
		StateVars:  []string{"flow_mass_phase_comp", "temperature", "pressure"},
	},
	"nacl": {
		Name:       "nacl",
		Phases:     []string{"Liq"},
		Components: []string{"H2O", "NaCl"},
		StateVars:  []string{"flow_mass_phase_comp", "temperature", "pressure"},
	},
	"brine": {
		Name:       "brine",
		Phases:     []string{"Liq", "Vap"},
		Components: []string{"H2O", "NaCl"},
		StateVars:  []string{"flow_mass_phase_comp", "temperature", "pressure"},
	},
}

var translators = []TranslatorSpec{
	{Type: "TranslatorSeawaterNaCl", Source: "seawater", Dest: "nacl"},
	{Type: "TranslatorNaClBrine", Source: "nacl", Dest: "brine"},
	{Type: "TranslatorBrineNaCl", Source: "brine", Dest: "nacl"},
}

// LookupUnit returns the spec for a unit type.
func LookupUnit(unitType string) (UnitSpec, bool) {
	spec, ok := unitSpecs[unitType]
	return spec, ok
}

// UnitTypes returns every registered unit type, sorted.
func UnitTypes() []string {
	out := make([]string, 0, len(unitSpecs))
	for t := range unitSpecs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// LookupPropertyPack returns the spec for a property pack.
func LookupPropertyPack(name string) (PropertyPackSpec, bool) {
	spec, ok := propertyPacks[name]
	return spec, ok
}

// PropertyPackNames returns every registered pack name, sorted.
func PropertyPackNames() []string {
	out := make([]string, 0, len(propertyPacks))
	for n := range propertyPacks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LookupTranslator returns the translator directly converting source to
// dest.
func LookupTranslator(source, dest string) (TranslatorSpec, bool) {
	for _, t := range translators {
		if t.Source == source && t.Dest == dest {
			return t, true
		}
	}
	return TranslatorSpec{}, false
}

// Translators returns every registered translator spec.
func Translators() []TranslatorSpec {
	out := make([]TranslatorSpec, len(translators))
	copy(out, translators)
	return out
}

// FindChain searches for a translator sequence converting source to
// dest, breadth-first so the shortest chain wins. Equal packs need no
// chain; an unreachable pair returns nil and false.
func FindChain(source, dest string) ([]TranslatorSpec, bool) {
	if source == dest {
		return []TranslatorSpec{}, true
	}
	type state struct {
		pack  string
		chain []TranslatorSpec
	}
	visited := map[string]bool{source: true}
	queue := []state{{pack: source}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range translators {
			if t.Source != cur.pack || visited[t.Dest] {
				continue
			}
			chain := append(append([]TranslatorSpec{}, cur.chain...), t)
			if t.Dest == dest {
				return chain, true
			}
			visited[t.Dest] = true
			queue = append(queue, state{pack: t.Dest, chain: chain})
		}
	}
	return nil, false
}

// InitMethodFor resolves a unit type's initialization variant from the
// static table. Unknown types report the standard routine.
func InitMethodFor(unitType string) engine.InitMethod {
	if spec, ok := unitSpecs[unitType]; ok {
		return spec.InitMethod
	}
	return engine.InitStandard
}
