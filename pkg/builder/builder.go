// Package builder constructs a modeltree flowsheet model from a
// session definition using the unit and property pack registry.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/modeltree"
	"github.com/aquasolve/aquasolve/pkg/registry"
	"github.com/aquasolve/aquasolve/pkg/session"
)

// Default starting values for state variables before initialization.
const (
	defaultTemperature = 298.15
	defaultPressure    = 101325.0
)

// Result is a built model plus everything the caller should know
// about how the build went.
type Result struct {
	// Model is the built flowsheet model.
	Model *modeltree.Model

	// Flowsheet is the scope block the units live under. Variable
	// paths in the session resolve against this block.
	Flowsheet *modeltree.Block

	// Units maps unit name to its block, translators included.
	Units map[string]*modeltree.Block

	// Warnings lists path applications that matched nothing and
	// other non-fatal build issues.
	Warnings []string
}

// Builder turns a session into a solvable model.
type Builder struct {
	resolver *engine.PathResolver
	log      zerolog.Logger
}

// New creates a builder.
func New(log zerolog.Logger) *Builder {
	logger := log.With().Str("component", "builder").Logger()
	return &Builder{
		resolver: engine.NewPathResolver(logger),
		log:      logger,
	}
}

// Build constructs the model: flowsheet scope, units with their port
// state variables, translators, arcs, then feed state, fixed variables
// and scaling hints. Unknown unit types, property packs, translators
// or ports fail the build; a path that matches no variable is reported
// as a warning, never silently dropped.
func (b *Builder) Build(sess *session.FlowsheetSession) (*Result, error) {
	model := modeltree.NewModel()
	result := &Result{
		Model:     model,
		Flowsheet: model.AddBlock("fs"),
		Units:     make(map[string]*modeltree.Block),
	}

	if err := b.createUnits(sess, result); err != nil {
		return nil, err
	}
	if err := b.createTranslators(sess, result); err != nil {
		return nil, err
	}
	if err := b.createArcs(sess, result); err != nil {
		return nil, err
	}
	b.applyFeedState(sess, result)
	b.applyFixedVars(sess, result)
	b.applyScalingHints(sess, result)

	b.log.Debug().
		Str("session_id", sess.ID).
		Int("units", len(result.Units)).
		Int("warnings", len(result.Warnings)).
		Msg("model built")

	return result, nil
}

func (b *Builder) createUnits(sess *session.FlowsheetSession, result *Result) error {
	for _, entry := range sess.Units {
		spec, ok := registry.LookupUnit(entry.Type)
		if !ok {
			return buildError(fmt.Sprintf("unknown unit type %s for unit %s", entry.Type, entry.Name))
		}
		pack, ok := registry.LookupPropertyPack(spec.PropertyPack)
		if !ok {
			return buildError(fmt.Sprintf("unknown property pack %s for unit %s", spec.PropertyPack, entry.Name))
		}

		block := result.Model.AddUnit(result.Flowsheet, entry.Name, spec.InitMethod)
		result.Units[entry.Name] = block

		for _, port := range spec.Ports {
			populatePort(block.AddBlock(port.Name), pack)
		}

		for _, fix := range spec.RequiredFixes {
			v := ensureVar(block, fix.Path)
			v.SetValue(fix.TypicalValue)
			v.SetBounds(fix.Min, fix.Max)
		}

		// Apply default scaling in a fixed path order so repeated builds
		// of the same session produce the same warning order.
		for _, path := range sortedScalingPaths(spec.DefaultScaling) {
			count, err := b.resolver.SetScalingHint(block, path, spec.DefaultScaling[path])
			if err != nil || count == 0 {
				result.warnf("default scaling %s on unit %s matched no variables", path, entry.Name)
			}
		}
	}
	return nil
}

func sortedScalingPaths(scaling map[string]float64) []string {
	paths := make([]string, 0, len(scaling))
	for path := range scaling {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// populatePort adds the property pack's state variables to a port
// block: indexed flow variables over phase and component, scalar
// intensive variables otherwise.
func populatePort(port *modeltree.Block, pack registry.PropertyPackSpec) {
	for _, stateVar := range pack.StateVars {
		if strings.Contains(stateVar, "phase_comp") {
			indices := make([]engine.Index, 0, len(pack.Phases)*len(pack.Components))
			for _, phase := range pack.Phases {
				for _, comp := range pack.Components {
					indices = append(indices, engine.Index{phase, comp})
				}
			}
			port.AddIndexedVar(stateVar, modeltree.NewIndexedVar(stateVar, indices...))
			continue
		}

		v := modeltree.NewVar(stateVar)
		switch stateVar {
		case "temperature":
			v.WithValue(defaultTemperature).WithUnits("K")
		case "pressure":
			v.WithValue(defaultPressure).WithUnits("Pa")
		}
		port.AddVar(stateVar, v)
	}
}

// ensureVar walks a dotted path under a unit block, creating
// intermediate blocks and the final variable as needed.
func ensureVar(block *modeltree.Block, path string) *modeltree.Var {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		if child, ok := block.GetChild(part).(*modeltree.Block); ok {
			block = child
			continue
		}
		block = block.AddBlock(part)
	}
	name := parts[len(parts)-1]
	if v, ok := block.GetChild(name).(*modeltree.Var); ok {
		return v
	}
	return block.AddVar(name, modeltree.NewVar(name))
}

func (b *Builder) createTranslators(sess *session.FlowsheetSession, result *Result) error {
	for _, entry := range sess.Translators {
		spec, ok := lookupTranslatorType(entry.Type)
		if !ok {
			return buildError(fmt.Sprintf("unknown translator type %s for translator %s", entry.Type, entry.Name))
		}
		sourcePack, ok := registry.LookupPropertyPack(spec.Source)
		if !ok {
			return buildError(fmt.Sprintf("unknown source pack %s for translator %s", spec.Source, entry.Name))
		}
		destPack, ok := registry.LookupPropertyPack(spec.Dest)
		if !ok {
			return buildError(fmt.Sprintf("unknown dest pack %s for translator %s", spec.Dest, entry.Name))
		}

		block := result.Model.AddUnit(result.Flowsheet, entry.Name, engine.InitStandard)
		result.Units[entry.Name] = block
		populatePort(block.AddBlock("inlet"), sourcePack)
		populatePort(block.AddBlock("outlet"), destPack)
	}
	return nil
}

func lookupTranslatorType(translatorType string) (registry.TranslatorSpec, bool) {
	for _, spec := range registry.Translators() {
		if spec.Type == translatorType {
			return spec, true
		}
	}
	return registry.TranslatorSpec{}, false
}

func (b *Builder) createArcs(sess *session.FlowsheetSession, result *Result) error {
	unitPacks := make(map[string]string, len(sess.Units))
	for _, entry := range sess.Units {
		if spec, ok := registry.LookupUnit(entry.Type); ok {
			unitPacks[entry.Name] = spec.PropertyPack
		}
	}
	translated := make(map[string]bool, len(sess.Translators))
	for _, tr := range sess.Translators {
		translated[tr.Connection] = true
	}

	for _, conn := range sess.Connections {
		source, ok := result.Units[conn.Source]
		if !ok {
			return buildError(fmt.Sprintf("source unit %s not found for connection %s", conn.Source, conn.Name))
		}
		dest, ok := result.Units[conn.Dest]
		if !ok {
			return buildError(fmt.Sprintf("dest unit %s not found for connection %s", conn.Dest, conn.Name))
		}
		if _, ok := source.GetChild(conn.SourcePort).(*modeltree.Block); !ok {
			return buildError(fmt.Sprintf("source port %s not found on unit %s", conn.SourcePort, conn.Source))
		}
		if _, ok := dest.GetChild(conn.DestPort).(*modeltree.Block); !ok {
			return buildError(fmt.Sprintf("dest port %s not found on unit %s", conn.DestPort, conn.Dest))
		}

		b.checkPackCompatibility(conn, unitPacks, translated, result)

		result.Model.AddArc(modeltree.Arc{
			Name:       conn.Name,
			SourceUnit: conn.Source,
			SourcePort: conn.SourcePort,
			DestUnit:   conn.Dest,
			DestPort:   conn.DestPort,
		})
	}
	return nil
}

// checkPackCompatibility warns when a connection joins units on
// different property packs without a translator on the stream. When the
// registry knows a translator chain between the two packs, the warning
// names it.
func (b *Builder) checkPackCompatibility(conn session.ConnectionEntry, unitPacks map[string]string, translated map[string]bool, result *Result) {
	sourcePack, destPack := unitPacks[conn.Source], unitPacks[conn.Dest]
	if sourcePack == "" || destPack == "" || sourcePack == destPack || translated[conn.Name] {
		return
	}

	chain, ok := registry.FindChain(sourcePack, destPack)
	if !ok {
		result.warnf("connection %s joins incompatible property packs %s and %s with no translator path between them",
			conn.Name, sourcePack, destPack)
		return
	}
	types := make([]string, len(chain))
	for i, spec := range chain {
		types[i] = spec.Type
	}
	result.warnf("connection %s joins property packs %s and %s without a translator; add %s",
		conn.Name, sourcePack, destPack, strings.Join(types, " then "))
}

// applyFeedState fixes the session's feed state on the outlet port of
// every Feed unit.
func (b *Builder) applyFeedState(sess *session.FlowsheetSession, result *Result) {
	if len(sess.FeedState) == 0 {
		return
	}

	for _, entry := range sess.Units {
		spec, ok := registry.LookupUnit(entry.Type)
		if !ok || spec.Type != "Feed" {
			continue
		}
		outlet, ok := result.Units[entry.Name].GetChild("outlet").(*modeltree.Block)
		if !ok {
			result.warnf("feed unit %s has no outlet port", entry.Name)
			continue
		}

		for stateVar, values := range sess.FeedState {
			for key, value := range values {
				b.fixFeedValue(outlet, entry.Name, stateVar, key, value, result)
			}
		}
	}
}

func (b *Builder) fixFeedValue(outlet *modeltree.Block, unit, stateVar, key string, value float64, result *Result) {
	switch child := outlet.GetChild(stateVar).(type) {
	case *modeltree.Var:
		child.Fix(value)
	case *modeltree.IndexedVar:
		member := child.At(session.DecodeIndexKey(key))
		if member == nil {
			result.warnf("feed state %s[%s] on unit %s matched no index", stateVar, key, unit)
			return
		}
		member.Fix(value)
	default:
		result.warnf("feed state %s on unit %s matched no variable", stateVar, unit)
	}
}

func (b *Builder) applyFixedVars(sess *session.FlowsheetSession, result *Result) {
	for _, fv := range sess.FixedVars {
		count, err := b.resolver.Fix(result.Flowsheet, fv.Path, fv.Value)
		if err != nil {
			result.warnf("fix %s failed: %v", fv.Path, err)
			continue
		}
		if count == 0 {
			result.warnf("fix %s matched no variables", fv.Path)
		}
	}
}

func (b *Builder) applyScalingHints(sess *session.FlowsheetSession, result *Result) {
	for _, hint := range sess.ScalingHints {
		count, err := b.resolver.SetScalingHint(result.Flowsheet, hint.Path, hint.Factor)
		if err != nil {
			result.warnf("scaling %s failed: %v", hint.Path, err)
			continue
		}
		if count == 0 {
			result.warnf("scaling %s matched no variables", hint.Path)
		}
	}
}

func (r *Result) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func buildError(message string) *engine.EngineError {
	return engine.NewFatalError(message, nil).WithCode(engine.ErrCodeModelBuild)
}
