package session

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Document is the YAML form of a flowsheet definition, used for
// file-based workflows: importing a flowsheet into a session and
// re-validating a definition file on change.
type Document struct {
	// Name is the session name the document imports as.
	Name string `yaml:"name"`

	// Units lists the flowsheet units.
	Units []DocumentUnit `yaml:"units"`

	// Connections lists the directed streams.
	Connections []DocumentConnection `yaml:"connections"`

	// Translators lists state translators placed on connections.
	Translators []DocumentTranslator `yaml:"translators"`

	// FeedState maps state variable to index key to value, using
	// canonical index keys.
	FeedState map[string]map[string]float64 `yaml:"feed_state"`

	// FixedVars lists fix specifications.
	FixedVars []DocumentFixedVar `yaml:"fixed_vars"`

	// ScalingHints lists scaling specifications.
	ScalingHints []DocumentScalingHint `yaml:"scaling_hints"`

	// Pipeline overrides the default pipeline configuration. Absent
	// fields keep their defaults.
	Pipeline engine.PipelineConfig `yaml:"pipeline"`
}

// DocumentUnit is one unit entry in a flowsheet document.
type DocumentUnit struct {
	// Name is the flowsheet-unique unit name.
	Name string `yaml:"name"`

	// Type is the registry unit type.
	Type string `yaml:"type"`
}

// DocumentConnection is one stream entry in a flowsheet document.
type DocumentConnection struct {
	// Name is the flowsheet-unique connection name.
	Name string `yaml:"name"`

	// Source and SourcePort locate the upstream outlet.
	Source     string `yaml:"source"`
	SourcePort string `yaml:"source_port"`

	// Dest and DestPort locate the downstream inlet.
	Dest     string `yaml:"dest"`
	DestPort string `yaml:"dest_port"`
}

// DocumentTranslator is one translator entry in a flowsheet document.
type DocumentTranslator struct {
	// Name is the flowsheet-unique translator name.
	Name string `yaml:"name"`

	// Type is the registry translator type.
	Type string `yaml:"type"`

	// Connection names the connection the translator sits on.
	Connection string `yaml:"connection"`
}

// DocumentFixedVar is one fix entry in a flowsheet document.
type DocumentFixedVar struct {
	// Path is the variable path relative to the model root.
	Path string `yaml:"path"`

	// Value is the fixed value.
	Value float64 `yaml:"value"`
}

// DocumentScalingHint is one scaling entry in a flowsheet document.
type DocumentScalingHint struct {
	// Path is the variable path relative to the model root.
	Path string `yaml:"path"`

	// Factor is the scaling factor.
	Factor float64 `yaml:"factor"`
}

// ParseDocument decodes a YAML flowsheet document and replays it
// through the session operations, so every entry gets the same
// validation an interactively built session would: unit types and
// ports are checked, duplicates rejected, translators bound to real
// connections.
func ParseDocument(data []byte) (*FlowsheetSession, error) {
	doc := Document{Pipeline: engine.DefaultPipelineConfig()}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, engine.NewExpectedError("invalid flowsheet document", err).
			WithCode("INVALID_DOCUMENT")
	}
	if doc.Name == "" {
		return nil, engine.NewExpectedError("flowsheet document has no name", nil).
			WithCode("INVALID_DOCUMENT")
	}

	sess := New(doc.Name)
	for _, u := range doc.Units {
		if err := sess.AddUnit(u.Name, u.Type); err != nil {
			return nil, documentError("unit", u.Name, err)
		}
	}
	for _, c := range doc.Connections {
		if err := sess.Connect(c.Name, c.Source, c.SourcePort, c.Dest, c.DestPort); err != nil {
			return nil, documentError("connection", c.Name, err)
		}
	}
	for _, tr := range doc.Translators {
		if err := sess.AddTranslator(tr.Name, tr.Type, tr.Connection); err != nil {
			return nil, documentError("translator", tr.Name, err)
		}
	}
	for stateVar, values := range doc.FeedState {
		for key, value := range values {
			sess.SetFeedValue(stateVar, DecodeIndexKey(key), value)
		}
	}
	for _, fv := range doc.FixedVars {
		sess.FixVariable(fv.Path, fv.Value)
	}
	for _, sh := range doc.ScalingHints {
		sess.SetScaling(sh.Path, sh.Factor)
	}
	sess.Pipeline = doc.Pipeline
	return sess, nil
}

func documentError(kind, name string, err error) error {
	return engine.NewExpectedError(
		fmt.Sprintf("flowsheet document %s %s rejected", kind, name), err,
	).WithCode("INVALID_DOCUMENT")
}
