// Package templates ships pre-built flowsheet definitions for common
// water treatment configurations. Each template is a complete YAML
// flowsheet document that instantiates into a session through the
// standard document validation.
package templates

import (
	"embed"
	"fmt"
	"sort"

	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/session"
)

//go:embed *.yaml
var documents embed.FS

// Template describes one pre-built flowsheet.
type Template struct {
	// Name is the template's registry key.
	Name string `json:"name"`

	// Description summarizes the configuration the template builds.
	Description string `json:"description"`

	file string
}

var catalog = map[string]Template{
	"ro_train": {
		Name:        "ro_train",
		Description: "Single-stage seawater reverse osmosis train with energy recovery",
		file:        "ro_train.yaml",
	},
	"nf_softening": {
		Name:        "nf_softening",
		Description: "Nanofiltration softening for partial desalination at low pressure",
		file:        "nf_softening.yaml",
	},
	"mvc_crystallizer": {
		Name:        "mvc_crystallizer",
		Description: "Evaporator-crystallizer train for brine concentration and salt recovery",
		file:        "mvc_crystallizer.yaml",
	},
}

// Names returns every template name, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for name := range catalog {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the template metadata for a name.
func Lookup(name string) (Template, bool) {
	t, ok := catalog[name]
	return t, ok
}

// Source returns the raw YAML document for a template.
func Source(name string) ([]byte, error) {
	t, ok := catalog[name]
	if !ok {
		return nil, unknownTemplate(name)
	}
	data, err := documents.ReadFile(t.file)
	if err != nil {
		return nil, engine.NewFatalError(
			fmt.Sprintf("template %s document unreadable", name), err,
		).WithCode(engine.ErrCodeInternal)
	}
	return data, nil
}

// Instantiate builds a fresh session from a template. A non-empty
// sessionName overrides the template's default session name.
func Instantiate(name, sessionName string) (*session.FlowsheetSession, error) {
	data, err := Source(name)
	if err != nil {
		return nil, err
	}
	sess, err := session.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	if sessionName != "" {
		sess.Name = sessionName
	}
	return sess, nil
}

func unknownTemplate(name string) error {
	return engine.NewExpectedError(
		fmt.Sprintf("unknown template %s, known: %v", name, Names()), nil,
	).WithCode("UNKNOWN_TEMPLATE")
}
