// Package session manages flowsheet definitions: the units,
// connections, translators, feed state, and specifications a model is
// built from, together with the session's lifecycle status.
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aquasolve/aquasolve/pkg/engine"
	"github.com/aquasolve/aquasolve/pkg/registry"
)

// Status is a session lifecycle state.
type Status string

const (
	// StatusCreated is a freshly created, empty session.
	StatusCreated Status = "created"

	// StatusBuilding means the flowsheet definition is being edited.
	StatusBuilding Status = "building"

	// StatusReady means the definition passed its checks and can solve.
	StatusReady Status = "ready"

	// StatusSolving means a pipeline run is in progress.
	StatusSolving Status = "solving"

	// StatusSolved means the last pipeline run completed.
	StatusSolved Status = "solved"

	// StatusFailed means the last pipeline run failed.
	StatusFailed Status = "failed"
)

// allowedTransitions maps each status to the statuses it may move to.
// Editing a solved or failed session moves it back to building.
var allowedTransitions = map[Status][]Status{
	StatusCreated:  {StatusBuilding, StatusReady},
	StatusBuilding: {StatusBuilding, StatusReady},
	StatusReady:    {StatusBuilding, StatusSolving},
	StatusSolving:  {StatusSolved, StatusFailed},
	StatusSolved:   {StatusBuilding, StatusSolving},
	StatusFailed:   {StatusBuilding, StatusSolving},
}

// UnitEntry is one unit in the flowsheet definition.
type UnitEntry struct {
	// Name is the flowsheet-unique unit name.
	Name string `json:"name"`

	// Type is the registry unit type.
	Type string `json:"type"`
}

// ConnectionEntry is one directed stream in the definition.
type ConnectionEntry struct {
	// Name is the flowsheet-unique connection name.
	Name string `json:"name"`

	// Source and SourcePort locate the upstream outlet.
	Source     string `json:"source"`
	SourcePort string `json:"source_port"`

	// Dest and DestPort locate the downstream inlet.
	Dest     string `json:"dest"`
	DestPort string `json:"dest_port"`
}

// TranslatorEntry is a state translator placed on a connection between
// units with different property packs.
type TranslatorEntry struct {
	// Name is the flowsheet-unique translator name.
	Name string `json:"name"`

	// Type is the registry translator type.
	Type string `json:"type"`

	// Connection names the connection the translator sits on.
	Connection string `json:"connection"`
}

// FixedVar records a fix specification applied at build time.
type FixedVar struct {
	// Path is the variable path relative to the model root.
	Path string `json:"path"`

	// Value is the fixed value.
	Value float64 `json:"value"`
}

// ScalingHint records a scaling factor applied at build time.
type ScalingHint struct {
	// Path is the variable path relative to the model root.
	Path string `json:"path"`

	// Factor is the scaling factor.
	Factor float64 `json:"factor"`
}

// FeedState holds feed stream values keyed by state variable, then by
// canonical index key (see keys.go).
type FeedState map[string]map[string]float64

// FlowsheetSession is a complete flowsheet definition plus its
// lifecycle metadata.
type FlowsheetSession struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// Name is the human-readable session name.
	Name string `json:"name"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// Units are the flowsheet's units in insertion order.
	Units []UnitEntry `json:"units"`

	// Connections are the directed streams in insertion order.
	Connections []ConnectionEntry `json:"connections"`

	// Translators are the placed state translators.
	Translators []TranslatorEntry `json:"translators,omitempty"`

	// FeedState is the feed stream specification.
	FeedState FeedState `json:"feed_state,omitempty"`

	// FixedVars are the fix specifications in insertion order.
	FixedVars []FixedVar `json:"fixed_vars,omitempty"`

	// ScalingHints are the scaling specifications in insertion order.
	ScalingHints []ScalingHint `json:"scaling_hints,omitempty"`

	// Pipeline is the solve pipeline configuration for this session.
	Pipeline engine.PipelineConfig `json:"pipeline"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the session was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates an empty session with a generated ID.
func New(name string) *FlowsheetSession {
	now := time.Now().UTC()
	return &FlowsheetSession{
		ID:        uuid.New().String(),
		Name:      name,
		Status:    StatusCreated,
		FeedState: make(FeedState),
		Pipeline:  engine.DefaultPipelineConfig(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *FlowsheetSession) touch() {
	s.UpdatedAt = time.Now().UTC()
	if s.Status == StatusCreated || s.Status == StatusSolved || s.Status == StatusFailed ||
		s.Status == StatusReady {
		s.Status = StatusBuilding
	}
}

// Transition moves the session to the given status, rejecting moves the
// lifecycle does not allow.
func (s *FlowsheetSession) Transition(to Status) error {
	for _, allowed := range allowedTransitions[s.Status] {
		if allowed == to {
			s.Status = to
			s.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return engine.NewExpectedError(
		fmt.Sprintf("session %s cannot move from %s to %s", s.ID, s.Status, to), nil,
	).WithCode("INVALID_TRANSITION")
}

// Unit returns the unit entry with the given name.
func (s *FlowsheetSession) Unit(name string) (UnitEntry, bool) {
	for _, u := range s.Units {
		if u.Name == name {
			return u, true
		}
	}
	return UnitEntry{}, false
}

// AddUnit adds a unit of a registered type. Duplicate names and unknown
// types are rejected.
func (s *FlowsheetSession) AddUnit(name, unitType string) error {
	if name == "" {
		return engine.NewExpectedError("unit name is required", nil).WithCode("INVALID_UNIT")
	}
	if _, exists := s.Unit(name); exists {
		return engine.NewExpectedError(
			fmt.Sprintf("unit %s already exists", name), nil,
		).WithCode("DUPLICATE_UNIT")
	}
	if _, ok := registry.LookupUnit(unitType); !ok {
		return engine.NewExpectedError(
			fmt.Sprintf("unknown unit type %s", unitType), nil,
		).WithCode("UNKNOWN_UNIT_TYPE")
	}
	s.Units = append(s.Units, UnitEntry{Name: name, Type: unitType})
	s.touch()
	return nil
}

// RemoveUnit deletes a unit and cascades removal of every connection
// and translator touching it.
func (s *FlowsheetSession) RemoveUnit(name string) error {
	idx := -1
	for i, u := range s.Units {
		if u.Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return engine.NewExpectedError(
			fmt.Sprintf("unit %s does not exist", name), nil,
		).WithCode("UNKNOWN_UNIT")
	}
	s.Units = append(s.Units[:idx], s.Units[idx+1:]...)

	var keptConns []ConnectionEntry
	removed := make(map[string]bool)
	for _, c := range s.Connections {
		if c.Source == name || c.Dest == name {
			removed[c.Name] = true
			continue
		}
		keptConns = append(keptConns, c)
	}
	s.Connections = keptConns

	var keptTranslators []TranslatorEntry
	for _, tr := range s.Translators {
		if !removed[tr.Connection] {
			keptTranslators = append(keptTranslators, tr)
		}
	}
	s.Translators = keptTranslators
	s.touch()
	return nil
}

// Connect adds a directed connection after validating that both units
// exist and expose the named ports with the right directions.
func (s *FlowsheetSession) Connect(name, source, sourcePort, dest, destPort string) error {
	for _, c := range s.Connections {
		if c.Name == name {
			return engine.NewExpectedError(
				fmt.Sprintf("connection %s already exists", name), nil,
			).WithCode("DUPLICATE_CONNECTION")
		}
	}
	if err := s.validatePort(source, sourcePort, "out"); err != nil {
		return err
	}
	if err := s.validatePort(dest, destPort, "in"); err != nil {
		return err
	}
	s.Connections = append(s.Connections, ConnectionEntry{
		Name: name, Source: source, SourcePort: sourcePort, Dest: dest, DestPort: destPort,
	})
	s.touch()
	return nil
}

func (s *FlowsheetSession) validatePort(unit, port, direction string) error {
	entry, ok := s.Unit(unit)
	if !ok {
		return engine.NewExpectedError(
			fmt.Sprintf("unit %s does not exist", unit), nil,
		).WithCode("UNKNOWN_UNIT")
	}
	spec, _ := registry.LookupUnit(entry.Type)
	for _, p := range spec.Ports {
		if p.Name == port {
			if p.Direction != direction {
				return engine.NewExpectedError(
					fmt.Sprintf("port %s.%s is %q, need %q", unit, port, p.Direction, direction), nil,
				).WithCode("PORT_DIRECTION")
			}
			return nil
		}
	}
	return engine.NewExpectedError(
		fmt.Sprintf("unit %s (%s) has no port %s", unit, entry.Type, port), nil,
	).WithCode("UNKNOWN_PORT")
}

// AddTranslator places a state translator on an existing connection.
// The translator type must be registered and each connection carries at
// most one translator.
func (s *FlowsheetSession) AddTranslator(name, translatorType, connection string) error {
	for _, tr := range s.Translators {
		if tr.Name == name {
			return engine.NewExpectedError(
				fmt.Sprintf("translator %s already exists", name), nil,
			).WithCode("DUPLICATE_TRANSLATOR")
		}
		if tr.Connection == connection {
			return engine.NewExpectedError(
				fmt.Sprintf("connection %s already has translator %s", connection, tr.Name), nil,
			).WithCode("DUPLICATE_TRANSLATOR")
		}
	}
	known := false
	for _, spec := range registry.Translators() {
		if spec.Type == translatorType {
			known = true
			break
		}
	}
	if !known {
		return engine.NewExpectedError(
			fmt.Sprintf("unknown translator type %s", translatorType), nil,
		).WithCode("UNKNOWN_TRANSLATOR_TYPE")
	}
	found := false
	for _, c := range s.Connections {
		if c.Name == connection {
			found = true
			break
		}
	}
	if !found {
		return engine.NewExpectedError(
			fmt.Sprintf("connection %s does not exist", connection), nil,
		).WithCode("UNKNOWN_CONNECTION")
	}
	s.Translators = append(s.Translators, TranslatorEntry{
		Name: name, Type: translatorType, Connection: connection,
	})
	s.touch()
	return nil
}

// FixVariable records a fix specification, replacing an earlier fix of
// the same path.
func (s *FlowsheetSession) FixVariable(path string, value float64) {
	for i := range s.FixedVars {
		if s.FixedVars[i].Path == path {
			s.FixedVars[i].Value = value
			s.touch()
			return
		}
	}
	s.FixedVars = append(s.FixedVars, FixedVar{Path: path, Value: value})
	s.touch()
}

// UnfixVariable removes a fix specification. Removing an absent path is
// a no-op.
func (s *FlowsheetSession) UnfixVariable(path string) {
	for i := range s.FixedVars {
		if s.FixedVars[i].Path == path {
			s.FixedVars = append(s.FixedVars[:i], s.FixedVars[i+1:]...)
			s.touch()
			return
		}
	}
}

// SetScaling records a scaling factor, replacing an earlier hint for
// the same path.
func (s *FlowsheetSession) SetScaling(path string, factor float64) {
	for i := range s.ScalingHints {
		if s.ScalingHints[i].Path == path {
			s.ScalingHints[i].Factor = factor
			s.touch()
			return
		}
	}
	s.ScalingHints = append(s.ScalingHints, ScalingHint{Path: path, Factor: factor})
	s.touch()
}

// SetFeedValue records one feed state value under the canonical string
// form of the index.
func (s *FlowsheetSession) SetFeedValue(stateVar string, ix engine.Index, value float64) {
	if s.FeedState == nil {
		s.FeedState = make(FeedState)
	}
	if s.FeedState[stateVar] == nil {
		s.FeedState[stateVar] = make(map[string]float64)
	}
	s.FeedState[stateVar][EncodeIndexKey(ix)] = value
	s.touch()
}

// FeedValue reads back a feed state value by index.
func (s *FlowsheetSession) FeedValue(stateVar string, ix engine.Index) (float64, bool) {
	values, ok := s.FeedState[stateVar]
	if !ok {
		return 0, false
	}
	v, ok := values[EncodeIndexKey(ix)]
	return v, ok
}
