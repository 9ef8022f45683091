package engine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Segment is one dotted step of a variable path, with an optional
// bracketed index.
type Segment struct {
	// Name is the attribute name for this step.
	Name string

	// Index is the parsed index, nil when the segment has no brackets.
	Index Index
}

// Target is one concrete variable matched by a path.
type Target struct {
	// Variable is the resolved variable handle.
	Variable Variable

	// Index is the concrete index within the final indexed component,
	// nil for scalar variables.
	Index Index

	// Path is the canonical path of this target, with the concrete
	// index substituted for any wildcard.
	Path string
}

// Resolution is the outcome of resolving a path against a model tree.
// A path that matches nothing is a normal outcome, reported with Found
// false and a nil error.
type Resolution struct {
	// Found indicates at least one target matched.
	Found bool

	// Wildcard indicates the path contained a wildcard index component.
	Wildcard bool

	// Targets are the matched variables. Non-wildcard paths yield at
	// most one target.
	Targets []Target
}

// PathResolver resolves dotted, bracket-indexed variable paths against
// a model tree. Paths look like "fs.ro.feed.flow_mol_phase_comp[0,Liq,H2O]";
// an index component may be "*" to match every value in that position.
type PathResolver struct {
	log zerolog.Logger
}

// NewPathResolver creates a path resolver.
func NewPathResolver(log zerolog.Logger) *PathResolver {
	return &PathResolver{log: log.With().Str("component", "path_resolver").Logger()}
}

// ParsePath splits a path into segments. Dots inside brackets do not
// split, so "vars[a.b].x" has two segments. Bracket contents split on
// commas into index components, each coerced int-first, then float,
// then quote-stripped string.
func ParsePath(path string) ([]Segment, error) {
	if strings.TrimSpace(path) == "" {
		return nil, NewExpectedError("empty path", nil).WithCode(ErrCodePathSyntax)
	}
	var segments []Segment
	depth := 0
	start := 0
	raw := make([]string, 0, 4)
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, NewExpectedError(
					fmt.Sprintf("unbalanced ']' at position %d in %q", i, path), nil,
				).WithCode(ErrCodePathSyntax)
			}
		case '.':
			if depth == 0 {
				raw = append(raw, path[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, NewExpectedError(fmt.Sprintf("unclosed '[' in %q", path), nil).
			WithCode(ErrCodePathSyntax)
	}
	raw = append(raw, path[start:])

	for _, part := range raw {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}

func parseSegment(part string) (Segment, error) {
	part = strings.TrimSpace(part)
	if part == "" {
		return Segment{}, NewExpectedError("empty path segment", nil).WithCode(ErrCodePathSyntax)
	}
	open := strings.IndexByte(part, '[')
	if open < 0 {
		return Segment{Name: part}, nil
	}
	if !strings.HasSuffix(part, "]") {
		return Segment{}, NewExpectedError(
			fmt.Sprintf("malformed segment %q", part), nil,
		).WithCode(ErrCodePathSyntax)
	}
	name := part[:open]
	if name == "" {
		return Segment{}, NewExpectedError(
			fmt.Sprintf("segment %q has an index but no name", part), nil,
		).WithCode(ErrCodePathSyntax)
	}
	inner := part[open+1 : len(part)-1]
	if strings.TrimSpace(inner) == "" {
		return Segment{}, NewExpectedError(
			fmt.Sprintf("segment %q has empty brackets", part), nil,
		).WithCode(ErrCodePathSyntax)
	}
	var ix Index
	for _, tok := range strings.Split(inner, ",") {
		ix = append(ix, coerceToken(tok))
	}
	return Segment{Name: name, Index: ix}, nil
}

// node tracks one branch of a walk in progress.
type node struct {
	obj  interface{}
	path string
}

// Resolve walks the path from root and returns every variable it
// matches. Missing attributes and absent indices produce Found false
// with a nil error; only malformed paths return an error.
func (r *PathResolver) Resolve(root NamedContainer, path string) (Resolution, error) {
	segments, err := ParsePath(path)
	if err != nil {
		return Resolution{}, err
	}

	wildcard := false
	current := []node{{obj: root}}
	for _, seg := range segments {
		if seg.Index.HasWildcard() {
			wildcard = true
		}
		var next []node
		for _, n := range current {
			container, ok := n.obj.(NamedContainer)
			if !ok {
				continue
			}
			child := container.GetChild(seg.Name)
			if child == nil {
				continue
			}
			childPath := joinPath(n.path, seg.Name)
			if seg.Index == nil {
				next = append(next, node{obj: child, path: childPath})
				continue
			}
			indexed, ok := child.(Indexed)
			if !ok {
				continue
			}
			if !seg.Index.HasWildcard() {
				member := indexed.GetIndexed(seg.Index)
				if member == nil {
					continue
				}
				next = append(next, node{
					obj:  member,
					path: childPath + "[" + indexComponents(seg.Index) + "]",
				})
				continue
			}
			for _, concrete := range indexed.IndexSet() {
				if !seg.Index.Matches(concrete) {
					continue
				}
				member := indexed.GetIndexed(concrete)
				if member == nil {
					continue
				}
				next = append(next, node{
					obj:  member,
					path: childPath + "[" + indexComponents(concrete) + "]",
				})
			}
		}
		current = next
		if len(current) == 0 {
			break
		}
	}

	res := Resolution{Wildcard: wildcard}
	for _, n := range current {
		switch v := n.obj.(type) {
		case Variable:
			res.Targets = append(res.Targets, Target{Variable: v, Path: n.path, Index: finalIndex(n.path)})
		case Indexed:
			// An index-less path to an indexed variable addresses every
			// member, mirroring how a fix on the parent applies to all.
			for _, concrete := range v.IndexSet() {
				member := v.GetIndexed(concrete)
				mv, ok := member.(Variable)
				if !ok {
					continue
				}
				res.Targets = append(res.Targets, Target{
					Variable: mv,
					Index:    concrete,
					Path:     n.path + "[" + indexComponents(concrete) + "]",
				})
			}
		}
	}
	res.Found = len(res.Targets) > 0
	if !res.Found {
		r.log.Debug().Str("path", path).Msg("path resolved to no targets")
	}
	return res, nil
}

// Fix resolves the path and fixes every matched variable at the given
// value. It returns the number of variables fixed; zero with a nil
// error means the path matched nothing.
func (r *PathResolver) Fix(root NamedContainer, path string, value float64) (int, error) {
	res, err := r.Resolve(root, path)
	if err != nil {
		return 0, err
	}
	for _, t := range res.Targets {
		t.Variable.Fix(value)
	}
	if len(res.Targets) > 0 {
		r.log.Debug().Str("path", path).Float64("value", value).
			Int("targets", len(res.Targets)).Msg("fixed variables")
	}
	return len(res.Targets), nil
}

// Unfix resolves the path and unfixes every matched variable, returning
// the count released.
func (r *PathResolver) Unfix(root NamedContainer, path string) (int, error) {
	res, err := r.Resolve(root, path)
	if err != nil {
		return 0, err
	}
	for _, t := range res.Targets {
		t.Variable.Unfix()
	}
	return len(res.Targets), nil
}

// Value resolves a non-wildcard path to a single variable and returns
// its value. The second return is false when the path matched nothing.
func (r *PathResolver) Value(root NamedContainer, path string) (float64, bool, error) {
	res, err := r.Resolve(root, path)
	if err != nil {
		return 0, false, err
	}
	if !res.Found {
		return 0, false, nil
	}
	if len(res.Targets) > 1 {
		return 0, false, NewExpectedError(
			fmt.Sprintf("path %q matched %d variables, expected one", path, len(res.Targets)), nil,
		).WithCode(ErrCodePathAmbiguous)
	}
	return res.Targets[0].Variable.Value(), true, nil
}

// SetScalingHint resolves the path and records a scaling factor on
// every matched variable, returning the count updated.
func (r *PathResolver) SetScalingHint(root NamedContainer, path string, factor float64) (int, error) {
	res, err := r.Resolve(root, path)
	if err != nil {
		return 0, err
	}
	for _, t := range res.Targets {
		t.Variable.SetScalingHint(factor)
	}
	return len(res.Targets), nil
}

func joinPath(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// indexComponents renders index components comma-joined without the
// composite-key parentheses, for use inside path brackets.
func indexComponents(ix Index) string {
	parts := make([]string, len(ix))
	for i, c := range ix {
		parts[i] = componentString(c)
	}
	return strings.Join(parts, ",")
}

// finalIndex extracts the concrete index from a canonical target path,
// returning nil for scalar targets.
func finalIndex(path string) Index {
	if !strings.HasSuffix(path, "]") {
		return nil
	}
	open := strings.LastIndexByte(path, '[')
	if open < 0 {
		return nil
	}
	inner := path[open+1 : len(path)-1]
	var ix Index
	for _, tok := range strings.Split(inner, ",") {
		ix = append(ix, coerceToken(tok))
	}
	return ix
}
