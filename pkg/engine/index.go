package engine

import (
	"fmt"
	"strconv"
	"strings"
)

// Index is one index into an indexed model component. Composite indices
// have multiple components, e.g. a phase-component pair.
type Index []interface{}

// wildcardToken is the sentinel value for a "*" index component.
type wildcardToken struct{}

// Wildcard matches any value in one index component position.
var Wildcard = wildcardToken{}

func (wildcardToken) String() string { return "*" }

// coerceToken converts a raw index token to its canonical typed form.
// Integers first, then floats, then strings with surrounding quotes
// stripped. The same rule applies to path index tokens and to index-set
// components, so lookups compare like with like.
func coerceToken(tok string) interface{} {
	tok = strings.TrimSpace(tok)
	if tok == "*" {
		return Wildcard
	}
	if i, err := strconv.Atoi(tok); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return f
	}
	if len(tok) >= 2 {
		if (tok[0] == '\'' && tok[len(tok)-1] == '\'') || (tok[0] == '"' && tok[len(tok)-1] == '"') {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

// componentString renders one index component in canonical key form.
func componentString(c interface{}) string {
	switch v := c.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case wildcardToken:
		return "*"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// String renders the index in canonical form. Composite indices are
// wrapped in parentheses with comma-separated components, so the pair
// ("Liq", "H2O") becomes "(Liq,H2O)". Scalar indices render bare.
func (ix Index) String() string {
	if len(ix) == 1 {
		return componentString(ix[0])
	}
	parts := make([]string, len(ix))
	for i, c := range ix {
		parts[i] = componentString(c)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// ParseIndexKey reverses Index.String. A parenthesized key splits into
// components on commas; anything else is a scalar index. Components are
// coerced with the standard token rule, so "(Liq,H2O)" round-trips to
// the original pair and "(0,H2O)" yields an integer first component.
func ParseIndexKey(key string) Index {
	key = strings.TrimSpace(key)
	if len(key) >= 2 && key[0] == '(' && key[len(key)-1] == ')' {
		inner := key[1 : len(key)-1]
		raw := strings.Split(inner, ",")
		ix := make(Index, 0, len(raw))
		for _, tok := range raw {
			ix = append(ix, coerceToken(tok))
		}
		return ix
	}
	return Index{coerceToken(key)}
}

// componentsEqual compares two index components, treating numerically
// equal ints and floats as equal.
func componentsEqual(a, b interface{}) bool {
	if a == b {
		return true
	}
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	return aok && bok && af == bf
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Equal reports exact component-wise equality.
func (ix Index) Equal(other Index) bool {
	if len(ix) != len(other) {
		return false
	}
	for i := range ix {
		if _, wild := ix[i].(wildcardToken); wild {
			return false
		}
		if !componentsEqual(ix[i], other[i]) {
			return false
		}
	}
	return true
}

// HasWildcard reports whether any component is the wildcard sentinel.
func (ix Index) HasWildcard() bool {
	for _, c := range ix {
		if _, ok := c.(wildcardToken); ok {
			return true
		}
	}
	return false
}

// Matches reports whether a concrete index satisfies this possibly
// wildcarded pattern. Wildcard components match anything; other
// components must be equal.
func (ix Index) Matches(concrete Index) bool {
	if len(ix) != len(concrete) {
		return false
	}
	for i := range ix {
		if _, wild := ix[i].(wildcardToken); wild {
			continue
		}
		if !componentsEqual(ix[i], concrete[i]) {
			return false
		}
	}
	return true
}
