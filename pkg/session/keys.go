package session

import (
	"github.com/aquasolve/aquasolve/pkg/engine"
)

// Composite feed-state keys are stored as canonical strings so session
// documents serialize to flat JSON maps. The rule is reversible:
//
//	("Liq","H2O")  <->  "(Liq,H2O)"
//	(0,"H2O")      <->  "(0,H2O)"
//	"H2O"          <->  "H2O"
//
// Components deserialize through the same coercion used by variable
// paths, so an integer component comes back as an integer rather than
// the string "0".

// EncodeIndexKey renders an index as its canonical string key.
func EncodeIndexKey(ix engine.Index) string {
	return ix.String()
}

// DecodeIndexKey parses a canonical string key back into an index.
func DecodeIndexKey(key string) engine.Index {
	return engine.ParseIndexKey(key)
}
