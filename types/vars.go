package types

// Vars is the open variable mapping flowing through renders and resolves: a
// string-keyed tree of JSON-shaped values (nil, bool, float64, string,
// []any, map[string]any). Values decoded from request bodies and pipeline
// documents arrive in exactly this shape.
type Vars map[string]any

// MergeVars overlays the given maps left to right, later maps overriding
// earlier ones when keys conflict. The inputs are never mutated; the result
// is always a fresh map.
func MergeVars(layers ...Vars) Vars {
	result := make(Vars)
	for _, layer := range layers {
		for k, v := range layer {
			result[k] = v
		}
	}
	return result
}

// Clone returns a shallow copy of the mapping. A nil receiver yields an
// empty, usable map.
func (v Vars) Clone() Vars {
	out := make(Vars, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Lookup reports the value bound to name and whether the binding exists.
// A key bound to an explicit null reports present with a nil value.
func (v Vars) Lookup(name string) (any, bool) {
	val, ok := v[name]
	return val, ok
}
