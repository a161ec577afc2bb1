package compiler

import "strings"

// variableRegistry accumulates every flattened variable name seen while
// lowering conditions and parameters, together with a demo value range used
// to synthesize a runnable external-input template. Scoped to one
// compilation; never shared across Compiler instances.
type variableRegistry struct {
	ranges map[string]interface{}
}

func newVariableRegistry() *variableRegistry {
	return &variableRegistry{ranges: make(map[string]interface{})}
}

// register records a flattened variable with a demo value range. An existing
// non-nil range is kept; a nil placeholder may be upgraded later.
func (r *variableRegistry) register(name string, valueRange interface{}) {
	if existing, ok := r.ranges[name]; ok && existing != nil {
		return
	}
	r.ranges[name] = valueRange
}

// matching returns every registered name equal to, or a dotted-prefix
// sub-field of, the given flattened variable ("v" matches "v" and "v_id"
// but not "value").
func (r *variableRegistry) matching(name string) map[string]interface{} {
	out := make(map[string]interface{})
	prefix := name + "_"
	for k, v := range r.ranges {
		if k == name || strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}

// remaining returns the registered variables not in the produced set; these
// were never internally assigned and must come from the caller's input.
func (r *variableRegistry) remaining(produced map[string]struct{}) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range r.ranges {
		if _, ok := produced[k]; !ok {
			out[k] = v
		}
	}
	return out
}
