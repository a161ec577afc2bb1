package jsonata

import (
	"regexp"
	"strings"
)

// singleVarRef matches a block holding exactly one variable reference,
// e.g. "{% $order.id %}".
var singleVarRef = regexp.MustCompile(`^\{\%\s*\$([a-zA-Z_][\w.]*)\s*\%\}$`)

// wrapped matches any {% ... %} expression block.
var wrapped = regexp.MustCompile(`^\{\%.*\%\}$`)

// innerVar matches $-prefixed variable names inside a block.
var innerVar = regexp.MustCompile(`\$([a-zA-Z_][\w.]*)`)

// ParseVarRef returns the dotted variable name when s is exactly one
// {% $name %} reference, and reports whether it matched.
func ParseVarRef(s string) (string, bool) {
	m := singleVarRef.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsWrapped reports whether s is a {% ... %} expression block.
func IsWrapped(s string) bool {
	return wrapped.MatchString(strings.TrimSpace(s))
}

// Vars returns every dotted variable name referenced in s, in order.
func Vars(s string) []string {
	var names []string
	for _, m := range innerVar.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// Flatten converts a dotted variable name into its state-machine-namespace
// identifier. The target IR has no nested assignment targets, so a.b.c
// becomes a_b_c.
func Flatten(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// FlattenRefs rewrites every $a.b reference inside s to its flattened form.
// The {% %} wrapper and any surrounding literal text are preserved.
func FlattenRefs(s string) string {
	return innerVar.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ReplaceAll(m, ".", "_")
	})
}

// RootName returns the top-level variable of a dotted name (a.b.c -> a).
func RootName(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
