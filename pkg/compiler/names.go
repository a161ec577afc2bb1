package compiler

import "fmt"

// maxNamePrefix is the prefix length cap for condition-derived state names.
// The target IR limits state names to 80 characters; 70 plus the ellipsis
// and counter suffix stays under it.
const maxNamePrefix = 70

// nameGenerator issues unique state names per prefix within one
// compilation. It is owned by a single Compiler and never shared, so
// concurrent compilations cannot interfere with each other's numbering.
type nameGenerator struct {
	counts map[string]int
}

func newNameGenerator() *nameGenerator {
	return &nameGenerator{counts: make(map[string]int)}
}

// next returns "prefix_N" with a per-prefix monotonically increasing N.
func (g *nameGenerator) next(prefix string) string {
	g.counts[prefix]++
	return fmt.Sprintf("%s_%d", prefix, g.counts[prefix])
}

// nextTruncated caps long prefixes (condition text can be arbitrarily long)
// before suffixing.
func (g *nameGenerator) nextTruncated(prefix string) string {
	runes := []rune(prefix)
	if len(runes) > maxNamePrefix {
		prefix = string(runes[:maxNamePrefix]) + "..."
	}
	return g.next(prefix)
}
