//go:build debug

package gdp

import "fmt"

// checkNotBorrowed panics if a parent layer view is about to be mutated (by
// building a second child view over it) while an earlier child view is
// still live. Each layer's own offset is cached at construction time; a
// second child built over the same parent grows the parent's payload
// region out from under the first child's cached offset, silently
// corrupting it. Only compiled into debug builds (spec §9).
func checkNotBorrowed(layer string, childLive bool) {
	if childLive {
		panic(fmt.Sprintf("gdp: %s view mutated while a child view is still live", layer))
	}
}
