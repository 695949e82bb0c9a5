//go:build !debug

package gdp

// checkNotBorrowed is a no-op in non-debug builds; the bookkeeping that
// feeds it (each layer's child flag) still runs, since it is cheap, but
// only a debug build pays the cost of enforcing it.
func checkNotBorrowed(layer string, childLive bool) {}
