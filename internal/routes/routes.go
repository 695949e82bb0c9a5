// Package routes loads the static routes file a gdp-router node bootstraps
// its forwarding table from before any port-queue worker starts (spec §6).
package routes

import (
	"fmt"
	"net/netip"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dantte-lp/gdp-router/internal/gdp"
	"github.com/dantte-lp/gdp-router/internal/store"
)

// Entry is one static route: a name bound to a next-hop address.
type Entry struct {
	Name string `koanf:"name"`
	Addr string `koanf:"addr"`
}

// File is the parsed contents of a static routes YAML file.
type File struct {
	Routes       []Entry `koanf:"routes"`
	DefaultRoute string  `koanf:"default_route"`
}

// Load reads and parses the routes file at path, using the same koanf/yaml
// loading path as internal/config.
func Load(path string) (*File, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("routes: read %s: %w", path, err)
	}

	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("routes: parse %s: %w", path, err)
	}

	return &f, nil
}

// Bootstrap parses every entry in f and inserts it into st with an infinite
// TTL, so static routes are never evicted by the active-expiry task (spec
// §6: "entries are inserted... with TTL = infinite before worker start").
func (f *File) Bootstrap(st *store.Store) error {
	for _, e := range f.Routes {
		name, err := gdp.ParseName(e.Name)
		if err != nil {
			return fmt.Errorf("routes: entry %q: %w", e.Name, err)
		}
		addr, err := netip.ParseAddr(e.Addr)
		if err != nil {
			return fmt.Errorf("routes: entry %q: parse addr %q: %w", e.Name, e.Addr, err)
		}
		st.Insert(name, addr, store.Infinite)
	}
	return nil
}

// DefaultAddr parses the file's default_route field. The second return
// value is false if no default route is configured or it does not parse.
// The switch pipeline does not consult the default route.
func (f *File) DefaultAddr() (netip.Addr, bool) {
	if f.DefaultRoute == "" {
		return netip.Addr{}, false
	}
	addr, err := netip.ParseAddr(f.DefaultRoute)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr, true
}
