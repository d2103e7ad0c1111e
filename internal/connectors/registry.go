package connectors

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves connectors by name. It is populated once at startup.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry() *Registry {
	return &Registry{connectors: map[string]Connector{}}
}

func (r *Registry) Register(c Connector) error {
	if c == nil {
		return fmt.Errorf("connector is required")
	}
	name := normalizeName(c.Name())
	if name == "" {
		return fmt.Errorf("connector name is required")
	}
	if _, exists := r.connectors[name]; exists {
		return fmt.Errorf("connector %q already registered", name)
	}
	r.connectors[name] = c
	return nil
}

func (r *Registry) Get(name string) (Connector, bool) {
	c, ok := r.connectors[normalizeName(name)]
	return c, ok
}

// Names lists registered connectors in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.connectors))
	for name := range r.connectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
