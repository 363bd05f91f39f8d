// Package nodemap provides a lazy cache in front of a type-layout
// provider, so repeated lookups of the same type id don't re-query
// the provider.
package nodemap

// Layout is the struct shape a type id resolves to: the data-section
// word count and pointer-section count the wire format needs to lay
// a value of that type out, the same information a generated
// accessor's _typeSchema constant would carry.
type Layout struct {
	DataWords    uint16
	PointerCount uint16
}

// Provider resolves a type id to its Layout. It is the seam between
// this cache and whatever supplies schema information — a compiled-
// in schema, a runtime registry, or (in tests) a fixed table.
type Provider interface {
	Layout(typeID uint64) (Layout, error)
}

// Map is a lazy cache of Provider lookups, keyed by type id. The zero
// value is not usable; construct with New.
type Map struct {
	provider Provider
	cache    map[uint64]Layout
}

// New returns a Map that lazily caches lookups against p.
func New(p Provider) *Map {
	return &Map{provider: p, cache: make(map[uint64]Layout)}
}

// Find returns the Layout for id, querying the provider and caching
// the result on first access.
func (m *Map) Find(id uint64) (Layout, error) {
	if l, ok := m.cache[id]; ok {
		return l, nil
	}
	l, err := m.provider.Layout(id)
	if err != nil {
		return Layout{}, err
	}
	m.cache[id] = l
	return l, nil
}

// Forget evicts id from the cache, for a provider whose answer for id
// can change (e.g. a registry that just loaded a new schema file).
func (m *Map) Forget(id uint64) { delete(m.cache, id) }
