package capnp

import "github.com/kwohlfahrt/ecapnp/internal/nodemap"

// SchemaProvider is the external collaborator that knows the wire
// layout a type id requires and the method metadata an interface id
// advertises. This package never compiles a .capnp schema itself —
// that is out of scope — it only consumes whatever implements this
// contract, the way a generated accessor layer would if one existed.
type SchemaProvider interface {
	// StructLayout returns the data/pointer section sizes a value of
	// typeID must be allocated with.
	StructLayout(typeID uint64) (ObjectSize, error)
	// Method returns the human-readable name of a method, for
	// logging and debug output. Implementations that don't need
	// names may return "".
	Method(interfaceID uint64, methodID uint16) (string, error)
}

// schemaProviderAdapter bridges SchemaProvider to the
// internal/nodemap.Provider contract, so a SchemaProvider's struct
// layout lookups get the same lazy cache other users of nodemap.Map
// get, without nodemap needing to import this package.
type schemaProviderAdapter struct{ SchemaProvider }

func (a schemaProviderAdapter) Layout(typeID uint64) (nodemap.Layout, error) {
	sz, err := a.StructLayout(typeID)
	if err != nil {
		return nodemap.Layout{}, err
	}
	return nodemap.Layout{DataWords: uint16(sz.dataWordCount()), PointerCount: sz.PointerCount}, nil
}

// SchemaCache is a lazy, cached view of a SchemaProvider's struct
// layouts.
type SchemaCache struct {
	provider SchemaProvider
	m        *nodemap.Map
}

// NewSchemaCache wraps p with a lookup cache.
func NewSchemaCache(p SchemaProvider) *SchemaCache {
	return &SchemaCache{provider: p, m: nodemap.New(schemaProviderAdapter{p})}
}

// Layout returns the ObjectSize to allocate for typeID.
func (c *SchemaCache) Layout(typeID uint64) (ObjectSize, error) {
	l, err := c.m.Find(typeID)
	if err != nil {
		return ObjectSize{}, err
	}
	return ObjectSize{DataSize: wordSize.timesUnchecked(int32(l.DataWords)), PointerCount: l.PointerCount}, nil
}

// MethodName returns the name of interfaceID's methodID, or "" if the
// provider has none or returns an error.
func (c *SchemaCache) MethodName(interfaceID uint64, methodID uint16) string {
	name, err := c.provider.Method(interfaceID, methodID)
	if err != nil {
		return ""
	}
	return name
}

// Method identifies a single RPC method by its interface and method
// ids, the pair a Call message's target names.
type Method struct {
	InterfaceID uint64
	MethodID    uint16
}
