// registry.go - Layer-Factory: eingebaute + benutzerdefinierte Typen
//
// Die Registry bildet einen stabilen Integer-Typindex (eingebaut) oder
// einen Typnamen (benutzerdefiniert) auf eine Konstruktorfunktion ab.
// Benutzerdefinierte Typen tragen CustomBit, damit ihre Indizes nicht
// mit eingebauten Indizes kollidieren koennen.
package layer

import (
	"fmt"
	"log/slog"
)

// Creator constructs a fresh, zero-value Layer instance ready for LoadParam.
type Creator func() Layer

// Built-in type indices, stable across releases.
const (
	TypeInput uint32 = iota
	TypeScale
	TypeEltwise
	TypeInnerProduct
	TypeSigmoid
	TypeReLU
)

var builtinNames = map[uint32]string{
	TypeInput:        "Input",
	TypeScale:        "Scale",
	TypeEltwise:      "Eltwise",
	TypeInnerProduct: "InnerProduct",
	TypeSigmoid:      "Sigmoid",
	TypeReLU:         "ReLU",
}

// Registry is the polymorphic layer factory: built-in types plus any
// user-registered custom types.
type Registry struct {
	builtin    map[uint32]Creator
	customByName map[string]uint32
	customByIdx  map[uint32]Creator
	nextCustom   uint32
}

// NewRegistry returns a Registry pre-populated with the built-in layer set.
func NewRegistry() *Registry {
	r := &Registry{
		builtin:      make(map[uint32]Creator),
		customByName: make(map[string]uint32),
		customByIdx:  make(map[uint32]Creator),
	}
	r.builtin[TypeInput] = func() Layer { return NewInput() }
	r.builtin[TypeScale] = func() Layer { return NewScale() }
	r.builtin[TypeEltwise] = func() Layer { return NewEltwise() }
	r.builtin[TypeInnerProduct] = func() Layer { return NewInnerProduct() }
	r.builtin[TypeSigmoid] = func() Layer { return NewSigmoid() }
	r.builtin[TypeReLU] = func() Layer { return NewReLU() }
	return r
}

// RegisterCustom registers a user layer type under name, assigning it
// the next free CustomBit|n index. Registering the same name twice
// overwrites the previous creator and logs a warning. Registering a
// name that collides with a built-in type name is rejected.
func (r *Registry) RegisterCustom(name string, creator Creator) (uint32, error) {
	for _, builtinName := range builtinNames {
		if builtinName == name {
			return 0, fmt.Errorf("layer: %q is a built-in type name, cannot be overridden", name)
		}
	}

	if idx, ok := r.customByName[name]; ok {
		slog.Warn("overwriting previously registered custom layer", "name", name, "index", idx)
		r.customByIdx[idx] = creator
		return idx, nil
	}

	idx := CustomBit | r.nextCustom
	r.nextCustom++
	r.customByName[name] = idx
	r.customByIdx[idx] = creator
	return idx, nil
}

// RegisterCustomAt registers a user layer type at an explicit custom
// index (CustomBit must already be set by the caller).
func (r *Registry) RegisterCustomAt(index uint32, name string, creator Creator) error {
	if index&CustomBit == 0 {
		return fmt.Errorf("layer: explicit custom index 0x%x missing CustomBit", index)
	}
	r.customByIdx[index] = creator
	if name != "" {
		r.customByName[name] = index
	}
	return nil
}

// ByIndex constructs a layer for a built-in or custom type index.
func (r *Registry) ByIndex(index uint32) (Layer, bool) {
	if index&CustomBit != 0 {
		if c, ok := r.customByIdx[index]; ok {
			return c(), true
		}
		return nil, false
	}
	if c, ok := r.builtin[index]; ok {
		return c(), true
	}
	return nil, false
}

// ByName resolves a textual type name (built-in or custom) to a
// freshly constructed layer and its index.
func (r *Registry) ByName(name string) (Layer, uint32, bool) {
	for idx, builtinName := range builtinNames {
		if builtinName == name {
			l, _ := r.ByIndex(idx)
			return l, idx, true
		}
	}
	if idx, ok := r.customByName[name]; ok {
		l, _ := r.ByIndex(idx)
		return l, idx, true
	}
	return nil, 0, false
}
