package model

import (
	"errors"
	"fmt"

	"github.com/dgvm-project/dgvm/pkg/heap"
	"github.com/dgvm-project/dgvm/pkg/instruction"
)

// ErrDestroyed is returned by Get and Set on an instance that has already
// been destroyed.
var ErrDestroyed = errors.New("model: instance has been destroyed")

// ErrAttributeNotDeclared is returned when an attribute name isn't part
// of the instance's schema.
var ErrAttributeNotDeclared = errors.New("model: attribute not declared")

// ErrReadOnlyWrite is returned by Set when an instance is in its steady
// Normal state: attributes can only be written during construction or
// while a user instruction is executing against the instance.
var ErrReadOnlyWrite = errors.New("model: cannot set attribute outside an instruction")

// ErrIDImmutable is returned by Set for the implicit "id" attribute,
// which can never be written after construction.
var ErrIDImmutable = errors.New("model: setting the id attribute is not allowed")

// Instance is a live object of a Schema, identified by its schema and id
// and backed entirely by the versioned heap.
type Instance struct {
	schema *Schema
	heap   *heap.Heap
	id     int
	state  State
}

// Schema returns the instance's schema.
func (i *Instance) Schema() *Schema { return i.schema }

// ID returns the instance's id.
func (i *Instance) ID() int { return i.id }

// State returns the instance's current lifecycle state.
func (i *Instance) State() State { return i.state }

// MnemonicForm implements instruction.Mnemonizer, encoding an instance
// reference as [schema name, id] - how an instance argument appears
// inside a logged instruction's mnemonic form.
func (i *Instance) MnemonicForm() interface{} {
	return []interface{}{i.schema.Name, i.id}
}

// BeginUserChange implements instruction.StateTransitioner, entering the
// UserChanging state for the duration of an instruction's Execute call.
func (i *Instance) BeginUserChange() {
	i.state = UserChanging
}

// EndUserChange implements instruction.StateTransitioner, returning the
// instance to Normal once an instruction's Execute call returns.
func (i *Instance) EndUserChange() {
	if i.state != Destroyed {
		i.state = Normal
	}
}

// Get reads attr's current value. Requesting "id" always succeeds and
// returns the instance's id, even on a destroyed instance - the id
// itself outlives the attribute data it's paired with.
func (i *Instance) Get(attr string) (interface{}, error) {
	if attr == "id" {
		return i.id, nil
	}
	if i.state == Destroyed {
		return nil, ErrDestroyed
	}
	descriptor, ok := i.schema.Attr(attr)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrAttributeNotDeclared, i.schema.Name, attr)
	}

	v, err := i.heap.Get(descriptor.path(i.id))
	if err != nil {
		if descriptor.Nullable {
			return nil, nil
		}
		return nil, err
	}

	if descriptor.Kind == KindForeignModel {
		id, _ := v.(int)
		return descriptor.Foreign.GetByID(i.heap, id), nil
	}
	return v, nil
}

// Set writes value to attr, subject to the instance's current lifecycle
// state:
//
//   - Normal: always rejected with ErrReadOnlyWrite; attributes are only
//     writable during construction/destruction or mid-instruction.
//   - UserChanging: value is coerced, run through attr's constraint
//     Collection (related attribute values are read fresh via Get), and
//     written only if every constraint passes.
//   - EngineChanging: value is coerced and written directly, with no
//     constraint validation - the state Schema.New holds a new instance
//     in while it writes the initial attributes.
//   - Destroyed: always rejected with ErrDestroyed.
func (i *Instance) Set(attr string, value interface{}) error {
	if attr == "id" {
		return ErrIDImmutable
	}

	switch i.state {
	case Normal:
		return ErrReadOnlyWrite
	case Destroyed:
		return ErrDestroyed
	case UserChanging:
		descriptor, ok := i.schema.Attr(attr)
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrAttributeNotDeclared, i.schema.Name, attr)
		}
		coerced, err := descriptor.coerce(value)
		if err != nil {
			return err
		}
		if descriptor.Constraints != nil {
			oldValue, _ := i.Get(attr)
			related := i.relatedValues(descriptor)
			if err := descriptor.Constraints.Validate(oldValue, coerced, related); err != nil {
				return err
			}
		}
		return i.heap.Set(descriptor.path(i.id), coerced)
	case EngineChanging:
		return i.writeAttr(i.mustAttr(attr), value)
	default:
		return fmt.Errorf("model: instance in unknown state %v", i.state)
	}
}

func (i *Instance) mustAttr(name string) *AttrDescriptor {
	a, _ := i.schema.Attr(name)
	return a
}

// writeAttr coerces and writes value directly, bypassing constraint
// validation. Used by Schema.New (state EngineChanging during
// construction) regardless of the instance's current state, since
// construction always writes attributes before the instance is fully
// live.
func (i *Instance) writeAttr(a *AttrDescriptor, value interface{}) error {
	coerced, err := a.coerce(value)
	if err != nil {
		return err
	}
	return i.heap.Set(a.path(i.id), coerced)
}

func (i *Instance) relatedValues(a *AttrDescriptor) map[string]interface{} {
	names := a.Constraints.RelatedNames()
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(names))
	for _, name := range names {
		v, _ := i.Get(name)
		out[name] = v
	}
	return out
}

// DataDict renders the instance as a plain map, suitable for JSON encoding
// or human inspection: a "class" naming the schema and an "attributes"
// list, one entry per attribute plus the implicit id. Each entry carries
// the attribute's Kind as "class", its name, and its current value.
//
// A ForeignModel attribute whose value resolves to a live Instance is
// special-cased: with unwrap false (the default) it renders as
// "<name>_id" holding the referenced instance's bare id and a "class" of
// the referenced schema's name; with unwrap true it renders under the
// attribute's own name holding that instance's own DataDict, recursively.
func (i *Instance) DataDict(unwrap bool) map[string]interface{} {
	attrs := make([]map[string]interface{}, 0, len(i.schema.order)+1)
	attrs = append(attrs, map[string]interface{}{
		"class": "ID",
		"name":  "id",
		"value": i.id,
	})

	for _, name := range i.schema.order {
		descriptor := i.schema.attrs[name]
		val, _ := i.Get(name)

		if ref, ok := val.(*Instance); ok {
			if unwrap {
				attrs = append(attrs, map[string]interface{}{
					"class": descriptor.Kind.String(),
					"name":  name,
					"value": ref.DataDict(true),
				})
				continue
			}
			attrs = append(attrs, map[string]interface{}{
				"class": ref.schema.Name,
				"name":  name + "_id",
				"value": ref.id,
			})
			continue
		}

		attrs = append(attrs, map[string]interface{}{
			"class": descriptor.Kind.String(),
			"name":  name,
			"value": val,
		})
	}

	return map[string]interface{}{
		"class":      i.schema.Name,
		"attributes": attrs,
	}
}

// Destroy executes the schema's DESTROY instruction (deleting every
// attribute path) and transitions the instance to Destroyed. After
// Destroy returns successfully, every subsequent Get except "id" and
// every Set fails.
func (i *Instance) Destroy(reg *instruction.Registry, exec Executor) error {
	if i.state == Destroyed {
		return ErrDestroyed
	}

	if reg != nil && exec != nil {
		destroyClass, ok := reg.ByMnemonic(instruction.MnemonicDestroyInstance)
		if ok {
			inst, err := destroyClass.New(i.schema, i.id)
			if err != nil {
				return fmt.Errorf("model: building DESTROY entry for %s: %w", i.schema.Name, err)
			}
			if err := exec.Execute(inst); err != nil {
				return fmt.Errorf("model: destroying %s/%d: %w", i.schema.Name, i.id, err)
			}
		}
	}

	i.state = Destroyed
	return nil
}
