package model

import (
	"fmt"
	"sync"

	"github.com/dgvm-project/dgvm/pkg/heap"
	"github.com/dgvm-project/dgvm/pkg/instruction"
)

// Executor runs instructions against a VM's workspace. The vm package's
// *vm.VM satisfies this, letting Schema.New and Instance.Destroy emit the
// INST/DESTROY bookkeeping entries without this package importing vm.
type Executor interface {
	Execute(instructions ...*instruction.Instruction) error
}

// Schema is a registered model definition: a name and an ordered set of
// attributes. Every Instance of a Schema shares the same attribute
// layout and the same heap-path prefix, "<Name>/O/<id>/".
type Schema struct {
	Name string

	mu    sync.Mutex
	attrs map[string]*AttrDescriptor
	order []string
}

// NewSchema returns an empty Schema named name.
func NewSchema(name string) *Schema {
	return &Schema{
		Name:  name,
		attrs: make(map[string]*AttrDescriptor),
	}
}

// AddAttr registers an attribute on the schema. The name "id" is
// reserved for the implicit identifier every instance gets and cannot be
// declared directly.
func (s *Schema) AddAttr(a *AttrDescriptor) error {
	if a.Name == "id" {
		return fmt.Errorf("model: %s: attribute name %q is reserved", s.Name, a.Name)
	}
	if _, exists := s.attrs[a.Name]; exists {
		return fmt.Errorf("model: %s: attribute %q already declared", s.Name, a.Name)
	}
	if a.Kind == KindForeignModel && a.Foreign == nil {
		return fmt.Errorf("model: %s: attribute %q is a foreign-model attribute with no Foreign schema set", s.Name, a.Name)
	}
	a.ModelName = s.Name
	s.attrs[a.Name] = a
	s.order = append(s.order, a.Name)
	return nil
}

// Attr looks up a declared attribute by name.
func (s *Schema) Attr(name string) (*AttrDescriptor, bool) {
	a, ok := s.attrs[name]
	return a, ok
}

// AttrNames returns every declared attribute name in declaration order.
func (s *Schema) AttrNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// idCounterPath is the heap path backing this schema's monotonic id
// allocator.
func (s *Schema) idCounterPath() string {
	return s.Name + "/IDCOUNTER"
}

// nextID allocates the next id for this schema: the counter starts
// absent (read as 0) and the first allocated id is 1.
func (s *Schema) nextID(h *heap.Heap) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := 0
	if v, err := h.Get(s.idCounterPath()); err == nil {
		if i, ok := v.(int); ok {
			current = i
		}
	}
	next := current + 1
	if err := h.Set(s.idCounterPath(), next); err != nil {
		return 0, fmt.Errorf("model: allocating id for %s: %w", s.Name, err)
	}
	return next, nil
}

// MnemonicForm implements instruction.Mnemonizer, encoding a schema
// reference the same way the reference implementation encodes a model
// class: as a two-element form naming the kind of reference and the
// schema's name.
func (s *Schema) MnemonicForm() interface{} {
	return []interface{}{"DatamodelMeta", s.Name}
}

// GetByID returns a lazily-bound Instance for id: no heap read happens
// at this point, only when an attribute is actually read.
func (s *Schema) GetByID(h *heap.Heap, id int) *Instance {
	return &Instance{schema: s, heap: h, id: id, state: Normal}
}

// DestroyInstance implements instruction.Destroyer: it deletes every
// attribute path (and the id path) belonging to instance id, called by
// the built-in DESTROY instruction.
func (s *Schema) DestroyInstance(ctx instruction.VMContext, id int) error {
	h := ctx.Heap()
	h.Delete(fmt.Sprintf("%s/O/%d/_id", s.Name, id))
	for _, name := range s.order {
		h.Delete(s.attrs[name].path(id))
	}
	return nil
}

// New constructs a new Instance: it allocates an id, writes every
// attribute (from kwargs, a foreign-model "<name>_id" key, a nullable
// default of nil, or a declared default, in that order of preference),
// then emits the schema's INST bookkeeping instruction through reg and
// exec. Construction fails, with no INST entry emitted, if any
// non-nullable, default-less attribute is missing from kwargs; the id
// allocated for it, its "_id" path, and any attributes written before the
// missing one stay in the heap's top layer.
func (s *Schema) New(h *heap.Heap, reg *instruction.Registry, exec Executor, kwargs map[string]interface{}) (*Instance, error) {
	id, err := s.nextID(h)
	if err != nil {
		return nil, err
	}

	inst := &Instance{schema: s, heap: h, id: id, state: EngineChanging}
	if err := h.Set(fmt.Sprintf("%s/O/%d/_id", s.Name, id), id); err != nil {
		return nil, err
	}

	for _, name := range s.order {
		attr := s.attrs[name]

		if raw, ok := kwargs[name]; ok {
			if err := inst.writeAttr(attr, raw); err != nil {
				inst.state = Normal
				return nil, err
			}
			continue
		}

		if attr.Kind == KindForeignModel {
			if raw, ok := kwargs[name+"_id"]; ok {
				if err := inst.writeAttr(attr, raw); err != nil {
					inst.state = Normal
					return nil, err
				}
				continue
			}
		}

		if attr.Nullable {
			if err := h.Set(attr.path(id), nil); err != nil {
				inst.state = Normal
				return nil, err
			}
			continue
		}

		if attr.Default != nil {
			if err := inst.writeAttr(attr, attr.Default); err != nil {
				inst.state = Normal
				return nil, err
			}
			continue
		}

		inst.state = Normal
		return nil, fmt.Errorf("model: cannot instantiate %s: value for %s is required.", s.Name, name)
	}

	inst.state = Normal

	if reg != nil && exec != nil {
		instClass, ok := reg.ByMnemonic(instruction.MnemonicInstantiateModel)
		if ok {
			attrsDict := make(map[string]interface{}, len(s.order))
			for _, name := range s.order {
				v, _ := inst.heap.Get(s.attrs[name].path(id))
				attrsDict[name] = v
			}
			logInst, err := instClass.New(s, attrsDict)
			if err != nil {
				return nil, fmt.Errorf("model: building INST entry for %s: %w", s.Name, err)
			}
			if err := exec.Execute(logInst); err != nil {
				return nil, fmt.Errorf("model: logging instantiation of %s: %w", s.Name, err)
			}
		}
	}

	return inst, nil
}
