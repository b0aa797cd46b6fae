package model

import (
	"fmt"

	"github.com/dgvm-project/dgvm/pkg/constraint"
	"github.com/dgvm-project/dgvm/pkg/convert"
)

// Kind identifies an attribute's storage shape and coercion rules.
type Kind int

const (
	// KindID is reserved for the implicit id attribute every Schema
	// gets; it is never declared directly and can never be Set.
	KindID Kind = iota
	KindInt
	KindString
	KindFloat
	KindBool
	// KindList stores a []interface{} with no element coercion.
	KindList
	KindPair
	KindTrio
	KindQuartet
	KindQuintet
	KindSextet
	// KindForeignModel stores another Schema's instance id and resolves
	// reads through that Schema's GetByID.
	KindForeignModel
)

// String names a Kind the way DataDict reports an attribute's class.
func (k Kind) String() string {
	switch k {
	case KindID:
		return "ID"
	case KindInt:
		return "Integer"
	case KindString:
		return "String"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Boolean"
	case KindList:
		return "List"
	case KindPair:
		return "Pair"
	case KindTrio:
		return "Trio"
	case KindQuartet:
		return "Quartet"
	case KindQuintet:
		return "Quintet"
	case KindSextet:
		return "Sextet"
	case KindForeignModel:
		return "ForeignModel"
	default:
		return "unknown"
	}
}

// arity returns the expected tuple length for the Pair..Sextet kinds, or
// zero for every other kind.
func (k Kind) arity() int {
	switch k {
	case KindPair:
		return 2
	case KindTrio:
		return 3
	case KindQuartet:
		return 4
	case KindQuintet:
		return 5
	case KindSextet:
		return 6
	default:
		return 0
	}
}

// AttrDescriptor describes one attribute of a Schema: its type, whether
// it may be null, its default, and the constraints that guard writes to
// it once an instance exists.
type AttrDescriptor struct {
	Name      string
	ModelName string
	Kind      Kind
	Nullable  bool
	Default   interface{}
	// Foreign names the Schema this attribute references, required when
	// Kind is KindForeignModel.
	Foreign *Schema
	// Constraints is consulted before every write made while an
	// instance is in the UserChanging state. A nil Constraints behaves
	// like an empty Collection.
	Constraints *constraint.Collection
}

// path returns the heap path this attribute resolves to for a given
// instance id.
func (a *AttrDescriptor) path(id int) string {
	return fmt.Sprintf("%s/O/%d/%s", a.ModelName, id, a.Name)
}

// coerce converts value to the attribute's canonical Go representation,
// or returns an error if value does not fit the attribute's Kind.
func (a *AttrDescriptor) coerce(value interface{}) (interface{}, error) {
	if value == nil {
		if a.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("model: attribute %s.%s is not nullable", a.ModelName, a.Name)
	}

	switch a.Kind {
	case KindInt:
		i, ok := convert.ToInt64(value)
		if !ok {
			return nil, fmt.Errorf("model: attribute %s.%s expects an int, got %T", a.ModelName, a.Name, value)
		}
		return int(i), nil
	case KindFloat:
		f, ok := convert.ToFloat64(value)
		if !ok {
			return nil, fmt.Errorf("model: attribute %s.%s expects a float, got %T", a.ModelName, a.Name, value)
		}
		return f, nil
	case KindString:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("model: attribute %s.%s expects a string, got %T", a.ModelName, a.Name, value)
		}
		return s, nil
	case KindBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("model: attribute %s.%s expects a bool, got %T", a.ModelName, a.Name, value)
		}
		return b, nil
	case KindList:
		return value, nil
	case KindPair, KindTrio, KindQuartet, KindQuintet, KindSextet:
		if tup, ok := value.(Tuple); ok {
			if tup.Len() != a.Kind.arity() {
				return nil, fmt.Errorf("model: attribute %s.%s expects arity %d, got %d", a.ModelName, a.Name, a.Kind.arity(), tup.Len())
			}
			return tup, nil
		}
		vals, ok := convert.ToTupleSlice(value, a.Kind.arity())
		if !ok {
			return nil, fmt.Errorf("model: attribute %s.%s expects a %d-tuple, got %T", a.ModelName, a.Name, a.Kind.arity(), value)
		}
		return NewTuple(vals...), nil
	case KindForeignModel:
		// Only the referenced id is ever stored in the heap; Get
		// re-resolves it into an *Instance on every read via
		// Schema.GetByID, the same lazy lookup the reference
		// implementation performs.
		if inst, ok := value.(*Instance); ok {
			return inst.id, nil
		}
		if id, ok := convert.ToInt64(value); ok {
			return int(id), nil
		}
		foreignName := "<unconfigured>"
		if a.Foreign != nil {
			foreignName = a.Foreign.Name
		}
		return nil, fmt.Errorf("model: attribute %s.%s expects a %s instance or id, got %T", a.ModelName, a.Name, foreignName, value)
	default:
		return nil, fmt.Errorf("model: attribute %s.%s has unknown kind", a.ModelName, a.Name)
	}
}
