// Package constraint implements on-change validation for model attribute
// writes: a named predicate that inspects an attribute's old value, the
// value it's about to become, and a set of related attribute values, and
// either allows the write or raises a ConstraintViolation.
//
// Constraints are grouped into a Collection attached to an attribute.
// Collection.Validate runs every constraint in registration order and
// stops at the first one whose predicate returns false - the same
// "first failing constraint wins" contract a model's attribute setter
// relies on to decide whether a write is legal.
package constraint

import "fmt"

// Predicate inspects an attribute change and reports whether it is
// allowed. oldValue is the attribute's current value, newValue is the
// value about to be written, and related holds the current values of any
// attributes the constraint was declared to depend on, keyed by
// attribute name.
type Predicate func(oldValue, newValue interface{}, related map[string]interface{}) bool

// Constraint is a single named on-change validator.
type Constraint struct {
	Name      string
	Related   []string
	Predicate Predicate
}

// String renders the constraint's name, the same text a ConstraintViolation
// carries when this constraint is the one that failed.
func (c *Constraint) String() string {
	return c.Name
}

// Violation reports that a Collection rejected an attribute write because
// a named constraint's predicate returned false.
type Violation struct {
	Constraint string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("constraint violation: %s", v.Constraint)
}

// Collection is an ordered set of constraints guarding a single attribute.
type Collection struct {
	constraints []*Constraint
}

// NewCollection returns an empty Collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends a constraint to the end of the collection's evaluation
// order.
func (cc *Collection) Add(c *Constraint) {
	cc.constraints = append(cc.constraints, c)
}

// Len returns the number of constraints in the collection.
func (cc *Collection) Len() int {
	return len(cc.constraints)
}

// RelatedNames returns the deduplicated union of every constraint's
// Related attribute names, in first-seen order. Callers use this to know
// which sibling attribute values to gather before calling Validate.
func (cc *Collection) RelatedNames() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range cc.constraints {
		for _, name := range c.Related {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// Validate runs every constraint's predicate in registration order and
// returns a *Violation naming the first one whose predicate returns
// false, or nil if every constraint passes.
func (cc *Collection) Validate(oldValue, newValue interface{}, related map[string]interface{}) error {
	for _, c := range cc.constraints {
		if !c.Predicate(oldValue, newValue, related) {
			return &Violation{Constraint: c.Name}
		}
	}
	return nil
}
