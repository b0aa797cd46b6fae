// Package treect implements a path-addressed nested associative structure,
// the storage unit underneath the versioned heap (see package heap).
//
// A Treect is a tree of nested Treects addressed by "/"-delimited string
// paths, the way a filesystem addresses nested directories. Reading or
// writing "Tank/O/3/health" walks down through a "Tank" child, an "O"
// child, a "3" child, and finally sets "health" on that innermost node,
// creating any missing intermediate nodes along the way. A key that isn't
// a string - an int, for instance - is never split and is stored as a
// single atomic entry, string-valued or not.
//
// Treect is not safe for concurrent use; callers that need concurrent
// access (package heap) provide their own locking around it.
package treect

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrKeyNotFound is returned when a lookup path does not resolve to a
// stored value.
var ErrKeyNotFound = errors.New("treect: key not found")

// Treect is a nested, path-addressable associative structure.
type Treect struct {
	data map[interface{}]interface{}
}

// New returns an empty Treect.
func New() *Treect {
	return &Treect{data: make(map[interface{}]interface{})}
}

// FromMap builds a Treect from a nested map[string]interface{}, recursing
// into any nested map[string]interface{} values.
func FromMap(m map[string]interface{}) *Treect {
	t := New()
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			t.data[k] = FromMap(nested)
			continue
		}
		t.data[k] = v
	}
	return t
}

// Get resolves key against the tree. A string key is split on "/" and
// walked through nested Treects; any other key type is looked up as a
// single atomic entry in the current node. Returns ErrKeyNotFound if any
// segment of the path is absent.
func (t *Treect) Get(key interface{}) (interface{}, error) {
	s, ok := key.(string)
	if !ok {
		v, present := t.data[key]
		if !present {
			return nil, ErrKeyNotFound
		}
		return v, nil
	}

	segments := strings.Split(s, "/")
	if len(segments) == 1 {
		v, present := t.data[s]
		if !present {
			return nil, ErrKeyNotFound
		}
		return v, nil
	}

	node := t
	for i, seg := range segments {
		v, present := node.data[seg]
		if !present {
			return nil, ErrKeyNotFound
		}
		if i == len(segments)-1 {
			return v, nil
		}
		child, ok := v.(*Treect)
		if !ok {
			return nil, ErrKeyNotFound
		}
		node = child
	}
	return nil, ErrKeyNotFound
}

// GetOr is like Get but returns def instead of an error when key is
// absent.
func (t *Treect) GetOr(key interface{}, def interface{}) interface{} {
	v, err := t.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Set stores value at key, creating any missing intermediate Treects
// along a "/"-delimited string path. Non-string keys are stored as a
// single atomic entry in the current node, unsplit.
func (t *Treect) Set(key interface{}, value interface{}) {
	s, ok := key.(string)
	if !ok {
		t.data[key] = value
		return
	}

	segments := strings.Split(s, "/")
	if len(segments) == 1 {
		t.data[s] = value
		return
	}

	node := t
	for _, seg := range segments[:len(segments)-1] {
		v, present := node.data[seg]
		if !present {
			child := New()
			node.data[seg] = child
			node = child
			continue
		}
		child, ok := v.(*Treect)
		if !ok {
			child = New()
			node.data[seg] = child
		}
		node = child
	}
	node.data[segments[len(segments)-1]] = value
}

// Delete removes key from the tree, walking a "/"-delimited string path
// the same way Set does. Deleting an absent key is a no-op.
func (t *Treect) Delete(key interface{}) {
	s, ok := key.(string)
	if !ok {
		delete(t.data, key)
		return
	}

	segments := strings.Split(s, "/")
	if len(segments) == 1 {
		delete(t.data, s)
		return
	}

	node := t
	for _, seg := range segments[:len(segments)-1] {
		v, present := node.data[seg]
		if !present {
			return
		}
		child, ok := v.(*Treect)
		if !ok {
			return
		}
		node = child
	}
	delete(node.data, segments[len(segments)-1])
}

// Contains reports whether key resolves to a stored value.
func (t *Treect) Contains(key interface{}) bool {
	_, err := t.Get(key)
	return err == nil
}

// Len returns the number of direct entries in this node, not counting
// entries nested under child Treects.
func (t *Treect) Len() int {
	return len(t.data)
}

// KV is a single path/value pair as returned by AllItems.
type KV struct {
	Path  string
	Value interface{}
}

// Items returns the direct (non-recursive) key/value pairs of this node.
// Keys are returned as stored; a non-string key keeps its original type.
func (t *Treect) Items() map[interface{}]interface{} {
	out := make(map[interface{}]interface{}, len(t.data))
	for k, v := range t.data {
		out[k] = v
	}
	return out
}

// AllItems flattens the tree into a slice of fully-qualified path/value
// pairs, recursing into every nested Treect. Non-string keys are rendered
// via fmt-style default formatting when building their path segment.
// Results are sorted by path for deterministic iteration, since Go maps
// have no defined order.
func (t *Treect) AllItems() []KV {
	var out []KV
	t.collect(nil, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (t *Treect) collect(prefix []string, out *[]KV) {
	for k, v := range t.data {
		seg := keySegment(k)
		if child, ok := v.(*Treect); ok {
			child.collect(append(prefix, seg), out)
			continue
		}
		*out = append(*out, KV{Path: strings.Join(append(prefix, seg), "/"), Value: v})
	}
}

func keySegment(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// ToMap converts the tree into a nested map[string]interface{}, recursing
// into child Treects. Non-string keys are rendered as their default
// string form, the same as AllItems.
func (t *Treect) ToMap() map[string]interface{} {
	out := make(map[string]interface{}, len(t.data))
	for k, v := range t.data {
		seg := keySegment(k)
		if child, ok := v.(*Treect); ok {
			out[seg] = child.ToMap()
			continue
		}
		out[seg] = v
	}
	return out
}

// Dump writes one line per flattened path/value pair to w, each path
// padded out to a fixed column before its value - a quick-and-dirty
// alignment meant for a terminal or log file, not machine parsing.
func (t *Treect) Dump(w io.Writer) error {
	for _, kv := range t.AllItems() {
		if _, err := fmt.Fprintf(w, "%s%s%v\n", kv.Path, dumpPadding(kv.Path), kv.Value); err != nil {
			return err
		}
	}
	return nil
}

// dumpPadding returns the spaces needed to align a dumped value onto
// column 80, with at least one space between a long path and its value.
func dumpPadding(path string) string {
	n := 80 - len(path)
	if n < 1 {
		n = 1
	}
	return strings.Repeat(" ", n)
}

// Equal reports whether t and other contain the same direct entries,
// recursing structurally into nested Treects. Two Treects are equal when
// they have the same number of entries and every key in t maps to an
// equal value in other.
func (t *Treect) Equal(other *Treect) bool {
	if other == nil {
		return false
	}
	if len(t.data) != len(other.data) {
		return false
	}
	for k, v := range t.data {
		ov, present := other.data[k]
		if !present {
			return false
		}
		if childA, ok := v.(*Treect); ok {
			childB, ok := ov.(*Treect)
			if !ok || !childA.Equal(childB) {
				return false
			}
			continue
		}
		if v != ov {
			return false
		}
	}
	return true
}
