// Package heap implements the versioned heap: a stack of Treect layers
// addressed by path, where each layer is a checkpoint that can be
// committed, reverted, or flattened ("collapsed") back into a single
// layer.
//
// Reads resolve top-down: the most recently checked-out layer that has an
// entry for a path wins, whether that entry is a live value or a
// tombstone recording a delete. Writes always land in the top layer,
// leaving every layer below untouched - that's what makes Checkpoint and
// Revert cheap: a checkpoint is just pushing a fresh empty layer, and a
// revert is popping it back off.
package heap

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dgvm-project/dgvm/pkg/treect"
)

// ErrNoCheckpoint is returned by Revert when the heap has no checkpoint
// layer above its base layer.
var ErrNoCheckpoint = errors.New("heap: cannot revert, no checkpoints found")

// ErrInvalidKeyType is returned by Set when the given key is neither a
// string nor an int.
var ErrInvalidKeyType = errors.New("heap: address must be of type int or string")

// ErrCheckpointLimit is returned by Checkpoint when the configured
// checkpoint limit would be exceeded.
var ErrCheckpointLimit = errors.New("heap: checkpoint limit exceeded")

// ErrNotFound is returned by Get when a path has no live value in any
// layer, either because it was never set or because the topmost layer
// that mentions it holds a tombstone.
var ErrNotFound = errors.New("heap: key not found")

// tombstoneType is the sentinel stored in place of a deleted value. A
// single package-level instance, tombstone, is the only value of this
// type; Get treats any layer holding it as "deleted here", which shadows
// a live value in a layer below without having to touch that layer.
type tombstoneType struct{}

func (tombstoneType) String() string { return "<heap.Tombstone>" }

// Tombstone marks a path as deleted in a given layer.
var Tombstone = tombstoneType{}

// Heap is a versioned, path-addressed key/value store.
type Heap struct {
	mu              sync.RWMutex
	layers          []*treect.Treect
	sizeHint        int
	checkpointLimit int
}

// New returns a Heap with a single base layer. sizeHint is an expected
// entry count used only to compute PercentUsed; it is not an enforced
// capacity. checkpointLimit caps how many checkpoint layers (above the
// base layer) may be open at once; zero means unlimited.
func New(sizeHint, checkpointLimit int) *Heap {
	return &Heap{
		layers:          []*treect.Treect{treect.New()},
		sizeHint:        sizeHint,
		checkpointLimit: checkpointLimit,
	}
}

// Get resolves path by scanning layers from the most recent to the
// oldest, returning the first layer's entry for path: a live value, or
// ErrNotFound if that entry is a tombstone. If no layer mentions path at
// all, Get also returns ErrNotFound.
func (h *Heap) Get(path interface{}) (interface{}, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.layers) - 1; i >= 0; i-- {
		v, err := h.layers[i].Get(path)
		if err != nil {
			continue
		}
		if v == Tombstone {
			return nil, ErrNotFound
		}
		return v, nil
	}
	return nil, ErrNotFound
}

// GetOr is like Get but returns def instead of an error when path has no
// live value.
func (h *Heap) GetOr(path interface{}, def interface{}) interface{} {
	v, err := h.Get(path)
	if err != nil {
		return def
	}
	return v
}

// Contains reports whether path resolves to a live value.
func (h *Heap) Contains(path interface{}) bool {
	_, err := h.Get(path)
	return err == nil
}

// Set writes value at path in the top layer. key must be a string or an
// int; any other key type returns ErrInvalidKeyType.
func (h *Heap) Set(path interface{}, value interface{}) error {
	if !isValidKeyType(path) {
		return ErrInvalidKeyType
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layers[len(h.layers)-1].Set(path, value)
	return nil
}

// Delete writes a tombstone at path in the top layer, shadowing any live
// value for path in a lower layer. Unlike Set, Delete does not validate
// key type: it writes directly into the top layer's Treect.
func (h *Heap) Delete(path interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layers[len(h.layers)-1].Set(path, Tombstone)
}

// Checkpoint pushes a fresh, empty layer on top of the stack. Every write
// from this point lands in the new layer until the next Checkpoint or a
// Revert pops it back off.
func (h *Heap) Checkpoint() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.checkpointLimit > 0 && len(h.layers)-1 >= h.checkpointLimit {
		return ErrCheckpointLimit
	}
	h.layers = append(h.layers, treect.New())
	return nil
}

// Revert pops the top layer off the stack, discarding every write made
// since the last Checkpoint. Returns ErrNoCheckpoint if only the base
// layer remains.
func (h *Heap) Revert() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.layers) == 1 {
		return ErrNoCheckpoint
	}
	h.layers = h.layers[:len(h.layers)-1]
	return nil
}

// Depth returns the number of layers currently on the stack, including
// the base layer.
func (h *Heap) Depth() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.layers)
}

// Collapse flattens every layer into a single base layer, dropping
// tombstoned paths entirely. After Collapse, Depth reports 1 and any
// outstanding checkpoint is gone.
func (h *Heap) Collapse() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.layers = []*treect.Treect{h.collapsedLocked(false)}
}

// CollapsedView returns a single flattened Treect representing every live
// value across all layers, without modifying the heap itself. Passing
// keepTombstones true includes deleted paths in the result, mapped to
// Tombstone, which is useful for diagnostics.
func (h *Heap) CollapsedView(keepTombstones bool) *treect.Treect {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.collapsedLocked(keepTombstones)
}

func (h *Heap) collapsedLocked(keepTombstones bool) *treect.Treect {
	flat := treect.New()
	for _, layer := range h.layers {
		for _, kv := range layer.AllItems() {
			flat.Set(kv.Path, kv.Value)
		}
	}
	if keepTombstones {
		return flat
	}
	out := treect.New()
	for _, kv := range flat.AllItems() {
		if kv.Value == Tombstone {
			continue
		}
		out.Set(kv.Path, kv.Value)
	}
	return out
}

// Len returns the number of live paths across all layers.
func (h *Heap) Len() int {
	view := h.CollapsedView(false)
	return len(view.AllItems())
}

// PercentUsed returns Len as a percentage of the heap's size hint. If no
// size hint was configured (zero), PercentUsed returns 0.
func (h *Heap) PercentUsed() float64 {
	if h.sizeHint <= 0 {
		return 0
	}
	return float64(h.Len()) / float64(h.sizeHint) * 100
}

// String summarizes the heap: its current depth, live entry count, and
// percent-used against its configured size hint.
func (h *Heap) String() string {
	h.mu.RLock()
	depth := len(h.layers)
	sizeHint := h.sizeHint
	h.mu.RUnlock()
	return fmt.Sprintf("<Heap with %d layer(s), %.1f%% used, size hint=%d>", depth, h.PercentUsed(), sizeHint)
}

// Dump writes one line per live path/value pair - across every layer,
// collapsed and with tombstones dropped - to w, in the same padded
// format as Treect.Dump.
func (h *Heap) Dump(w io.Writer) error {
	return h.CollapsedView(false).Dump(w)
}

func isValidKeyType(key interface{}) bool {
	switch key.(type) {
	case string, int:
		return true
	default:
		return false
	}
}
