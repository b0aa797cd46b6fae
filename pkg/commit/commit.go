// Package commit implements the closed-commit record: an ordered list of
// instructions that executed together inside one transaction, content-
// addressed by a SHA-256 hash over their mnemonic forms.
//
// A Commit starts life as a VM's open workspace, accumulating
// instructions as they execute. Once the transaction ends, the workspace
// closes into a Commit whose Hash is fixed: any later instruction
// appended to a *different* workspace has no effect on it. The hash is
// what lets two VMs that replayed the same instructions in the same
// order prove they ended up in the same state without comparing their
// entire heaps.
package commit

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/dgvm-project/dgvm/pkg/instruction"
)

// Commit is an ordered, hashable list of instructions.
type Commit struct {
	instructions []*instruction.Instruction

	hashValid bool
	hash      [32]byte
}

// New returns an empty Commit.
func New() *Commit {
	return &Commit{}
}

// Append adds i to the end of the commit and invalidates any cached hash.
func (c *Commit) Append(i *instruction.Instruction) {
	c.instructions = append(c.instructions, i)
	c.hashValid = false
}

// Extend appends every instruction in is, in order.
func (c *Commit) Extend(is []*instruction.Instruction) {
	if len(is) == 0 {
		return
	}
	c.instructions = append(c.instructions, is...)
	c.hashValid = false
}

// Instructions returns the commit's instructions in append order. The
// returned slice shares storage with the Commit and must not be mutated.
func (c *Commit) Instructions() []*instruction.Instruction {
	return c.instructions
}

// Len returns the number of instructions in the commit.
func (c *Commit) Len() int {
	return len(c.instructions)
}

// Hash computes (and caches) the commit's content hash: SHA-256 over the
// newline-joined JSON encoding of each instruction's mnemonic form, in
// append order. The cache is invalidated by Append/Extend, so calling
// Hash again after adding instructions recomputes it.
func (c *Commit) Hash() ([32]byte, error) {
	if c.hashValid {
		return c.hash, nil
	}

	lines := make([]string, len(c.instructions))
	for i, inst := range c.instructions {
		encoded, err := json.Marshal(inst.Mnemonize())
		if err != nil {
			return [32]byte{}, fmt.Errorf("commit: encoding instruction %d: %w", i, err)
		}
		lines[i] = string(encoded)
	}

	c.hash = sha256.Sum256([]byte(strings.Join(lines, "\n")))
	c.hashValid = true
	return c.hash, nil
}

// HashInt returns the commit's hash interpreted as a big-endian unsigned
// integer, the same value a hex-encoded digest parsed with base 16 would
// produce.
func (c *Commit) HashInt() (*big.Int, error) {
	sum, err := c.Hash()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(sum[:]), nil
}

// String renders the commit for logs: its length and, for a quick
// glance, the first ten instructions' String forms.
func (c *Commit) String() string {
	n := len(c.instructions)
	if n > 10 {
		n = 10
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = c.instructions[i].String()
	}
	return fmt.Sprintf("<Commit with %d instruction(s): [%s]>", len(c.instructions), strings.Join(parts, ", "))
}

// Dumps serializes the commit as a JSON array of its instructions'
// mnemonic forms, suitable for persistence (see package badgerstore) or
// transmission to a remote collaborator.
func (c *Commit) Dumps() ([]byte, error) {
	forms := make([][]interface{}, len(c.instructions))
	for i, inst := range c.instructions {
		forms[i] = inst.Mnemonize()
	}
	return json.Marshal(forms)
}

// Loads reconstructs a Commit from the JSON produced by Dumps, decoding
// each mnemonic form back into a bound Instruction via reg and resolver.
func Loads(data []byte, reg *instruction.Registry, resolver instruction.ArgDecoder) (*Commit, error) {
	var forms [][]interface{}
	if err := json.Unmarshal(data, &forms); err != nil {
		return nil, fmt.Errorf("commit: decoding dump: %w", err)
	}

	c := New()
	for i, form := range forms {
		inst, err := reg.Decode(form, resolver)
		if err != nil {
			return nil, fmt.Errorf("commit: decoding instruction %d: %w", i, err)
		}
		c.Append(inst)
	}
	return c, nil
}
