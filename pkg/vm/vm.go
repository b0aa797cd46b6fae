// Package vm wires the heap, instruction registry, model schemas, and
// commit log into a single engine. VM is the only type in this module
// that implements both instruction.VMContext and model.Executor: every
// attribute write, every instantiation, every destroy passes through it.
package vm

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/dgvm-project/dgvm/pkg/commit"
	"github.com/dgvm-project/dgvm/pkg/heap"
	"github.com/dgvm-project/dgvm/pkg/instruction"
	"github.com/dgvm-project/dgvm/pkg/model"
)

// ErrDirtyWorkspace is returned by Begin when a transaction is already
// open.
var ErrDirtyWorkspace = errors.New("vm: cannot begin transaction with an uncommitted transaction (dirty workspace)")

// ErrNoWorkspace is returned by End and Execute-adjacent calls that
// require an open transaction but find none.
var ErrNoWorkspace = errors.New("vm: no open transaction")

// ErrNoCommits is returned by GetLastCommit when nothing has been
// committed yet.
var ErrNoCommits = errors.New("vm: no commits yet")

// ErrUnknownModel is returned when a schema name has no registration.
var ErrUnknownModel = errors.New("vm: unknown model")

// ErrUnknownInstruction is returned when a mnemonic has no registered
// instruction class.
var ErrUnknownInstruction = errors.New("vm: unknown instruction")

// VM is the engine: a heap, an instruction registry, a set of registered
// schemas, an in-progress commit (the "workspace"), and a committed
// history. The schema index, workspace, and commit history are guarded
// by an internal mutex; the instruction registry is not, so registering
// instruction classes must not run concurrently with other VM calls.
type VM struct {
	mu sync.Mutex

	heap     *heap.Heap
	registry *instruction.Registry

	schemas map[string]*model.Schema

	workspace *commit.Commit
	commits   []*commit.Commit

	Verbose bool
}

// New returns a VM with a fresh heap sized by sizeHint (0 for no hint)
// and the four built-in instructions pre-registered.
func New(sizeHint, checkpointLimit int) *VM {
	return &VM{
		heap:     heap.New(sizeHint, checkpointLimit),
		registry: instruction.NewRegistry(),
		schemas:  make(map[string]*model.Schema),
	}
}

// Heap implements instruction.VMContext.
func (vm *VM) Heap() *heap.Heap {
	return vm.heap
}

// Registry returns the VM's instruction registry, so callers can add
// custom instruction classes with Registry().Add before running them.
func (vm *VM) Registry() *instruction.Registry {
	return vm.registry
}

// RegisterSchema adds a model schema to the VM's index, keyed by its
// name. Re-registering the same name replaces the previous schema.
func (vm *VM) RegisterSchema(s *model.Schema) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.schemas[s.Name] = s
}

// RegisterMemberInstruction adds a user-defined instruction class bound
// to a model, such as a generated "Tank.move" operation. It is a thin
// wrapper over Registry().Add, kept as its own method so call sites that
// are registering a model's member instructions read the same way
// RegisterSchema does.
func (vm *VM) RegisterMemberInstruction(c *instruction.Class) error {
	return vm.registry.Add(c)
}

// Schema looks up a registered schema by name.
func (vm *VM) Schema(name string) (*model.Schema, bool) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	s, ok := vm.schemas[name]
	return s, ok
}

// New instantiates a model of the named schema, routing the schema's
// INST bookkeeping instruction through this VM.
func (vm *VM) New(schemaName string, kwargs map[string]interface{}) (*model.Instance, error) {
	s, ok := vm.Schema(schemaName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, schemaName)
	}
	return s.New(vm.heap, vm.registry, vm, kwargs)
}

// Begin opens a new transaction: a fresh Commit seeded with a
// VM_BEGINTRANS entry, and a heap checkpoint every subsequent Set can be
// reverted back past. It fails if a transaction is already open.
func (vm *VM) Begin() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.beginLocked()
}

func (vm *VM) beginLocked() error {
	if vm.workspace != nil {
		return ErrDirtyWorkspace
	}
	cls, ok := vm.registry.ByMnemonic(instruction.MnemonicBeginTransaction)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstruction, instruction.MnemonicBeginTransaction)
	}
	inst, err := cls.New()
	if err != nil {
		return err
	}
	vm.workspace = commit.New()
	vm.workspace.Append(inst)
	return vm.heap.Checkpoint()
}

// End closes the open transaction by appending a VM_ENDTRANS entry and
// clearing the workspace, without touching the heap. Execute calls
// Begin automatically when no transaction is open, so most callers only
// need Commit or Rollback.
func (vm *VM) End() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.endLocked()
}

func (vm *VM) endLocked() error {
	if vm.workspace == nil {
		return ErrNoWorkspace
	}
	cls, ok := vm.registry.ByMnemonic(instruction.MnemonicEndTransaction)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstruction, instruction.MnemonicEndTransaction)
	}
	inst, err := cls.New()
	if err != nil {
		return err
	}
	vm.workspace.Append(inst)
	vm.workspace = nil
	return nil
}

// Execute implements model.Executor. It opens a transaction if none is
// open, runs each instruction against this VM in order, and appends
// every instruction (whether or not it came from a model's internal
// bookkeeping) to the open workspace. An instruction's failure stops
// the batch but does not roll back instructions already applied -
// callers that need atomicity call Rollback.
func (vm *VM) Execute(instructions ...*instruction.Instruction) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.workspace == nil {
		if err := vm.beginLocked(); err != nil {
			return err
		}
	}

	for _, inst := range instructions {
		if vm.Verbose {
			log.Printf("vm: executing %s %v", inst.Mnemonic(), inst.Args)
		}
		if err := inst.Execute(vm); err != nil {
			return fmt.Errorf("vm: executing %s: %w", inst.Mnemonic(), err)
		}
	}
	vm.workspace.Extend(instructions)
	return nil
}

// ExecuteFromMnemonic decodes each mnemonic form with the VM's registry
// and resolver, then runs the resulting instructions through Execute.
func (vm *VM) ExecuteFromMnemonic(forms [][]interface{}) error {
	instructions := make([]*instruction.Instruction, 0, len(forms))
	for _, form := range forms {
		inst, err := vm.registry.Decode(form, vm)
		if err != nil {
			return err
		}
		instructions = append(instructions, inst)
	}
	return vm.Execute(instructions...)
}

// ExecuteMemberInstruction runs a single instruction bound to an
// existing model instance: the mnemonic names a registered instruction
// class whose first argument kind is a model instance, and receiver
// supplies that argument.
func (vm *VM) ExecuteMemberInstruction(mnemonic string, receiver *model.Instance, args ...interface{}) error {
	cls, ok := vm.registry.ByMnemonic(mnemonic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownInstruction, mnemonic)
	}
	fullArgs := append([]interface{}{receiver}, args...)
	inst, err := cls.New(fullArgs...)
	if err != nil {
		return err
	}
	return vm.Execute(inst)
}

// DecodeArg implements instruction.ArgDecoder, resolving a logged model
// reference ([schemaName, id] for an instance, ["DatamodelMeta", name]
// for a schema) back to a live *model.Schema or *model.Instance.
func (vm *VM) DecodeArg(kind instruction.ArgKind, mnemonicForm interface{}) (interface{}, error) {
	form, ok := mnemonicForm.([]interface{})
	if !ok || len(form) != 2 {
		return nil, fmt.Errorf("vm: malformed model reference: %v", mnemonicForm)
	}

	switch kind {
	case instruction.KindModelClass:
		name, _ := form[1].(string)
		s, ok := vm.Schema(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
		}
		return s, nil
	case instruction.KindModelInstance:
		name, _ := form[0].(string)
		s, ok := vm.Schema(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
		}
		id, err := toID(form[1])
		if err != nil {
			return nil, err
		}
		return s.GetByID(vm.heap, id), nil
	default:
		return nil, fmt.Errorf("vm: DecodeArg called with non-model kind %v", kind)
	}
}

func toID(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("vm: expected numeric id, got %T", v)
	}
}

// Commit finalizes the open transaction: it hashes the workspace, moves
// it onto the commit history, and ends the transaction. Calling Commit
// with no open transaction is a no-op, matching Execute's auto-begin
// convenience.
func (vm *VM) Commit() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.workspace == nil {
		return nil
	}
	if _, err := vm.workspace.Hash(); err != nil {
		return fmt.Errorf("vm: hashing commit: %w", err)
	}
	vm.commits = append(vm.commits, vm.workspace)
	return vm.endLocked()
}

// Rollback undoes the most recent checkpoint. If a transaction is open,
// the open workspace is discarded and replaced with the last entry
// popped off the commit history - reopening it as the current
// workspace, so a further Rollback or Commit can act on it. The heap is
// then reverted by one checkpoint layer, whether or not a transaction was
// open. If a transaction is open but the history is empty, Rollback
// returns ErrNoCommits and leaves both the workspace and the heap as they
// are.
func (vm *VM) Rollback() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.workspace != nil {
		if len(vm.commits) == 0 {
			return ErrNoCommits
		}
		last := len(vm.commits) - 1
		vm.workspace = vm.commits[last]
		vm.commits = vm.commits[:last]
	}
	return vm.heap.Revert()
}

// GetLastCommit returns the most recently committed Commit.
func (vm *VM) GetLastCommit() (*commit.Commit, error) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if len(vm.commits) == 0 {
		return nil, ErrNoCommits
	}
	return vm.commits[len(vm.commits)-1], nil
}

// GetCurrentCommit returns the open workspace, or nil if no transaction
// is in progress.
func (vm *VM) GetCurrentCommit() *commit.Commit {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.workspace
}

// Commits returns every commit in history, oldest first. The returned
// slice is a copy; mutating it does not affect the VM.
func (vm *VM) Commits() []*commit.Commit {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	out := make([]*commit.Commit, len(vm.commits))
	copy(out, vm.commits)
	return out
}
