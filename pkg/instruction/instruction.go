// Package instruction implements the opcode/mnemonic instruction kernel:
// the unit of replayable work that a VM executes, logs into a commit, and
// can later decode back out of a commit's mnemonic form.
//
// An instruction Class is a registered kind of operation - BEGINTRANS,
// a model's generated "move" member instruction, a user-defined opcode -
// identified by a numeric opcode and a human-readable mnemonic. Opcodes
// 1 through 4 are reserved for the built-ins every VM pre-registers
// (see Registry.registerBuiltins); every other Class must use an opcode
// greater than 100, leaving room for future built-ins without colliding
// with user-assigned numbers.
//
// A bound Instruction pairs a Class with the concrete arguments one
// invocation was called with. Mnemonize encodes that pair into its wire
// form, a JSON array whose first element is the mnemonic and whose
// remaining elements are the (possibly recursively mnemonized) arguments -
// the same form a Commit hashes and a replay decodes back from.
package instruction

import (
	"errors"
	"fmt"

	"github.com/dgvm-project/dgvm/pkg/heap"
)

// Reserved opcodes for the instructions every VM registers by default.
const (
	OpcodeBeginTransaction = 1
	OpcodeEndTransaction   = 2
	OpcodeInstantiateModel = 3
	OpcodeDestroyInstance  = 4

	MnemonicBeginTransaction = "VM_BEGINTRANS"
	MnemonicEndTransaction   = "VM_ENDTRANS"
	MnemonicInstantiateModel = "INST"
	MnemonicDestroyInstance  = "DESTROY"

	// MinUserOpcode is the highest reserved opcode: a caller-registered
	// Class must use an opcode greater than it, since opcodes 1-100 are
	// reserved for the engine.
	MinUserOpcode = 100
)

// ErrInvalidOpcode is returned when a Class's opcode collides with a
// reserved range or an already-registered opcode.
var ErrInvalidOpcode = errors.New("instruction: invalid or duplicate opcode")

// ErrInvalidMnemonic is returned when a Class's mnemonic is empty or
// collides with an already-registered mnemonic.
var ErrInvalidMnemonic = errors.New("instruction: invalid or duplicate mnemonic")

// ErrArgCount is returned when a Class is invoked with the wrong number
// of arguments.
var ErrArgCount = errors.New("instruction: wrong argument count")

// ErrArgType is returned when an argument does not satisfy its Class's
// declared ArgKind.
var ErrArgType = errors.New("instruction: argument type mismatch")

// ErrUnknownMnemonic is returned by Decode when no registered Class
// matches the mnemonic at the head of a mnemonic-form array.
var ErrUnknownMnemonic = errors.New("instruction: unknown mnemonic")

// VMContext is the surface a Class's Exec function (and the destroy
// built-in) can use to reach into the running VM. The vm package
// provides the concrete implementation.
type VMContext interface {
	Heap() *heap.Heap
}

// Mnemonizer is implemented by argument values - model classes and model
// instances, primarily - that need custom encoding in mnemonic form
// rather than passing through as a JSON scalar.
type Mnemonizer interface {
	MnemonicForm() interface{}
}

// StateTransitioner is implemented by model instance arguments. Around
// every Exec call, each argument implementing this interface is put into
// its "user changing" state before the call and back to normal
// afterward, the same way an attribute write is only legal while its
// owning instance is mid-instruction.
type StateTransitioner interface {
	BeginUserChange()
	EndUserChange()
}

// Destroyer is implemented by a model class argument to OpcodeDestroyInstance,
// letting the built-in DESTROY instruction delete every attribute path of
// an instance without the instruction kernel knowing anything about the
// model package's attribute layout.
type Destroyer interface {
	DestroyInstance(ctx VMContext, id int) error
}

// ArgKind describes the expected shape of one instruction argument, used
// to validate arguments when a Class is invoked.
type ArgKind int

const (
	// KindAny accepts any argument, including nil.
	KindAny ArgKind = iota
	KindInt
	KindString
	KindFloat
	KindBool
	// KindModelClass requires the argument to implement Mnemonizer and
	// represent a model class reference (see pkg/model.Schema).
	KindModelClass
	// KindModelInstance requires the argument to implement
	// StateTransitioner, i.e. be a live model instance.
	KindModelInstance
	// KindDict requires a map[string]interface{} argument.
	KindDict
)

func (k ArgKind) matches(v interface{}) bool {
	switch k {
	case KindAny:
		return true
	case KindInt:
		_, ok := v.(int)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	case KindFloat:
		_, ok := v.(float64)
		return ok
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindModelClass:
		_, ok := v.(Mnemonizer)
		return ok
	case KindModelInstance:
		_, ok := v.(StateTransitioner)
		return ok
	case KindDict:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return false
	}
}

// Class is a registered instruction definition: an opcode, a mnemonic,
// the shape of its arguments, and the function that runs when an
// Instruction of this Class executes.
type Class struct {
	Opcode   int
	Mnemonic string
	ArgKinds []ArgKind
	// Exec runs the instruction's side effects against ctx, given the
	// validated arguments. Built-ins like BEGINTRANS/ENDTRANS/INST have a
	// nil-op Exec: their entire purpose is the commit-log entry itself,
	// not any heap mutation.
	Exec func(ctx VMContext, args []interface{}) error
}

// New binds args to the Class, validating arity and argument kinds.
func (c *Class) New(args ...interface{}) (*Instruction, error) {
	if len(args) != len(c.ArgKinds) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrArgCount, c.Mnemonic, len(c.ArgKinds), len(args))
	}
	for i, kind := range c.ArgKinds {
		if !kind.matches(args[i]) {
			return nil, fmt.Errorf("%w: %s argument %d", ErrArgType, c.Mnemonic, i)
		}
	}
	return &Instruction{class: c, Args: args}, nil
}

// Instruction is a Class bound to concrete arguments, ready to execute or
// to encode into mnemonic form.
type Instruction struct {
	class *Class
	Args  []interface{}
}

// Class returns the Instruction's originating Class.
func (i *Instruction) Class() *Class { return i.class }

// Opcode returns the Instruction's opcode.
func (i *Instruction) Opcode() int { return i.class.Opcode }

// Mnemonic returns the Instruction's mnemonic.
func (i *Instruction) Mnemonic() string { return i.class.Mnemonic }

// String renders the Instruction for logs and Commit.String: its
// mnemonic, opcode, and argument count.
func (i *Instruction) String() string {
	return fmt.Sprintf("<Instruction opcode=%d mnemonic=%s n_arg=%d>", i.class.Opcode, i.class.Mnemonic, len(i.Args))
}

// Execute transitions every StateTransitioner argument into its
// user-changing state, runs the Class's Exec function, then transitions
// those arguments back, even if Exec returns an error.
func (i *Instruction) Execute(ctx VMContext) error {
	var transitioned []StateTransitioner
	for _, arg := range i.Args {
		if st, ok := arg.(StateTransitioner); ok {
			st.BeginUserChange()
			transitioned = append(transitioned, st)
		}
	}
	defer func() {
		for _, st := range transitioned {
			st.EndUserChange()
		}
	}()

	if i.class.Exec == nil {
		return nil
	}
	return i.class.Exec(ctx, i.Args)
}

// Mnemonize encodes the Instruction into its wire form: a JSON-ready
// slice whose first element is the mnemonic and whose remaining elements
// are each argument's mnemonic form.
func (i *Instruction) Mnemonize() []interface{} {
	out := make([]interface{}, 0, len(i.Args)+1)
	out = append(out, i.class.Mnemonic)
	for _, arg := range i.Args {
		out = append(out, mnemonizeArg(arg))
	}
	return out
}

func mnemonizeArg(v interface{}) interface{} {
	if m, ok := v.(Mnemonizer); ok {
		return m.MnemonicForm()
	}
	return v
}
