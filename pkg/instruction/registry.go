package instruction

import "fmt"

// Registry holds every Class known to a VM, keyed by both opcode and
// mnemonic, and pre-registers the four built-ins on construction.
type Registry struct {
	byOpcode   map[int]*Class
	byMnemonic map[string]*Class
}

// NewRegistry returns a Registry with BEGINTRANS, ENDTRANS, INST, and
// DESTROY already registered.
func NewRegistry() *Registry {
	r := &Registry{
		byOpcode:   make(map[int]*Class),
		byMnemonic: make(map[string]*Class),
	}
	r.registerBuiltins()
	return r
}

func (r *Registry) registerBuiltins() {
	builtins := []*Class{
		{Opcode: OpcodeBeginTransaction, Mnemonic: MnemonicBeginTransaction, ArgKinds: nil, Exec: nil},
		{Opcode: OpcodeEndTransaction, Mnemonic: MnemonicEndTransaction, ArgKinds: nil, Exec: nil},
		{
			Opcode:   OpcodeInstantiateModel,
			Mnemonic: MnemonicInstantiateModel,
			ArgKinds: []ArgKind{KindModelClass, KindDict},
			// Construction already happened when the model instance wrote
			// its attributes to the heap; this entry exists only so the
			// commit log records that an instantiation occurred.
			Exec: nil,
		},
		{
			Opcode:   OpcodeDestroyInstance,
			Mnemonic: MnemonicDestroyInstance,
			ArgKinds: []ArgKind{KindModelClass, KindInt},
			Exec: func(ctx VMContext, args []interface{}) error {
				destroyer, ok := args[0].(Destroyer)
				if !ok {
					return fmt.Errorf("instruction: DESTROY argument does not implement Destroyer")
				}
				id, _ := args[1].(int)
				return destroyer.DestroyInstance(ctx, id)
			},
		},
	}
	for _, c := range builtins {
		r.byOpcode[c.Opcode] = c
		r.byMnemonic[c.Mnemonic] = c
	}
}

// Add registers a user-defined Class. The opcode must be greater than
// MinUserOpcode and the mnemonic non-empty; both must be unique across
// the registry.
func (r *Registry) Add(c *Class) error {
	if c.Opcode <= MinUserOpcode {
		return fmt.Errorf("%w: opcode %d must be greater than %d", ErrInvalidOpcode, c.Opcode, MinUserOpcode)
	}
	if c.Mnemonic == "" {
		return fmt.Errorf("%w: mnemonic must not be empty", ErrInvalidMnemonic)
	}
	if _, exists := r.byOpcode[c.Opcode]; exists {
		return fmt.Errorf("%w: opcode %d already registered", ErrInvalidOpcode, c.Opcode)
	}
	if _, exists := r.byMnemonic[c.Mnemonic]; exists {
		return fmt.Errorf("%w: mnemonic %q already registered", ErrInvalidMnemonic, c.Mnemonic)
	}
	r.byOpcode[c.Opcode] = c
	r.byMnemonic[c.Mnemonic] = c
	return nil
}

// ByOpcode looks up a registered Class by opcode.
func (r *Registry) ByOpcode(opcode int) (*Class, bool) {
	c, ok := r.byOpcode[opcode]
	return c, ok
}

// ByMnemonic looks up a registered Class by mnemonic.
func (r *Registry) ByMnemonic(mnemonic string) (*Class, bool) {
	c, ok := r.byMnemonic[mnemonic]
	return c, ok
}

// ArgDecoder resolves an argument's mnemonic form back into the concrete
// value a Class expects - in practice, a model class or model instance
// reference. Scalars (numbers, strings, bools) never reach it because
// Decode handles those itself, only turning a JSON float64 back into an
// int for a KindInt argument.
type ArgDecoder interface {
	DecodeArg(kind ArgKind, mnemonicForm interface{}) (interface{}, error)
}

// Decode parses a mnemonic-form array (as produced by Instruction.Mnemonize
// and stored in a Commit) back into a bound Instruction, looking up the
// Class by mnemonic and resolving model references through decoder.
func (r *Registry) Decode(form []interface{}, decoder ArgDecoder) (*Instruction, error) {
	if len(form) == 0 {
		return nil, fmt.Errorf("instruction: empty mnemonic form")
	}
	mnemonic, ok := form[0].(string)
	if !ok {
		return nil, fmt.Errorf("instruction: mnemonic form must start with a string mnemonic")
	}
	class, ok := r.byMnemonic[mnemonic]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMnemonic, mnemonic)
	}

	rawArgs := form[1:]
	if len(rawArgs) != len(class.ArgKinds) {
		return nil, fmt.Errorf("%w: %s expects %d argument(s), got %d", ErrArgCount, mnemonic, len(class.ArgKinds), len(rawArgs))
	}

	args := make([]interface{}, len(rawArgs))
	for i, kind := range class.ArgKinds {
		switch kind {
		case KindModelClass, KindModelInstance:
			decoded, err := decoder.DecodeArg(kind, rawArgs[i])
			if err != nil {
				return nil, fmt.Errorf("instruction: decoding argument %d of %s: %w", i, mnemonic, err)
			}
			args[i] = decoded
		default:
			args[i] = normalizeScalar(kind, rawArgs[i])
		}
	}
	return class.New(args...)
}

// normalizeScalar adjusts a JSON-decoded scalar back to the Go type a
// Class expects. JSON numbers decode as float64 by default; KindInt
// arguments need a real int to satisfy ArgKind.matches.
func normalizeScalar(kind ArgKind, v interface{}) interface{} {
	if kind == KindInt {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return v
}
