package model

import (
	"errors"
	"testing"

	"github.com/dgvm-project/dgvm/pkg/constraint"
	"github.com/dgvm-project/dgvm/pkg/heap"
	"github.com/dgvm-project/dgvm/pkg/instruction"
)

// fakeVM is a minimal stand-in for pkg/vm.VM: it runs every instruction
// immediately against a shared heap, which is all Schema.New/Destroy and
// Instance.Set need from an Executor/VMContext in these tests.
type fakeVM struct {
	h *heap.Heap
}

func (f *fakeVM) Heap() *heap.Heap { return f.h }

func (f *fakeVM) Execute(instructions ...*instruction.Instruction) error {
	for _, inst := range instructions {
		if err := inst.Execute(f); err != nil {
			return err
		}
	}
	return nil
}

func boardSchema() *Schema {
	board := NewSchema("Board")
	_ = board.AddAttr(&AttrDescriptor{Name: "width", Kind: KindInt})
	_ = board.AddAttr(&AttrDescriptor{Name: "height", Kind: KindInt})
	return board
}

func tankSchema(board *Schema) *Schema {
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "attack_dmg", Kind: KindInt, Default: 10})
	_ = tank.AddAttr(&AttrDescriptor{Name: "armor", Kind: KindInt, Default: 0})
	_ = tank.AddAttr(&AttrDescriptor{Name: "health", Kind: KindInt, Default: 100})

	actionLimit := constraint.NewCollection()
	actionLimit.Add(&constraint.Constraint{
		Name: "action_limit",
		Predicate: func(oldValue, newValue interface{}, related map[string]interface{}) bool {
			n, _ := newValue.(int)
			return n >= 0
		},
	})
	_ = tank.AddAttr(&AttrDescriptor{Name: "action", Kind: KindInt, Default: 100, Constraints: actionLimit})

	positionConstraints := constraint.NewCollection()
	positionConstraints.Add(&constraint.Constraint{
		Name:    "board_bounds",
		Related: []string{"board"},
		Predicate: func(oldValue, newValue interface{}, related map[string]interface{}) bool {
			pos, ok := newValue.(Tuple)
			if !ok {
				return false
			}
			boardInst, ok := related["board"].(*Instance)
			if !ok {
				return true
			}
			width, _ := boardInst.Get("width")
			height, _ := boardInst.Get("height")
			w, _ := width.(int)
			h, _ := height.(int)
			return pos.X() >= 0 && pos.X() < float64(w) && pos.Y() >= 0 && pos.Y() < float64(h)
		},
	})
	_ = tank.AddAttr(&AttrDescriptor{Name: "position", Kind: KindPair, Default: NewTuple(0, 0), Constraints: positionConstraints})
	_ = tank.AddAttr(&AttrDescriptor{Name: "board", Kind: KindForeignModel, Foreign: board, Nullable: true})
	return tank
}

func TestInstantiateWithDefaults(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}

	board := boardSchema()
	tank := tankSchema(board)

	inst, err := tank.New(h, reg, vm, map[string]interface{}{"health": 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst.ID() != 1 {
		t.Errorf("expected first allocated id to be 1, got %d", inst.ID())
	}

	health, _ := inst.Get("health")
	if health != 50 {
		t.Errorf("expected health=50, got %v", health)
	}

	armor, _ := inst.Get("armor")
	if armor != 0 {
		t.Errorf("expected default armor=0, got %v", armor)
	}

	pos, _ := inst.Get("position")
	tup, ok := pos.(Tuple)
	if !ok || tup.X() != 0 || tup.Y() != 0 {
		t.Errorf("expected default position (0,0), got %v", pos)
	}
}

func TestInstantiateMissingRequiredAttributeFails(t *testing.T) {
	h := heap.New(0, 0)
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "callsign", Kind: KindString})

	if _, err := tank.New(h, nil, nil, map[string]interface{}{}); err == nil {
		t.Errorf("expected an error for missing required attribute")
	}
}

func TestIDsIncrementMonotonically(t *testing.T) {
	h := heap.New(0, 0)
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "health", Kind: KindInt, Default: 100})

	a, err := tank.New(h, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := tank.New(h, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID() != 1 || b.ID() != 2 {
		t.Errorf("expected ids 1 then 2, got %d then %d", a.ID(), b.ID())
	}
}

func TestSetRejectedOutsideInstruction(t *testing.T) {
	h := heap.New(0, 0)
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "health", Kind: KindInt, Default: 100})

	inst, err := tank.New(h, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := inst.Set("health", 10); !errors.Is(err, ErrReadOnlyWrite) {
		t.Errorf("expected ErrReadOnlyWrite, got %v", err)
	}
}

func TestSetDuringUserChangingAppliesConstraint(t *testing.T) {
	h := heap.New(0, 0)
	board := boardSchema()
	tank := tankSchema(board)

	inst, err := tank.New(h, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inst.BeginUserChange()
	defer inst.EndUserChange()

	if err := inst.Set("action", -5); err == nil {
		t.Errorf("expected constraint violation for negative action")
	}
	if err := inst.Set("action", 50); err != nil {
		t.Errorf("unexpected error for valid action: %v", err)
	}
	action, _ := inst.Get("action")
	if action != 50 {
		t.Errorf("expected action=50, got %v", action)
	}
}

func TestPositionConstraintUsesRelatedBoard(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}
	board := boardSchema()
	tank := tankSchema(board)

	boardInst, err := board.New(h, reg, vm, map[string]interface{}{"width": 10, "height": 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tankInst, err := tank.New(h, reg, vm, map[string]interface{}{"board": boardInst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tankInst.BeginUserChange()
	defer tankInst.EndUserChange()

	if err := tankInst.Set("position", NewTuple(5, 5)); err != nil {
		t.Errorf("expected in-bounds position to succeed, got %v", err)
	}
	if err := tankInst.Set("position", NewTuple(50, 5)); err == nil {
		t.Errorf("expected out-of-bounds position to fail")
	}
}

func TestForeignModelResolvesLazily(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}
	board := boardSchema()
	tank := tankSchema(board)

	boardInst, err := board.New(h, reg, vm, map[string]interface{}{"width": 20, "height": 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tankInst, err := tank.New(h, reg, vm, map[string]interface{}{"board": boardInst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := tankInst.Get("board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resolved, ok := got.(*Instance)
	if !ok || resolved.ID() != boardInst.ID() {
		t.Errorf("expected resolved board instance with id %d, got %v", boardInst.ID(), got)
	}
}

func TestDestroyMakesInstanceUnreadable(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "health", Kind: KindInt, Default: 100})

	inst, err := tank.New(h, reg, vm, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := inst.Destroy(reg, vm); err != nil {
		t.Fatalf("unexpected error destroying instance: %v", err)
	}

	if _, err := inst.Get("health"); !errors.Is(err, ErrDestroyed) {
		t.Errorf("expected ErrDestroyed, got %v", err)
	}
	// the id itself still reads back even after destruction.
	if id, err := inst.Get("id"); err != nil || id != inst.ID() {
		t.Errorf("expected id to remain readable after destroy, got %v err=%v", id, err)
	}

	if _, err := h.Get("Tank/O/1/health"); !errors.Is(err, heap.ErrNotFound) {
		t.Errorf("expected destroyed attribute path to be gone from the heap, got %v", err)
	}
}

func TestSchemaMnemonicForm(t *testing.T) {
	tank := NewSchema("Tank")
	form := tank.MnemonicForm()
	slice, ok := form.([]interface{})
	if !ok || len(slice) != 2 || slice[0] != "DatamodelMeta" || slice[1] != "Tank" {
		t.Errorf("unexpected mnemonic form: %v", form)
	}
}

func TestInstanceMnemonicForm(t *testing.T) {
	h := heap.New(0, 0)
	tank := NewSchema("Tank")
	_ = tank.AddAttr(&AttrDescriptor{Name: "health", Kind: KindInt, Default: 100})
	inst, _ := tank.New(h, nil, nil, nil)

	form := inst.MnemonicForm()
	slice, ok := form.([]interface{})
	if !ok || len(slice) != 2 || slice[0] != "Tank" || slice[1] != inst.ID() {
		t.Errorf("unexpected mnemonic form: %v", form)
	}
}

func TestDataDictListsDeclaredAttributesAndID(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}
	board := boardSchema()
	tank := tankSchema(board)

	boardInst, err := board.New(h, reg, vm, map[string]interface{}{"width": 10, "height": 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tankInst, err := tank.New(h, reg, vm, map[string]interface{}{"health": 42, "board": boardInst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dict := tankInst.DataDict(false)
	if dict["class"] != "Tank" {
		t.Errorf("expected class=Tank, got %v", dict["class"])
	}
	attrs, ok := dict["attributes"].([]map[string]interface{})
	if !ok {
		t.Fatalf("expected attributes to be a slice of maps, got %T", dict["attributes"])
	}

	byName := make(map[string]map[string]interface{}, len(attrs))
	for _, a := range attrs {
		byName[a["name"].(string)] = a
	}

	id, ok := byName["id"]
	if !ok || id["class"] != "ID" || id["value"] != tankInst.ID() {
		t.Errorf("expected id attribute entry, got %v", byName["id"])
	}
	health, ok := byName["health"]
	if !ok || health["class"] != KindInt.String() || health["value"] != 42 {
		t.Errorf("expected health attribute entry, got %v", byName["health"])
	}
	boardRef, ok := byName["board_id"]
	if !ok || boardRef["class"] != "Board" || boardRef["value"] != boardInst.ID() {
		t.Errorf("expected board_id entry referencing board's id, got %v", byName["board_id"])
	}
	if _, present := byName["board"]; present {
		t.Errorf("did not expect an unwrapped board entry when unwrap=false")
	}
}

func TestDataDictUnwrapsForeignModel(t *testing.T) {
	h := heap.New(0, 0)
	reg := instruction.NewRegistry()
	vm := &fakeVM{h: h}
	board := boardSchema()
	tank := tankSchema(board)

	boardInst, err := board.New(h, reg, vm, map[string]interface{}{"width": 10, "height": 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tankInst, err := tank.New(h, reg, vm, map[string]interface{}{"board": boardInst})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	attrs := tankInst.DataDict(true)["attributes"].([]map[string]interface{})
	for _, a := range attrs {
		if a["name"] != "board" {
			continue
		}
		nested, ok := a["value"].(map[string]interface{})
		if !ok || nested["class"] != "Board" {
			t.Errorf("expected nested board DataDict, got %v", a["value"])
		}
		return
	}
	t.Errorf("expected a board attribute entry when unwrap=true")
}
