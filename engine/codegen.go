package engine

import "fmt"

// CodeGen lowers one Function to a self-contained x86-64 System-V
// style function body: push rbp / mov rbp,rsp / sub rsp,N prologue,
// one rbp-relative stack slot per parameter and destination variable,
// and a trailing implicit return for functions that fall off the end.
//
// Every call out of compiled code — to another function, or to a
// print primitive — goes through a fixed thunk address rather than a
// direct address baked into the instruction stream. That indirection
// is what lets the dispatcher relocate or regrow a compiled artifact
// (to add an OSR entry point, for instance) without chasing down and
// patching call sites anywhere else.
type CodeGen struct {
	code   []byte
	slots  map[string]int
	types  map[string]ValueType
	labels *labelTable
	rt     *Runtime
	f      *Function
}

// artifact is one compiled function: a position-independent byte
// buffer, mapped executable, with a normal entry point and zero or
// more OSR entry points keyed by label name. bodyLabelOffsets are
// fixed at compile time, relative to the body's own start; normalEntry
// and each OSR offset shift together whenever a new OSR prefix is
// prepended, so they're recomputed rather than assumed stable.
type artifact struct {
	code             []byte
	base             uintptr
	normalEntry      int
	osrEntries       map[string]int
	bodyLabelOffsets map[string]int
	slots            map[string]int
	nParams          int
}

// slotOffset maps a 1-based variable slot to its rbp-relative byte
// offset. Slot 0 (the reserved runtime back-pointer) lives at rbp-8,
// so slot N's own offset must start one slot further in.
func slotOffset(slot int) int { return 8 * (slot + 1) }

// computeSlots assigns each parameter and destination variable a
// 1-based slot index in first-seen order: parameters first, in
// declaration order, then destinations in the order their defining
// instruction appears. Slot 0 (at rbp-8) is reserved for the back
// pointer to the Runtime and is never in this map.
func computeSlots(f *Function) (map[string]int, int) {
	slots := make(map[string]int, len(f.Params)+4)
	next := 1
	for _, p := range f.Params {
		if _, ok := slots[p]; !ok {
			slots[p] = next
			next++
		}
	}
	for _, inst := range f.Instrs {
		if inst.IsLabel || !inst.HasDest {
			continue
		}
		if _, ok := slots[inst.Dest]; !ok {
			slots[inst.Dest] = next
			next++
		}
	}
	return slots, next - 1
}

// VarTypes infers each variable's value type from how it's defined,
// so the print lowering knows which host primitive to call for a given
// argument without carrying a tag at run time the way the interpreter's
// Value does. Exported so the loader can reuse it to infer a function's
// return type from its `ret` argument (see loader.go).
func VarTypes(f *Function) map[string]ValueType {
	types := make(map[string]ValueType, len(f.Params)+4)
	for i, p := range f.Params {
		if i < len(f.ParamTypes) && f.ParamTypes[i] != TypeNone {
			types[p] = f.ParamTypes[i]
		} else {
			types[p] = TypeInt
		}
	}
	for _, inst := range f.Instrs {
		if inst.IsLabel || !inst.HasDest {
			continue
		}
		switch {
		case inst.Op == OpConst:
			types[inst.Dest] = inst.Const.Kind.asValueType()
		case inst.Op == OpId:
			if t, ok := types[inst.Args[0]]; ok {
				types[inst.Dest] = t
			} else {
				types[inst.Dest] = inst.Type
			}
		case inst.Op.isArith():
			types[inst.Dest] = TypeInt
		case inst.Op.isCompare() || inst.Op.isBoolBinop() || inst.Op == OpNot:
			types[inst.Dest] = TypeBool
		case inst.Op == OpCall:
			if inst.Type != TypeNone {
				types[inst.Dest] = inst.Type
			} else {
				types[inst.Dest] = TypeInt
			}
		}
	}
	return types
}

// frameSize returns the 16-byte-aligned stack frame size in bytes for
// numVars distinct variables plus the reserved runtime-pointer slot.
func frameSize(numVars int) int32 {
	pairs := (numVars + 2) / 2 // ceil((numVars+1)/2)
	return int32(pairs * 16)
}

// Compile lowers f to a body-only artifact (no OSR entries yet). rt is
// needed at compile time to resolve callee names to stable indices and
// to embed the call/print thunk addresses as immediates.
func (rt *Runtime) Compile(f *Function) (*artifact, error) {
	slots, numVars := computeSlots(f)
	g := &CodeGen{slots: slots, types: VarTypes(f), labels: newLabelTable(), rt: rt, f: f}

	g.emitPrologue(f, numVars)

	for _, inst := range f.Instrs {
		if inst.IsLabel {
			g.labels.bind(inst.Label, len(g.code))
			continue
		}
		if err := g.emitInstr(inst); err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	g.emitImplicitReturn()

	if err := g.labels.resolve(g); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}

	return &artifact{
		code:             g.code,
		osrEntries:       make(map[string]int),
		bodyLabelOffsets: g.labels.offsets,
		slots:            slots,
		nParams:          len(f.Params),
	}, nil
}

// emitPrologue sets up the frame and marshals parameters out of the
// incoming argument vector (rsi) into their slots. The normal entry
// convention is rdi = runtime pointer, rsi = argument-vector pointer.
func (g *CodeGen) emitPrologue(f *Function, numVars int) {
	g.pushR(regRBP)
	g.movRR(regRBP, regRSP)
	g.subRI(regRSP, frameSize(numVars))
	g.storeLocal(8, regRDI) // slot 0: runtime back-pointer

	for _, p := range f.Params {
		slot := g.slots[p]
		g.loadArgWord(regRAX, slot-1)
		g.storeLocal(slotOffset(slot), regRAX)
	}
}

// loadArgWord emits `mov reg, [rsi + 8*i]`, reading one word out of
// the argument vector passed in rsi.
func (g *CodeGen) loadArgWord(reg, i int) {
	off := 8 * i
	rex := byte(0x48)
	if reg >= 8 {
		rex |= 0x04
	}
	g.emitByte(rex)
	g.emitByte(0x8b)
	switch {
	case off == 0:
		g.emitByte(byte(((reg & 7) << 3) | regRSI))
	case off >= -128 && off <= 127:
		g.emitBytes(byte(0x40|((reg&7)<<3)|regRSI), byte(off))
	default:
		g.emitByte(byte(0x80 | ((reg & 7) << 3) | regRSI))
		g.emitU32(uint32(int32(off)))
	}
}

// emitEpilogue restores rsp/rbp and returns, leaving (hasRet, value)
// in (rax, rdx) as every compiled function's own callers expect.
func (g *CodeGen) emitEpilogue() {
	g.movRR(regRSP, regRBP)
	g.popR(regRBP)
	g.ret()
}

func (g *CodeGen) emitImplicitReturn() {
	g.movImm64(regRAX, 0)
	g.movImm64(regRDX, 0)
	g.emitEpilogue()
}
