package engine

import (
	"fmt"
	"io"
	"sort"
	"unsafe"
)

// Runtime is the cross-tier dispatcher: the one thing both the
// interpreter and every compiled artifact hold a reference to. It
// owns the program, the interpreter, the per-function call counters
// that drive method-JIT promotion, the per-function per-label counters
// that drive OSR, and the artifact cache itself.
//
// The artifact cache is append-only and functions are never evicted
// or recompiled once cached — a function earns exactly one compiled
// artifact for the life of the process, though that artifact may grow
// new OSR entry points over time.
type Runtime struct {
	prog *Program

	interp *Interp

	jitThreshold int64
	osrThreshold int64

	callCounts  []int64
	labelCounts []map[string]int64
	artifacts   []*artifact

	callThunkAddr  uint64
	printThunkAddr uint64

	self unsafe.Pointer

	// jitStack is the dedicated stack every compiled artifact runs on,
	// in place of the goroutine's own growable, GC-scanned stack (see
	// trampoline_amd64.s). jitSP and goRSP are the handoff points the
	// trampolines read and write via go_asm.h field offsets: jitSP is
	// where a nested compiled call (reached back out through
	// dispatchCallGo) resumes the jit stack from, 0 meaning "none
	// active, start fresh at jitStackTop"; goRSP is where the next
	// cross-tier call resumes the goroutine stack from.
	jitStack    []byte
	jitStackTop uintptr
	jitSP       uintptr
	goRSP       uintptr
}

// jitStackSize bounds the depth of a compiled call tree between two
// points that touch the goroutine stack (a cross-tier call, or a
// return to Go). It is not resized; a program whose compiled
// recursion exceeds it fails the same way a conventional JIT's fixed
// native stack would.
const jitStackSize = 8 << 20

// NewRuntime builds a Runtime over prog. A threshold of 0 means
// "never tier up" for that mechanism (always interpret / never OSR);
// main.go's flag parsing is responsible for turning a user-supplied 0
// into that meaning.
func NewRuntime(prog *Program, jitThreshold, osrThreshold int64) *Runtime {
	rt := &Runtime{
		prog:           prog,
		jitThreshold:   jitThreshold,
		osrThreshold:   osrThreshold,
		callCounts:     make([]int64, prog.NumFuncs()),
		labelCounts:    make([]map[string]int64, prog.NumFuncs()),
		artifacts:      make([]*artifact, prog.NumFuncs()),
		callThunkAddr:  uint64(callThunkPC()),
		printThunkAddr: uint64(printThunkPC()),
		jitStack:       make([]byte, jitStackSize),
	}
	rt.interp = NewInterp(rt)
	rt.self = unsafe.Pointer(rt)
	top := uintptr(unsafe.Pointer(&rt.jitStack[0])) + uintptr(len(rt.jitStack))
	rt.jitStackTop = top &^ 15
	return rt
}

// Run executes "main" with the given integer command-line arguments.
func (rt *Runtime) Run(args []int64) (Value, bool, error) {
	return rt.interp.EvalProgram(args)
}

// DispatchCall is the single entry point every call — from the
// interpreter, from compiled code via the call thunk, or from Run
// itself — routes through. It counts the call, enters an existing
// compiled artifact if there is one, promotes to one if the call
// threshold is newly crossed, and otherwise interprets.
func (rt *Runtime) DispatchCall(calleeIndex int, args []Value) (Value, bool, error) {
	if calleeIndex < 0 || calleeIndex >= rt.prog.NumFuncs() {
		return Value{}, false, fmt.Errorf("%w: index %d", ErrUnknownFunc, calleeIndex)
	}
	rt.callCounts[calleeIndex]++

	if art := rt.artifacts[calleeIndex]; art != nil {
		return rt.runCompiled(calleeIndex, art, args)
	}

	if rt.jitThreshold > 0 && rt.callCounts[calleeIndex] >= rt.jitThreshold {
		art, err := rt.compileAndCache(calleeIndex)
		if err != nil {
			return Value{}, false, err
		}
		return rt.runCompiled(calleeIndex, art, args)
	}

	f := rt.prog.FuncAt(calleeIndex)
	env := NewEnv()
	for i, p := range f.Params {
		if i < len(args) {
			env.Put(p, args[i])
		}
	}
	if !rt.interp.EvalFunc(calleeIndex, f, env) {
		return Value{}, false, fmt.Errorf("%s: execution failed", f.Name)
	}
	ret, hasRet := env.Get(retSlot)
	return ret, hasRet, nil
}

// NoteLabelHit records one interpreted visit to a label marker and
// reports whether funcIndex/label has just crossed the OSR threshold.
// Visits are counted whether or not OSR is enabled, so DumpProfile can
// report them. Once a function has a compiled artifact, new calls enter
// that artifact; an interpreted frame of it that was already running
// keeps interpreting, and its label visits are neither counted nor
// allowed to trigger OSR.
func (rt *Runtime) NoteLabelHit(funcIndex int, label string) (bool, error) {
	if rt.artifacts[funcIndex] != nil {
		return false, nil
	}
	counts := rt.labelCounts[funcIndex]
	if counts == nil {
		counts = make(map[string]int64, 4)
		rt.labelCounts[funcIndex] = counts
	}
	counts[label]++
	if rt.osrThreshold <= 0 {
		return false, nil
	}
	return counts[label] >= rt.osrThreshold, nil
}

// DispatchOSR transfers a function already running under the
// interpreter into compiled code at a loop-header label, materializing
// env's current bindings into the compiled frame. It compiles the
// function on demand if this is its first tier-up, and grows that
// artifact a new OSR entry point if this label hasn't been entered
// from compiled code before.
func (rt *Runtime) DispatchOSR(env *Env, funcIndex int, label string) (Value, bool, error) {
	f := rt.prog.FuncAt(funcIndex)
	art := rt.artifacts[funcIndex]
	if art == nil {
		var err error
		art, err = rt.compileAndCache(funcIndex)
		if err != nil {
			return Value{}, false, err
		}
	}
	offset, err := rt.ensureOSREntry(art, f, label, env)
	if err != nil {
		return Value{}, false, err
	}
	entry := art.base + uintptr(offset)
	hasRet, word := nativeEnter(entry, rt.self, nil)
	if hasRet == 0 {
		return Value{}, false, nil
	}
	return tagReturn(f.RetType, word), true, nil
}

func (rt *Runtime) compileAndCache(funcIndex int) (*artifact, error) {
	f := rt.prog.FuncAt(funcIndex)
	art, err := rt.Compile(f)
	if err != nil {
		return nil, err
	}
	eb, err := allocExecutable(art.code)
	if err != nil {
		return nil, err
	}
	art.base = eb.base
	rt.artifacts[funcIndex] = art
	return art, nil
}

func (rt *Runtime) runCompiled(funcIndex int, art *artifact, args []Value) (Value, bool, error) {
	argBuf := make([]int64, len(args)+1) // +1: never pass a nil base pointer for a 0-arg call
	for i, a := range args {
		argBuf[i] = a.Word()
	}
	entry := art.base + uintptr(art.normalEntry)
	hasRet, word := nativeEnter(entry, rt.self, unsafe.Pointer(&argBuf[0]))
	if hasRet == 0 {
		return Value{}, false, nil
	}
	f := rt.prog.FuncAt(funcIndex)
	return tagReturn(f.RetType, word), true, nil
}

func tagReturn(t ValueType, word int64) Value {
	if t == TypeBool {
		return BoolValue(word != 0)
	}
	return IntValue(word)
}

// dispatchCallGo is the Go-level landing pad callThunkAsm bridges
// into. rt/argBuf cross the boundary as raw pointers: the Runtime is
// kept alive for the whole process by main.go's own reference to it,
// and argBuf points at a stack-allocated vector the jitted caller
// owns for the duration of this call.
func dispatchCallGo(rtPtr unsafe.Pointer, calleeIndex int64, argBuf unsafe.Pointer) (hasRet int64, ret int64) {
	rt := (*Runtime)(rtPtr)
	f := rt.prog.FuncAt(int(calleeIndex))

	n := len(f.Params)
	args := make([]Value, n)
	if n > 0 {
		words := (*[1 << 20]int64)(argBuf)[:n:n]
		for i, w := range words {
			if i < len(f.ParamTypes) && f.ParamTypes[i] == TypeBool {
				args[i] = BoolValue(w != 0)
			} else {
				args[i] = IntValue(w)
			}
		}
	}

	v, has, err := rt.DispatchCall(int(calleeIndex), args)
	if err != nil {
		panic(err)
	}
	if has {
		return 1, v.Word()
	}
	return 0, 0
}

// DumpProfile writes per-function call counts and per-label hit counts
// to w, in declaration order. It is purely a `-profile` diagnostic,
// printed after the program's own stdout so it never perturbs the
// byte-for-byte output equality interpreted, JIT, and OSR execution
// are all required to produce.
func (rt *Runtime) DumpProfile(w io.Writer) {
	for i := 0; i < rt.prog.NumFuncs(); i++ {
		f := rt.prog.FuncAt(i)
		fmt.Fprintf(w, "%s: %d calls\n", f.Name, rt.callCounts[i])
		labels := rt.labelCounts[i]
		if len(labels) == 0 {
			continue
		}
		names := make([]string, 0, len(labels))
		for l := range labels {
			names = append(names, l)
		}
		sort.Strings(names)
		for _, l := range names {
			fmt.Fprintf(w, "  %s: %d hits\n", l, labels[l])
		}
	}
}

// printThunkGo is the Go-level landing pad printThunkAsm bridges into.
func printThunkGo(selector int64, word int64) {
	switch selector {
	case 0:
		PrintInt(word)
	case 1:
		PrintBool(word)
	default:
		PrintNewline()
	}
}
