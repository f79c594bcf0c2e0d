package engine

import (
	"io"
	"os"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(format, args...)
	}
}

// captureStdout redirects os.Stdout for the duration of fn and returns
// everything written to it. printer.go writes through os.Stdout
// directly (no io.Writer indirection), so this is the only way to
// observe it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	assert(t, err == nil, "os.Pipe: %v", err)

	saved := os.Stdout
	os.Stdout = w
	fn()
	os.Stdout = saved
	w.Close()

	out, err := io.ReadAll(r)
	assert(t, err == nil, "reading captured stdout: %v", err)
	return string(out)
}

func label(name string) Instruction { return Instruction{IsLabel: true, Label: name} }

func constInt(dest string, v int64) Instruction {
	return Instruction{Op: OpConst, Dest: dest, HasDest: true, Const: IntValue(v), Type: TypeInt}
}

func constBool(dest string, v bool) Instruction {
	return Instruction{Op: OpConst, Dest: dest, HasDest: true, Const: BoolValue(v), Type: TypeBool}
}

func binop(op Op, dest, a, b string, t ValueType) Instruction {
	return Instruction{Op: op, Dest: dest, HasDest: true, Args: []string{a, b}, Type: t}
}

func unop(op Op, dest, a string, t ValueType) Instruction {
	return Instruction{Op: op, Dest: dest, HasDest: true, Args: []string{a}, Type: t}
}

func idInstr(dest, src string, t ValueType) Instruction {
	return Instruction{Op: OpId, Dest: dest, HasDest: true, Args: []string{src}, Type: t}
}

func jmp(l string) Instruction { return Instruction{Op: OpJmp, Args: []string{l}} }

func br(cond, t, f string) Instruction { return Instruction{Op: OpBr, Args: []string{cond, t, f}} }

func ret(args ...string) Instruction { return Instruction{Op: OpRet, Args: args} }

func printInstr(args ...string) Instruction { return Instruction{Op: OpPrint, Args: args} }

func callInstr(dest, callee string, t ValueType, args ...string) Instruction {
	inst := Instruction{Op: OpCall, Args: append([]string{callee}, args...)}
	if dest != "" {
		inst.Dest = dest
		inst.HasDest = true
		inst.Type = t
	}
	return inst
}

// runInterpreted builds a one-function program and runs it purely
// through the interpreter (jit/osr both disabled), returning stdout.
func runInterpreted(t *testing.T, f Function) string {
	t.Helper()
	prog := &Program{Funcs: []Function{f}}
	rt := NewRuntime(prog, 0, 0)
	var failed bool
	out := captureStdout(t, func() {
		_, _, err := rt.Run(nil)
		failed = err != nil
	})
	assert(t, !failed, "interpreted run of %s failed", f.Name)
	return out
}

func TestConstAndArithmetic(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constInt("a", 7),
		constInt("b", 5),
		binop(OpSub, "c", "a", "b", TypeInt),
		printInstr("c"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "2 \n", "got %q", out)
}

func TestDivTruncatesTowardZero(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constInt("a", -7),
		constInt("b", 2),
		binop(OpDiv, "c", "a", "b", TypeInt),
		printInstr("c"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "-3 \n", "got %q", out)
}

func TestComparisonAndBranch(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constInt("x", 3),
		constInt("y", 4),
		binop(OpLt, "c", "x", "y", TypeBool),
		br("c", "L1", "L2"),
		label("L1"),
		constInt("t", 1),
		printInstr("t"),
		ret(),
		label("L2"),
		constInt("t", 0),
		printInstr("t"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "1 \n", "got %q", out)
}

func TestLtIsComplementOfGe(t *testing.T) {
	pairs := [][2]int64{{3, 4}, {4, 3}, {4, 4}, {-1, 1}}
	for _, p := range pairs {
		a, b := p[0], p[1]
		lt := evalIntBinop(OpLt, a, b).Bool
		ge := evalIntBinop(OpGe, a, b).Bool
		assert(t, lt == !ge, "lt(%d,%d)=%v should be !ge=%v", a, b, lt, !ge)

		le := evalIntBinop(OpLe, a, b).Bool
		gt := evalIntBinop(OpGt, a, b).Bool
		assert(t, le == !gt, "le(%d,%d)=%v should be !gt=%v", a, b, le, !gt)

		eq := evalIntBinop(OpEq, a, b).Bool
		ne := evalIntBinop(OpNe, a, b).Bool
		assert(t, eq == !ne, "eq(%d,%d)=%v should be !ne=%v", a, b, eq, !ne)
	}
}

func TestBooleanOps(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constBool("t", true),
		constBool("f", false),
		binop(OpAnd, "a", "t", "f", TypeBool),
		binop(OpOr, "b", "t", "f", TypeBool),
		unop(OpNot, "n", "t", TypeBool),
		printInstr("a", "b", "n"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "false true false \n", "got %q", out)
}

func TestIdIsIdempotentCopy(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constInt("a", 9),
		idInstr("b", "a", TypeInt),
		printInstr("b"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "9 \n", "got %q", out)
}

func TestEmptyFunctionProducesNoOutput(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{ret()}}
	out := runInterpreted(t, f)
	assert(t, out == "", "expected no output, got %q", out)
}

func TestForwardLabelReference(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		jmp("skip"),
		printInstr(), // never reached
		label("skip"),
		constInt("v", 5),
		printInstr("v"),
		ret(),
	}}
	out := runInterpreted(t, f)
	assert(t, out == "5 \n", "got %q", out)
}

func TestUnknownFuncIsReportedAndAbandoned(t *testing.T) {
	prog := &Program{Funcs: []Function{{Name: "main", Instrs: []Instruction{
		callInstr("", "missing", TypeNone),
		ret(),
	}}}}
	rt := NewRuntime(prog, 0, 0)
	_, _, err := rt.Run(nil)
	assert(t, err != nil, "expected an error calling an unknown function")
}

func TestCallWithTooFewArgsIsMissingArgError(t *testing.T) {
	prog := &Program{Funcs: []Function{
		{Name: "main", Instrs: []Instruction{
			callInstr("", "needsTwo", TypeNone, "onlyOneArgMissing"),
			ret(),
		}},
		{Name: "needsTwo", Params: []string{"a", "b"}, ParamTypes: []ValueType{TypeInt, TypeInt},
			Instrs: []Instruction{ret()}},
	}}
	rt := NewRuntime(prog, 0, 0)
	_, _, err := rt.Run(nil)
	assert(t, err != nil, "expected a missing-argument error")
}

func TestNoReturnValueBoundToDestIsRejected(t *testing.T) {
	prog := &Program{Funcs: []Function{
		{Name: "main", Instrs: []Instruction{
			callInstr("x", "voidFn", TypeInt),
			ret(),
		}},
		{Name: "voidFn", Instrs: []Instruction{ret()}},
	}}
	rt := NewRuntime(prog, 0, 0)
	_, _, err := rt.Run(nil)
	assert(t, err != nil, "binding a dest to a no-value ret should be an error")
}

func TestTypeMismatchOnBoolOperand(t *testing.T) {
	f := Function{Name: "main", Instrs: []Instruction{
		constInt("a", 1),
		unop(OpNot, "n", "a", TypeBool),
		ret(),
	}}
	prog := &Program{Funcs: []Function{f}}
	rt := NewRuntime(prog, 0, 0)
	_, _, err := rt.Run(nil)
	assert(t, err != nil, "expected a type mismatch using an int as a bool")
}
