package main

import (
	"encoding/json"
	"fmt"

	"bril-tier/engine"
)

// jsonProgram mirrors the on-disk IR format: a top-level "functions"
// array, each function an optional "args" list and an "instrs" list of
// either label markers or operations.
type jsonProgram struct {
	Functions []jsonFunction `json:"functions"`
}

type jsonFunction struct {
	Name   string      `json:"name"`
	Args   []jsonParam `json:"args"`
	Instrs []jsonInstr `json:"instrs"`
}

type jsonParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonInstr struct {
	Label *string          `json:"label"`
	Op    string           `json:"op"`
	Args  []string         `json:"args"`
	Dest  *string          `json:"dest"`
	Value *json.RawMessage `json:"value"`
	Type  string           `json:"type"`
}

// loadProgram decodes raw into a Program the engine can run. This is
// the one place in the repo that knows the JSON wire shape; everything
// past here speaks only engine.Program.
func loadProgram(raw []byte) (*engine.Program, error) {
	var jp jsonProgram
	if err := json.Unmarshal(raw, &jp); err != nil {
		return nil, err
	}

	prog := &engine.Program{Funcs: make([]engine.Function, len(jp.Functions))}
	seen := make(map[string]bool, len(jp.Functions))
	for i, jf := range jp.Functions {
		if seen[jf.Name] {
			return nil, fmt.Errorf("duplicate function name %q", jf.Name)
		}
		seen[jf.Name] = true

		f := engine.Function{Name: jf.Name}
		for _, p := range jf.Args {
			f.Params = append(f.Params, p.Name)
			f.ParamTypes = append(f.ParamTypes, parseValueType(p.Type))
		}

		f.Instrs = make([]engine.Instruction, len(jf.Instrs))
		for j, ji := range jf.Instrs {
			inst, err := decodeInstr(ji)
			if err != nil {
				return nil, fmt.Errorf("function %s, instr %d: %w", jf.Name, j, err)
			}
			f.Instrs[j] = inst
		}
		f.RetType = inferReturnType(&f)
		prog.Funcs[i] = f
	}
	return prog, nil
}

// inferReturnType finds the variable a function's `ret` hands back (if
// any) and resolves its recorded type via engine.VarTypes, the same
// inference codegen uses to pick print_int vs print_bool for a local.
// A function with no `ret value` returns no value at all, so its
// return type never matters (tagReturn's Int/Bool choice is then moot).
func inferReturnType(f *engine.Function) engine.ValueType {
	types := engine.VarTypes(f)
	for _, inst := range f.Instrs {
		if !inst.IsLabel && inst.Op == engine.OpRet && len(inst.Args) > 0 {
			if t, ok := types[inst.Args[0]]; ok {
				return t
			}
		}
	}
	return engine.TypeInt
}

func decodeInstr(ji jsonInstr) (engine.Instruction, error) {
	if ji.Label != nil {
		return engine.Instruction{IsLabel: true, Label: *ji.Label}, nil
	}

	op, ok := engine.ParseOp(ji.Op)
	if !ok {
		return engine.Instruction{}, fmt.Errorf("unknown op %q", ji.Op)
	}

	inst := engine.Instruction{
		Op:   op,
		Args: ji.Args,
		Type: parseValueType(ji.Type),
	}
	if ji.Dest != nil {
		inst.Dest = *ji.Dest
		inst.HasDest = true
	}

	if op == engine.OpConst {
		v, err := decodeConst(ji.Value)
		if err != nil {
			return engine.Instruction{}, err
		}
		inst.Const = v
		if inst.Type == engine.TypeNone {
			inst.Type = engine.TypeInt
			if v.Kind == engine.KindBool {
				inst.Type = engine.TypeBool
			}
		}
	}
	return inst, nil
}

// decodeConst reconstructs the literal Value for a `const`. A JSON
// bool decodes unambiguously; a JSON number is an int regardless of
// the recorded type string, which only exists to drive print
// formatting downstream.
func decodeConst(raw *json.RawMessage) (engine.Value, error) {
	if raw == nil {
		return engine.Value{}, fmt.Errorf("const with no value")
	}
	var b bool
	if err := json.Unmarshal(*raw, &b); err == nil {
		return engine.BoolValue(b), nil
	}
	var n int64
	if err := json.Unmarshal(*raw, &n); err == nil {
		return engine.IntValue(n), nil
	}
	return engine.Value{}, fmt.Errorf("const value %s is neither int nor bool", string(*raw))
}

func parseValueType(s string) engine.ValueType {
	switch s {
	case "bool":
		return engine.TypeBool
	case "int":
		return engine.TypeInt
	default:
		return engine.TypeNone
	}
}
