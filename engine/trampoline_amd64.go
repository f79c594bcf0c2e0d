//go:build amd64

package engine

import "unsafe"

// nativeEnter crosses from Go into a compiled artifact at a given
// entry address (either a normal entry or an OSR entry), presenting
// the entry's own expected convention: first argument register =
// runtime pointer, second = argument-vector pointer (ignored by an
// OSR entry, which gets its live state from immediates baked into its
// prefix instead). Before transferring control it switches onto
// Runtime.jitStack, a dedicated buffer the compiled artifact's whole
// call tree — including nested cross-tier calls back out through
// callThunkAsm/printThunkAsm — runs on instead of the goroutine's own
// stack, so a stack-growth check triggered from Go code reached via a
// callback never has to walk a JIT return address it can't resolve. It
// returns the (hasRet, value) pair the artifact left in rax/rdx.
// Implemented in trampoline_amd64.s.
//
//go:noescape
func nativeEnter(entry uintptr, runtimePtr unsafe.Pointer, argBuf unsafe.Pointer) (hasRet int64, ret int64)

// callThunkAsm is the fixed address compiled code's own `call`
// lowering jumps to. It is never called from Go source — only from
// machine code this package emits, still running on the jit stack —
// so its argument registers (rdi = runtime pointer, rsi = callee
// index, rdx = argument-vector pointer) are a convention private to
// that call site, not the Go-to-assembly ABI0 frame its declaration
// would otherwise imply. The assembly body switches onto the
// goroutine's own stack, stages those three registers into
// dispatchCallGo's real Go-level argument frame, calls back into Go,
// then switches back onto the jit stack before returning.
//
//go:noescape
func callThunkAsm()

// printThunkAsm is the fixed address compiled code's `print` lowering
// calls: rdi carries the runtime pointer, rsi a selector (0 = int,
// 1 = bool, 2 = newline), rdx the word to print. Bridges to
// printThunkGo the same way callThunkAsm bridges to dispatchCallGo,
// including the same switch onto the goroutine stack and back.
//
//go:noescape
func printThunkAsm()

// callThunkPC and printThunkPC return the raw ABI0 entry addresses of
// the two thunks, for codegen to bake into compiled call sites as
// immediates. Taking a Go function value of an assembly func and
// extracting its pointer would hand back a compiler-generated ABI
// wrapper instead — one with a stack-growth prologue that must never
// run on the jit stack — so the addresses are read out in assembly,
// where a reference to the symbol is the real entry point.
func callThunkPC() uintptr

func printThunkPC() uintptr
