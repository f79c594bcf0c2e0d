package engine

import (
	"os"
	"strconv"
)

// Host printer primitives. These are the two things compiled code is
// allowed to call out to the host for; the interpreter uses them too
// so that output is byte-identical across every tier. PrintInt and
// PrintBool each take a single 64-bit word, exactly as a compiled call
// to a fixed host address would pass it; PrintNewline takes none.

// PrintInt emits an integer followed by one space.
func PrintInt(i int64) {
	os.Stdout.WriteString(strconv.FormatInt(i, 10))
	os.Stdout.WriteString(" ")
}

// PrintBool emits "true"/"false" (nonzero word → true) followed by
// one space.
func PrintBool(word int64) {
	if word != 0 {
		os.Stdout.WriteString("true ")
	} else {
		os.Stdout.WriteString("false ")
	}
}

// PrintNewline emits a single '\n', terminating one `print` instruction's
// output.
func PrintNewline() {
	os.Stdout.WriteString("\n")
}

// printValue dispatches to PrintInt or PrintBool by the value's own
// tag (the interpreter always has one; compiled code instead looks at
// the recorded per-variable type, see codegen.go's print lowering).
func printValue(v Value) {
	if v.Kind == KindBool {
		PrintBool(v.Word())
	} else {
		PrintInt(v.Int)
	}
}
