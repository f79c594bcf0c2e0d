package main

import (
	"fmt"
	"os"
	"strconv"

	"bril-tier/engine"
)

// CLI surface: a positional IR file, optional -jit N / -osr N
// thresholds, an optional -profile dump, and any remaining positional
// tokens parsed as int64 arguments to main.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s [-jit N] [-osr N] [-profile] <program.json> [arg ...]\n", os.Args[0])
		os.Exit(1)
	}

	var jitN, osrN int64
	var profile bool
	var file string
	var cliArgs []int64

	i := 1
	for i < len(os.Args) {
		switch os.Args[i] {
		case "-jit":
			if i+1 >= len(os.Args) {
				fmt.Fprintln(os.Stderr, "-jit requires a numeric argument")
				os.Exit(1)
			}
			jitN = mustParseInt(os.Args[i+1])
			i += 2
		case "-osr":
			if i+1 >= len(os.Args) {
				fmt.Fprintln(os.Stderr, "-osr requires a numeric argument")
				os.Exit(1)
			}
			osrN = mustParseInt(os.Args[i+1])
			i += 2
		case "-profile":
			profile = true
			i++
		default:
			if file == "" {
				file = os.Args[i]
			} else {
				cliArgs = append(cliArgs, mustParseInt(os.Args[i]))
			}
			i++
		}
	}

	if file == "" {
		fmt.Fprintln(os.Stderr, "missing program file argument")
		os.Exit(1)
	}

	raw, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't read %s: %v\n", file, err)
		os.Exit(1)
	}

	prog, err := loadProgram(raw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Couldn't parse %s: %v\n", file, err)
		os.Exit(1)
	}

	os.Exit(run(prog, jitN, osrN, cliArgs, profile))
}

// run drives one execution of prog and returns the process exit code:
// 0 for a clean run, 1 when the engine reports a failed run (unknown
// function, malformed call arity, type mismatch and the like), and 2
// when a Go panic escapes the engine (for example an integer division
// by zero in the interpreter). The panic is caught here and reported so
// a caller script can tell it apart from the other two outcomes.
func run(prog *engine.Program, jitN, osrN int64, cliArgs []int64, profile bool) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			exitCode = 2
		}
	}()

	rt := engine.NewRuntime(prog, jitN, osrN)
	_, _, err := rt.Run(cliArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	if profile {
		rt.DumpProfile(os.Stderr)
	}
	return 0
}

func mustParseInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "expected an integer, got %q\n", s)
		os.Exit(1)
	}
	return n
}
