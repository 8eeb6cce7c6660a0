// Command lua53 is the launcher for the interpreter: it plays both
// pylua (run a script or precompiled chunk) and pyluac (compile only),
// selected by the -o flag, per the exit code convention 0 (ok), 1
// (uncaught runtime error), 2 (compile/parse error), 3 (I/O error).
package main

import (
	"flag"
	"fmt"
	"os"

	"lua53"
)

func main() {
	out := flag.String("o", "", "compile only, writing output to this file")
	flag.Parse()
	fileName := flag.Arg(0)
	if fileName == "" {
		fmt.Fprintln(os.Stderr, "usage: lua53 [-o out.luac] script.lua")
		os.Exit(3)
	}

	l := lua.NewStateEx()
	lua.OpenLibraries(l)

	if err := lua.LoadFile(l, fileName, ""); err != nil {
		exit(err)
	}

	if *out != "" {
		// The .luac writer is not implemented (see SPEC_FULL.md §13); after a
		// successful parse this reports so and exits with status 2, writing nothing.
		fmt.Fprintln(os.Stderr, "lua53: -o: binary chunk writer is not implemented")
		os.Exit(2)
	}

	if err := l.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
		exit(err)
	}
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	switch err.(lua.Status) {
	case lua.SyntaxError:
		os.Exit(2)
	case lua.FileError:
		os.Exit(3)
	default:
		os.Exit(1)
	}
}
