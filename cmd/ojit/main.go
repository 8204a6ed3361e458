// Command ojit compiles and runs a single source file, grounded on the
// original implementation's own driver (original_source's main.c: read a
// file, parse it, compile one function, hex-dump the result, then invoke
// it) generalized into a small cobra CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
