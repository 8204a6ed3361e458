package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Totillity/ojit-sub000/internal/exec"
	"github.com/Totillity/ojit-sub000/internal/intern"
	"github.com/Totillity/ojit-sub000/internal/jit"
	"github.com/Totillity/ojit-sub000/internal/parser"
	"github.com/Totillity/ojit-sub000/internal/value"
)

func newRootCommand() *cobra.Command {
	var entry string
	var dump bool
	var noOptimize bool
	var logLevel string

	cmd := &cobra.Command{
		Use:          "ojit <file> [args...]",
		Short:        "Compile and run a single-file ojit program",
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.New()
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return errors.Wrapf(err, "invalid --log-level %q", logLevel)
			}
			log.SetLevel(level)
			log.SetOutput(os.Stderr)

			return runFile(log, args[0], args[1:], entry, dump, !noOptimize)
		},
	}

	cmd.Flags().StringVar(&entry, "entry", "main", "name of the function to compile and run")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the compiled function's machine code as hex before running it")
	cmd.Flags().BoolVar(&noOptimize, "no-optimize", false, "skip the peephole optimizer")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "panic, fatal, error, warn, info, debug, or trace")

	return cmd
}

// runFile parses path, registers every function the source defines (so
// entry's Global references resolve), compiles entry, optionally dumps its
// machine code, then calls it with argStrs parsed as 32-bit integers
// (original_source's main.c does the equivalent: read test.txt, compile
// "main", hex-dump, then call the result with a literal argument).
func runFile(log *logrus.Logger, path string, argStrs []string, entry string, dump, optimize bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %q", path)
	}

	symbols := intern.NewTable()
	funcs, err := parser.New(string(src), symbols).ParseProgram()
	if err != nil {
		return errors.Wrap(err, "parsing")
	}
	if _, ok := funcs[entry]; !ok {
		return errors.Errorf("no function named %q in %s", entry, path)
	}

	args := make([]int32, len(argStrs))
	for i, s := range argStrs {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return errors.Wrapf(err, "argument %d (%q) is not an integer", i, s)
		}
		args[i] = int32(n)
	}
	if len(args) > 4 {
		return errors.New("at most 4 arguments are supported")
	}

	f := jit.New(symbols, log, optimize)
	for name, def := range funcs {
		f.Register(name, def)
	}

	compiled, err := f.GetCompiledFunction(entry)
	if err != nil {
		return errors.Wrapf(err, "compiling %q", entry)
	}

	if dump {
		fmt.Println(hex.EncodeToString(compiled.Code()))
	}

	result, err := invoke(compiled, args)
	if err != nil {
		return err
	}
	boxed := value.Boxed(result)
	switch {
	case boxed.IsError():
		return errors.New("compiled code reported a runtime error")
	case boxed.IsInt():
		fmt.Println(boxed.AsInt())
	default:
		fmt.Printf("%#x\n", uint64(boxed))
	}
	return nil
}

// invoke casts compiled.Entry into a Go function value of the matching
// arity and calls it. This is the same raw-pointer-into-a-func-value trick
// internal/jit's own tests use; it only works for code compiled under the
// Windows x64 ABI this package emits (internal/exec.NewCallback, and so
// this whole invocation path, requires GOOS=windows — see DESIGN.md).
func invoke(compiled *exec.CompiledFunction, args []int32) (uint64, error) {
	switch len(args) {
	case 0:
		var call func() uint64
		*(*uintptr)(unsafe.Pointer(&call)) = compiled.Entry
		return call(), nil
	case 1:
		var call func(uint64) uint64
		*(*uintptr)(unsafe.Pointer(&call)) = compiled.Entry
		return call(uint64(value.Int(args[0]))), nil
	case 2:
		var call func(uint64, uint64) uint64
		*(*uintptr)(unsafe.Pointer(&call)) = compiled.Entry
		return call(uint64(value.Int(args[0])), uint64(value.Int(args[1]))), nil
	case 3:
		var call func(uint64, uint64, uint64) uint64
		*(*uintptr)(unsafe.Pointer(&call)) = compiled.Entry
		return call(uint64(value.Int(args[0])), uint64(value.Int(args[1])), uint64(value.Int(args[2]))), nil
	default:
		var call func(uint64, uint64, uint64, uint64) uint64
		*(*uintptr)(unsafe.Pointer(&call)) = compiled.Entry
		return call(uint64(value.Int(args[0])), uint64(value.Int(args[1])), uint64(value.Int(args[2])), uint64(value.Int(args[3]))), nil
	}
}
