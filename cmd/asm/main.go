// asm translates a RobotVM assembly source file into an object file.
//
// Usage: asm [-o OUT] INPUT
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rymis/robolang/internal/asm"
	"github.com/rymis/robolang/internal/object"
)

func main() {
	output := flag.String("o", "", "output file (default: INPUT with .s replaced by .o, else INPUT+.o)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-o OUT] INPUT\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	input := flag.Arg(0)

	src, err := os.ReadFile(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asm: %v\n", err)
		os.Exit(1)
	}

	obj, err := asm.Assemble(string(src), input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "asm: %v\n", err)
		os.Exit(1)
	}

	out := *output
	if out == "" {
		out = defaultOutput(input)
	}

	if err := writeObject(out, obj); err != nil {
		fmt.Fprintf(os.Stderr, "asm: %v\n", err)
		os.Exit(1)
	}
}

func defaultOutput(input string) string {
	if strings.HasSuffix(input, ".s") {
		return strings.TrimSuffix(input, ".s") + ".o"
	}
	return input + ".o"
}

func writeObject(path string, obj *object.Object) error {
	data, err := obj.Encode()
	if err != nil {
		return fmt.Errorf("encoding object: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
