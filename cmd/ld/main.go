// ld merges RobotVM object files into one, resolving cross-unit symbol
// references.
//
// Usage: ld [-o OUT] [-i|--incremental] INPUT...
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rymis/robolang/internal/linker"
	"github.com/rymis/robolang/internal/object"
)

func main() {
	output := flag.String("o", "a.out", "output file")
	incremental := flag.Bool("i", false, "allow unresolved non-host dependencies in the output")
	flag.BoolVar(incremental, "incremental", false, "alias for -i")
	verbose := flag.Bool("v", false, "verbose output")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-o OUT] [-i|--incremental] [-v] INPUT...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	var ld *linker.Linker
	for i, path := range flag.Args() {
		if *verbose {
			fmt.Printf("Loading %s\n", path)
		}
		obj, err := readObject(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ld: %v\n", err)
			os.Exit(1)
		}
		if i == 0 {
			ld = linker.New(obj)
			ld.Incremental = *incremental
			continue
		}
		if err := ld.Merge(obj); err != nil {
			fmt.Fprintf(os.Stderr, "ld: %v\n", err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Merged %s: text=%d data=%d symbols=%d unresolved=%d\n",
				path, ld.Result().TextLen(), ld.Result().DataLen(),
				len(ld.Result().Symbols), linker.CountUnresolved(ld.Result()))
		}
	}

	result, err := ld.Finish()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ld: %v\n", err)
		os.Exit(1)
	}

	data, err := result.Encode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ld: encoding output: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ld: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Link successful: %s\n", *output)
		fmt.Printf("Text: %d bytes, Data: %d bytes\n", result.TextLen(), result.DataLen())
	}
}

func readObject(path string) (*object.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	obj, err := object.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return obj, nil
}
