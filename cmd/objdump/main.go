// objdump prints an object file's header, sections, and symbol tables,
// and optionally a disassembled listing of its text section.
//
// Usage: objdump [-s|--disassembler] INPUT
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rymis/robolang/internal/disasm"
	"github.com/rymis/robolang/internal/object"
)

func main() {
	disassemble := flag.Bool("s", false, "show a disassembled listing instead of a hex dump of text")
	flag.BoolVar(disassemble, "disassembler", false, "alias for -s")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-s|--disassembler] INPUT\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "objdump: %v\n", err)
		os.Exit(1)
	}
	obj, err := object.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "objdump: %v\n", err)
		os.Exit(1)
	}

	dump(obj, *disassemble)
}

func dump(obj *object.Object, disassemble bool) {
	fmt.Printf("flags:         0x%08x\n", obj.Flags)
	fmt.Printf("stack_size:    %d\n", obj.StackSize)
	fmt.Printf("text:          %d bytes\n", obj.TextLen())
	fmt.Printf("data:          %d bytes\n", obj.DataLen())
	fmt.Printf("symbols:       %d\n", len(obj.Symbols))
	for _, s := range obj.Symbols {
		fmt.Printf("  %-32s 0x%08x\n", s.Name, s.Addr)
	}
	fmt.Printf("relocations:   %d\n", len(obj.Relocations))
	for _, r := range obj.Relocations {
		fmt.Printf("  0x%08x\n", r)
	}
	fmt.Printf("dependencies:  %d\n", len(obj.Dependencies))
	for _, d := range obj.Dependencies {
		fmt.Printf("  %-32s slot 0x%08x\n", d.Name, d.Addr)
	}

	fmt.Println()
	if disassemble {
		fmt.Print(disasm.Listing(obj))
		return
	}

	fmt.Println("text (hex):")
	for i := 0; i < len(obj.Text); i += 16 {
		end := i + 16
		if end > len(obj.Text) {
			end = len(obj.Text)
		}
		fmt.Printf("  %08x: % x\n", i, obj.Text[i:end])
	}
}
