// Package disasm renders an object.Object's text section as a listing:
// one line per instruction, labels interspersed, and `load` immediates
// annotated with the symbol or dependency name at their target when one
// matches. Grounded on the teacher's asm/disasm.go disassemble loop
// (address-ordered single pass emitting "ADDR: bytes  mnemonic"),
// generalized from its fixed-width WUT-4 decode to this ISA's
// opcode+3-operand-bytes shape and variable-length `load`.
package disasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rymis/robolang/internal/isa"
	"github.com/rymis/robolang/internal/object"
)

// Listing disassembles obj's text section into a human-readable
// multi-line string.
func Listing(obj *object.Object) string {
	labelsAt := make(map[object.Word][]string)
	for _, s := range obj.Symbols {
		labelsAt[s.Addr] = append(labelsAt[s.Addr], s.Name)
	}

	targetName := make(map[object.Word]string)
	for _, s := range obj.Symbols {
		targetName[s.Addr] = s.Name
	}
	depAt := make(map[object.Word]string)
	for _, d := range obj.Dependencies {
		depAt[d.Addr] = d.Name
	}
	relocSet := make(map[object.Word]bool, len(obj.Relocations))
	for _, r := range obj.Relocations {
		relocSet[r] = true
	}

	var sb strings.Builder
	text := obj.Text
	addr := object.Word(0)

	for int(addr) < len(text) {
		for _, name := range sortedLabels(labelsAt[addr]) {
			fmt.Fprintf(&sb, ":%s\n", name)
		}

		if int(addr)+4 > len(text) {
			fmt.Fprintf(&sb, "%08x: %02x          (truncated)\n", addr, text[addr])
			break
		}
		op := isa.Opcode(text[addr])
		a, b, c := text[addr+1], text[addr+2], text[addr+3]

		if op == isa.Load && int(addr)+8 <= len(text) {
			imm := beUint32(text[addr+4:])
			annotation := ""
			immAddr := addr + 4
			if relocSet[immAddr] {
				if name, ok := targetName[imm]; ok {
					annotation = "  ; -> :" + name
				}
			} else if name, ok := depAt[immAddr]; ok {
				annotation = "  ; -> " + name
			}
			fmt.Fprintf(&sb, "%08x: %02x %02x %02x %02x %08x  load r%d, 0x%08x%s\n",
				addr, byte(op), a, b, c, imm, a, imm, annotation)
			addr += 8
			continue
		}

		fmt.Fprintf(&sb, "%08x: %02x %02x %02x %02x  %s\n", addr, byte(op), a, b, c, formatMnemonic(op, a, b, c))
		addr += 4
	}

	return sb.String()
}

func formatMnemonic(op isa.Opcode, a, b, c byte) string {
	if int(op) >= int(isa.Count) || isa.Table[op].Mnemonic == "" {
		return fmt.Sprintf("??? (0x%02x)", byte(op))
	}
	def := isa.Table[op]
	switch def.NumArgs {
	case 0:
		return def.Mnemonic
	case 1:
		return fmt.Sprintf("%s r%d", def.Mnemonic, a)
	case 2:
		return fmt.Sprintf("%s r%d, r%d", def.Mnemonic, a, b)
	default:
		return fmt.Sprintf("%s r%d, r%d, r%d", def.Mnemonic, a, b, c)
	}
}

func sortedLabels(names []string) []string {
	if len(names) < 2 {
		return names
	}
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func beUint32(b []byte) object.Word {
	return object.Word(b[0])<<24 | object.Word(b[1])<<16 | object.Word(b[2])<<8 | object.Word(b[3])
}
