// Package object implements the in-memory representation of a RobotVM
// translation unit and its canonical on-disk encoding.
//
// An Object is produced by the assembler or by Decode, combined with
// others by the linker's Merge (which builds a new Object and leaves its
// inputs unchanged), and finally consumed by the VM loader. See
// SPEC_FULL.md §[MODULE] object for the full contract.
package object

import "fmt"

// Word is the fundamental RobotVM integer: unsigned 32-bit, big-endian
// on disk and whenever read from VM memory.
type Word = uint32

// wordSize is the on-disk and in-memory size of a Word in bytes.
const wordSize = 4

// HostPrefix marks a dependency name as a host primitive rather than a
// symbol the linker must resolve.
const HostPrefix = '%'

// Symbol is a name/address pair. Defined symbols carry the address at
// which they live; dependency symbols carry the address of the Word
// slot that must be filled in with the resolved value.
type Symbol struct {
	Name string
	Addr Word
}

// IsHostPrimitive reports whether a dependency name refers to a host
// primitive (resolved by the VM loader) rather than another translation
// unit's symbol (resolved by the linker).
func (s Symbol) IsHostPrimitive() bool {
	return len(s.Name) > 0 && s.Name[0] == HostPrefix
}

// Object is one translation unit: header fields, code and data
// sections, the defined-symbol table, the relocation list, and the
// unresolved-dependency list.
type Object struct {
	Flags     Word
	StackSize Word

	Text []byte
	Data []byte

	Symbols      []Symbol // defined symbols, names unique within the object
	Relocations  []Word   // addresses of Words that must shift with the load base
	Dependencies []Symbol // unresolved references; Addr is the slot to fill in

	// SourceName is a debug-only field set by the assembler to the name
	// of the input file it was produced from. It is never part of the
	// wire format and does not round-trip through Encode/Decode.
	SourceName string
}

// New returns an empty object with zeroed header fields.
func New() *Object {
	return &Object{}
}

// TextLen and DataLen are the section lengths, exposed as functions
// rather than stored redundantly so that callers who append bytes
// directly to Text/Data never need to keep a separate length in sync.
func (o *Object) TextLen() int { return len(o.Text) }
func (o *Object) DataLen() int { return len(o.Data) }

// totalLen is the size of the combined address space a relocation or
// dependency address may point into: text followed by data.
func (o *Object) totalLen() int {
	return len(o.Text) + len(o.Data)
}

// DependenciesCountNonHost returns the number of dependencies whose
// names do not start with '%' — the linker's completeness check.
func (o *Object) DependenciesCountNonHost() int {
	n := 0
	for _, d := range o.Dependencies {
		if !d.IsHostPrimitive() {
			n++
		}
	}
	return n
}

// FindSymbol returns the defined symbol named name, if any.
func (o *Object) FindSymbol(name string) (Symbol, bool) {
	for _, s := range o.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Validate checks the invariants from SPEC_FULL.md §3: defined-symbol
// names are unique, every relocation is 4-byte-aligned and in range, and
// no name is both a defined symbol and a dependency.
func (o *Object) Validate() error {
	seen := make(map[string]bool, len(o.Symbols))
	for _, s := range o.Symbols {
		if seen[s.Name] {
			return fmt.Errorf("object: duplicate defined symbol %q", s.Name)
		}
		seen[s.Name] = true
	}

	total := o.totalLen()
	for _, r := range o.Relocations {
		if r%wordSize != 0 {
			return fmt.Errorf("object: relocation at 0x%x is not 4-byte-aligned", r)
		}
		if int(r) < 0 || int(r)+wordSize > total {
			return fmt.Errorf("object: relocation at 0x%x out of range [0, %d)", r, total)
		}
	}

	for _, d := range o.Dependencies {
		if seen[d.Name] {
			return fmt.Errorf("object: name %q is both a defined symbol and a dependency", d.Name)
		}
	}

	return nil
}

// ReadWord reads a big-endian Word out of the combined text+data address
// space at file-local address addr.
func (o *Object) ReadWord(addr Word) (Word, error) {
	buf, off, err := o.sliceAt(addr)
	if err != nil {
		return 0, err
	}
	return beUint32(buf[off:]), nil
}

// WriteWord writes a big-endian Word into the combined text+data address
// space at file-local address addr.
func (o *Object) WriteWord(addr Word, v Word) error {
	buf, off, err := o.sliceAt(addr)
	if err != nil {
		return err
	}
	putBeUint32(buf[off:], v)
	return nil
}

// sliceAt resolves a file-local address to the section slice (Text or
// Data) and the offset into it that holds the addressed Word.
func (o *Object) sliceAt(addr Word) ([]byte, int, error) {
	textLen := Word(len(o.Text))
	if addr < textLen {
		if int(addr)+wordSize > len(o.Text) {
			return nil, 0, fmt.Errorf("object: address 0x%x+4 overruns text", addr)
		}
		return o.Text, int(addr), nil
	}
	off := addr - textLen
	if int(off)+wordSize > len(o.Data) {
		return nil, 0, fmt.Errorf("object: address 0x%x+4 overruns data", addr)
	}
	return o.Data, int(off), nil
}

func beUint32(b []byte) Word {
	return Word(b[0])<<24 | Word(b[1])<<16 | Word(b[2])<<8 | Word(b[3])
}

func putBeUint32(b []byte, v Word) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
