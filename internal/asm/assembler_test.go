package asm

import (
	"testing"

	"github.com/rymis/robolang/internal/object"
)

func TestAssembleEmptyProgram(t *testing.T) {
	obj, err := Assemble(".text\nstop r0\n", "empty.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if obj.TextLen() != 4 {
		t.Fatalf("text len = %d, want 4", obj.TextLen())
	}
	if obj.DataLen() != 0 || len(obj.Symbols) != 0 || len(obj.Relocations) != 0 || len(obj.Dependencies) != 0 {
		t.Fatalf("expected an otherwise-empty object, got %+v", obj)
	}
}

func TestAssembleInternalLabelRelocation(t *testing.T) {
	src := `.text
load r2
const @target
stop r0
:target
add r0 r0 r0
`
	obj, err := Assemble(src, "internal.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(obj.Relocations) != 1 {
		t.Fatalf("relocations = %d, want 1", len(obj.Relocations))
	}
	if len(obj.Dependencies) != 0 {
		t.Fatalf("expected no dependencies, got %+v", obj.Dependencies)
	}
	slot := obj.Relocations[0]
	v, err := obj.ReadWord(slot)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	target, ok := obj.FindSymbol("target")
	if !ok {
		t.Fatal(":target was not recorded as a symbol")
	}
	if v != target.Addr {
		t.Fatalf("relocation slot holds %d, want %d", v, target.Addr)
	}
}

func TestAssembleHostPrimitiveDependency(t *testing.T) {
	src := `.text
load r5
const %print$
ext r5
`
	obj, err := Assemble(src, "hostcall.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(obj.Dependencies) != 1 {
		t.Fatalf("dependencies = %d, want 1", len(obj.Dependencies))
	}
	if obj.Dependencies[0].Name != "%print$" {
		t.Fatalf("dependency name = %q, want %%print$", obj.Dependencies[0].Name)
	}
	if !obj.Dependencies[0].IsHostPrimitive() {
		t.Fatal("dependency should be recognized as a host primitive")
	}
}

func TestAssembleDataLiteralLayout(t *testing.T) {
	src := `.text
load r1
const @msg
stop r0
.data
:msg
"hi"
`
	obj, err := Assemble(src, "data.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	msg, ok := obj.FindSymbol("msg")
	if !ok {
		t.Fatal("msg label not recorded")
	}
	if msg.Addr != object.Word(obj.TextLen()) {
		t.Fatalf("msg.Addr = %d, want text len %d", msg.Addr, obj.TextLen())
	}
	if string(obj.Data[:3]) != "hi\x00" {
		t.Fatalf("data = %q, want NUL-terminated \"hi\"", obj.Data[:3])
	}
}

func TestAssembleDuplicateLabel(t *testing.T) {
	_, err := Assemble(".text\n:a\nnop\n:a\nnop\n", "dup.s")
	assertSyntaxErrorKind(t, err, DuplicateLabel)
}

func TestAssembleUnknownMnemonic(t *testing.T) {
	_, err := Assemble(".text\nfrobnicate r0\n", "bad.s")
	assertSyntaxErrorKind(t, err, UnknownMnemonic)
}

func TestAssembleMissingOperand(t *testing.T) {
	_, err := Assemble(".text\nadd r0 r1\n", "missing.s")
	assertSyntaxErrorKind(t, err, MissingOperand)
}

func TestAssembleInstructionBeforeText(t *testing.T) {
	_, err := Assemble("nop\n", "early.s")
	assertSyntaxErrorKind(t, err, UnknownDirective)
}

func TestAssembleUnterminatedString(t *testing.T) {
	_, err := Assemble(".text\n\"unterminated\n", "str.s")
	assertSyntaxErrorKind(t, err, UnterminatedString)
}

func TestAssembleUnterminatedHexBlock(t *testing.T) {
	_, err := Assemble(".text\n{ AA BB\n", "hex.s")
	assertSyntaxErrorKind(t, err, UnterminatedBlock)
}

func TestAssembleOverflowLiteral(t *testing.T) {
	_, err := Assemble(".text\nload r0\nconst 99999999999999999999\n", "overflow.s")
	assertSyntaxErrorKind(t, err, Overflow)
}

// TestAssembleOverflowLiteralAtWordBoundary checks that a literal which
// fits comfortably in 64 bits but not in the 32-bit Word it is ultimately
// stored into (spec.md §4.2/§8: "integer overflow while accumulating is
// a SyntaxError") is still rejected, and that the largest representable
// Word is still accepted.
func TestAssembleOverflowLiteralAtWordBoundary(t *testing.T) {
	_, err := Assemble(".text\nload r0\nconst 0x100000000\n", "wordoverflow.s")
	assertSyntaxErrorKind(t, err, Overflow)

	obj, err := Assemble(".text\nload r0\nconst 0xffffffff\n", "wordmax.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	v, err := obj.ReadWord(4)
	if err != nil {
		t.Fatalf("ReadWord: %v", err)
	}
	if v != 0xffffffff {
		t.Fatalf("const slot = 0x%x, want 0xffffffff", v)
	}
}

func TestAssembleRegisterOperandAcceptsByteLiteral(t *testing.T) {
	obj, err := Assemble(".text\nmove r0 200\n", "byteop.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if obj.Text[2] != 200 {
		t.Fatalf("operand byte = %d, want 200", obj.Text[2])
	}
}

func TestAssembleHexBlockPadding(t *testing.T) {
	obj, err := Assemble(".text\n{ AA BB CC }\nstop r0\n", "hexpad.s")
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// 3 literal bytes pad to 4, then `stop r0` is another 4.
	if obj.TextLen() != 8 {
		t.Fatalf("text len = %d, want 8", obj.TextLen())
	}
	if obj.Text[0] != 0xAA || obj.Text[1] != 0xBB || obj.Text[2] != 0xCC || obj.Text[3] != 0 {
		t.Fatalf("text = % x, want AA BB CC 00 ...", obj.Text[:4])
	}
}

func assertSyntaxErrorKind(t *testing.T, err error, want ErrorKind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a SyntaxError of kind %s, got nil", want)
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("expected *SyntaxError, got %T (%v)", err, err)
	}
	if se.Kind != want {
		t.Fatalf("got kind %s, want %s", se.Kind, want)
	}
}
