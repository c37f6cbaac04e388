package asm

import (
	"fmt"
	"strings"

	"github.com/rymis/robolang/internal/isa"
	"github.com/rymis/robolang/internal/object"
)

// labelInfo is a label's position before the final text-length shift:
// Addr is local to its own segment (code offset from 0, or data offset
// from 0), resolved to a file-local address only once the whole source
// has been scanned and the final text length is known.
type labelInfo struct {
	addr   object.Word
	isData bool
	line   int
}

type constRefKind int

const (
	refLabelOrSymbol constRefKind = iota
	refHostPrimitive
)

// constRef is a pending `const` slot (always in text, per spec.md §4.2)
// whose value depends on a label that may not be defined yet.
type constRef struct {
	slotAddr object.Word // offset into text bytes
	kind     constRefKind
	name     string
	line     int
}

// Assembler holds the translator's state across a single source file.
// It is a single-pass-plus-fixup design, per SPEC_FULL.md §[MODULE] asm:
// a full scan builds code/data buffers and a label table with
// segment-local addresses, and a fixup phase afterward resolves both
// forward label references and the final code/data address split.
type Assembler struct {
	sourceName string

	textBytes []byte
	dataBytes []byte

	haveText bool // .text directive has been seen at least once
	inData   bool // current segment is data (after .data)

	stackSize object.Word

	labels     map[string]labelInfo
	labelOrder []string
	constRefs  []constRef
}

// Assemble translates src into a populated object.Object, or returns a
// *SyntaxError describing the first failure.
func Assemble(src string, sourceName string) (*object.Object, error) {
	a := &Assembler{
		sourceName: sourceName,
		labels:     make(map[string]labelInfo),
	}

	lines := strings.Split(src, "\n")
	for i, line := range lines {
		lineNum := i + 1
		toks, err := tokenizeLine(line, lineNum)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		if err := a.processLine(toks, line); err != nil {
			return nil, err
		}
	}

	return a.finish()
}

// processLine dispatches a single non-empty tokenized statement.
func (a *Assembler) processLine(toks []token, rawLine string) *SyntaxError {
	switch toks[0].kind {
	case tokColon:
		return a.processLabel(toks, rawLine)
	case tokDot:
		return a.processDirective(toks, rawLine)
	case tokHexBlockOpen:
		return a.emitHexBlock(toks[0].text, toks[0].line, rawLine)
	case tokString:
		if err := a.requireText(toks[0].line, rawLine); err != nil {
			return err
		}
		return a.emitString(toks[0].text, toks[0].line)
	case tokIdent:
		if toks[0].text == "const" {
			return a.processConst(toks, rawLine)
		}
		return a.processInstruction(toks, rawLine)
	default:
		return newSyntaxError(toks[0].line, rawLine, BadChar, "unexpected token at start of statement")
	}
}

func (a *Assembler) processLabel(toks []token, rawLine string) *SyntaxError {
	if len(toks) < 2 || toks[1].kind != tokIdent {
		return newSyntaxError(toks[0].line, rawLine, BadIdentifier, "expected label name after ':'")
	}
	name := toks[1].text
	if _, dup := a.labels[name]; dup {
		return newSyntaxError(toks[0].line, rawLine, DuplicateLabel, "duplicate label: "+name)
	}
	a.labels[name] = labelInfo{
		addr:   a.localCounter(),
		isData: a.inData,
		line:   toks[0].line,
	}
	a.labelOrder = append(a.labelOrder, name)
	return nil
}

func (a *Assembler) localCounter() object.Word {
	if a.inData {
		return object.Word(len(a.dataBytes))
	}
	return object.Word(len(a.textBytes))
}

func (a *Assembler) processDirective(toks []token, rawLine string) *SyntaxError {
	if len(toks) < 2 || toks[1].kind != tokIdent {
		return newSyntaxError(toks[0].line, rawLine, UnknownDirective, "expected directive name after '.'")
	}
	name := toks[1].text
	switch name {
	case "text":
		a.haveText = true
		a.inData = false
		return nil
	case "data":
		if !a.haveText {
			return newSyntaxError(toks[0].line, rawLine, UnknownDirective, ".data may not appear before .text")
		}
		a.inData = true
		return nil
	case "stack":
		if len(toks) < 3 || toks[2].kind != tokNumber {
			return newSyntaxError(toks[0].line, rawLine, MissingOperand, ".stack requires a numeric operand")
		}
		a.stackSize = object.Word(toks[2].value)
		return nil
	default:
		return newSyntaxError(toks[0].line, rawLine, UnknownDirective, "unknown directive: ."+name)
	}
}

func (a *Assembler) requireText(line int, rawLine string) *SyntaxError {
	if !a.haveText {
		return newSyntaxError(line, rawLine, UnknownDirective, "instructions and literals may not appear before .text")
	}
	return nil
}

func (a *Assembler) emitHexBlock(bytes string, line int, rawLine string) *SyntaxError {
	if err := a.requireText(line, rawLine); err != nil {
		return err
	}
	a.emitBytes([]byte(bytes))
	a.padToWord()
	return nil
}

func (a *Assembler) emitString(s string, line int) *SyntaxError {
	b := append([]byte(s), 0)
	a.emitBytes(b)
	a.padToWord()
	return nil
}

// emitBytes appends raw bytes to the current segment.
func (a *Assembler) emitBytes(b []byte) {
	if a.inData {
		a.dataBytes = append(a.dataBytes, b...)
	} else {
		a.textBytes = append(a.textBytes, b...)
	}
}

// padToWord zero-pads the current segment up to the next 4-byte
// boundary, per spec.md §4.2 for hex blocks and strings.
func (a *Assembler) padToWord() {
	n := len(a.textBytes)
	if a.inData {
		n = len(a.dataBytes)
	}
	pad := (4 - n%4) % 4
	if pad == 0 {
		return
	}
	a.emitBytes(make([]byte, pad))
}

// emitWord appends a big-endian Word to text (consts/instructions only
// ever target text, per spec.md §4.2: "Inside .data, only labels and
// data literals are permitted").
func (a *Assembler) emitWord(w object.Word) {
	a.textBytes = append(a.textBytes, byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
}

func (a *Assembler) processConst(toks []token, rawLine string) *SyntaxError {
	if err := a.requireText(toks[0].line, rawLine); err != nil {
		return err
	}
	if a.inData {
		return newSyntaxError(toks[0].line, rawLine, UnknownDirective, "const is only valid in .text")
	}
	if len(toks) < 2 {
		return newSyntaxError(toks[0].line, rawLine, MissingOperand, "const requires an operand")
	}

	arg := toks[1]
	slot := object.Word(len(a.textBytes))

	switch arg.kind {
	case tokAt:
		a.emitWord(0)
		a.constRefs = append(a.constRefs, constRef{slotAddr: slot, kind: refLabelOrSymbol, name: arg.text, line: toks[0].line})
	case tokPercent:
		a.emitWord(0)
		a.constRefs = append(a.constRefs, constRef{slotAddr: slot, kind: refHostPrimitive, name: arg.text, line: toks[0].line})
	case tokNumber:
		a.emitWord(object.Word(arg.value))
	default:
		return newSyntaxError(toks[0].line, rawLine, MissingOperand, "const operand must be @name, %name, or a literal")
	}
	return nil
}

func (a *Assembler) processInstruction(toks []token, rawLine string) *SyntaxError {
	if err := a.requireText(toks[0].line, rawLine); err != nil {
		return err
	}
	if a.inData {
		return newSyntaxError(toks[0].line, rawLine, UnknownMnemonic, "instructions are only valid in .text")
	}

	mnemonic := toks[0].text
	def, ok := isa.Lookup(mnemonic)
	if !ok {
		return newSyntaxError(toks[0].line, rawLine, UnknownMnemonic, "unknown mnemonic: "+mnemonic)
	}

	args := toks[1:]
	if len(args) < def.NumArgs {
		return newSyntaxError(toks[0].line, rawLine, MissingOperand, fmt.Sprintf("%s requires %d operand(s)", mnemonic, def.NumArgs))
	}

	var operands [3]byte
	for i := 0; i < def.NumArgs && i < 3; i++ {
		b, err := a.parseRegisterOperand(args[i], rawLine)
		if err != nil {
			return err
		}
		operands[i] = b
	}

	a.textBytes = append(a.textBytes, byte(def.Opcode), operands[0], operands[1], operands[2])
	return nil
}

// parseRegisterOperand accepts either an r0..r31 register name
// (case-insensitive) or a bare literal 0..255, which is stored directly
// as the operand byte — the "2-digit hex byte...treated as an immediate
// register-byte constant" escape hatch from spec.md §4.2, used by
// hand-assembled const-like encodings.
func (a *Assembler) parseRegisterOperand(tok token, rawLine string) (byte, *SyntaxError) {
	switch tok.kind {
	case tokIdent:
		lower := strings.ToLower(tok.text)
		if len(lower) >= 2 && lower[0] == 'r' {
			n, ok := parseDecimalSuffix(lower[1:])
			if ok && n <= 31 {
				return byte(n), nil
			}
		}
		return 0, newSyntaxError(tok.line, rawLine, BadIdentifier, "expected register r0..r31, got "+tok.text)
	case tokNumber:
		if tok.value > 255 {
			return 0, newSyntaxError(tok.line, rawLine, Overflow, "operand byte out of range 0..255")
		}
		return byte(tok.value), nil
	default:
		return 0, newSyntaxError(tok.line, rawLine, MissingOperand, "expected a register or byte operand")
	}
}

func parseDecimalSuffix(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// finish runs the fixup phase: the final text length is now fixed, so
// data-segment label addresses shift by it, and every pending const
// reference resolves against the now-complete label table or else
// becomes a dependency for the linker/loader.
func (a *Assembler) finish() (*object.Object, error) {
	textLen := object.Word(len(a.textBytes))

	finalAddr := func(li labelInfo) object.Word {
		if li.isData {
			return textLen + li.addr
		}
		return li.addr
	}

	obj := object.New()
	obj.StackSize = a.stackSize
	obj.Text = a.textBytes
	obj.Data = a.dataBytes
	obj.SourceName = a.sourceName

	for _, name := range a.labelOrder {
		obj.Symbols = append(obj.Symbols, object.Symbol{Name: name, Addr: finalAddr(a.labels[name])})
	}

	for _, ref := range a.constRefs {
		switch ref.kind {
		case refHostPrimitive:
			obj.Dependencies = append(obj.Dependencies, object.Symbol{
				Name: string(object.HostPrefix) + ref.name,
				Addr: ref.slotAddr,
			})
		case refLabelOrSymbol:
			if li, ok := a.labels[ref.name]; ok {
				addr := finalAddr(li)
				if err := obj.WriteWord(ref.slotAddr, addr); err != nil {
					return nil, err
				}
				obj.Relocations = append(obj.Relocations, ref.slotAddr)
			} else {
				obj.Dependencies = append(obj.Dependencies, object.Symbol{
					Name: ref.name,
					Addr: ref.slotAddr,
				})
			}
		}
	}

	if err := obj.Validate(); err != nil {
		return nil, fmt.Errorf("asm: internal consistency error: %w", err)
	}

	return obj, nil
}
