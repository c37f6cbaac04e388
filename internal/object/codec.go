package object

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadFormat is wrapped by every decode failure so callers can test
// for it with errors.Is without string-matching the reason.
var ErrBadFormat = errors.New("object: bad format")

// headerWords is the number of Word-sized fields in the canonical
// header: flags, stack_size, 3 reserved words, text_len, data_len,
// sym_bytes_len, reloc_bytes_len, dep_bytes_len.
const headerWords = 10
const headerBytes = headerWords * wordSize

// Encode serializes o into the canonical byte layout from SPEC_FULL.md
// §4.1. Encode never fails on a well-formed Object.
func (o *Object) Encode() ([]byte, error) {
	symBlock := encodeSymbolBlock(o.Symbols)
	depBlock := encodeSymbolBlock(o.Dependencies)
	relocBlock := make([]byte, len(o.Relocations)*wordSize)
	for i, r := range o.Relocations {
		putBeUint32(relocBlock[i*wordSize:], r)
	}

	buf := make([]byte, 0, headerBytes+len(o.Text)+len(o.Data)+len(symBlock)+len(relocBlock)+len(depBlock))
	var hdr [headerBytes]byte
	putBeUint32(hdr[0:4], o.Flags)
	putBeUint32(hdr[4:8], o.StackSize)
	// reserved0..2 stay zero
	putBeUint32(hdr[20:24], Word(len(o.Text)))
	putBeUint32(hdr[24:28], Word(len(o.Data)))
	putBeUint32(hdr[28:32], Word(len(symBlock)))
	putBeUint32(hdr[32:36], Word(len(relocBlock)))
	putBeUint32(hdr[36:40], Word(len(depBlock)))

	buf = append(buf, hdr[:]...)
	buf = append(buf, o.Text...)
	buf = append(buf, o.Data...)
	buf = append(buf, symBlock...)
	buf = append(buf, relocBlock...)
	buf = append(buf, depBlock...)

	return buf, nil
}

// encodeSymbolBlock writes each symbol as a NUL-terminated name
// followed by its address Word, in order.
func encodeSymbolBlock(syms []Symbol) []byte {
	var buf bytes.Buffer
	for _, s := range syms {
		buf.WriteString(s.Name)
		buf.WriteByte(0)
		var w [wordSize]byte
		putBeUint32(w[:], s.Addr)
		buf.Write(w[:])
	}
	return buf.Bytes()
}

// Decode parses the canonical byte layout into an Object. It fails with
// a wrapped ErrBadFormat if the header's declared lengths do not sum
// exactly to len(data), or if any string or Word read would overrun its
// enclosing block.
func Decode(data []byte) (*Object, error) {
	if len(data) < headerBytes {
		return nil, fmt.Errorf("%w: truncated header (%d bytes, need %d)", ErrBadFormat, len(data), headerBytes)
	}

	o := &Object{
		Flags:     binary.BigEndian.Uint32(data[0:4]),
		StackSize: binary.BigEndian.Uint32(data[4:8]),
	}
	textLen := int(binary.BigEndian.Uint32(data[20:24]))
	dataLen := int(binary.BigEndian.Uint32(data[24:28]))
	symBytesLen := int(binary.BigEndian.Uint32(data[28:32]))
	relocBytesLen := int(binary.BigEndian.Uint32(data[32:36]))
	depBytesLen := int(binary.BigEndian.Uint32(data[36:40]))

	if relocBytesLen%wordSize != 0 {
		return nil, fmt.Errorf("%w: relocation block length %d not a multiple of %d", ErrBadFormat, relocBytesLen, wordSize)
	}

	total := headerBytes + textLen + dataLen + symBytesLen + relocBytesLen + depBytesLen
	if total != len(data) {
		return nil, fmt.Errorf("%w: declared length %d does not match input length %d", ErrBadFormat, total, len(data))
	}

	pos := headerBytes
	o.Text = append([]byte(nil), data[pos:pos+textLen]...)
	pos += textLen
	o.Data = append([]byte(nil), data[pos:pos+dataLen]...)
	pos += dataLen

	syms, err := decodeSymbolBlock(data[pos : pos+symBytesLen])
	if err != nil {
		return nil, fmt.Errorf("%w: symbol block: %v", ErrBadFormat, err)
	}
	o.Symbols = syms
	pos += symBytesLen

	relocs := make([]Word, relocBytesLen/wordSize)
	for i := range relocs {
		relocs[i] = binary.BigEndian.Uint32(data[pos+i*wordSize:])
	}
	o.Relocations = relocs
	pos += relocBytesLen

	deps, err := decodeSymbolBlock(data[pos : pos+depBytesLen])
	if err != nil {
		return nil, fmt.Errorf("%w: dependency block: %v", ErrBadFormat, err)
	}
	o.Dependencies = deps
	pos += depBytesLen

	return o, nil
}

// decodeSymbolBlock parses a sequence of NUL-terminated-name + address
// pairs, failing if a name runs past the end of block without a NUL, or
// if an address Word would overrun block.
func decodeSymbolBlock(block []byte) ([]Symbol, error) {
	out := make([]Symbol, 0)
	i := 0
	for i < len(block) {
		nameEnd := bytes.IndexByte(block[i:], 0)
		if nameEnd < 0 {
			return nil, fmt.Errorf("unterminated name at offset %d", i)
		}
		name := string(block[i : i+nameEnd])
		i += nameEnd + 1
		if i+wordSize > len(block) {
			return nil, fmt.Errorf("address for %q overruns block", name)
		}
		addr := binary.BigEndian.Uint32(block[i:])
		i += wordSize
		out = append(out, Symbol{Name: name, Addr: addr})
	}
	return out, nil
}
