package isa

import "testing"

func TestLookupKnownMnemonics(t *testing.T) {
	for _, name := range []string{"nop", "load", "div", "stop", "in", "out"} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("Lookup(%q) failed, want found", name)
		}
	}
}

func TestLookupUnknownMnemonic(t *testing.T) {
	if _, ok := Lookup("frobnicate"); ok {
		t.Fatal("Lookup succeeded for a nonexistent mnemonic")
	}
}

func TestTableIndicesMatchOpcodes(t *testing.T) {
	for op, def := range Table {
		if def.Opcode != Opcode(op) {
			t.Errorf("Table[%d].Opcode = %d, want %d", op, def.Opcode, op)
		}
		if def.Mnemonic == "" {
			t.Errorf("Table[%d] has no mnemonic", op)
		}
	}
}

func TestNameRoundTripsThroughLookup(t *testing.T) {
	for _, def := range Table {
		got, ok := Lookup(def.Mnemonic)
		if !ok || got.Opcode != def.Opcode {
			t.Errorf("Lookup(Name(%d)) did not round-trip", def.Opcode)
		}
	}
}
