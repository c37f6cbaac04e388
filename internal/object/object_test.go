package object

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		obj  *Object
	}{
		{
			name: "empty object",
			obj:  New(),
		},
		{
			name: "text and data with symbols",
			obj: &Object{
				StackSize: 256,
				Text:      []byte{0, 0, 0, 0, 1, 2, 3, 4},
				Data:      []byte{0xAA, 0xBB, 0, 0},
				Symbols: []Symbol{
					{Name: "start", Addr: 0},
					{Name: "msg", Addr: 8},
				},
				Relocations: []Word{4},
			},
		},
		{
			name: "unresolved and host dependencies",
			obj: &Object{
				Text: []byte{0, 0, 0, 0},
				Dependencies: []Symbol{
					{Name: "foo", Addr: 0},
					{Name: "%print$", Addr: 4},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.obj.Encode()
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			assertObjectsEqual(t, tt.obj, got)
		})
	}
}

func assertObjectsEqual(t *testing.T, want, got *Object) {
	t.Helper()
	if want.Flags != got.Flags || want.StackSize != got.StackSize {
		t.Fatalf("header mismatch: want %+v got %+v", want, got)
	}
	if string(want.Text) != string(got.Text) {
		t.Fatalf("text mismatch: want %x got %x", want.Text, got.Text)
	}
	if string(want.Data) != string(got.Data) {
		t.Fatalf("data mismatch: want %x got %x", want.Data, got.Data)
	}
	if len(want.Symbols) != len(got.Symbols) {
		t.Fatalf("symbol count mismatch: want %d got %d", len(want.Symbols), len(got.Symbols))
	}
	for i := range want.Symbols {
		if want.Symbols[i] != got.Symbols[i] {
			t.Fatalf("symbol %d mismatch: want %+v got %+v", i, want.Symbols[i], got.Symbols[i])
		}
	}
	if len(want.Relocations) != len(got.Relocations) {
		t.Fatalf("relocation count mismatch: want %d got %d", len(want.Relocations), len(got.Relocations))
	}
	for i := range want.Relocations {
		if want.Relocations[i] != got.Relocations[i] {
			t.Fatalf("relocation %d mismatch: want 0x%x got 0x%x", i, want.Relocations[i], got.Relocations[i])
		}
	}
	if len(want.Dependencies) != len(got.Dependencies) {
		t.Fatalf("dependency count mismatch: want %d got %d", len(want.Dependencies), len(got.Dependencies))
	}
	for i := range want.Dependencies {
		if want.Dependencies[i] != got.Dependencies[i] {
			t.Fatalf("dependency %d mismatch: want %+v got %+v", i, want.Dependencies[i], got.Dependencies[i])
		}
	}
}

func TestDependenciesCountNonHost(t *testing.T) {
	o := &Object{
		Dependencies: []Symbol{
			{Name: "foo"},
			{Name: "%add$"},
			{Name: "bar"},
		},
	}
	if n := o.DependenciesCountNonHost(); n != 2 {
		t.Fatalf("got %d, want 2", n)
	}
}

func TestValidateDuplicateSymbol(t *testing.T) {
	o := &Object{
		Symbols: []Symbol{{Name: "a", Addr: 0}, {Name: "a", Addr: 4}},
	}
	if err := o.Validate(); err == nil {
		t.Fatal("expected an error for duplicate symbol names")
	}
}

func TestValidateRelocationAlignment(t *testing.T) {
	o := &Object{
		Text:        make([]byte, 8),
		Relocations: []Word{2},
	}
	if err := o.Validate(); err == nil {
		t.Fatal("expected an error for a misaligned relocation")
	}
}

func TestValidateRelocationRange(t *testing.T) {
	o := &Object{
		Text:        make([]byte, 8),
		Relocations: []Word{8},
	}
	if err := o.Validate(); err == nil {
		t.Fatal("expected an error for an out-of-range relocation")
	}
}

func TestValidateSymbolDependencyCollision(t *testing.T) {
	o := &Object{
		Symbols:      []Symbol{{Name: "foo", Addr: 0}},
		Dependencies: []Symbol{{Name: "foo", Addr: 4}},
	}
	if err := o.Validate(); err == nil {
		t.Fatal("expected an error when a name is both defined and a dependency")
	}
}

func TestReadWriteWordAcrossSections(t *testing.T) {
	o := &Object{
		Text: make([]byte, 8),
		Data: make([]byte, 8),
	}
	if err := o.WriteWord(4, 0xDEADBEEF); err != nil {
		t.Fatalf("WriteWord into text: %v", err)
	}
	if err := o.WriteWord(8, 0xCAFEBABE); err != nil {
		t.Fatalf("WriteWord into data: %v", err)
	}
	v, err := o.ReadWord(4)
	if err != nil || v != 0xDEADBEEF {
		t.Fatalf("ReadWord(4) = %#x, %v", v, err)
	}
	v, err = o.ReadWord(8)
	if err != nil || v != 0xCAFEBABE {
		t.Fatalf("ReadWord(8) = %#x, %v", v, err)
	}
	if _, err := o.ReadWord(13); err == nil {
		t.Fatal("expected an out-of-range read to fail")
	}
}
