// Copyright © 2024 Jeff Berkowitz (pdxjjb@gmail.com)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.

package vm

import (
	"fmt"

	"github.com/rymis/robolang/internal/object"
)

// Load implements spec.md §4.4's load procedure: dependency checks,
// arena growth, section copy, relocation, and host-primitive binding.
// On any failure the VM is left untouched (still Ready, mem unchanged),
// mirroring the teacher's CPU.Load which validates fully before it
// mutates memory (cpu.go).
func (vm *VM) Load(obj *object.Object) error {
	if n := obj.DependenciesCountNonHost(); n != 0 {
		return fmt.Errorf("vm: load: %d unresolved non-host dependenc(y/ies) remain", n)
	}

	hostIdx := make(map[string]int, len(obj.Dependencies))
	for _, d := range obj.Dependencies {
		if !d.IsHostPrimitive() {
			continue
		}
		name := d.Name[1:]
		idx, ok := vm.HostIndex(name)
		if !ok {
			return fmt.Errorf("vm: load: host primitive %q is not registered", name)
		}
		hostIdx[d.Name] = idx
	}

	textLen := object.Word(obj.TextLen())
	dataLen := object.Word(obj.DataLen())
	textPadded := nextPow2(textLen)
	dataPadded := nextPow2(dataLen)

	// Range-check every address the loader will rewrite before anything
	// is mutated, so the relocation and binding writes below cannot fail.
	objLen := uint64(textLen) + uint64(dataLen)
	for _, r := range obj.Relocations {
		if uint64(r)+wordSize > objLen {
			return fmt.Errorf("vm: load: relocation at 0x%x out of range", r)
		}
	}
	for _, d := range obj.Dependencies {
		if uint64(d.Addr)+wordSize > objLen {
			return fmt.Errorf("vm: load: slot for %s at 0x%x out of range", d.Name, d.Addr)
		}
	}

	needed := uint64(obj.StackSize) + uint64(textPadded) + uint64(dataPadded) + safetyMargin
	if needed > uint64(len(vm.mem)) {
		grown := make([]byte, needed)
		copy(grown, vm.mem)
		vm.mem = grown
	}

	vm.stackSize = obj.StackSize
	vm.textBase = obj.StackSize
	vm.textLen = textLen
	vm.dataBase = obj.StackSize + textPadded
	vm.dataLen = dataLen

	vm.R = [NumRegisters]object.Word{}
	vm.R[PCReg] = vm.stackSize
	vm.R[SPReg] = vm.stackSize

	copy(vm.mem[vm.textBase:], obj.Text)
	copy(vm.mem[vm.dataBase:], obj.Data)

	for _, r := range obj.Relocations {
		var addr, shift object.Word
		if r < textLen {
			addr = r + vm.stackSize
			shift = vm.stackSize
		} else {
			addr = r + vm.stackSize + textPadded - textLen
			shift = vm.stackSize + textPadded - textLen
		}
		w, err := vm.readWord(addr)
		if err != nil {
			return fmt.Errorf("vm: load: relocation at 0x%x: %w", r, err)
		}
		if err := vm.writeWord(addr, w+shift); err != nil {
			return fmt.Errorf("vm: load: relocation at 0x%x: %w", r, err)
		}
	}

	for _, d := range obj.Dependencies {
		if !d.IsHostPrimitive() {
			continue
		}
		addr := d.Addr + vm.stackSize
		if err := vm.writeWord(addr, object.Word(hostIdx[d.Name])); err != nil {
			return fmt.Errorf("vm: load: binding %s: %w", d.Name, err)
		}
	}

	vm.state = Ready
	return nil
}

// readWord/writeWord are the VM's raw memory accessors, bounds-checked
// against the arena rather than the text/data window, since loader code
// (relocation rewrite) runs before any notion of "current instruction".
func (vm *VM) readWord(addr object.Word) (object.Word, error) {
	if uint64(addr)+wordSize > uint64(len(vm.mem)) {
		return 0, fmt.Errorf("address 0x%x out of bounds", addr)
	}
	b := vm.mem[addr:]
	return object.Word(b[0])<<24 | object.Word(b[1])<<16 | object.Word(b[2])<<8 | object.Word(b[3]), nil
}

func (vm *VM) writeWord(addr object.Word, v object.Word) error {
	if uint64(addr)+wordSize > uint64(len(vm.mem)) {
		return fmt.Errorf("address 0x%x out of bounds", addr)
	}
	b := vm.mem[addr:]
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	return nil
}
