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
	"encoding/binary"
	"io"

	"github.com/rymis/robolang/internal/isa"
	"github.com/rymis/robolang/internal/object"
)

// In and Out are the byte streams bound to the `in`/`out` instructions.
// They default to io.Discard/a no-op reader; cmd/vmexec wires os.Stdin
// and os.Stdout, the way the teacher's CPU holds a consoleIn/consoleOut
// pair (emul/io.go) instead of reaching for os.Stdin directly from the
// dispatch loop.
func (vm *VM) SetIO(in io.Reader, out io.Writer) {
	vm.in = in
	vm.out = out
}

// Exec runs until Stopped, Faulted, or stop_request is observed at an
// instruction boundary.
func (vm *VM) Exec() error {
	vm.state = Running
	for {
		if vm.stopRequest {
			vm.state = Stopped
			return nil
		}
		done, err := vm.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Step executes exactly one instruction and reports whether the VM
// stopped as a result.
func (vm *VM) Step() (stopped bool, err error) {
	if vm.Tracer != nil {
		vm.Tracer(vm)
	}
	vm.cycles++
	if f := vm.dispatch(); f != nil {
		vm.state = Faulted
		return false, f
	}
	if vm.state == Stopped {
		return true, nil
	}
	return false, nil
}

// Next runs until the instruction about to execute is `ext`, or until
// Stopped/Faulted — the single-step-over-calls mode debuggers use.
func (vm *VM) Next() error {
	vm.state = Running
	for {
		if vm.stopRequest {
			vm.state = Stopped
			return nil
		}
		pc := vm.R[PCReg]
		op, _, err := vm.peekOpcode(pc)
		if err == nil && op == isa.Ext {
			return nil
		}
		done, err := vm.Step()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

func (vm *VM) peekOpcode(addr object.Word) (isa.Opcode, byte, error) {
	if uint64(addr)+wordSize > uint64(len(vm.mem)) {
		return 0, 0, newFault(InvalidAddress, addr, "pc out of bounds")
	}
	return isa.Opcode(vm.mem[addr]), vm.mem[addr+1], nil
}

// dispatch fetches, decodes, and executes one instruction. It returns a
// *Fault on failure and nil on a clean (possibly stop-setting) step.
func (vm *VM) dispatch() *Fault {
	pc := vm.R[PCReg]
	if uint64(pc)+wordSize > uint64(len(vm.mem)) {
		return newFault(InvalidAddress, pc, "pc+4 exceeds memory")
	}
	instr := vm.mem[pc : pc+4]
	op := isa.Opcode(instr[0])
	a, b, c := instr[1], instr[2], instr[3]
	vm.R[PCReg] = pc + wordSize

	if int(op) >= int(isa.Count) {
		vm.R[PCReg] = pc
		return newFault(InvalidInstruction, pc, "opcode byte out of range")
	}

	switch op {
	case isa.Nop:
		return nil
	case isa.Load:
		imm, err := vm.readWordFault(pc + wordSize)
		if err != nil {
			vm.R[PCReg] = pc
			err.PC = pc
			return err
		}
		vm.R[PCReg] += wordSize
		vm.R[a] = imm
		return nil
	case isa.Ext:
		return vm.dispatchExt(pc, a)
	case isa.Write8:
		return vm.memWrite(pc, vm.R[a], 1, vm.R[b]&0xFF)
	case isa.Read8:
		v, f := vm.memRead(pc, vm.R[b], 1)
		if f != nil {
			return f
		}
		vm.R[a] = v
		return nil
	case isa.Write16:
		return vm.memWrite(pc, vm.R[a], 2, vm.R[b]&0xFFFF)
	case isa.Read16:
		v, f := vm.memRead(pc, vm.R[b], 2)
		if f != nil {
			return f
		}
		vm.R[a] = v
		return nil
	case isa.Write32:
		return vm.memWrite(pc, vm.R[a], 4, vm.R[b])
	case isa.Read32:
		v, f := vm.memRead(pc, vm.R[b], 4)
		if f != nil {
			return f
		}
		vm.R[a] = v
		return nil
	case isa.Stop:
		vm.exitValue = vm.R[a]
		vm.state = Stopped
		return nil
	case isa.Move:
		vm.R[a] = vm.R[b]
		return nil
	case isa.MoveIf:
		if vm.R[c] != 0 {
			vm.R[a] = vm.R[b]
		}
		return nil
	case isa.MoveIfZ:
		if vm.R[c] == 0 {
			vm.R[a] = vm.R[b]
		}
		return nil
	case isa.Swap:
		vm.R[a], vm.R[b] = vm.R[b], vm.R[a]
		return nil
	case isa.LShift:
		vm.R[a] = vm.R[b] << (vm.R[c] & 31)
		return nil
	case isa.RShift:
		vm.R[a] = vm.R[b] >> (vm.R[c] & 31)
		return nil
	case isa.SShift:
		vm.R[a] = object.Word(int32(vm.R[b]) >> (vm.R[c] & 31))
		return nil
	case isa.And:
		vm.R[a] = vm.R[b] & vm.R[c]
		return nil
	case isa.Or:
		vm.R[a] = vm.R[b] | vm.R[c]
		return nil
	case isa.Xor:
		vm.R[a] = vm.R[b] ^ vm.R[c]
		return nil
	case isa.Neg:
		vm.R[a] = ^vm.R[b]
		return nil
	case isa.Incr:
		return vm.adjustStackAware(pc, a, 1)
	case isa.Decr:
		return vm.adjustStackAware(pc, a, ^object.Word(0)) // -1
	case isa.Incr4:
		return vm.adjustStackAware(pc, a, 4)
	case isa.Decr4:
		return vm.adjustStackAware(pc, a, ^object.Word(3)) // -4
	case isa.Add:
		vm.R[a] = vm.R[b] + vm.R[c]
		return nil
	case isa.Sub:
		vm.R[a] = vm.R[b] - vm.R[c]
		return nil
	case isa.Mul:
		hi, lo := bits64Mul(vm.R[b], vm.R[c])
		vm.R[a] = lo
		vm.R[RemReg] = hi
		return nil
	case isa.Div:
		if vm.R[c] == 0 {
			vm.R[PCReg] = pc
			return newFault(DivisionByZero, pc, "division by zero")
		}
		vm.R[RemReg] = vm.R[b] % vm.R[c]
		vm.R[a] = vm.R[b] / vm.R[c]
		return nil
	case isa.Out:
		if vm.out != nil {
			vm.out.Write([]byte{byte(vm.R[a])})
		}
		return nil
	case isa.In:
		var buf [1]byte
		v := object.Word(0xFFFFFFFF) // -1 as Word, per spec: "-1 on EOF"
		if vm.in != nil {
			if n, err := vm.in.Read(buf[:]); n == 1 && err == nil {
				v = object.Word(buf[0])
			}
		}
		vm.R[a] = v
		return nil
	default:
		vm.R[PCReg] = pc
		return newFault(InvalidInstruction, pc, "unimplemented opcode")
	}
}

// adjustStackAware applies a ±1/±4 delta to register a. When GuardStack
// is set and a == SPReg, it raises StackOverflow if the result would
// fall below 0 and StackUnderflow if it would exceed stack_size (r1 ==
// stack_size, the empty stack, is allowed), per spec.md §4.4's
// stack-pointer convention.
func (vm *VM) adjustStackAware(pc object.Word, a byte, delta object.Word) *Fault {
	result := vm.R[a] + delta
	if a == SPReg && vm.GuardStack {
		if int32(delta) < 0 && result > vm.R[a] {
			vm.R[PCReg] = pc
			return newFault(StackOverflow, pc, "stack pointer decremented below 0")
		}
		if result > vm.stackSize {
			vm.R[PCReg] = pc
			return newFault(StackUnderflow, pc, "stack pointer incremented past stack_size")
		}
	}
	vm.R[a] = result
	return nil
}

func bits64Mul(x, y object.Word) (hi, lo object.Word) {
	product := uint64(x) * uint64(y)
	return object.Word(product >> 32), object.Word(product)
}

func (vm *VM) dispatchExt(pc object.Word, aReg byte) *Fault {
	idx := int(vm.R[aReg])
	if idx < 0 || idx >= len(vm.hostTable) {
		vm.R[PCReg] = pc
		return newFault(InvalidHostPrimitive, pc, "host primitive index out of range")
	}
	prev := vm.state
	vm.state = SuspendedAtHostCall
	err := vm.hostTable[idx].Func(vm)
	vm.state = prev
	if err != nil {
		vm.R[PCReg] = pc
		if f, ok := err.(*Fault); ok {
			f.PC = pc
			return f
		}
		return newFault(InvalidHostPrimitive, pc, err.Error())
	}
	return nil
}

// memRead/memWrite bounds-check against the VM's arena and perform a
// big-endian load/store of the given width (1, 2, or 4 bytes).
func (vm *VM) memRead(pc, addr object.Word, width int) (object.Word, *Fault) {
	if uint64(addr)+uint64(width) > uint64(len(vm.mem)) {
		vm.R[PCReg] = pc
		return 0, newFault(InvalidAddress, pc, "memory read out of bounds")
	}
	switch width {
	case 1:
		return object.Word(vm.mem[addr]), nil
	case 2:
		return object.Word(binary.BigEndian.Uint16(vm.mem[addr:])), nil
	default:
		return object.Word(binary.BigEndian.Uint32(vm.mem[addr:])), nil
	}
}

func (vm *VM) memWrite(pc, addr object.Word, width int, v object.Word) *Fault {
	if uint64(addr)+uint64(width) > uint64(len(vm.mem)) {
		vm.R[PCReg] = pc
		return newFault(InvalidAddress, pc, "memory write out of bounds")
	}
	switch width {
	case 1:
		vm.mem[addr] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(vm.mem[addr:], uint16(v))
	default:
		binary.BigEndian.PutUint32(vm.mem[addr:], uint32(v))
	}
	return nil
}

// readWordFault is readWord with Fault-typed errors, used on the
// instruction-fetch path where a bounds failure must report as
// InvalidAddress with the faulting pc.
func (vm *VM) readWordFault(addr object.Word) (object.Word, *Fault) {
	if uint64(addr)+wordSize > uint64(len(vm.mem)) {
		return 0, newFault(InvalidAddress, addr, "immediate fetch out of bounds")
	}
	return object.Word(binary.BigEndian.Uint32(vm.mem[addr:])), nil
}

// ReadMem8/WriteMem8 and ReadMem32/WriteMem32 give host primitives and
// tracers bounds-checked byte and word access to VM memory without
// reaching past the VM's own accounting.
func (vm *VM) ReadMem8(addr object.Word) (byte, error) {
	if uint64(addr) >= uint64(len(vm.mem)) {
		return 0, newFault(InvalidAddress, vm.R[PCReg], "host read out of bounds")
	}
	return vm.mem[addr], nil
}

func (vm *VM) WriteMem8(addr object.Word, v byte) error {
	if uint64(addr) >= uint64(len(vm.mem)) {
		return newFault(InvalidAddress, vm.R[PCReg], "host write out of bounds")
	}
	vm.mem[addr] = v
	return nil
}

func (vm *VM) ReadMem32(addr object.Word) (object.Word, error) {
	w, f := vm.memRead(vm.R[PCReg], addr, 4)
	if f != nil {
		return 0, f
	}
	return w, nil
}

func (vm *VM) WriteMem32(addr object.Word, v object.Word) error {
	return vm.memWrite(vm.R[PCReg], addr, 4, v)
}
