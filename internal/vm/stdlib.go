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

import "github.com/rymis/robolang/internal/object"

// StdPrimitives registers the standard stack-based arithmetic/logical
// primitives from spec.md §6 ($add$ $sub$ $mul$ $div$ $mod$ $not$ $and$
// $or$ $eq$ $less$ $leq$): each pops its operands off the VM stack at
// r1 and pushes the result, matching the convention the loader sets up
// by pointing r0 and r1 at stack_size with the stack growing downward.
// cmd/vmexec calls this before Load so `const %$add$` et al. resolve.
func (vm *VM) StdPrimitives() {
	bin := func(f func(a, b object.Word) object.Word) func(*VM) error {
		return func(vm *VM) error {
			b, err := vm.pop()
			if err != nil {
				return err
			}
			a, err := vm.pop()
			if err != nil {
				return err
			}
			return vm.push(f(a, b))
		}
	}
	boolWord := func(cond bool) object.Word {
		if cond {
			return 1
		}
		return 0
	}

	vm.AddHostPrimitive("$add$", bin(func(a, b object.Word) object.Word { return a + b }))
	vm.AddHostPrimitive("$sub$", bin(func(a, b object.Word) object.Word { return a - b }))
	vm.AddHostPrimitive("$mul$", bin(func(a, b object.Word) object.Word { return a * b }))
	vm.AddHostPrimitive("$div$", func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return newFault(DivisionByZero, vm.R[PCReg], "$div$: zero divisor")
		}
		return vm.push(a / b)
	})
	vm.AddHostPrimitive("$mod$", func(vm *VM) error {
		b, err := vm.pop()
		if err != nil {
			return err
		}
		a, err := vm.pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return newFault(DivisionByZero, vm.R[PCReg], "$mod$: zero divisor")
		}
		return vm.push(a % b)
	})
	vm.AddHostPrimitive("$not$", func(vm *VM) error {
		a, err := vm.pop()
		if err != nil {
			return err
		}
		return vm.push(boolWord(a == 0))
	})
	vm.AddHostPrimitive("$and$", bin(func(a, b object.Word) object.Word { return a & b }))
	vm.AddHostPrimitive("$or$", bin(func(a, b object.Word) object.Word { return a | b }))
	vm.AddHostPrimitive("$eq$", bin(func(a, b object.Word) object.Word { return boolWord(a == b) }))
	vm.AddHostPrimitive("$less$", bin(func(a, b object.Word) object.Word { return boolWord(int32(a) < int32(b)) }))
	vm.AddHostPrimitive("$leq$", bin(func(a, b object.Word) object.Word { return boolWord(int32(a) <= int32(b)) }))
}

// push/pop implement a descending stack at r1: push decrements r1 by 4
// then stores, pop loads then increments r1 by 4 — the inverse of how
// the loader hands a fresh VM r1 == stack_size and an empty stack below
// it (spec.md §4.4 step 4).
func (vm *VM) push(v object.Word) error {
	if vm.R[SPReg] < wordSize {
		return newFault(StackOverflow, vm.R[PCReg], "stack primitive push underflows r1")
	}
	vm.R[SPReg] -= wordSize
	return vm.writeWord(vm.R[SPReg], v)
}

func (vm *VM) pop() (object.Word, error) {
	if vm.R[SPReg]+wordSize > vm.stackSize {
		return 0, newFault(StackUnderflow, vm.R[PCReg], "stack primitive pop exceeds stack_size")
	}
	v, err := vm.readWord(vm.R[SPReg])
	if err != nil {
		return 0, err
	}
	vm.R[SPReg] += wordSize
	return v, nil
}
