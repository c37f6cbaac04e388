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

// vm_exec loads and runs a RobotVM object file.
//
// Usage: vm_exec [-d] [-m MEM_KB] INPUT
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/rymis/robolang/internal/disasm"
	"github.com/rymis/robolang/internal/object"
	"github.com/rymis/robolang/internal/vm"
)

var savedTermState *term.State

// setupTerminal puts stdin in raw mode so the `in` instruction reads one
// byte at a time instead of waiting for a line, the way emul's console
// UART handling does for the emulated machine's own stdin.
func setupTerminal() {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	state, err := term.GetState(int(os.Stdin.Fd()))
	if err != nil {
		return
	}
	savedTermState = state
	term.MakeRaw(int(os.Stdin.Fd()))
}

func restoreTerminal() {
	if savedTermState != nil && term.IsTerminal(int(os.Stdin.Fd())) {
		term.Restore(int(os.Stdin.Fd()), savedTermState)
	}
}

func main() {
	debug := flag.Bool("d", false, "single-step with a prompt after each instruction")
	memKB := flag.Uint("m", 64, "VM memory size in KB")
	traceFile := flag.String("trace", "", "write a per-instruction execution trace to file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-d] [-m MEM_KB] [-trace FILE] INPUT\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	data, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "vm_exec: %v\n", err)
		os.Exit(1)
	}
	obj, err := object.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vm_exec: %v\n", err)
		os.Exit(1)
	}

	machine := vm.New(int(*memKB) * 1024)
	machine.StdPrimitives()
	machine.SetIO(os.Stdin, os.Stdout)

	if *traceFile != "" {
		f, err := os.Create(*traceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "vm_exec: creating trace file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		fmt.Fprintf(f, "RobotVM trace: %s\n", flag.Arg(0))
		machine.Tracer = func(m *vm.VM) {
			fmt.Fprintf(f, "cycle %d: pc=0x%08x sp=0x%08x\n", m.Cycles(), m.R[vm.PCReg], m.R[vm.SPReg])
		}
	}

	if err := machine.Load(obj); err != nil {
		fmt.Fprintf(os.Stderr, "vm_exec: %v\n", err)
		os.Exit(1)
	}

	// Forward ^C as a cooperative stop request rather than killing the
	// process outright, so a fault's final register state is still
	// observable (spec.md §5's stop_request contract).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		for range sigCh {
			machine.RequestStop()
		}
	}()

	if *debug {
		runDebugger(machine, obj)
		return
	}

	setupTerminal()
	err = machine.Exec()
	restoreTerminal()
	if err != nil {
		fmt.Fprintf(os.Stderr, "vm_exec: fault: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("exit value: %d\n", machine.ExitValue())
}

// runDebugger implements the "-d" stepper from spec.md §6: step one
// instruction, print state, prompt; "quit"/"exit" ends the session.
func runDebugger(machine *vm.VM, obj *object.Object) {
	reader := bufio.NewScanner(os.Stdin)
	listing := disasm.Listing(obj)
	fmt.Print(listing)

	for {
		fmt.Printf("(vm_exec) pc=0x%08x sp=0x%08x > ", machine.R[vm.PCReg], machine.R[vm.SPReg])
		if !reader.Scan() {
			return
		}
		cmd := strings.TrimSpace(reader.Text())
		switch cmd {
		case "quit", "exit":
			return
		default:
			stopped, err := machine.Step()
			if err != nil {
				fmt.Fprintf(os.Stderr, "fault: %v\n", err)
				return
			}
			if stopped {
				fmt.Printf("stopped: exit value %d\n", machine.ExitValue())
				return
			}
		}
	}
}
