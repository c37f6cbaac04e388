// Package linker merges RobotVM object files: concatenating sections,
// shifting relocations and symbol addresses, and resolving dependencies
// against newly-defined symbols. Grounded on the teacher's lang/yld
// Linker (linker.go), generalized from its resolve/layout/relocate
// phase split to the spec's incremental pairwise merge rather than an
// all-at-once N-way link.
package linker

import (
	"fmt"

	"github.com/rymis/robolang/internal/object"
)

// NameError reports a defined-symbol collision during merge — spec.md
// §4.3's "fatal NameError".
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("linker: symbol %q defined in both objects", e.Name)
}

// CountUnresolved implements dependencies_count_nonhost from spec.md
// §4.3's completeness check.
func CountUnresolved(obj *object.Object) int {
	return obj.DependenciesCountNonHost()
}

// Linker accumulates objects by repeated pairwise Merge into a running
// result, the way ld's CLI folds its input list left-to-right.
type Linker struct {
	// Incremental, when true, allows Finish to return a result with
	// unresolved non-host dependencies still present instead of erroring.
	Incremental bool

	result *object.Object
}

// New starts a link with the given first object as the running result.
// The object is not mutated; Merge operates on an internal copy.
func New(first *object.Object) *Linker {
	return &Linker{result: cloneObject(first)}
}

// Merge folds other into the running result in place, per spec.md §4.3.
func (l *Linker) Merge(other *object.Object) error {
	merged, err := Merge(l.result, other)
	if err != nil {
		return err
	}
	l.result = merged
	return nil
}

// Result returns the running merged object. It does not check
// completeness; call Finish for that.
func (l *Linker) Result() *object.Object {
	return l.result
}

// Finish validates the completeness invariant from spec.md §4.3 and
// returns the final object, unless Incremental is set.
func (l *Linker) Finish() (*object.Object, error) {
	if !l.Incremental {
		if n := l.result.DependenciesCountNonHost(); n != 0 {
			return nil, fmt.Errorf("linker: %d unresolved non-host dependenc(y/ies) remain", n)
		}
	}
	return l.result, nil
}

// Merge returns a new Object that is self with other appended and
// resolved against it, per spec.md §4.3's five-step procedure. Neither
// input is mutated.
func Merge(self, other *object.Object) (*object.Object, error) {
	out := cloneObject(self)

	textBefore := object.Word(out.TextLen())
	dataBefore := object.Word(out.DataLen())
	otherTextLen := object.Word(other.TextLen())

	// Step 1: append sections.
	out.Text = append(out.Text, other.Text...)
	out.Data = append(out.Data, other.Data...)

	shift := func(addr object.Word) object.Word {
		if addr < otherTextLen {
			return addr + textBefore
		}
		return textBefore + (object.Word(len(out.Text)) - textBefore) + (addr - otherTextLen) + dataBefore
	}

	// Step 2: relocation rewrite.
	for _, r := range other.Relocations {
		out.Relocations = append(out.Relocations, shift(r))
	}

	// Step 3: defined symbols, with a name-collision check.
	existing := make(map[string]bool, len(out.Symbols))
	for _, s := range out.Symbols {
		existing[s.Name] = true
	}
	for _, s := range other.Symbols {
		if existing[s.Name] {
			return nil, &NameError{Name: s.Name}
		}
		existing[s.Name] = true
		out.Symbols = append(out.Symbols, object.Symbol{Name: s.Name, Addr: shift(s.Addr)})
	}

	// Step 4: dependency resolution, self's first then other's (shifted).
	merged := make([]object.Symbol, 0, len(out.Dependencies)+len(other.Dependencies))
	merged = append(merged, out.Dependencies...)
	for _, d := range other.Dependencies {
		merged = append(merged, object.Symbol{Name: d.Name, Addr: shift(d.Addr)})
	}

	out.Dependencies = out.Dependencies[:0]
	for _, d := range merged {
		if d.IsHostPrimitive() {
			out.Dependencies = append(out.Dependencies, d)
			continue
		}
		if sym, ok := out.FindSymbol(d.Name); ok {
			if err := out.WriteWord(d.Addr, sym.Addr); err != nil {
				return nil, fmt.Errorf("linker: resolving %q: %w", d.Name, err)
			}
			out.Relocations = append(out.Relocations, d.Addr)
			continue
		}
		out.Dependencies = append(out.Dependencies, d)
	}

	// Step 5: stack size is the max of the two hints.
	if other.StackSize > out.StackSize {
		out.StackSize = other.StackSize
	}

	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("linker: merge produced an inconsistent object: %w", err)
	}

	return out, nil
}

func cloneObject(o *object.Object) *object.Object {
	c := object.New()
	c.Flags = o.Flags
	c.StackSize = o.StackSize
	c.Text = append([]byte(nil), o.Text...)
	c.Data = append([]byte(nil), o.Data...)
	c.Symbols = append([]object.Symbol(nil), o.Symbols...)
	c.Relocations = append([]object.Word(nil), o.Relocations...)
	c.Dependencies = append([]object.Symbol(nil), o.Dependencies...)
	c.SourceName = o.SourceName
	return c
}
