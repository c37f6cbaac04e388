// Package asm translates RobotVM assembly source into an object.Object.
// See SPEC_FULL.md §[MODULE] asm for the full contract.
package asm

/* Token kinds. */
const (
	tokEOF = iota
	tokIdent
	tokNumber
	tokString
	tokHexBlockOpen // { ... }, decoded bytes stashed in token.text
	tokColon        // : (label prefix)
	tokDot          // . (directive prefix)
	tokAt           // @name (const label reference)
	tokPercent      // %name (const host-primitive reference)
	tokNewline
)

type token struct {
	kind  int
	text  string
	value uint64
	line  int
}
