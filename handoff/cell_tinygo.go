//go:build tinygo && cortexm

package handoff

import (
	"runtime/volatile"
	"unsafe"
)

// At returns the cell at a fixed RAM address. All accesses go through
// volatile loads and stores so the compiler can neither drop nor reorder them.
func At(addr uintptr) *Cell {
	return &Cell{word: (*volatile.Register32)(unsafe.Pointer(addr))}
}
