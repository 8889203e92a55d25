// Package handoff implements the boot handoff cell: a single word of RAM that
// survives a warm reset and carries the tag of the image to boot next.
//
// The cell has no ordinary owner in program flow. It is written by a running
// image right before it resets the core, and read (then cleared) by the boot
// selector on the very next reset. Its contents are indeterminate after a
// power-on reset, so every value outside the known tags means "no request".
//
// The cell must not be covered by any zero-initialized or initialized section
// of any program that runs on the chip. The generated linker scripts end the
// RAM region at the cell address to guarantee this.
package handoff

import "strconv"

// Tag identifies the image a requester wants to boot next.
type Tag uint32

// None is the neutral value stored after the selector consumed a tag.
const None Tag = 0

// Default tags. They must match bit-for-bit across the selector and every
// image, which is why programs take them from the generated board package.
const (
	TagImageA Tag = 0xDEAD_BEEF
	TagImageB Tag = 0xCAFE_BABE
)

// String returns the tag as a hexadecimal word.
func (t Tag) String() string {
	s := strconv.FormatUint(uint64(t), 16)
	for len(s) < 8 {
		s = "0" + s
	}
	return "0x" + s
}

// Word is a 32-bit register-like storage location. A *volatile.Register32
// satisfies it on the target.
type Word interface {
	Get() uint32
	Set(uint32)
}

// Cell is the handoff cell. Only Write and ReadAndClear touch the word.
type Cell struct {
	word Word
}

// New returns a cell backed by the given word.
func New(w Word) *Cell {
	return &Cell{word: w}
}

// Write stores a tag in the cell. The caller is responsible for the barrier
// that makes it visible before a reset.
func (c *Cell) Write(tag Tag) {
	c.word.Set(uint32(tag))
}

// ReadAndClear returns the current tag and leaves None in the cell, so a
// stale tag can never cause a second switch on a later, unrelated reset.
func (c *Cell) ReadAndClear() Tag {
	tag := Tag(c.word.Get())
	c.word.Set(uint32(None))
	return tag
}
