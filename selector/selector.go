// Package selector implements the first-stage boot selector. It runs after
// every reset, before any image code, and hands the core over to the image
// requested through the handoff cell.
package selector

import (
	"github.com/tinygo-org/dualboot/cortexm"
	"github.com/tinygo-org/dualboot/handoff"
)

// Policy decides what happens when the cell holds a tag that is not in the
// table, which includes the indeterminate power-on value.
type Policy uint8

const (
	// FallbackDefault boots the default image.
	FallbackDefault Policy = iota

	// FallbackHalt stops in the selector.
	FallbackHalt
)

func (p Policy) String() string {
	switch p {
	case FallbackDefault:
		return "default"
	case FallbackHalt:
		return "halt"
	default:
		return "unknown"
	}
}

// Entry maps one tag to one image base address.
type Entry struct {
	Name string
	Tag  handoff.Tag
	Base uint32
}

// Table is the static tag to image mapping known at build time.
type Table struct {
	Entries []Entry
	Default uint32 // base of the image booted for unknown tags
	Policy  Policy
}

// Decision is the outcome of decoding one tag.
type Decision struct {
	Tag     handoff.Tag
	Name    string
	Base    uint32
	Matched bool // the tag was in the table
	Halt    bool // no image will be started
}

// Decide maps a tag read from the cell to the image to boot.
func (t *Table) Decide(tag handoff.Tag) Decision {
	d := Decision{Tag: tag}
	for _, e := range t.Entries {
		if e.Tag == tag && tag != handoff.None {
			d.Name = e.Name
			d.Base = e.Base
			d.Matched = true
			return d
		}
	}
	if t.Policy == FallbackHalt {
		d.Halt = true
		return d
	}
	d.Base = t.Default
	for _, e := range t.Entries {
		if e.Base == t.Default {
			d.Name = e.Name
			break
		}
	}
	return d
}

// Vectors are the first two words of an image's vector table.
type Vectors struct {
	StackPointer uint32
	Entry        uint32
}

// ReadVectors loads the vector table words of the image at base. They are
// trusted as-is.
func ReadVectors(core cortexm.Core, base uint32) Vectors {
	return Vectors{
		StackPointer: core.LoadWord(base + cortexm.VectorStackPointer),
		Entry:        core.LoadWord(base + cortexm.VectorResetHandler),
	}
}

// Selector owns the boot decision for one reset.
type Selector struct {
	table Table
	core  cortexm.Core
	cell  *handoff.Cell
	trace func(Decision, Vectors)
}

// Option configures a Selector.
type Option func(*Selector)

// WithTrace installs a hook called with the decision right before the jump.
// It is also called with zero Vectors when the selector halts.
func WithTrace(fn func(Decision, Vectors)) Option {
	return func(s *Selector) {
		s.trace = fn
	}
}

// New returns a selector for the given table, core and handoff cell.
func New(table Table, core cortexm.Core, cell *handoff.Cell, opts ...Option) *Selector {
	s := &Selector{
		table: table,
		core:  core,
		cell:  cell,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Boot consumes the handoff tag and transfers control to the selected image.
// It does not return: either the core is running another image afterwards or
// it spins here.
func (s *Selector) Boot() {
	tag := s.cell.ReadAndClear()
	d := s.table.Decide(tag)
	if d.Halt {
		if s.trace != nil {
			s.trace(d, Vectors{})
		}
		s.hang()
	}

	v := ReadVectors(s.core, d.Base)
	if s.trace != nil {
		s.trace(d, v)
	}

	// Relocation must be complete before the new image can take an
	// interrupt, and before the first instruction fetched from it.
	s.core.Quiesce()
	s.core.SetVectorTable(d.Base)
	s.core.DataSyncBarrier()
	s.core.InstructionSyncBarrier()

	s.core.Jump(v.StackPointer, v.Entry)
	s.hang()
}

func (s *Selector) hang() {
	for {
		s.core.Idle()
	}
}
