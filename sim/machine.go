// Package sim is a host model of a Cortex-M chip running the boot selector and
// its images. It implements cortexm.Core, so the selector and switcher code
// that runs on the board runs here unmodified against simulated flash, RAM
// and system registers.
//
// Control transfers that never return on hardware (the jump into an image,
// a system reset, a core spinning forever) unwind the simulated program with
// a panic that the machine recovers from. A Machine is not safe for
// concurrent use.
package sim

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/marcinbor85/gohex"
	"github.com/tinygo-org/dualboot/cortexm"
	"github.com/tinygo-org/dualboot/handoff"
	"github.com/tinygo-org/dualboot/layout"
	"github.com/tinygo-org/dualboot/selector"
	"github.com/tinygo-org/dualboot/switcher"
)

var (
	ErrNotRunning   = errors.New("sim: no image is running")
	ErrOutOfMemory  = errors.New("sim: address is not mapped")
	ErrUnknownImage = switcher.ErrUnknownImage
)

// Entry point of the vector table written for every image by New, relative to
// its origin.
const defaultEntryOffset = 0x200

// Logger receives every event of the machine.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// State is what the simulated core is doing.
type State uint8

const (
	Off     State = iota
	Running       // an image is running
	Halted        // the selector stopped without starting an image
	Hung          // an image spins after a reset request that did not happen
	Faulted       // a load or jump hit unmapped memory
)

func (s State) String() string {
	switch s {
	case Off:
		return "off"
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Hung:
		return "hung"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Signals unwinding the simulated program.
type (
	resetSignal struct{}
	hangSignal  struct{}
	faultSignal struct{ addr uint32 }
	jumpSignal  struct{ sp, entry uint32 }
)

// Machine is a simulated chip with the layout's flash and RAM.
type Machine struct {
	layout *layout.Layout
	table  selector.Table
	flash  []byte
	ram    []byte
	cell   *handoff.Cell

	vtor    uint32
	sp      uint32
	current string
	state   State
	spins   int
	events  []Event

	logger     Logger
	rng        *rand.Rand
	fill       *uint32
	stuckReset bool
	spinLimit  int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger logs every event to logger at debug level.
func WithLogger(logger Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithSeed seeds the random RAM contents of a power-on reset.
func WithSeed(seed int64) Option {
	return func(m *Machine) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

// WithPowerOnWord fills every RAM word with w on power-on instead of random
// contents.
func WithPowerOnWord(w uint32) Option {
	return func(m *Machine) {
		m.fill = &w
	}
}

// WithStuckReset makes the core ignore reset requests.
func WithStuckReset() Option {
	return func(m *Machine) {
		m.stuckReset = true
	}
}

// WithSpinLimit sets how many idle iterations count as spinning forever.
func WithSpinLimit(n int) Option {
	return func(m *Machine) {
		m.spinLimit = n
	}
}

// New returns a powered off machine for the layout. Flash is erased except for
// a vector table at the origin of every image, with the stack at the top of
// usable RAM and the entry point defaultEntryOffset bytes into the image.
func New(l *layout.Layout, opts ...Option) *Machine {
	m := &Machine{
		layout:    l,
		table:     l.Table(),
		flash:     make([]byte, l.Flash.Size),
		ram:       make([]byte, l.RAM.Size),
		logger:    nopLogger{},
		spinLimit: 1000,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(1))
	}
	m.cell = handoff.New(cellWord{m})
	for i := range m.flash {
		m.flash[i] = 0xff
	}
	for _, img := range l.Images {
		// The image is inside flash in a valid layout.
		_ = m.Program(img.Name, l.RAMLimit()&^7, uint32(img.Origin)+defaultEntryOffset|1)
	}
	return m
}

// State returns what the core is doing.
func (m *Machine) State() State { return m.state }

// Current returns the name of the running image, if any.
func (m *Machine) Current() string { return m.current }

// VTOR returns the vector table base register.
func (m *Machine) VTOR() uint32 { return m.vtor }

// SP returns the main stack pointer loaded by the last jump.
func (m *Machine) SP() uint32 { return m.sp }

// Tag returns the contents of the handoff cell without consuming it.
func (m *Machine) Tag() handoff.Tag {
	return handoff.Tag(m.readRAM(uint32(m.layout.Cell)))
}

// Events returns the trace since the machine was created.
func (m *Machine) Events() []Event {
	return append([]Event(nil), m.events...)
}

// PowerOn performs a cold reset: RAM contents are indeterminate and the
// selector runs.
func (m *Machine) PowerOn() {
	if m.fill != nil {
		for addr := uint32(0); addr+4 <= uint32(len(m.ram)); addr += 4 {
			putWord(m.ram[addr:], *m.fill)
		}
	} else {
		m.rng.Read(m.ram)
	}
	m.emit(Event{Kind: EventPowerOn})
	m.boot()
}

// Reset performs a warm reset, as after a reset request: RAM is kept and the
// selector runs. A machine that is off is powered on instead.
func (m *Machine) Reset() {
	if m.state == Off {
		m.PowerOn()
		return
	}
	m.emit(Event{Kind: EventReset})
	m.boot()
}

// Exec runs fn as code of the current image. It returns when fn returns, or
// when fn leaves the image through a reset, a hang or a fault.
func (m *Machine) Exec(fn func(core cortexm.Core, cell *handoff.Cell)) error {
	if m.state != Running {
		return ErrNotRunning
	}
	switch sig := m.step(func() { fn(m, m.cell) }).(type) {
	case resetSignal:
		m.emit(Event{Kind: EventReset})
		m.boot()
	case hangSignal:
		m.state = Hung
		m.emit(Event{Kind: EventHang, Image: m.current})
	case faultSignal:
		m.fault(sig.addr)
	case jumpSignal:
		m.enter(sig)
	}
	return nil
}

// RequestSwitch runs the switcher in the current image to start the named
// image.
func (m *Machine) RequestSwitch(name string) error {
	var err error
	if xerr := m.Exec(func(core cortexm.Core, cell *handoff.Cell) {
		err = switcher.New(cell, core, m.table.Entries).RequestImage(name)
	}); xerr != nil {
		return xerr
	}
	return err
}

// Press is the user button: the current image switches to the next one.
func (m *Machine) Press() error {
	next, ok := m.layout.Next(m.current)
	if !ok {
		return ErrNotRunning
	}
	return m.RequestSwitch(next.Name)
}

// Poke writes a RAM word.
func (m *Machine) Poke(addr, value uint32) error {
	if !m.layout.RAM.Contains(addr) || !m.layout.RAM.Contains(addr+3) {
		return fmt.Errorf("%w: 0x%08x is not in RAM", ErrOutOfMemory, addr)
	}
	m.writeRAM(addr, value)
	return nil
}

// Peek reads a word of RAM or flash.
func (m *Machine) Peek(addr uint32) (uint32, error) {
	v, ok := m.load(addr)
	if !ok {
		return 0, fmt.Errorf("%w: 0x%08x", ErrOutOfMemory, addr)
	}
	return v, nil
}

// Program writes the two vector table words of the named image.
func (m *Machine) Program(name string, sp, entry uint32) error {
	img, ok := m.layout.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownImage, name)
	}
	off := uint32(img.Origin) - uint32(m.layout.Flash.Origin)
	putWord(m.flash[off+cortexm.VectorStackPointer:], sp)
	putWord(m.flash[off+cortexm.VectorResetHandler:], entry)
	return nil
}

// LoadHex programs flash from an Intel HEX image, such as the output of
// builder.Merge. Flash not covered by the image keeps its contents.
func (m *Machine) LoadHex(r io.Reader) error {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return err
	}
	for _, seg := range mem.GetDataSegments() {
		end := uint64(seg.Address) + uint64(len(seg.Data))
		if !m.layout.Flash.Contains(seg.Address) || end > m.layout.Flash.End() {
			return fmt.Errorf("%w: %d bytes at 0x%08x are outside flash %s", ErrOutOfMemory, len(seg.Data), seg.Address, m.layout.Flash)
		}
		copy(m.flash[seg.Address-uint32(m.layout.Flash.Origin):], seg.Data)
	}
	return nil
}

// boot runs the selector as after any reset.
func (m *Machine) boot() {
	m.vtor = uint32(m.layout.Flash.Origin)
	m.current = ""
	m.sp = 0
	sel := selector.New(m.table, m, m.cell, selector.WithTrace(m.decided))
	switch sig := m.step(sel.Boot).(type) {
	case jumpSignal:
		m.enter(sig)
	case hangSignal:
		m.state = Halted
		m.emit(Event{Kind: EventHang})
	case faultSignal:
		m.fault(sig.addr)
	}
}

func (m *Machine) decided(d selector.Decision, v selector.Vectors) {
	e := Event{Kind: EventSelect, Image: d.Name, Value: uint32(d.Tag), Addr: d.Base}
	switch {
	case d.Halt:
		e.Kind = EventHalt
	case !d.Matched:
		e.Kind = EventFallback
	}
	m.emit(e)
}

// enter starts the image containing the jump target.
func (m *Machine) enter(j jumpSignal) {
	img, ok := m.layout.ImageAt(j.entry &^ 1)
	if !ok {
		m.fault(j.entry)
		return
	}
	m.sp = j.sp
	m.current = img.Name
	m.state = Running
	m.logger.Info("image started", "image", img.Name, "sp", fmt.Sprintf("0x%08x", j.sp))
}

func (m *Machine) fault(addr uint32) {
	m.current = ""
	m.state = Faulted
	m.emit(Event{Kind: EventFault, Addr: addr})
	m.logger.Error("fault", "addr", fmt.Sprintf("0x%08x", addr))
}

// step runs fn until it returns or unwinds with a signal.
func (m *Machine) step(fn func()) (sig interface{}) {
	m.spins = 0
	defer func() {
		r := recover()
		switch r.(type) {
		case nil, resetSignal, hangSignal, faultSignal, jumpSignal:
			sig = r
		default:
			panic(r)
		}
	}()
	fn()
	return nil
}

func (m *Machine) emit(e Event) {
	m.events = append(m.events, e)
	m.logger.Debug(e.String())
}

// cortexm.Core implementation.

func (m *Machine) DataSyncBarrier() {
	m.emit(Event{Kind: EventDSB})
}

func (m *Machine) InstructionSyncBarrier() {
	m.emit(Event{Kind: EventISB})
}

func (m *Machine) LoadWord(addr uint32) uint32 {
	v, ok := m.load(addr)
	if !ok {
		panic(faultSignal{addr})
	}
	return v
}

func (m *Machine) SetVectorTable(base uint32) {
	m.vtor = base
	m.emit(Event{Kind: EventVTOR, Addr: base})
}

func (m *Machine) Quiesce() {
	m.emit(Event{Kind: EventQuiesce})
}

func (m *Machine) RequestReset() {
	m.emit(Event{Kind: EventResetRequest, Image: m.current})
	if m.stuckReset {
		return
	}
	panic(resetSignal{})
}

func (m *Machine) Jump(sp, entry uint32) {
	m.emit(Event{Kind: EventJump, Addr: entry, Value: sp})
	panic(jumpSignal{sp: sp, entry: entry})
}

func (m *Machine) Idle() {
	m.spins++
	if m.spins > m.spinLimit {
		panic(hangSignal{})
	}
}

// Memory.

func (m *Machine) load(addr uint32) (uint32, bool) {
	switch {
	case m.layout.RAM.Contains(addr) && m.layout.RAM.Contains(addr+3):
		return m.readRAM(addr), true
	case m.layout.Flash.Contains(addr) && m.layout.Flash.Contains(addr+3):
		return getWord(m.flash[addr-uint32(m.layout.Flash.Origin):]), true
	}
	return 0, false
}

func (m *Machine) readRAM(addr uint32) uint32 {
	return getWord(m.ram[addr-uint32(m.layout.RAM.Origin):])
}

func (m *Machine) writeRAM(addr, value uint32) {
	putWord(m.ram[addr-uint32(m.layout.RAM.Origin):], value)
}

// cellWord is the handoff cell in simulated RAM.
type cellWord struct{ m *Machine }

func (w cellWord) Get() uint32 {
	return w.m.readRAM(uint32(w.m.layout.Cell))
}

func (w cellWord) Set(v uint32) {
	w.m.writeRAM(uint32(w.m.layout.Cell), v)
	w.m.emit(Event{Kind: EventCell, Value: v, Image: w.m.current})
}

func getWord(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putWord(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
