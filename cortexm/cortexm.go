// Package cortexm describes the small part of a Cortex-M core the boot handoff
// needs: barriers, the vector table offset register, the reset request in
// AIRCR, word loads from flash and the one-way jump into another image.
//
// The native implementation is only built by TinyGo for Cortex-M targets. On
// the host the same interface is implemented by the simulator in package sim.
package cortexm

// System control block and NVIC registers (ARMv7-M Architecture Reference
// Manual, B3.2 and B3.4).
const (
	SYST_CSR  = 0xE000_E010 // SysTick control and status
	NVIC_ICER = 0xE000_E180 // interrupt clear-enable, 8 words
	NVIC_ICPR = 0xE000_E280 // interrupt clear-pending, 8 words
	SCB_VTOR  = 0xE000_ED08 // vector table offset
	SCB_AIRCR = 0xE000_ED0C // application interrupt and reset control

	NVIC_RegisterCount = 8
)

// AIRCR fields. Writes are ignored unless VECTKEY is present.
const (
	AIRCR_VECTKEY       = 0x05FA << 16
	AIRCR_VECTKEY_Msk   = 0xFFFF << 16
	AIRCR_PRIGROUP_Msk  = 0x7 << 8
	AIRCR_SYSRESETREQ   = 1 << 2
	AIRCR_VECTCLRACTIVE = 1 << 1
)

// Vector table layout shared by every image.
const (
	VectorStackPointer = 0 // byte offset of the initial stack pointer
	VectorResetHandler = 4 // byte offset of the reset handler

	// VTOR ignores the low 7 bits on every Cortex-M. Chips with more than 16
	// external interrupts need a larger power of two.
	VectorTableMinAlign = 128
)

// ResetRequest returns the AIRCR value that requests a system reset while
// keeping the priority grouping currently programmed in aircr.
func ResetRequest(aircr uint32) uint32 {
	return AIRCR_VECTKEY | aircr&AIRCR_PRIGROUP_Msk | AIRCR_SYSRESETREQ
}

// Core is the processor interface used by the selector and the requester.
//
// RequestReset and Jump are one-way on real hardware. Callers must not rely on
// either returning, and must spin on Idle if they do.
type Core interface {
	// DataSyncBarrier completes all explicit memory accesses before the next
	// instruction (DSB).
	DataSyncBarrier()

	// InstructionSyncBarrier flushes the pipeline so that the effect of
	// previous register writes is seen by the following instructions (ISB).
	InstructionSyncBarrier()

	// LoadWord reads a 32-bit word from memory.
	LoadWord(addr uint32) uint32

	// SetVectorTable points VTOR at a new vector table.
	SetVectorTable(base uint32)

	// Quiesce masks and clears every NVIC line and stops SysTick, so that no
	// interrupt configured by the running program can fire once VTOR points
	// at another image.
	Quiesce()

	// RequestReset asks the core for a system reset.
	RequestReset()

	// Jump selects and loads the main stack pointer and branches to entry.
	Jump(sp, entry uint32)

	// Idle executes one iteration of a terminal spin loop.
	Idle()
}

// JumpSequence starts an image on the main stack. CONTROL is cleared first so
// that SPSEL selects MSP even when the caller ran on the process stack, and
// the ISB makes the switch visible before MSP is loaded.
const JumpSequence = `
	msr control, {zero}
	isb 0xF
	msr msp, {sp}
	bx {entry}
`
