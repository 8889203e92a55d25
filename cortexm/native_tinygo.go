//go:build tinygo && cortexm

package cortexm

import (
	"device/arm"
	"runtime/volatile"
	"unsafe"
)

var (
	systCSR = (*volatile.Register32)(unsafe.Pointer(uintptr(SYST_CSR)))
	vtor    = (*volatile.Register32)(unsafe.Pointer(uintptr(SCB_VTOR)))
	aircr   = (*volatile.Register32)(unsafe.Pointer(uintptr(SCB_AIRCR)))
)

// Native is the Core of the chip the program runs on.
type Native struct{}

func (Native) DataSyncBarrier() {
	arm.Asm("dsb 0xF")
}

func (Native) InstructionSyncBarrier() {
	arm.Asm("isb 0xF")
}

func (Native) LoadWord(addr uint32) uint32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(addr))).Get()
}

func (Native) SetVectorTable(base uint32) {
	vtor.Set(base)
}

func (Native) Quiesce() {
	arm.Asm("cpsid i")
	systCSR.Set(0)
	for i := uintptr(0); i < NVIC_RegisterCount; i++ {
		(*volatile.Register32)(unsafe.Pointer(uintptr(NVIC_ICER) + i*4)).Set(0xFFFF_FFFF)
		(*volatile.Register32)(unsafe.Pointer(uintptr(NVIC_ICPR) + i*4)).Set(0xFFFF_FFFF)
	}
	arm.Asm("dsb 0xF")
	arm.Asm("isb 0xF")
	// Nothing is enabled any more, so PRIMASK can go back to its reset value.
	// The next image expects to start with interrupts unmasked.
	arm.Asm("cpsie i")
}

func (Native) RequestReset() {
	aircr.Set(ResetRequest(aircr.Get()))
}

// Jump abandons the current stack: after msr the caller's frame is gone.
func (Native) Jump(sp, entry uint32) {
	arm.AsmFull(JumpSequence, map[string]interface{}{
		"zero":  uint32(0),
		"sp":    sp,
		"entry": entry,
	})
}

func (Native) Idle() {
	arm.Asm("nop")
}
