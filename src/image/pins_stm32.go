//go:build tinygo && stm32

package main

import "machine"

// The KEY button of the black pill pulls PA0 to ground.
const (
	button        = machine.PA0
	buttonMode    = machine.PinInputPullup
	buttonPressed = false
)
